package improv

import (
	"log/slog"
	"sync"

	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
)

// Option configures a Controller.
type Option func(*Controller) error

// WithRedirectURL makes the controller send url as an RPC result after a
// successful wifi-settings command. An empty url disables the result.
func WithRedirectURL(url string) Option {
	return func(c *Controller) error {
		if url == "" {
			c.machine.result = nil
			return nil
		}
		result, err := protocol.EncodeResult(protocol.CommandWiFiSettings, url)
		if err != nil {
			return err
		}
		c.machine.result = result
		return nil
	}
}

// Controller is the entry point for transport events. Each event runs to
// completion, including the consumer call, under a single lock, so events
// from the transport are processed one at a time.
//
// No method returns an error: failures become an ErrorCode on the session
// and a notification to the client when it is subscribed.
type Controller struct {
	mu      sync.Mutex
	machine *Machine
}

// NewController creates a controller that notifies through notifier and
// hands received credentials to consumer.
// Panics if notifier or consumer is nil (programmer error).
func NewController(notifier Notifier, consumer Consumer, opts ...Option) (*Controller, error) {
	if notifier == nil {
		panic("improv: NewController called with nil notifier")
	}
	if consumer == nil {
		panic("improv: NewController called with nil consumer")
	}
	c := &Controller{machine: NewMachine(notifier, consumer)}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// OnConnected starts a fresh session for a new client.
func (c *Controller) OnConnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Info("[Improv] client connected")
	c.machine.Reset()
}

// OnDisconnected discards the session, abandoning any provisioning in progress.
func (c *Controller) OnDisconnected() {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Info("[Improv] client disconnected", "state", c.machine.session.State)
	c.machine.Reset()
}

// OnUnableToConnect reports that the transport failed to establish a connection.
func (c *Controller) OnUnableToConnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Warn("[Improv] unable to connect")
	c.machine.UnableToConnect()
}

// OnCharacteristicSubscribed records that the client enabled notifications
// on ch and sends its current value where the role has one.
func (c *Controller) OnCharacteristicSubscribed(ch protocol.Characteristic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Debug("[Improv] notifications enabled", "characteristic", ch)
	c.machine.Subscribe(ch)
}

// OnCharacteristicUnsubscribed stops notifications on ch.
func (c *Controller) OnCharacteristicUnsubscribed(ch protocol.Characteristic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Debug("[Improv] notifications disabled", "characteristic", ch)
	c.machine.Unsubscribe(ch)
}

// OnCharacteristicWritten handles a client write. Only RPC_COMMAND accepts
// writes; a wifi-settings command runs the consumer before returning.
func (c *Controller) OnCharacteristicWritten(ch protocol.Characteristic, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	slog.Debug("[Improv] characteristic written", "characteristic", ch, "bytes", len(value))
	c.machine.Write(ch, value)
}

// OnCharacteristicRead re-sends the current STATE or ERROR value.
func (c *Controller) OnCharacteristicRead(ch protocol.Characteristic) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.machine.Read(ch)
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine.Session()
}
