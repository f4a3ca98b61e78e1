// Package improv implements the device side of the Improv Wi-Fi provisioning
// protocol: the per-connection session, the notification subscription
// registry, the provisioning state machine, and the controller that the BLE
// transport drives.
package improv

import (
	"fmt"

	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
)

// Registry tracks which characteristics the client has subscribed to.
// The zero value has no subscriptions.
type Registry struct {
	subscribed [protocol.NumCharacteristics]bool
}

// Subscribe marks c as subscribed. Unrecognized roles are ignored.
func (r *Registry) Subscribe(c protocol.Characteristic) {
	if c.Valid() {
		r.subscribed[c] = true
	}
}

// Unsubscribe clears the subscription for c.
func (r *Registry) Unsubscribe(c protocol.Characteristic) {
	if c.Valid() {
		r.subscribed[c] = false
	}
}

// IsSubscribed reports whether notifications to c may be sent.
func (r Registry) IsSubscribed(c protocol.Characteristic) bool {
	return c.Valid() && r.subscribed[c]
}

// Reset drops every subscription.
func (r *Registry) Reset() {
	r.subscribed = [protocol.NumCharacteristics]bool{}
}

// Subscribed returns the subscribed roles in declaration order.
func (r Registry) Subscribed() []protocol.Characteristic {
	var out []protocol.Characteristic
	for _, c := range protocol.Characteristics {
		if r.subscribed[c] {
			out = append(out, c)
		}
	}
	return out
}

// Session is the state of one client connection.
type Session struct {
	State    protocol.DeviceState
	Error    protocol.ErrorCode
	Registry Registry
}

// NewSession returns the session a fresh connection starts with.
func NewSession() Session {
	return Session{
		State: protocol.StateAuthorized,
		Error: protocol.ErrorNone,
	}
}

func (s Session) String() string {
	return fmt.Sprintf("state=%s error=%s subscribed=%v", s.State, s.Error, s.Registry.Subscribed())
}

// Credentials are the Wi-Fi settings extracted from a wifi-settings command.
// Both fields are raw bytes exactly as written by the client.
type Credentials struct {
	SSID     []byte
	Password []byte
}

// String never includes the password.
func (c Credentials) String() string {
	return fmt.Sprintf("ssid=%q password=<%d bytes>", c.SSID, len(c.Password))
}

// Consumer receives candidate credentials and reports whether they were accepted.
// Apply is called synchronously while the session is locked.
type Consumer interface {
	Apply(creds Credentials) bool
}

// ConsumerFunc adapts a function to the Consumer interface.
type ConsumerFunc func(creds Credentials) bool

func (f ConsumerFunc) Apply(creds Credentials) bool { return f(creds) }

// Notifier pushes a characteristic value to the connected client.
type Notifier interface {
	Notify(c protocol.Characteristic, value []byte) error
}
