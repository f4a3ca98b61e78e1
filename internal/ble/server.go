package ble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/chaz8081/improv-wifi/internal/ble/advertise"
	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
)

// ServerOptions configures the advertising server.
type ServerOptions struct {
	RestartMax  int           // max advertising restart backoff in seconds
	RetryBase   time.Duration // first restart backoff step (default 1s)
	RequireMITM bool          // ask the stack for MITM-protected pairing
}

// DefaultServerOptions returns sensible defaults.
func DefaultServerOptions() ServerOptions {
	return ServerOptions{
		RestartMax:  30,
		RetryBase:   time.Second,
		RequireMITM: true,
	}
}

// Server registers the Improv service on a peripheral, advertises the
// device, and advertises again after every disconnect so the next client can
// find it.
type Server struct {
	peripheral Peripheral
	handler    Handler
	payload    advertise.Payload
	opts       ServerOptions

	mu          sync.Mutex
	advertising bool
	started     bool
	cancel      context.CancelFunc
	done        chan struct{}

	restart chan struct{}
}

// NewServer creates a server that forwards peripheral events to handler.
// The payload is checked up front so a bad configuration fails before the
// radio is touched.
func NewServer(p Peripheral, handler Handler, payload advertise.Payload, opts ServerOptions) (*Server, error) {
	if p == nil {
		panic("ble: NewServer called with nil peripheral")
	}
	if handler == nil {
		panic("ble: NewServer called with nil handler")
	}
	if _, err := payload.Marshal(); err != nil {
		return nil, fmt.Errorf("ble: advertising payload: %w", err)
	}
	if opts.RestartMax <= 0 {
		opts.RestartMax = 30
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}
	return &Server{
		peripheral: p,
		handler:    handler,
		payload:    payload,
		opts:       opts,
		restart:    make(chan struct{}, 1),
	}, nil
}

// Start enables the peripheral, registers the service and begins
// advertising. Advertising restarts run until ctx is cancelled or Close is
// called.
func (s *Server) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.New("ble: server already started")
	}
	s.started = true
	s.mu.Unlock()

	// A failed start may be retried.
	defer func() {
		if err != nil {
			s.mu.Lock()
			s.started = false
			s.mu.Unlock()
		}
	}()

	if err := s.peripheral.Enable(Security{RequireMITM: s.opts.RequireMITM}); err != nil {
		return fmt.Errorf("ble: enable peripheral: %w", err)
	}
	if err := s.peripheral.AddService(s); err != nil {
		return fmt.Errorf("ble: add Improv service: %w", err)
	}
	if err := s.advertise(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go s.restartLoop(ctx, done)

	slog.Info("[BLE] advertising", "name", s.payload.CompleteName, "service", protocol.ServiceUUID)
	return nil
}

// Advertising reports whether the peripheral is currently broadcasting.
func (s *Server) Advertising() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.advertising
}

// Close stops the restart loop and advertising.
func (s *Server) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	advertising := s.advertising
	s.advertising = false
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if advertising {
		if err := s.peripheral.StopAdvertising(); err != nil {
			return fmt.Errorf("ble: stop advertising: %w", err)
		}
	}
	return nil
}

func (s *Server) advertise() error {
	if err := s.peripheral.Advertise(s.payload); err != nil {
		return fmt.Errorf("ble: start advertising: %w", err)
	}
	s.mu.Lock()
	s.advertising = true
	s.mu.Unlock()
	return nil
}

// restartLoop re-advertises after each disconnect, backing off while the
// stack refuses.
func (s *Server) restartLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.restart:
		}

		for attempt := 0; ; attempt++ {
			if attempt > 0 {
				delay := backoffDelay(attempt-1, s.opts.RetryBase, s.opts.RestartMax)
				slog.Info("[BLE] advertising restart backoff", "attempt", attempt+1, "delay", delay)
				select {
				case <-ctx.Done():
					return
				case <-time.After(delay):
				}
			}
			if err := s.advertise(); err != nil {
				slog.Warn("[BLE] advertising restart failed", "error", err, "attempt", attempt+1)
				continue
			}
			slog.Info("[BLE] advertising restarted")
			break
		}
	}
}

// backoffDelay returns the delay before retry n, doubling from base and
// capped at maxSeconds.
func backoffDelay(attempt int, base time.Duration, maxSeconds int) time.Duration {
	delay := base << uint(attempt)
	max := time.Duration(maxSeconds) * time.Second
	if delay > max || delay <= 0 {
		return max
	}
	return delay
}

// Handler implementation. Events are forwarded unchanged; the server only
// tracks what it needs for advertising.

func (s *Server) OnConnected() {
	s.mu.Lock()
	s.advertising = false
	s.mu.Unlock()
	slog.Info("[BLE] central connected")
	s.handler.OnConnected()
}

func (s *Server) OnDisconnected() {
	slog.Info("[BLE] central disconnected")
	s.handler.OnDisconnected()
	select {
	case s.restart <- struct{}{}:
	default:
	}
}

func (s *Server) OnUnableToConnect() {
	slog.Warn("[BLE] connection attempt failed")
	s.handler.OnUnableToConnect()
}

func (s *Server) OnCharacteristicSubscribed(c protocol.Characteristic) {
	s.handler.OnCharacteristicSubscribed(c)
}

func (s *Server) OnCharacteristicUnsubscribed(c protocol.Characteristic) {
	s.handler.OnCharacteristicUnsubscribed(c)
}

func (s *Server) OnCharacteristicWritten(c protocol.Characteristic, value []byte) {
	s.handler.OnCharacteristicWritten(c, value)
}

func (s *Server) OnCharacteristicRead(c protocol.Characteristic) {
	s.handler.OnCharacteristicRead(c)
}

// Compile-time check that Server forwards the full Handler contract.
var _ Handler = (*Server)(nil)
