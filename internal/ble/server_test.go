package ble

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/chaz8081/improv-wifi/internal/ble/advertise"
	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
)

func testServerOptions() ServerOptions {
	opts := DefaultServerOptions()
	opts.RetryBase = time.Millisecond
	return opts
}

func startTestServer(t *testing.T, p *mockPeripheral, h Handler) *Server {
	t.Helper()
	srv, err := NewServer(p, h, advertise.ImprovPayload("improv-test", ""), testServerOptions())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })
	return srv
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestServerStartAdvertises(t *testing.T) {
	p := &mockPeripheral{}
	srv := startTestServer(t, p, &recordingHandler{})

	if !p.enabled {
		t.Error("Start() did not enable the peripheral")
	}
	if !p.security.RequireMITM {
		t.Error("default options should request MITM protection")
	}
	if p.registeredHandler() != srv {
		t.Error("AddService() should receive the server as handler")
	}
	if got := p.advertiseCount(); got != 1 {
		t.Fatalf("Advertise() called %d times, want 1", got)
	}
	if p.advertised[0].CompleteName != "improv-test" {
		t.Errorf("advertised name = %q, want %q", p.advertised[0].CompleteName, "improv-test")
	}
	if !srv.Advertising() {
		t.Error("Advertising() = false after Start")
	}
}

func TestServerStartTwice(t *testing.T) {
	p := &mockPeripheral{}
	srv := startTestServer(t, p, &recordingHandler{})
	if err := srv.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}
}

func TestServerForwardsEvents(t *testing.T) {
	p := &mockPeripheral{}
	h := &recordingHandler{}
	startTestServer(t, p, h)

	stack := p.registeredHandler()
	stack.OnConnected()
	stack.OnCharacteristicSubscribed(protocol.CharState)
	stack.OnCharacteristicWritten(protocol.CharRPCCommand, []byte{0x01})
	stack.OnCharacteristicRead(protocol.CharError)
	stack.OnCharacteristicUnsubscribed(protocol.CharState)
	stack.OnUnableToConnect()
	stack.OnDisconnected()

	want := []string{
		"connected",
		"subscribe STATE",
		"write RPC_COMMAND",
		"read ERROR",
		"unsubscribe STATE",
		"unable-to-connect",
		"disconnected",
	}
	got := h.Events()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("forwarded events =\n  got  %v\n  want %v", got, want)
	}
}

func TestServerReadvertisesAfterDisconnect(t *testing.T) {
	p := &mockPeripheral{}
	srv := startTestServer(t, p, &recordingHandler{})

	stack := p.registeredHandler()
	stack.OnConnected()
	if srv.Advertising() {
		t.Error("Advertising() = true while a central is connected")
	}
	stack.OnDisconnected()

	waitFor(t, "advertising restart", func() bool { return p.advertiseCount() == 2 })
	waitFor(t, "advertising flag", srv.Advertising)
}

func TestServerReadvertiseBacksOff(t *testing.T) {
	p := &mockPeripheral{}
	startTestServer(t, p, &recordingHandler{})

	p.mu.Lock()
	p.advFailures = 2
	p.mu.Unlock()

	stack := p.registeredHandler()
	stack.OnConnected()
	stack.OnDisconnected()

	waitFor(t, "advertising restart after failures", func() bool { return p.advertiseCount() == 2 })
}

func TestServerStartAdvertiseFailure(t *testing.T) {
	p := &mockPeripheral{advFailures: 1}
	srv, err := NewServer(p, &recordingHandler{}, advertise.ImprovPayload("x", ""), testServerOptions())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("Start() should fail when advertising cannot start")
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() after failed Start error = %v", err)
	}
}

func TestServerStartRetryAfterFailure(t *testing.T) {
	p := &mockPeripheral{advFailures: 1}
	srv, err := NewServer(p, &recordingHandler{}, advertise.ImprovPayload("x", ""), testServerOptions())
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("first Start() should fail when advertising cannot start")
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() after a failed start error = %v", err)
	}
	t.Cleanup(func() { _ = srv.Close() })

	if got := p.advertiseCount(); got != 1 {
		t.Errorf("Advertise() succeeded %d times, want 1", got)
	}
	if !srv.Advertising() {
		t.Error("Advertising() = false after a successful retry")
	}
}

func TestServerCloseStopsAdvertising(t *testing.T) {
	p := &mockPeripheral{}
	srv := startTestServer(t, p, &recordingHandler{})

	if err := srv.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if p.stopped != 1 {
		t.Errorf("StopAdvertising() called %d times, want 1", p.stopped)
	}
	if srv.Advertising() {
		t.Error("Advertising() = true after Close")
	}
}

func TestNewServerRejectsBadPayload(t *testing.T) {
	payload := advertise.ImprovPayload(strings.Repeat("n", 300), "")
	if _, err := NewServer(&mockPeripheral{}, &recordingHandler{}, payload, DefaultServerOptions()); err == nil {
		t.Error("NewServer() should reject a payload that cannot be encoded")
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{40, 30 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffDelay(tt.attempt, time.Second, 30); got != tt.want {
			t.Errorf("backoffDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}
