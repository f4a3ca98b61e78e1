package improv

import (
	"log/slog"

	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
)

// Machine applies connection and characteristic events to a Session.
// It is not safe for concurrent use; Controller serializes access.
type Machine struct {
	session  Session
	notifier Notifier
	consumer Consumer

	// result is sent on RPC_RESULT after a successful wifi-settings command.
	// Nil disables the result notification.
	result []byte
}

// NewMachine returns a machine in the initial session state.
func NewMachine(notifier Notifier, consumer Consumer) *Machine {
	return &Machine{
		session:  NewSession(),
		notifier: notifier,
		consumer: consumer,
	}
}

// Session returns a copy of the current session.
func (m *Machine) Session() Session {
	return m.session
}

// Reset discards the session, including subscriptions and any provisioning
// in progress.
func (m *Machine) Reset() {
	m.session = NewSession()
}

// Subscribe handles a client enabling notifications on c.
func (m *Machine) Subscribe(c protocol.Characteristic) {
	switch c {
	case protocol.CharState:
		m.session.Registry.Subscribe(c)
		m.notifyState()
	case protocol.CharError:
		m.session.Registry.Subscribe(c)
		m.notifyError()
	case protocol.CharCapabilities:
		m.session.Registry.Subscribe(c)
		m.notify(c, protocol.EncodeCapabilities())
	case protocol.CharRPCResult:
		m.session.Registry.Subscribe(c)
	case protocol.CharRPCCommand:
		// write-only
	default:
		m.setError(protocol.ErrorUnknownCharacteristic)
		m.notifyError()
	}
}

// Unsubscribe handles a client disabling notifications on c.
func (m *Machine) Unsubscribe(c protocol.Characteristic) {
	switch c {
	case protocol.CharState, protocol.CharError, protocol.CharRPCResult, protocol.CharCapabilities:
		m.session.Registry.Unsubscribe(c)
	default:
		m.setError(protocol.ErrorUnknownCharacteristic)
		m.notifyError()
	}
}

// Read handles a client read of c by re-sending the current value.
func (m *Machine) Read(c protocol.Characteristic) {
	switch c {
	case protocol.CharState:
		m.notifyState()
	case protocol.CharError:
		m.notifyError()
	}
}

// Write handles a client write of value to c.
func (m *Machine) Write(c protocol.Characteristic, value []byte) {
	if c != protocol.CharRPCCommand {
		m.setError(protocol.ErrorUnknownCharacteristic)
		// Reported on STATE, not ERROR.
		m.notifyState()
		return
	}

	cmd, err := protocol.DecodeCommand(value)
	if err != nil {
		slog.Warn("[Improv] rejecting malformed command", "error", err, "bytes", len(value))
		m.setError(protocol.ErrorInvalidRPC)
		m.notifyError()
		return
	}

	if cmd.Code != protocol.CommandWiFiSettings {
		slog.Info("[Improv] unsupported command", "command", cmd.Code)
		m.setError(protocol.ErrorUnknownCommand)
		m.notifyError()
		return
	}

	m.provision(Credentials{SSID: cmd.SSID, Password: cmd.Password})
}

// UnableToConnect records a transport-reported connection failure.
func (m *Machine) UnableToConnect() {
	m.setError(protocol.ErrorUnableToConnect)
	m.notifyError()
}

func (m *Machine) provision(creds Credentials) {
	m.setState(protocol.StateProvisioning)
	m.notifyState()

	if m.apply(creds) {
		m.setState(protocol.StateProvisioned)
		m.notifyState()
		if m.result != nil {
			m.notify(protocol.CharRPCResult, m.result)
		}
		return
	}
	m.setState(protocol.StateAuthorized)
	m.notifyState()
}

// apply calls the consumer. A panicking consumer counts as a rejection.
func (m *Machine) apply(creds Credentials) (accepted bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("[Improv] credential consumer panicked", "panic", r, "ssid", string(creds.SSID))
			accepted = false
		}
	}()
	accepted = m.consumer.Apply(creds)
	slog.Info("[Improv] credentials processed", "ssid", string(creds.SSID), "accepted", accepted)
	return accepted
}

func (m *Machine) setState(s protocol.DeviceState) {
	if m.session.State != s {
		slog.Debug("[Improv] state change", "from", m.session.State, "to", s)
	}
	m.session.State = s
}

func (m *Machine) setError(e protocol.ErrorCode) {
	if e != protocol.ErrorNone {
		slog.Debug("[Improv] error set", "error", e, "previous", m.session.Error)
	}
	m.session.Error = e
}

func (m *Machine) notifyState() {
	m.notify(protocol.CharState, protocol.EncodeState(m.session.State))
}

func (m *Machine) notifyError() {
	m.notify(protocol.CharError, protocol.EncodeError(m.session.Error))
}

// notify sends value to c if the client is subscribed. Unsubscribed
// notifications are dropped, never queued.
func (m *Machine) notify(c protocol.Characteristic, value []byte) {
	if !m.session.Registry.IsSubscribed(c) {
		slog.Debug("[Improv] notification dropped, not subscribed", "characteristic", c, "value", value)
		return
	}
	if err := m.notifier.Notify(c, value); err != nil {
		slog.Warn("[Improv] notify failed", "characteristic", c, "error", err)
	}
}
