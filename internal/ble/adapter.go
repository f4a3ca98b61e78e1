// Package ble connects the Improv session controller to a BLE peripheral
// stack. It registers the Improv GATT service, advertises the device, and
// translates stack callbacks into Handler events.
package ble

import (
	"github.com/chaz8081/improv-wifi/internal/ble/advertise"
	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
)

// Handler receives connection and characteristic events from the peripheral.
// Events are delivered one at a time; a Handler must not be called again
// until the previous call has returned.
type Handler interface {
	OnConnected()
	OnDisconnected()
	// OnUnableToConnect reports a connection attempt the stack could not complete.
	OnUnableToConnect()
	OnCharacteristicSubscribed(c protocol.Characteristic)
	OnCharacteristicUnsubscribed(c protocol.Characteristic)
	OnCharacteristicWritten(c protocol.Characteristic, value []byte)
	OnCharacteristicRead(c protocol.Characteristic)
}

// Security holds the pairing requirements requested from the stack.
type Security struct {
	RequireMITM bool
}

// Peripheral abstracts the BLE peripheral stack for testing.
type Peripheral interface {
	// Enable powers on the adapter and applies the security requirements.
	Enable(sec Security) error
	// AddService registers the Improv GATT service and routes its events to h.
	AddService(h Handler) error
	// Advertise starts broadcasting payload. Calling it while already
	// advertising restarts the broadcast.
	Advertise(payload advertise.Payload) error
	// StopAdvertising stops broadcasting.
	StopAdvertising() error
	// Notify pushes value to the client on characteristic c.
	Notify(c protocol.Characteristic, value []byte) error
}
