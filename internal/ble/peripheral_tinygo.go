package ble

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"tinygo.org/x/bluetooth"

	"github.com/chaz8081/improv-wifi/internal/ble/advertise"
	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
)

// TinyGoPeripheral implements Peripheral on tinygo-org/bluetooth.
//
// The tinygo GATT server does not report CCCD writes or reads, so the
// peripheral treats every notify-capable characteristic as subscribed from
// the moment a central connects. Characteristic.Write both updates the
// readable value and notifies centrals that enabled notifications, which
// keeps reads current without read events.
type TinyGoPeripheral struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement

	// mu protects handler and the connected flag.
	mu        sync.Mutex
	handler   Handler
	connected bool

	chars [protocol.NumCharacteristics]bluetooth.Characteristic
}

// NewTinyGoPeripheral creates a peripheral on the default adapter.
func NewTinyGoPeripheral() *TinyGoPeripheral {
	return &TinyGoPeripheral{adapter: bluetooth.DefaultAdapter}
}

// notifyRoles are reported as subscribed on connect.
var notifyRoles = []protocol.Characteristic{
	protocol.CharState, protocol.CharError, protocol.CharRPCResult, protocol.CharCapabilities,
}

func (p *TinyGoPeripheral) Enable(sec Security) error {
	if err := p.adapter.Enable(); err != nil {
		return err
	}
	if sec.RequireMITM {
		// Pairing policy belongs to the host stack (BlueZ agent or SoftDevice
		// configuration); tinygo exposes no knob for it.
		slog.Warn("[BLE] MITM pairing requested but must be configured in the host stack")
	}

	p.adapter.SetConnectHandler(func(device bluetooth.Device, connected bool) {
		p.mu.Lock()
		h := p.handler
		wasConnected := p.connected
		p.connected = connected
		p.mu.Unlock()
		if h == nil {
			return
		}

		if !connected {
			if wasConnected {
				h.OnDisconnected()
			}
			return
		}
		if wasConnected {
			// A second central while one is attached; the session model
			// serves a single client.
			slog.Warn("[BLE] ignoring additional central", "address", device.Address.String())
			return
		}
		h.OnConnected()
		for _, c := range notifyRoles {
			h.OnCharacteristicSubscribed(c)
		}
	})
	return nil
}

func (p *TinyGoPeripheral) AddService(h Handler) error {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()

	svcUUID, err := parseUUID(protocol.ServiceUUID)
	if err != nil {
		return err
	}

	var configs []bluetooth.CharacteristicConfig
	for _, c := range protocol.Characteristics {
		id, err := parseUUID(c.UUID())
		if err != nil {
			return err
		}
		cfg := bluetooth.CharacteristicConfig{
			Handle: &p.chars[c],
			UUID:   id,
		}
		switch c {
		case protocol.CharState:
			cfg.Flags = bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission
			cfg.Value = protocol.EncodeState(protocol.StateAuthorized)
		case protocol.CharError:
			cfg.Flags = bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission
			cfg.Value = protocol.EncodeError(protocol.ErrorNone)
		case protocol.CharRPCCommand:
			cfg.Flags = bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicWriteWithoutResponsePermission
			cfg.WriteEvent = p.writeEvent(c)
		case protocol.CharRPCResult:
			cfg.Flags = bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission
		case protocol.CharCapabilities:
			cfg.Flags = bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission
			cfg.Value = protocol.EncodeCapabilities()
		}
		configs = append(configs, cfg)
	}

	if err := p.adapter.AddService(&bluetooth.Service{
		UUID:            svcUUID,
		Characteristics: configs,
	}); err != nil {
		return fmt.Errorf("ble: add service: %w", err)
	}
	return nil
}

func (p *TinyGoPeripheral) writeEvent(c protocol.Characteristic) func(bluetooth.Connection, int, []byte) {
	return func(client bluetooth.Connection, offset int, value []byte) {
		if offset != 0 {
			slog.Warn("[BLE] partial write received, commands must arrive in one write", "characteristic", c, "offset", offset)
		}
		p.mu.Lock()
		h := p.handler
		p.mu.Unlock()
		if h != nil {
			h.OnCharacteristicWritten(c, append([]byte(nil), value...))
		}
	}
}

func (p *TinyGoPeripheral) Advertise(payload advertise.Payload) error {
	opts := bluetooth.AdvertisementOptions{
		LocalName: payload.CompleteName,
	}
	for _, s := range payload.CompleteUUID128 {
		id, err := parseUUID(s)
		if err != nil {
			return err
		}
		opts.ServiceUUIDs = append(opts.ServiceUUIDs, id)
	}
	if payload.ServiceDataUUID128 != "" {
		id, err := parseUUID(payload.ServiceDataUUID128)
		if err != nil {
			return err
		}
		opts.ServiceData = []bluetooth.ServiceDataElement{{UUID: id, Data: payload.ServiceData}}
	}
	if payload.ManufacturerData != nil {
		opts.ManufacturerData = []bluetooth.ManufacturerDataElement{
			{CompanyID: payload.ManufacturerID, Data: payload.ManufacturerData},
		}
	}
	slog.Debug("[BLE] advertisement fields not supported by tinygo are omitted",
		"solicitation", len(payload.SolicitationUUID128), "uri", payload.URI, "appearance", payload.Appearance)

	if p.adv == nil {
		p.adv = p.adapter.DefaultAdvertisement()
	} else {
		_ = p.adv.Stop()
	}
	if err := p.adv.Configure(opts); err != nil {
		return fmt.Errorf("ble: configure advertisement: %w", err)
	}
	return p.adv.Start()
}

func (p *TinyGoPeripheral) StopAdvertising() error {
	if p.adv == nil {
		return nil
	}
	return p.adv.Stop()
}

func (p *TinyGoPeripheral) Notify(c protocol.Characteristic, value []byte) error {
	if !c.Valid() {
		return fmt.Errorf("ble: notify on unknown characteristic %v", c)
	}
	_, err := p.chars[c].Write(value)
	return err
}

// parseUUID converts a UUID string into tinygo's representation.
func parseUUID(s string) (bluetooth.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return bluetooth.UUID{}, fmt.Errorf("ble: parse UUID %q: %w", s, err)
	}
	return bluetooth.NewUUID(id), nil
}

// Compile-time check that TinyGoPeripheral implements Peripheral.
var _ Peripheral = (*TinyGoPeripheral)(nil)
