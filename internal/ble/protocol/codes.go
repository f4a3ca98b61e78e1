// Package protocol implements the byte-level encoding of the Improv Wi-Fi
// BLE protocol: RPC command decoding, single-byte notification values,
// RPC result framing, and the GATT characteristic roles.
package protocol

import "fmt"

// CommandCode is the first byte of an RPC command write.
type CommandCode byte

const (
	CommandWiFiSettings CommandCode = 0x01
	CommandIdentify     CommandCode = 0x02
	CommandDeviceInfo   CommandCode = 0x03
	CommandScanNetworks CommandCode = 0x04
	CommandSetHostname  CommandCode = 0x05
)

func (c CommandCode) String() string {
	switch c {
	case CommandWiFiSettings:
		return "wifi-settings"
	case CommandIdentify:
		return "identify"
	case CommandDeviceInfo:
		return "device-info"
	case CommandScanNetworks:
		return "scan-networks"
	case CommandSetHostname:
		return "set-hostname"
	default:
		return fmt.Sprintf("command(0x%02x)", byte(c))
	}
}

// DeviceState is the value exposed on the STATE characteristic.
type DeviceState byte

const (
	StateAuthorizationRequired DeviceState = 0x01
	StateAuthorized            DeviceState = 0x02
	StateProvisioning          DeviceState = 0x03
	StateProvisioned           DeviceState = 0x04
)

func (s DeviceState) String() string {
	switch s {
	case StateAuthorizationRequired:
		return "authorization-required"
	case StateAuthorized:
		return "authorized"
	case StateProvisioning:
		return "provisioning"
	case StateProvisioned:
		return "provisioned"
	default:
		return fmt.Sprintf("state(0x%02x)", byte(s))
	}
}

// ErrorCode is the value exposed on the ERROR characteristic.
type ErrorCode byte

const (
	ErrorNone            ErrorCode = 0x00
	ErrorInvalidRPC      ErrorCode = 0x01
	ErrorUnknownCommand  ErrorCode = 0x02
	ErrorUnableToConnect ErrorCode = 0x03
	ErrorNotAuthorized   ErrorCode = 0x04
	ErrorBadHostname     ErrorCode = 0x05

	// ErrorUnknownCharacteristic is the protocol's generic "unknown error"
	// code, reported when an event names a role the device does not serve.
	ErrorUnknownCharacteristic ErrorCode = 0xFF
)

func (e ErrorCode) String() string {
	switch e {
	case ErrorNone:
		return "none"
	case ErrorInvalidRPC:
		return "invalid-rpc"
	case ErrorUnknownCommand:
		return "unknown-command"
	case ErrorUnableToConnect:
		return "unable-to-connect"
	case ErrorNotAuthorized:
		return "not-authorized"
	case ErrorBadHostname:
		return "bad-hostname"
	case ErrorUnknownCharacteristic:
		return "unknown-characteristic"
	default:
		return fmt.Sprintf("error(0x%02x)", byte(e))
	}
}

// CapabilityIdentify is the only capability bit this device advertises.
const CapabilityIdentify byte = 0x01

// EncodeState returns the STATE notification payload.
func EncodeState(s DeviceState) []byte {
	return []byte{byte(s)}
}

// EncodeError returns the ERROR notification payload.
func EncodeError(e ErrorCode) []byte {
	return []byte{byte(e)}
}

// EncodeCapabilities returns the CAPABILITIES notification payload.
func EncodeCapabilities() []byte {
	return []byte{CapabilityIdentify}
}
