// Package advertise builds the advertising and scan response data an
// unprovisioned Improv device broadcasts.
package advertise

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
)

// MaxLegacyPacketLength is the size limit of a legacy advertising or scan
// response packet.
const MaxLegacyPacketLength = 31

// ErrFieldTooLong is returned when a single AD structure cannot be length-prefixed.
var ErrFieldTooLong = errors.New("advertise: field too long")

// AD types (Bluetooth Core Supplement, Part A)
const (
	TypeFlags               = 0x01
	TypeCompleteUUID128     = 0x07
	TypeShortName           = 0x08
	TypeCompleteName        = 0x09
	TypeConnIntervalRange   = 0x12
	TypeSolicitationUUID128 = 0x15
	TypeAppearance          = 0x19
	TypeServiceDataUUID128  = 0x21
	TypeURI                 = 0x24
	TypeManufacturerData    = 0xFF
)

// FlagLEGeneralDiscoverable is the general discoverable mode flag bit.
const FlagLEGeneralDiscoverable = 0x02

// ManufacturerID is the company identifier used in the manufacturer data
// field. 0xFFFF is reserved for testing.
const ManufacturerID = 0xFFFF

// manufacturerData is the fixed manufacturer payload that identifies an
// Improv device to clients that filter on it.
var manufacturerData = []byte{0x77, 0x68, 0x62, 0x28, 0x22, 0x72, 0x46, 0x63, 0x27, 0x74, 0x78, 0x26, 0x80, 0x00}

// Default connection interval range, in units of 1.25 ms.
const (
	DefaultConnIntervalMin = 0x20
	DefaultConnIntervalMax = 0x30
)

// Payload is the data set broadcast while advertising. The same payload is
// used for the scan response.
type Payload struct {
	Flags byte

	CompleteUUID128     []string
	SolicitationUUID128 []string
	ServiceDataUUID128  string
	ServiceData         []byte

	CompleteName string
	ShortName    string
	Appearance   uint16
	URI          string

	ManufacturerID   uint16
	ManufacturerData []byte

	ConnIntervalMin uint16
	ConnIntervalMax uint16
}

// ImprovPayload returns the payload an unprovisioned device advertises.
// The service UUID appears in the complete list, the solicitation list and
// the service data field.
func ImprovPayload(name, uri string) Payload {
	return Payload{
		Flags:               FlagLEGeneralDiscoverable,
		CompleteUUID128:     []string{protocol.ServiceUUID},
		SolicitationUUID128: []string{protocol.ServiceUUID},
		ServiceDataUUID128:  protocol.ServiceUUID,
		CompleteName:        name,
		ShortName:           name,
		Appearance:          0x0000,
		URI:                 uri,
		ManufacturerID:      ManufacturerID,
		ManufacturerData:    append([]byte(nil), manufacturerData...),
		ConnIntervalMin:     DefaultConnIntervalMin,
		ConnIntervalMax:     DefaultConnIntervalMax,
	}
}

// Field is one AD structure.
type Field struct {
	Type byte
	Data []byte
}

// Fields returns the AD structures of p in broadcast order. Empty optional
// fields are omitted; flags and appearance are always present.
func (p Payload) Fields() ([]Field, error) {
	var fields []Field
	add := func(typ byte, data []byte) {
		fields = append(fields, Field{Type: typ, Data: data})
	}

	add(TypeFlags, []byte{p.Flags})

	if len(p.CompleteUUID128) > 0 {
		data, err := uuidList(p.CompleteUUID128)
		if err != nil {
			return nil, err
		}
		add(TypeCompleteUUID128, data)
	}
	if len(p.SolicitationUUID128) > 0 {
		data, err := uuidList(p.SolicitationUUID128)
		if err != nil {
			return nil, err
		}
		add(TypeSolicitationUUID128, data)
	}
	if p.ServiceDataUUID128 != "" {
		data, err := uuidList([]string{p.ServiceDataUUID128})
		if err != nil {
			return nil, err
		}
		add(TypeServiceDataUUID128, append(data, p.ServiceData...))
	}

	if p.CompleteName != "" {
		add(TypeCompleteName, []byte(p.CompleteName))
	}
	if p.ShortName != "" {
		add(TypeShortName, []byte(p.ShortName))
	}
	add(TypeAppearance, binary.LittleEndian.AppendUint16(nil, p.Appearance))
	if p.URI != "" {
		add(TypeURI, EncodeURI(p.URI))
	}

	if p.ManufacturerData != nil {
		data := binary.LittleEndian.AppendUint16(nil, p.ManufacturerID)
		add(TypeManufacturerData, append(data, p.ManufacturerData...))
	}

	if p.ConnIntervalMin != 0 || p.ConnIntervalMax != 0 {
		data := binary.LittleEndian.AppendUint16(nil, p.ConnIntervalMin)
		add(TypeConnIntervalRange, binary.LittleEndian.AppendUint16(data, p.ConnIntervalMax))
	}

	for _, f := range fields {
		if len(f.Data) > 0xFE {
			return nil, fmt.Errorf("%w: type 0x%02x carries %d bytes", ErrFieldTooLong, f.Type, len(f.Data))
		}
	}
	return fields, nil
}

// Marshal encodes p as a sequence of length-prefixed AD structures.
// The result is not truncated to MaxLegacyPacketLength; transports that
// only support legacy advertising pick the fields they can carry.
func (p Payload) Marshal() ([]byte, error) {
	fields, err := p.Fields()
	if err != nil {
		return nil, err
	}
	var buf []byte
	for _, f := range fields {
		buf = append(buf, byte(len(f.Data)+1), f.Type)
		buf = append(buf, f.Data...)
	}
	return buf, nil
}

// UUIDBytes returns the 16-byte little-endian over-the-air form of a UUID string.
func UUIDBytes(s string) ([]byte, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("advertise: parse UUID %q: %w", s, err)
	}
	out := make([]byte, 16)
	for i := range id {
		out[15-i] = id[i]
	}
	return out, nil
}

func uuidList(ids []string) ([]byte, error) {
	var buf []byte
	for _, s := range ids {
		b, err := UUIDBytes(s)
		if err != nil {
			return nil, err
		}
		buf = append(buf, b...)
	}
	return buf, nil
}

// uriSchemes maps URI scheme prefixes to their single-byte codes from the
// Bluetooth assigned numbers. Only the schemes a provisioning device is
// likely to advertise are listed.
var uriSchemes = []struct {
	prefix string
	code   byte
}{
	{"https:", 0x17},
	{"http:", 0x16},
}

// EncodeURI returns the URI AD payload: a scheme code followed by the rest
// of the URI. Unknown schemes use code 0x01 and keep the full text.
func EncodeURI(uri string) []byte {
	for _, s := range uriSchemes {
		if strings.HasPrefix(uri, s.prefix) {
			return append([]byte{s.code}, uri[len(s.prefix):]...)
		}
	}
	return append([]byte{0x01}, uri...)
}

var typeNames = map[byte]string{
	TypeFlags:               "flags",
	TypeCompleteUUID128:     "complete-uuid128",
	TypeShortName:           "short-name",
	TypeCompleteName:        "complete-name",
	TypeConnIntervalRange:   "conn-interval",
	TypeSolicitationUUID128: "solicitation-uuid128",
	TypeAppearance:          "appearance",
	TypeServiceDataUUID128:  "service-data-uuid128",
	TypeURI:                 "uri",
	TypeManufacturerData:    "manufacturer-data",
}

// TypeName returns a readable name for an AD type.
func TypeName(t byte) string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("type(0x%02x)", t)
}
