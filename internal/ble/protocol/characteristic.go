package protocol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Improv GATT UUIDs
const (
	ServiceUUID      = "00467768-6228-2272-4663-277478268000"
	StateUUID        = "00467768-6228-2272-4663-277478268001"
	ErrorUUID        = "00467768-6228-2272-4663-277478268002"
	RPCCommandUUID   = "00467768-6228-2272-4663-277478268003"
	RPCResultUUID    = "00467768-6228-2272-4663-277478268004"
	CapabilitiesUUID = "00467768-6228-2272-4663-277478268005"
)

// Characteristic identifies a logical role within the Improv service.
// Values outside the declared constants are unrecognized roles.
type Characteristic int

const (
	CharState Characteristic = iota
	CharError
	CharRPCCommand
	CharRPCResult
	CharCapabilities

	// NumCharacteristics is the number of recognized roles.
	NumCharacteristics = 5
)

// Characteristics lists every recognized role in declaration order.
var Characteristics = [NumCharacteristics]Characteristic{
	CharState, CharError, CharRPCCommand, CharRPCResult, CharCapabilities,
}

var characteristicNames = [NumCharacteristics]string{
	"STATE", "ERROR", "RPC_COMMAND", "RPC_RESULT", "CAPABILITIES",
}

var characteristicUUIDs = [NumCharacteristics]string{
	StateUUID, ErrorUUID, RPCCommandUUID, RPCResultUUID, CapabilitiesUUID,
}

// Valid reports whether c is one of the recognized roles.
func (c Characteristic) Valid() bool {
	return c >= 0 && c < NumCharacteristics
}

func (c Characteristic) String() string {
	if !c.Valid() {
		return fmt.Sprintf("UNKNOWN(%d)", int(c))
	}
	return characteristicNames[c]
}

// UUID returns the published UUID string of c, or "" for unrecognized roles.
func (c Characteristic) UUID() string {
	if !c.Valid() {
		return ""
	}
	return characteristicUUIDs[c]
}

// ParseCharacteristic resolves a role name ("STATE", "rpc_command", ...),
// a short alias ("rpc", "result", "caps"), or a characteristic UUID.
func ParseCharacteristic(s string) (Characteristic, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	switch name {
	case "RPC", "COMMAND":
		return CharRPCCommand, nil
	case "RESULT":
		return CharRPCResult, nil
	case "CAPS":
		return CharCapabilities, nil
	}
	for i, n := range characteristicNames {
		if n == name {
			return Characteristic(i), nil
		}
	}
	if id, err := uuid.Parse(s); err == nil {
		return CharacteristicByUUID(id)
	}
	return 0, fmt.Errorf("protocol: unknown characteristic %q", s)
}

// CharacteristicByUUID maps a characteristic UUID back to its role.
func CharacteristicByUUID(id uuid.UUID) (Characteristic, error) {
	for i, s := range characteristicUUIDs {
		if uuid.MustParse(s) == id {
			return Characteristic(i), nil
		}
	}
	return 0, fmt.Errorf("protocol: no characteristic with UUID %s", id)
}
