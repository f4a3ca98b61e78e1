package protocol

import (
	"errors"
	"fmt"
)

// ErrTruncated is returned when a command's declared field lengths run past
// the end of the written bytes.
var ErrTruncated = errors.New("protocol: command truncated")

// maxFieldLen is the largest SSID or password a one-byte length prefix can carry.
const maxFieldLen = 0xFF

// Command is a decoded RPC command write.
//
// SSID and Password are only populated for CommandWiFiSettings. They are raw
// bytes copied from the write and are not validated as any text encoding.
type Command struct {
	Code     CommandCode
	Length   byte // informational, never checked against the payload
	SSID     []byte
	Password []byte
}

// DecodeCommand decodes a single RPC_COMMAND write.
//
//	byte 0            command code
//	byte 1            payload length (informational)
//	byte 2            ssid length N
//	bytes 3..3+N      ssid
//	byte 3+N          password length M
//	bytes 4+N..4+N+M  password
//
// Commands other than wifi-settings decode successfully with only Code (and
// Length, if present) set. Bytes past the password, such as a client
// checksum, are ignored.
func DecodeCommand(data []byte) (*Command, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty write", ErrTruncated)
	}
	cmd := &Command{Code: CommandCode(data[0])}
	if len(data) > 1 {
		cmd.Length = data[1]
	}
	if cmd.Code != CommandWiFiSettings {
		return cmd, nil
	}

	if len(data) < 3 {
		return nil, fmt.Errorf("%w: missing ssid length at offset 2 (have %d bytes)", ErrTruncated, len(data))
	}
	ssidLen := int(data[2])
	ssidStart := 3
	ssidEnd := ssidStart + ssidLen
	if ssidEnd >= len(data) {
		return nil, fmt.Errorf("%w: ssid of %d bytes leaves no password length (have %d bytes)", ErrTruncated, ssidLen, len(data))
	}

	passLen := int(data[ssidEnd])
	passStart := ssidEnd + 1
	passEnd := passStart + passLen
	if passEnd > len(data) {
		return nil, fmt.Errorf("%w: password ends at %d, have %d bytes", ErrTruncated, passEnd, len(data))
	}

	cmd.SSID = append([]byte(nil), data[ssidStart:ssidEnd]...)
	cmd.Password = append([]byte(nil), data[passStart:passEnd]...)
	return cmd, nil
}

// EncodeWiFiSettings builds a wifi-settings command in the layout DecodeCommand reads.
func EncodeWiFiSettings(ssid, password []byte) ([]byte, error) {
	if len(ssid) > maxFieldLen {
		return nil, fmt.Errorf("protocol: ssid must be at most %d bytes, got %d", maxFieldLen, len(ssid))
	}
	if len(password) > maxFieldLen {
		return nil, fmt.Errorf("protocol: password must be at most %d bytes, got %d", maxFieldLen, len(password))
	}
	buf := make([]byte, 0, 4+len(ssid)+len(password))
	buf = append(buf, byte(CommandWiFiSettings))
	buf = append(buf, byte(1+len(ssid)+1+len(password)))
	buf = append(buf, byte(len(ssid)))
	buf = append(buf, ssid...)
	buf = append(buf, byte(len(password)))
	buf = append(buf, password...)
	return buf, nil
}

// EncodeResult frames an RPC result for the RPC_RESULT characteristic:
//
//	byte 0   command code the result answers
//	byte 1   length of the string section
//	...      each value as (length, bytes)
//	last     checksum, low byte of the sum of all preceding bytes
func EncodeResult(code CommandCode, values ...string) ([]byte, error) {
	var body []byte
	for i, v := range values {
		if len(v) > maxFieldLen {
			return nil, fmt.Errorf("protocol: result value %d must be at most %d bytes, got %d", i, maxFieldLen, len(v))
		}
		body = append(body, byte(len(v)))
		body = append(body, v...)
	}
	if len(body) > maxFieldLen {
		return nil, fmt.Errorf("protocol: result body must be at most %d bytes, got %d", maxFieldLen, len(body))
	}

	buf := make([]byte, 0, 3+len(body))
	buf = append(buf, byte(code), byte(len(body)))
	buf = append(buf, body...)
	buf = append(buf, checksum(buf))
	return buf, nil
}

func checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}
