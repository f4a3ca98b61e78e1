package protocol

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

func TestDecodeCommandWiFiSettings(t *testing.T) {
	raw, err := hex.DecodeString("010a07446f70706c6572096d6f666f7332303130")
	if err != nil {
		t.Fatalf("bad test vector: %v", err)
	}

	cmd, err := DecodeCommand(raw)
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if cmd.Code != CommandWiFiSettings {
		t.Errorf("Code = %v, want %v", cmd.Code, CommandWiFiSettings)
	}
	if cmd.Length != 0x0a {
		t.Errorf("Length = 0x%02x, want 0x0a", cmd.Length)
	}
	if string(cmd.SSID) != "Doppler" {
		t.Errorf("SSID = %q, want %q", cmd.SSID, "Doppler")
	}
	if string(cmd.Password) != "mofos2010" {
		t.Errorf("Password = %q, want %q", cmd.Password, "mofos2010")
	}
}

func TestDecodeCommandIgnoresLengthByte(t *testing.T) {
	for _, length := range []byte{0x00, 0x05, 0x12, 0xff} {
		raw := []byte{0x01, length, 0x02, 'a', 'b', 0x03, 'x', 'y', 'z'}
		cmd, err := DecodeCommand(raw)
		if err != nil {
			t.Fatalf("DecodeCommand() with length 0x%02x error = %v", length, err)
		}
		if !bytes.Equal(cmd.SSID, []byte("ab")) || !bytes.Equal(cmd.Password, []byte("xyz")) {
			t.Errorf("length 0x%02x: got ssid=%q password=%q, want ab/xyz", length, cmd.SSID, cmd.Password)
		}
	}
}

func TestDecodeCommandRawBytes(t *testing.T) {
	// Not valid UTF-8; must come through untouched.
	ssid := []byte{0xff, 0x00, 0xc3}
	password := []byte{0x80, 0x81}
	raw := append([]byte{0x01, 0x00, byte(len(ssid))}, ssid...)
	raw = append(raw, byte(len(password)))
	raw = append(raw, password...)

	cmd, err := DecodeCommand(raw)
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if !bytes.Equal(cmd.SSID, ssid) {
		t.Errorf("SSID = %x, want %x", cmd.SSID, ssid)
	}
	if !bytes.Equal(cmd.Password, password) {
		t.Errorf("Password = %x, want %x", cmd.Password, password)
	}
}

func TestDecodeCommandEmptyFields(t *testing.T) {
	cmd, err := DecodeCommand([]byte{0x01, 0x02, 0x00, 0x00})
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if len(cmd.SSID) != 0 || len(cmd.Password) != 0 {
		t.Errorf("got ssid=%q password=%q, want both empty", cmd.SSID, cmd.Password)
	}
}

func TestDecodeCommandTrailingBytesIgnored(t *testing.T) {
	raw := []byte{0x01, 0x04, 0x01, 'a', 0x01, 'b', 0xAA, 0xBB}
	cmd, err := DecodeCommand(raw)
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	if string(cmd.SSID) != "a" || string(cmd.Password) != "b" {
		t.Errorf("got ssid=%q password=%q, want a/b", cmd.SSID, cmd.Password)
	}
}

func TestDecodeCommandCopiesFields(t *testing.T) {
	raw := []byte{0x01, 0x04, 0x01, 'a', 0x01, 'b'}
	cmd, err := DecodeCommand(raw)
	if err != nil {
		t.Fatalf("DecodeCommand() error = %v", err)
	}
	raw[3] = 'z'
	raw[5] = 'z'
	if string(cmd.SSID) != "a" || string(cmd.Password) != "b" {
		t.Errorf("decoded fields alias the input buffer: ssid=%q password=%q", cmd.SSID, cmd.Password)
	}
}

func TestDecodeCommandOtherCodes(t *testing.T) {
	for _, code := range []CommandCode{CommandIdentify, CommandDeviceInfo, 0x7f} {
		cmd, err := DecodeCommand([]byte{byte(code)})
		if err != nil {
			t.Fatalf("DecodeCommand(%v) error = %v", code, err)
		}
		if cmd.Code != code {
			t.Errorf("Code = %v, want %v", cmd.Code, code)
		}
		if cmd.SSID != nil || cmd.Password != nil {
			t.Errorf("%v: fields should not be parsed, got ssid=%q password=%q", code, cmd.SSID, cmd.Password)
		}
	}
}

func TestDecodeCommandTruncated(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"no ssid length", []byte{0x01, 0x00}},
		{"ssid overruns", []byte{0x01, 0x00, 0x05, 'a', 'b'}},
		{"no password length", []byte{0x01, 0x00, 0x02, 'a', 'b'}},
		{"password overruns", []byte{0x01, 0x00, 0x01, 'a', 0x04, 'x', 'y'}},
		{"huge declared lengths", []byte{0x01, 0xff, 0xff, 0xff}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeCommand(tt.raw)
			if !errors.Is(err, ErrTruncated) {
				t.Fatalf("DecodeCommand(%x) error = %v, want ErrTruncated", tt.raw, err)
			}
			if cmd != nil {
				t.Errorf("DecodeCommand(%x) = %+v, want nil", tt.raw, cmd)
			}
		})
	}
}

func TestEncodeWiFiSettings(t *testing.T) {
	got, err := EncodeWiFiSettings([]byte("Doppler"), []byte("mofos2010"))
	if err != nil {
		t.Fatalf("EncodeWiFiSettings() error = %v", err)
	}
	// Same fields as the reference vector, with byte 1 set to 1+N+1+M.
	want, _ := hex.DecodeString("011207446f70706c6572096d6f666f7332303130")
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeWiFiSettings() =\n  got  %x\n  want %x", got, want)
	}

	cmd, err := DecodeCommand(got)
	if err != nil {
		t.Fatalf("DecodeCommand(encoded) error = %v", err)
	}
	if string(cmd.SSID) != "Doppler" || string(cmd.Password) != "mofos2010" {
		t.Errorf("decoded ssid=%q password=%q", cmd.SSID, cmd.Password)
	}
}

func TestEncodeWiFiSettingsTooLong(t *testing.T) {
	long := bytes.Repeat([]byte{'a'}, 256)
	if _, err := EncodeWiFiSettings(long, nil); err == nil {
		t.Error("expected error for 256-byte ssid")
	}
	if _, err := EncodeWiFiSettings(nil, long); err == nil {
		t.Error("expected error for 256-byte password")
	}
}

func TestEncodeResult(t *testing.T) {
	got, err := EncodeResult(CommandWiFiSettings, "http://a")
	if err != nil {
		t.Fatalf("EncodeResult() error = %v", err)
	}

	want := []byte{0x01, 0x09, 0x08, 'h', 't', 't', 'p', ':', '/', '/', 'a'}
	var sum byte
	for _, b := range want {
		sum += b
	}
	want = append(want, sum)

	if !bytes.Equal(got, want) {
		t.Errorf("EncodeResult() =\n  got  %x\n  want %x", got, want)
	}
}

func TestEncodeResultEmpty(t *testing.T) {
	got, err := EncodeResult(CommandIdentify)
	if err != nil {
		t.Fatalf("EncodeResult() error = %v", err)
	}
	want := []byte{0x02, 0x00, 0x02}
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeResult() = %x, want %x", got, want)
	}
}

func TestEncodeResultTooLong(t *testing.T) {
	long := string(bytes.Repeat([]byte{'a'}, 200))
	if _, err := EncodeResult(CommandWiFiSettings, long, long); err == nil {
		t.Error("expected error when result body exceeds 255 bytes")
	}
}

func TestSingleByteEncoders(t *testing.T) {
	if got := EncodeState(StateProvisioned); !bytes.Equal(got, []byte{0x04}) {
		t.Errorf("EncodeState(provisioned) = %x, want 04", got)
	}
	if got := EncodeError(ErrorUnknownCommand); !bytes.Equal(got, []byte{0x02}) {
		t.Errorf("EncodeError(unknown-command) = %x, want 02", got)
	}
	if got := EncodeCapabilities(); !bytes.Equal(got, []byte{0x01}) {
		t.Errorf("EncodeCapabilities() = %x, want 01", got)
	}
	// Reserved codes pass through unchanged.
	if got := EncodeState(DeviceState(0x42)); !bytes.Equal(got, []byte{0x42}) {
		t.Errorf("EncodeState(0x42) = %x, want 42", got)
	}
}

func TestCodeStrings(t *testing.T) {
	if got := StateAuthorized.String(); got != "authorized" {
		t.Errorf("StateAuthorized.String() = %q", got)
	}
	if got := DeviceState(0x42).String(); got != "state(0x42)" {
		t.Errorf("DeviceState(0x42).String() = %q", got)
	}
	if got := ErrorUnknownCharacteristic.String(); got != "unknown-characteristic" {
		t.Errorf("ErrorUnknownCharacteristic.String() = %q", got)
	}
	if got := CommandCode(0x09).String(); got != "command(0x09)" {
		t.Errorf("CommandCode(0x09).String() = %q", got)
	}
}
