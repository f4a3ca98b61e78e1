// Package wifi provides the credential consumers the Improv controller hands
// received Wi-Fi settings to.
package wifi

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/chaz8081/improv-wifi/internal/improv"
)

// Consumer methods accepted by NewConsumer.
const (
	MethodLog    = "log"
	MethodReject = "reject"
	MethodWPAPSK = "wpa-psk"
)

// Methods lists the supported consumer methods.
var Methods = []string{MethodLog, MethodReject, MethodWPAPSK}

var (
	ErrSSIDLength = errors.New("wifi: SSID must be 1-32 bytes")
	ErrPassphrase = errors.New("wifi: passphrase must be 8-63 printable ASCII characters or 64 hex digits")
)

// NewConsumer returns the consumer for method. Output of the wpa-psk method
// is written to out.
func NewConsumer(method string, out io.Writer) (improv.Consumer, error) {
	switch method {
	case MethodLog:
		return improv.ConsumerFunc(logCredentials), nil
	case MethodReject:
		return improv.ConsumerFunc(func(creds improv.Credentials) bool {
			slog.Info("[Improv] rejecting credentials", "credentials", creds)
			return false
		}), nil
	case MethodWPAPSK:
		if out == nil {
			return nil, errors.New("wifi: wpa-psk consumer needs an output writer")
		}
		return &WPAConsumer{out: out}, nil
	default:
		return nil, fmt.Errorf("wifi: unknown consumer %q (valid: %s)", method, strings.Join(Methods, ", "))
	}
}

// logCredentials traces the credentials and accepts them.
func logCredentials(creds improv.Credentials) bool {
	slog.Info("[Improv] received credentials", "credentials", creds)
	return true
}

// WPAConsumer validates WPA-Personal credentials and writes a wpa_supplicant
// network block for them.
type WPAConsumer struct {
	out io.Writer
}

// Apply implements improv.Consumer.
func (w *WPAConsumer) Apply(creds improv.Credentials) bool {
	block, err := NetworkBlock(creds)
	if err != nil {
		slog.Warn("[Improv] credentials rejected", "error", err, "credentials", creds)
		return false
	}
	if _, err := io.WriteString(w.out, block); err != nil {
		slog.Error("[Improv] writing network block", "error", err)
		return false
	}
	slog.Info("[Improv] network block written", "ssid", string(creds.SSID))
	return true
}

// NetworkBlock renders a wpa_supplicant network block for creds. An empty
// password produces an open network (key_mgmt=NONE).
func NetworkBlock(creds improv.Credentials) (string, error) {
	if len(creds.SSID) == 0 || len(creds.SSID) > 32 {
		return "", ErrSSIDLength
	}

	var b strings.Builder
	b.WriteString("network={\n")
	fmt.Fprintf(&b, "\tssid=%s\n", hex.EncodeToString(creds.SSID))

	switch {
	case len(creds.Password) == 0:
		b.WriteString("\tkey_mgmt=NONE\n")
	case len(creds.Password) == 64 && isHex(creds.Password):
		fmt.Fprintf(&b, "\tpsk=%s\n", strings.ToLower(string(creds.Password)))
	case len(creds.Password) >= 8 && len(creds.Password) <= 63 && isPrintableASCII(creds.Password):
		fmt.Fprintf(&b, "\tpsk=%s\n", hex.EncodeToString(DerivePSK(creds.SSID, creds.Password)))
	default:
		return "", ErrPassphrase
	}
	b.WriteString("}\n")
	return b.String(), nil
}

// DerivePSK computes the 256-bit WPA pre-shared key (IEEE 802.11i):
// PBKDF2-HMAC-SHA1 over the passphrase, salted with the SSID, 4096 rounds.
func DerivePSK(ssid, passphrase []byte) []byte {
	return pbkdf2.Key(passphrase, ssid, 4096, 32, sha1.New)
}

func isHex(b []byte) bool {
	for _, c := range b {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isPrintableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7e {
			return false
		}
	}
	return true
}
