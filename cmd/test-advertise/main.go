// Command test-advertise prints the advertising payload the device would
// broadcast, field by field, followed by the raw bytes. Useful for comparing
// against a scanner capture.
//
// Usage:
//
//	go run ./cmd/test-advertise [--name "Improv Device"] [--uri https://...]
package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/chaz8081/improv-wifi/internal/ble/advertise"
)

func main() {
	name := flag.String("name", "Improv Device", "device local name")
	uri := flag.String("uri", "https://junipertechnology.co", "advertised URI")
	flag.Parse()

	payload := advertise.ImprovPayload(*name, *uri)

	fields, err := payload.Fields()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	raw, err := payload.Marshal()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Advertising payload for %q:\n\n", *name)
	for _, f := range fields {
		fmt.Printf("  0x%02x %-22s %3d  %s\n", f.Type, advertise.TypeName(f.Type), len(f.Data)+1, hex.EncodeToString(f.Data))
	}
	fmt.Printf("\n%d bytes total", len(raw))
	if len(raw) > advertise.MaxLegacyPacketLength {
		fmt.Printf(" (exceeds the %d-byte legacy packet; extended advertising required)", advertise.MaxLegacyPacketLength)
	}
	fmt.Printf("\n%s\n", hex.EncodeToString(raw))
}
