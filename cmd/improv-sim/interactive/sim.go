// Package interactive provides the command-line client simulator for the
// Improv session controller. Each command plays one transport event and
// prints the notifications the device sends back.
package interactive

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/chaz8081/improv-wifi/internal/ble/advertise"
	"github.com/chaz8081/improv-wifi/internal/ble/protocol"
	"github.com/chaz8081/improv-wifi/internal/improv"
)

// Sim drives a Controller from typed commands.
type Sim struct {
	ctrl    *improv.Controller
	payload advertise.Payload
	out     io.Writer

	connected bool
}

// New creates a simulator whose controller hands credentials to consumer.
// Notifications and command output go to out.
func New(out io.Writer, consumer improv.Consumer, payload advertise.Payload, opts ...improv.Option) (*Sim, error) {
	s := &Sim{payload: payload, out: out}
	ctrl, err := improv.NewController(printNotifier{s}, consumer, opts...)
	if err != nil {
		return nil, err
	}
	s.ctrl = ctrl
	return s, nil
}

// printNotifier prints each notification the controller sends.
type printNotifier struct {
	s *Sim
}

func (n printNotifier) Notify(c protocol.Characteristic, value []byte) error {
	fmt.Fprintf(n.s.out, "  <- %s %s%s\n", c, hex.EncodeToString(value), describe(c, value))
	return nil
}

// describe decodes a notification value for display.
func describe(c protocol.Characteristic, value []byte) string {
	if len(value) == 0 {
		return ""
	}
	switch c {
	case protocol.CharState:
		return " (" + protocol.DeviceState(value[0]).String() + ")"
	case protocol.CharError:
		return " (" + protocol.ErrorCode(value[0]).String() + ")"
	case protocol.CharRPCResult:
		return " (" + describeResult(value) + ")"
	}
	return ""
}

func describeResult(value []byte) string {
	if len(value) < 3 {
		return "short result"
	}
	code := protocol.CommandCode(value[0])
	body := value[2 : len(value)-1]
	var parts []string
	for len(body) > 0 {
		n := int(body[0])
		if 1+n > len(body) {
			break
		}
		parts = append(parts, strconv.Quote(string(body[1:1+n])))
		body = body[1+n:]
	}
	return code.String() + " " + strings.Join(parts, " ")
}

// Run starts the interactive command loop. It returns when the user quits
// or ctx is cancelled.
func (s *Sim) Run(ctx context.Context) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "improv> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()
	s.out = rl.Stdout()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}
		if s.Exec(line) {
			fmt.Fprintln(s.out, "Exiting...")
			return nil
		}
	}
}

// Exec runs a single command line and reports whether the user asked to quit.
func (s *Sim) Exec(line string) (quit bool) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		s.printHelp()
	case "connect", "c":
		s.connected = true
		s.ctrl.OnConnected()
		fmt.Fprintln(s.out, "central connected")
	case "disconnect", "d":
		s.connected = false
		s.ctrl.OnDisconnected()
		fmt.Fprintln(s.out, "central disconnected")
	case "fail":
		s.ctrl.OnUnableToConnect()
	case "sub", "subscribe":
		if c, ok := s.charArg(args); ok {
			s.ctrl.OnCharacteristicSubscribed(c)
		}
	case "unsub", "unsubscribe":
		if c, ok := s.charArg(args); ok {
			s.ctrl.OnCharacteristicUnsubscribed(c)
		}
	case "read", "r":
		if c, ok := s.charArg(args); ok {
			s.ctrl.OnCharacteristicRead(c)
		}
	case "write", "w":
		s.cmdWrite(args)
	case "wifi":
		s.cmdWiFi(args)
	case "status", "s":
		s.cmdStatus()
	case "adv":
		s.cmdAdv()
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(s.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

// charArg parses the characteristic argument. Numeric arguments are taken as
// raw role indexes so unknown roles can be exercised.
func (s *Sim) charArg(args []string) (protocol.Characteristic, bool) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: <command> <characteristic>")
		return 0, false
	}
	if n, err := strconv.Atoi(args[0]); err == nil {
		return protocol.Characteristic(n), true
	}
	c, err := protocol.ParseCharacteristic(args[0])
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return 0, false
	}
	return c, true
}

func (s *Sim) cmdWrite(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(s.out, "Usage: write <characteristic> <hex>")
		return
	}
	c, ok := s.charArg(args[:1])
	if !ok {
		return
	}
	value, err := hex.DecodeString(strings.Join(args[1:], ""))
	if err != nil {
		fmt.Fprintf(s.out, "Error: invalid hex: %v\n", err)
		return
	}
	s.ctrl.OnCharacteristicWritten(c, value)
}

func (s *Sim) cmdWiFi(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(s.out, "Usage: wifi <ssid> [password]")
		return
	}
	var password string
	if len(args) > 1 {
		password = strings.Join(args[1:], " ")
	}
	value, err := protocol.EncodeWiFiSettings([]byte(args[0]), []byte(password))
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(s.out, "  -> RPC_COMMAND %s\n", hex.EncodeToString(value))
	s.ctrl.OnCharacteristicWritten(protocol.CharRPCCommand, value)
}

func (s *Sim) cmdStatus() {
	session := s.ctrl.Snapshot()
	fmt.Fprintf(s.out, "connected:  %v\n", s.connected)
	fmt.Fprintf(s.out, "state:      %s\n", session.State)
	fmt.Fprintf(s.out, "error:      %s\n", session.Error)
	fmt.Fprintf(s.out, "subscribed: %v\n", session.Registry.Subscribed())
}

func (s *Sim) cmdAdv() {
	fields, err := s.payload.Fields()
	if err != nil {
		fmt.Fprintf(s.out, "Error: %v\n", err)
		return
	}
	for _, f := range fields {
		fmt.Fprintf(s.out, "  %-22s len=%-3d %s\n", advertise.TypeName(f.Type), len(f.Data)+1, hex.EncodeToString(f.Data))
	}
}

func (s *Sim) printHelp() {
	fmt.Fprint(s.out, `
Improv Client Simulator Commands:
  Connection:
    connect              - Central connects (fresh session)
    disconnect           - Central disconnects
    fail                 - Connection attempt failed

  Characteristics (STATE, ERROR, RPC_COMMAND, RPC_RESULT, CAPABILITIES or index):
    sub <char>           - Subscribe to notifications
    unsub <char>         - Unsubscribe
    read <char>          - Read the current value
    write <char> <hex>   - Write raw bytes
    wifi <ssid> [pass]   - Write a wifi-settings command to RPC_COMMAND

  Info:
    status               - Show session state
    adv                  - Show the advertising payload
    help                 - Show this help
    quit                 - Exit
`)
}
