package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// touchpilot-ctl - Command-line IPC Client
// ============================================================================
// Sends control requests to the touchpilot daemon over its unix socket.
//
// Usage:
//   touchpilot-ctl sensitivity 1200
//   touchpilot-ctl auto
//   touchpilot-ctl stick 128 255 b
//   touchpilot-ctl center
//   touchpilot-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/touchpilot.sock)
// ============================================================================

const defaultSocketPath = "/tmp/touchpilot.sock"

// Request payloads (duplicated from the daemon for a standalone binary)
type setSensitivity struct {
	Raw int `json:"raw"`
}

type remoteInput struct {
	JoyX    uint8  `json:"joy_x"`
	JoyY    uint8  `json:"joy_y"`
	ButtonB bool   `json:"button_b"`
	Origin  string `json:"origin,omitempty"`
}

// envelope wraps a request for JSON
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ipcResponse represents the daemon's response
type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	State  json.RawMessage `json:"state,omitempty"`
}

var errUsage = errors.New("usage")

func main() {
	socketPath := defaultSocketPath

	args := os.Args[1:]
	if len(args) > 0 && (args[0] == "-socket" || args[0] == "--socket") {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	if args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		printUsage()
		os.Exit(0)
	}

	req, err := buildRequest(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		if errors.Is(err, errUsage) {
			printUsage()
		}
		os.Exit(1)
	}

	resp, err := send(socketPath, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.State) > 0 {
		if err := printState(resp.State); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Println("ok")
}

// buildRequest turns command-line arguments into a request envelope.
func buildRequest(args []string) (envelope, error) {
	switch args[0] {
	case "sensitivity", "sens":
		if len(args) < 2 {
			return envelope{}, fmt.Errorf("%w: sensitivity requires a value", errUsage)
		}
		raw, err := strconv.Atoi(args[1])
		if err != nil {
			return envelope{}, fmt.Errorf("invalid sensitivity %q: %w", args[1], err)
		}
		return withData("set_sensitivity", setSensitivity{Raw: raw})

	case "auto":
		return envelope{Type: "clear_sensitivity"}, nil

	case "stick":
		if len(args) < 3 {
			return envelope{}, fmt.Errorf("%w: stick requires X and Y", errUsage)
		}
		x, err := parseAxis(args[1])
		if err != nil {
			return envelope{}, err
		}
		y, err := parseAxis(args[2])
		if err != nil {
			return envelope{}, err
		}
		held := len(args) > 3 && (args[3] == "b" || args[3] == "B")
		return withData("remote_input", remoteInput{JoyX: x, JoyY: y, ButtonB: held, Origin: "touchpilot-ctl"})

	case "center":
		return withData("remote_input", remoteInput{JoyX: 128, JoyY: 128, Origin: "touchpilot-ctl"})

	case "status", "state":
		return envelope{Type: "get_state"}, nil

	default:
		return envelope{}, fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func withData(typ string, v any) (envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return envelope{}, fmt.Errorf("marshal %s: %w", typ, err)
	}
	return envelope{Type: typ, Data: data}, nil
}

func parseAxis(s string) (uint8, error) {
	v, err := strconv.ParseUint(s, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("invalid axis %q (0-255)", s)
	}
	return uint8(v), nil
}

func send(socketPath string, req envelope) (ipcResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	data, err := json.Marshal(req)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("marshal request: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return ipcResponse{}, fmt.Errorf("send request: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return ipcResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}

func printState(raw json.RawMessage) error {
	var v map[string]any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode state: %w", err)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func printUsage() {
	fmt.Println("touchpilot-ctl - Control the touchpilot daemon")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  touchpilot-ctl [-socket PATH] COMMAND [ARGS]")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  sensitivity N     Override the sensitivity reading (0-4096)")
	fmt.Println("  auto              Drop the override; use the knob or config again")
	fmt.Println("  stick X Y [b]     Set the left stick (0-255, 128 = center), b holds button B")
	fmt.Println("  center            Center the stick and release button B")
	fmt.Println("  status            Print the daemon state as JSON")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Printf("  -socket PATH      Unix socket path (default: %s)\n", defaultSocketPath)
}
