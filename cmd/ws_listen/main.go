package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// ws_listen prints the touchpilot state stream (/ws) in a human-readable form.
// It reconnects when the daemon restarts.

const (
	retryDelay    = 500 * time.Millisecond
	maxRetryDelay = 8 * time.Second
	readWait      = 60 * time.Second
)

type frame struct {
	Type string          `json:"type"`
	Ts   time.Time       `json:"ts"`
	Data json.RawMessage `json:"data"`
}

func main() {
	var (
		wsURL      = flag.String("ws", "ws://127.0.0.1:8088/ws", "touchpilot state websocket URL")
		showLevels = flag.Bool("levels", false, "Also print per-tick signal levels (up to 20/s)")
		retries    = flag.Int("retries", 0, "Reconnect attempts after a drop (0 retries forever)")
		raw        = flag.Bool("raw", false, "Print frames as received")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	show := func(msg []byte) {
		if *raw {
			fmt.Println(string(msg))
			return
		}
		if line, ok := formatFrame(msg, *showLevels); ok {
			fmt.Println(line)
		}
	}

	failures := 0
	for {
		connected, err := listen(ctx, &d, u.String(), show)
		if ctx.Err() != nil {
			log.Printf("exiting")
			return
		}
		if connected {
			failures = 0
		}
		failures++
		if *retries > 0 && failures > *retries {
			log.Printf("giving up after %d attempts: %v", failures, err)
			os.Exit(1)
		}
		delay := backoff(failures)
		log.Printf("connection lost: %v (retrying in %v)", err, delay)

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// backoff doubles the retry delay per consecutive failure, up to maxRetryDelay.
func backoff(failures int) time.Duration {
	delay := retryDelay
	for i := 1; i < failures && delay < maxRetryDelay; i++ {
		delay *= 2
	}
	return min(delay, maxRetryDelay)
}

// listen connects once and prints frames until the connection drops or ctx ends.
// connected reports whether the handshake succeeded.
func listen(ctx context.Context, d *websocket.Dialer, addr string, show func([]byte)) (connected bool, err error) {
	conn, _, err := d.DialContext(ctx, addr, nil)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	log.Printf("connected to %s", addr)

	go func() {
		<-ctx.Done()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = conn.Close()
	}()

	// The daemon pings every 20s; answering resets the deadline.
	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return true, errors.New("daemon closed the connection")
			}
			return true, err
		}
		show(msg)
	}
}

// formatFrame renders one state frame. Levels frames are skipped unless levels is set.
func formatFrame(msg []byte, levels bool) (string, bool) {
	var f frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return fmt.Sprintf("unparseable frame: %s", msg), true
	}
	ts := f.Ts.Local().Format("15:04:05.000")

	switch f.Type {
	case "state_init":
		var s struct {
			SessionID         string  `json:"session_id"`
			State             string  `json:"state"`
			Baseline          float64 `json:"baseline"`
			Sensitivity       int     `json:"sensitivity"`
			SensitivitySource string  `json:"sensitivity_source"`
			Presses           uint64  `json:"presses"`
		}
		_ = json.Unmarshal(f.Data, &s)
		return fmt.Sprintf("%s session %s: %s, baseline %.0f, sensitivity %d (%s), %d presses",
			ts, s.SessionID, s.State, s.Baseline, s.Sensitivity, s.SensitivitySource, s.Presses), true

	case "touch_pressed", "touch_released":
		var d struct {
			Smoothed     float64 `json:"smoothed"`
			Baseline     float64 `json:"baseline"`
			TriggerPoint float64 `json:"trigger_point"`
			ReleasePoint float64 `json:"release_point"`
			Presses      uint64  `json:"presses"`
		}
		_ = json.Unmarshal(f.Data, &d)
		verb := "PRESS  "
		if f.Type == "touch_released" {
			verb = "RELEASE"
		}
		return fmt.Sprintf("%s %s smoothed %.0f baseline %.0f trigger %.0f release %.0f (#%d)",
			ts, verb, d.Smoothed, d.Baseline, d.TriggerPoint, d.ReleasePoint, d.Presses), true

	case "levels":
		if !levels {
			return "", false
		}
		var d struct {
			Raw          float64 `json:"raw"`
			Smoothed     float64 `json:"smoothed"`
			Baseline     float64 `json:"baseline"`
			TriggerPoint float64 `json:"trigger_point"`
			Sensitivity  int     `json:"sensitivity"`
		}
		_ = json.Unmarshal(f.Data, &d)
		return fmt.Sprintf("%s levels raw %.0f smoothed %.0f baseline %.0f trigger %.0f sens %d",
			ts, d.Raw, d.Smoothed, d.Baseline, d.TriggerPoint, d.Sensitivity), true

	case "remote_changed":
		var d struct {
			JoyX    uint8 `json:"joy_x"`
			JoyY    uint8 `json:"joy_y"`
			ButtonB bool  `json:"button_b"`
		}
		_ = json.Unmarshal(f.Data, &d)
		return fmt.Sprintf("%s remote stick (%d, %d) B=%v", ts, d.JoyX, d.JoyY, d.ButtonB), true

	case "chatter_warning":
		var d struct {
			Presses     int   `json:"presses"`
			WindowMS    int64 `json:"window_ms"`
			Sensitivity int   `json:"sensitivity"`
		}
		_ = json.Unmarshal(f.Data, &d)
		return fmt.Sprintf("%s WARNING %d presses in %dms at sensitivity %d; raise the sensitivity value",
			ts, d.Presses, d.WindowMS, d.Sensitivity), true

	default:
		return fmt.Sprintf("%s %s %s", ts, f.Type, f.Data), true
	}
}
