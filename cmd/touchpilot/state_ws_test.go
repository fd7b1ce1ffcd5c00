package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func decodeEnvelope(t *testing.T, msg []byte) (string, json.RawMessage) {
	t.Helper()
	var env struct {
		Type string          `json:"type"`
		Ts   *time.Time      `json:"ts"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &env); err != nil {
		t.Fatalf("bad envelope %q: %v", msg, err)
	}
	if env.Ts == nil {
		t.Fatalf("envelope without ts: %s", msg)
	}
	return env.Type, env.Data
}

func nextFrame(t *testing.T, hub *Hub, timeout time.Duration) []byte {
	t.Helper()
	select {
	case msg := <-hub.broadcast:
		return msg
	case <-time.After(timeout):
		t.Fatalf("no frame within %v", timeout)
		return nil
	}
}

func TestRunBroadcaster_CoalescesLevels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := newTestHub(t, 4, 16)
	src := make(chan StateBroadcast, 8)
	go RunBroadcaster(ctx, hub, src, slog.Default())

	for i := 1; i <= 3; i++ {
		src <- BroadcastLevels{Raw: float64(i), Sensitivity: i}
	}
	src <- BroadcastTouch{Pressed: true, Presses: 1}

	typ, data := decodeEnvelope(t, nextFrame(t, hub, time.Second))
	if typ != "levels" {
		t.Fatalf("first frame %q, want pending levels flushed first", typ)
	}
	var lv wsLevelsData
	if err := json.Unmarshal(data, &lv); err != nil {
		t.Fatalf("levels data: %v", err)
	}
	if lv.Raw != 3 {
		t.Fatalf("levels raw=%v, want latest (3)", lv.Raw)
	}

	typ, data = decodeEnvelope(t, nextFrame(t, hub, time.Second))
	if typ != "touch_pressed" {
		t.Fatalf("second frame %q, want touch_pressed", typ)
	}
	var td wsTouchData
	if err := json.Unmarshal(data, &td); err != nil || td.Presses != 1 {
		t.Fatalf("touch data %s: %v", data, err)
	}

	select {
	case msg := <-hub.broadcast:
		t.Fatalf("unexpected extra frame %s", msg)
	case <-time.After(2 * wsLevelsCoalesceWindow):
	}

	// Levels on their own go out when the window closes.
	src <- BroadcastLevels{Raw: 9}
	typ, _ = decodeEnvelope(t, nextFrame(t, hub, 10*wsLevelsCoalesceWindow))
	if typ != "levels" {
		t.Fatalf("frame %q, want levels", typ)
	}
}

func TestRunBroadcaster_StopsWhenSourceCloses(t *testing.T) {
	hub := newTestHub(t, 4, 16)
	src := make(chan StateBroadcast, 2)
	src <- BroadcastLevels{Raw: 1}
	close(src)

	done := make(chan struct{})
	go func() {
		defer close(done)
		RunBroadcaster(context.Background(), hub, src, slog.Default())
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("broadcaster did not stop")
	}
	if typ, _ := decodeEnvelope(t, nextFrame(t, hub, time.Second)); typ != "levels" {
		t.Fatalf("pending levels not flushed on close, got %q", typ)
	}
}

func TestConvertBroadcast(t *testing.T) {
	tests := []struct {
		in   StateBroadcast
		want string
	}{
		{in: BroadcastTouch{Pressed: false}, want: "touch_released"},
		{in: BroadcastRemoteChanged{JoyX: 1}, want: "remote_changed"},
		{in: BroadcastChatterWarning{Presses: 7, Window: time.Second}, want: "chatter_warning"},
	}
	for _, tt := range tests {
		ev, ok := convertBroadcast(tt.in)
		if !ok || ev.Type != tt.want {
			t.Errorf("convertBroadcast(%T)=%q, want %q", tt.in, ev.Type, tt.want)
		}
	}
	ev, _ := convertBroadcast(BroadcastChatterWarning{Window: 1500 * time.Millisecond})
	if ev.Data.(wsChatterData).WindowMS != 1500 {
		t.Errorf("window not converted to ms: %+v", ev.Data)
	}
}

// startStatusServer runs a Server with a fake daemon loop answering snapshots.
func startStatusServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	events := make(chan Event, 8)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev := <-events:
				if req, ok := ev.(RequestStateSnapshot); ok {
					req.Reply <- StateSnapshot{SessionID: "ws-test", State: "idle", Calibrated: true}
				}
			}
		}
	}()

	srv := NewServer(slog.Default(), events, ServerConfig{})
	go srv.Hub().Run(ctx)

	mux := http.NewServeMux()
	srv.Register(mux)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestServer_WebSocketStateInitAndBroadcast(t *testing.T) {
	srv, ts := startStatusServer(t)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read state_init: %v", err)
	}
	typ, data := decodeEnvelope(t, msg)
	if typ != "state_init" {
		t.Fatalf("first message %q, want state_init", typ)
	}
	var snap StateSnapshot
	if err := json.Unmarshal(data, &snap); err != nil || snap.SessionID != "ws-test" {
		t.Fatalf("snapshot %s: %v", data, err)
	}

	frame, err := marshalEnvelope("touch_pressed", time.Time{}, wsTouchData{Presses: 2})
	if err != nil {
		t.Fatalf("marshalEnvelope: %v", err)
	}
	srv.Hub().BroadcastBytes(frame)

	_, msg, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if typ, _ := decodeEnvelope(t, msg); typ != "touch_pressed" {
		t.Fatalf("broadcast %q, want touch_pressed", typ)
	}

	_ = conn.Close()
	waitUntil(t, time.Second, func() bool { return srv.Hub().Clients() == 0 }, "client not removed after disconnect")
}

func TestServer_StateAndHealthz(t *testing.T) {
	_, ts := startStatusServer(t)

	resp, err := http.Get(ts.URL + "/state")
	if err != nil {
		t.Fatalf("GET /state: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/state status %d", resp.StatusCode)
	}
	var snap StateSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil || !snap.Calibrated {
		t.Fatalf("/state body: %+v, %v", snap, err)
	}

	post, err := http.Post(ts.URL+"/state", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /state: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST /state status %d, want 405", post.StatusCode)
	}

	health, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	body, _ := io.ReadAll(health.Body)
	health.Body.Close()
	if strings.TrimSpace(string(body)) != "ok" {
		t.Fatalf("/healthz body %q", body)
	}
}

func TestServer_StateUnavailableWithoutDaemon(t *testing.T) {
	srv := NewServer(slog.Default(), make(chan Event), ServerConfig{SnapshotTimeout: 20 * time.Millisecond})
	rec := httptest.NewRecorder()
	srv.handleState(rec, httptest.NewRequest(http.MethodGet, "/state", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", rec.Code)
	}
}

func TestServeHTTP_GracefulShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })

	done := make(chan error, 1)
	go func() { done <- serveHTTP(ctx, ln, mux, slog.Default()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serveHTTP: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
