package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

// sliceSource serves scripted reads, then io.EOF.
type sliceSource struct {
	mu    sync.Mutex
	reads []func() (Sample, error)
}

func (s *sliceSource) Read() (Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reads) == 0 {
		return Sample{}, io.EOF
	}
	next := s.reads[0]
	s.reads = s.reads[1:]
	return next()
}

func (s *sliceSource) Close() error { return nil }

func (s *sliceSource) add(n int, smp Sample) {
	for i := 0; i < n; i++ {
		s.reads = append(s.reads, func() (Sample, error) { return smp, nil })
	}
}

func (s *sliceSource) fail(n int, err error) {
	for i := 0; i < n; i++ {
		s.reads = append(s.reads, func() (Sample, error) { return Sample{}, err })
	}
}

func captureCSV(rows ...string) string {
	return "touch,pot\n" + strings.Join(rows, "\n") + "\n"
}

func repeatRow(n int, row string) string {
	rows := make([]string, n)
	for i := range rows {
		rows[i] = row
	}
	return strings.Join(rows, "\n")
}

func TestRunDaemon_ReplayTouchCycle(t *testing.T) {
	csv := captureCSV(
		repeatRow(50, "1000,0"), // calibration
		repeatRow(20, "1000,0"),
		repeatRow(200, "50000,0"),
		repeatRow(400, "1000,0"),
	)
	src := newReplaySource(io.NopCloser(strings.NewReader(csv)))

	state := calibrateFromSource(t, src)
	out := &recordingOutput{}
	broadcasts := make(chan StateBroadcast, 2048)

	err := runDaemon(context.Background(), make(chan Event), state, ReducerConfig{}, time.Millisecond, daemonDeps{
		Source:     src,
		Output:     out,
		Broadcasts: broadcasts,
		Logger:     slog.Default(),
	})
	if err != nil {
		t.Fatalf("runDaemon: %v", err)
	}

	want := []CmdSetButton{{Button: ButtonA, Pressed: true}, {Button: ButtonA, Pressed: false}}
	got := out.buttonCalls()
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("button calls %v, want %v", got, want)
	}

	snap := state.Snapshot()
	if snap.Ticks != 620 {
		t.Errorf("ticks=%d, want 620", snap.Ticks)
	}

	close(broadcasts)
	var levels, touches int
	for b := range broadcasts {
		switch b.(type) {
		case BroadcastLevels:
			levels++
		case BroadcastTouch:
			touches++
		}
	}
	if levels != 620 || touches != 2 {
		t.Errorf("levels=%d touches=%d, want 620/2", levels, touches)
	}
}

// calibrateFromSource runs the startup calibration against src.
func calibrateFromSource(t *testing.T, src Source) *DaemonState {
	t.Helper()
	det := newTestDetector(t)
	if _, err := det.Calibrate(context.Background(), touchReader{src: src}); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	return NewDaemonState(det, time.Now())
}

func TestRunDaemon_ReadFailuresSkipTicks(t *testing.T) {
	src := &sliceSource{}
	src.add(3, Sample{Touch: 1000})
	src.fail(5, errNoSample)
	src.add(2, Sample{Touch: 1000})

	state := NewDaemonState(primedDetector(t, 1000), time.Now())
	err := runDaemon(context.Background(), nil, state, ReducerConfig{}, time.Millisecond, daemonDeps{
		Source: src,
		Output: &recordingOutput{},
		Logger: slog.Default(),
	})
	if err != nil {
		t.Fatalf("runDaemon: %v", err)
	}

	if state.Detector.Ticks() != 5 {
		t.Errorf("ticks=%d, want 5", state.Detector.Ticks())
	}
	if state.Faults.ReadErrors != 5 {
		t.Errorf("ReadErrors=%d, want 5", state.Faults.ReadErrors)
	}
}

func TestRunDaemon_ControlEventsAndSnapshot(t *testing.T) {
	src := &sliceSource{}
	for i := 0; i < 10000; i++ {
		src.add(1, Sample{Touch: 1000, Pot: 100, HasPot: true})
	}

	state := NewDaemonState(primedDetector(t, 1000), time.Now())
	out := &recordingOutput{}
	events := make(chan Event, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- runDaemon(ctx, events, state, ReducerConfig{}, time.Millisecond, daemonDeps{
			Source: src,
			Output: out,
			Logger: slog.Default(),
		})
	}()

	events <- SetSensitivity{Raw: 3000}
	events <- RemoteInput{JoyX: 10, JoyY: 20, ButtonB: true}

	var snap StateSnapshot
	waitUntil(t, 2*time.Second, func() bool {
		reply := make(chan StateSnapshot, 1)
		events <- RequestStateSnapshot{Reply: reply}
		select {
		case snap = <-reply:
		case <-time.After(200 * time.Millisecond):
			return false
		}
		return snap.Sensitivity == 3000 && snap.Remote.Known
	}, "control events not applied")

	if snap.SensitivitySource != sensitivitySourceIPC || !snap.Remote.ButtonB {
		t.Fatalf("snapshot: %+v", snap)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runDaemon: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("daemon did not stop")
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	if len(out.sticks) != 1 || out.sticks[0] != (CmdSetStick{X: 10, Y: 20}) {
		t.Fatalf("stick calls: %v", out.sticks)
	}
	if len(out.buttons) != 1 || out.buttons[0] != (CmdSetButton{Button: ButtonB, Pressed: true}) {
		t.Fatalf("button calls: %v", out.buttons)
	}
}

func TestRunDaemon_OutputFailuresCounted(t *testing.T) {
	src := &sliceSource{}
	src.add(20, Sample{Touch: 1000})
	src.add(200, Sample{Touch: 50000})

	state := NewDaemonState(primedDetector(t, 1000), time.Now())
	err := runDaemon(context.Background(), nil, state, ReducerConfig{}, time.Millisecond, daemonDeps{
		Source: src,
		Output: &recordingOutput{failErr: errors.New("pin busy")},
		Logger: slog.Default(),
	})
	if err != nil {
		t.Fatalf("runDaemon: %v", err)
	}
	if state.Faults.OutputErrors != 1 || state.Faults.LastError != "pin busy" {
		t.Fatalf("faults: %+v", state.Faults)
	}
	// The press itself is still recorded.
	if state.Touch.Presses != 1 {
		t.Fatalf("presses=%d, want 1", state.Touch.Presses)
	}
}

func TestRunDaemon_SourceErrorIsNotFatal(t *testing.T) {
	src := &sliceSource{}
	src.fail(1, fmt.Errorf("serial read: %w", errors.New("EIO")))
	src.add(1, Sample{Touch: 1000})

	state := NewDaemonState(primedDetector(t, 1000), time.Now())
	if err := runDaemon(context.Background(), nil, state, ReducerConfig{}, time.Millisecond, daemonDeps{
		Source: src,
		Logger: slog.Default(),
	}); err != nil {
		t.Fatalf("runDaemon: %v", err)
	}
	if state.Faults.ReadErrors != 1 || state.Detector.Ticks() != 1 {
		t.Fatalf("faults=%+v ticks=%d", state.Faults, state.Detector.Ticks())
	}
}

func TestRunDaemon_RequiresStateAndSource(t *testing.T) {
	if err := runDaemon(context.Background(), nil, nil, ReducerConfig{}, time.Millisecond, daemonDeps{
		Source: &sliceSource{},
		Logger: slog.Default(),
	}); err == nil {
		t.Fatalf("expected error for nil state")
	}
	if err := runDaemon(context.Background(), nil, &DaemonState{}, ReducerConfig{}, time.Millisecond, daemonDeps{
		Logger: slog.Default(),
	}); err == nil {
		t.Fatalf("expected error for nil source")
	}
}
