package main

import (
	"testing"
	"time"
)

func TestChatterState_RecordPressWindow(t *testing.T) {
	var c ChatterState
	t0 := time.Unix(1700000000, 0)
	window := time.Second

	if n := c.recordPress(t0, window); n != 1 {
		t.Fatalf("n=%d, want 1", n)
	}
	if n := c.recordPress(t0.Add(400*time.Millisecond), window); n != 2 {
		t.Fatalf("n=%d, want 2", n)
	}
	if n := c.recordPress(t0.Add(900*time.Millisecond), window); n != 3 {
		t.Fatalf("n=%d, want 3", n)
	}
	// The first press is exactly one window old and drops out.
	if n := c.recordPress(t0.Add(time.Second), window); n != 3 {
		t.Fatalf("n=%d, want 3", n)
	}
	if n := c.recordPress(t0.Add(5*time.Second), window); n != 1 {
		t.Fatalf("n=%d after a quiet period, want 1", n)
	}
}

func TestChatterCrossed(t *testing.T) {
	tests := []struct {
		count, limit int
		want         bool
	}{
		{count: 3, limit: 2, want: true},
		{count: 2, limit: 2, want: false},
		{count: 4, limit: 2, want: false},
		{count: 1, limit: 0, want: false},
	}
	for _, tt := range tests {
		if got := chatterCrossed(tt.count, tt.limit); got != tt.want {
			t.Errorf("chatterCrossed(%d, %d)=%v, want %v", tt.count, tt.limit, got, tt.want)
		}
	}
}
