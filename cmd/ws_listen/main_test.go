package main

import (
	"strings"
	"testing"
	"time"
)

func TestFormatFrame(t *testing.T) {
	tests := []struct {
		name   string
		msg    string
		levels bool
		want   string
		shown  bool
	}{
		{
			name:  "press",
			msg:   `{"type":"touch_pressed","ts":"2024-01-01T00:00:00Z","data":{"smoothed":52000,"baseline":1000,"trigger_point":11000,"release_point":9000,"presses":3}}`,
			want:  "PRESS",
			shown: true,
		},
		{
			name:  "release",
			msg:   `{"type":"touch_released","ts":"2024-01-01T00:00:00Z","data":{"presses":3}}`,
			want:  "RELEASE",
			shown: true,
		},
		{
			name:  "levels hidden",
			msg:   `{"type":"levels","ts":"2024-01-01T00:00:00Z","data":{"raw":1000}}`,
			shown: false,
		},
		{
			name:   "levels shown",
			msg:    `{"type":"levels","ts":"2024-01-01T00:00:00Z","data":{"raw":1000,"sensitivity":12}}`,
			levels: true,
			want:   "sens 12",
			shown:  true,
		},
		{
			name:  "remote",
			msg:   `{"type":"remote_changed","ts":"2024-01-01T00:00:00Z","data":{"joy_x":10,"joy_y":20,"button_b":true}}`,
			want:  "stick (10, 20) B=true",
			shown: true,
		},
		{
			name:  "chatter",
			msg:   `{"type":"chatter_warning","ts":"2024-01-01T00:00:00Z","data":{"presses":7,"window_ms":1000}}`,
			want:  "7 presses in 1000ms",
			shown: true,
		},
		{
			name:  "garbage",
			msg:   `not json`,
			want:  "unparseable",
			shown: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, shown := formatFrame([]byte(tt.msg), tt.levels)
			if shown != tt.shown {
				t.Fatalf("shown=%v, want %v (%q)", shown, tt.shown, got)
			}
			if shown && !strings.Contains(got, tt.want) {
				t.Fatalf("%q does not contain %q", got, tt.want)
			}
		})
	}
}

func TestBackoff(t *testing.T) {
	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, w := range want {
		if got := backoff(i + 1); got != w {
			t.Errorf("backoff(%d)=%v, want %v", i+1, got, w)
		}
	}
}
