package main

import "time"

// ============================================================================
// Daemon defaults
// ============================================================================

const (
	// Tick period of the detection loop. The firmware samples at 100 Hz.
	defaultTickMS = 10

	defaultSerialBaud      = 115200
	defaultSerialTimeoutMS = 100

	// Reads a calibration sample may skip while the source warms up.
	calibrationReadAttempts = 50

	defaultRemoteUDPPort = 4210
	defaultHTTPPort      = 8088
	defaultIPCSocketPath = "/tmp/touchpilot.sock"

	defaultChatterWindowMS  = 1000
	defaultChatterMaxPress  = 6
	defaultEventsBuffer     = 64
	defaultBroadcastsBuffer = 256
)

// Remote stick axes span 0..255; 128 is center, matching the NSGamepad axis encoding.
const stickCenter = 128

// Button B bit of the 5-byte controller packet mask (A is bit 0, owned by the touch pad).
const remoteMaskB = 1 << 1

// Websocket timing
const (
	writeWait  = 5 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 20 * time.Second

	// wsLevelsCoalesceWindow is the maximum rate at which per-tick signal levels are
	// pushed to websocket clients (latest-wins).
	wsLevelsCoalesceWindow = 50 * time.Millisecond
)
