package main

import (
	"time"

	"github.com/google/uuid"

	"touchpilot"
)

// DaemonState is the top-level, daemon-owned state container.
//
// Only the daemon goroutine touches it. Other goroutines get a StateSnapshot
// through RequestStateSnapshot.
type DaemonState struct {
	SessionID string
	StartedAt time.Time

	// Detector is the calibrated touch pipeline. Reduce advances it once per Tick.
	Detector *touchpilot.Detector

	Sensitivity SensitivityState
	Touch       TouchState
	Remote      RemoteState
	Chatter     ChatterState
	Faults      FaultState
}

// SensitivityState tracks where the per-tick sensitivity comes from.
type SensitivityState struct {
	// Override is set over IPC and wins over everything else.
	Override *int

	// LastPot is the most recent pot reading from the source, reused on ticks whose
	// sample carries none.
	LastPot  int
	PotKnown bool

	// Applied is the clamped value used on the last tick, and Source names its origin.
	Applied int
	Source  string
}

const (
	sensitivitySourceIPC     = "ipc"
	sensitivitySourceConfig  = "config"
	sensitivitySourcePot     = "pot"
	sensitivitySourceDefault = "default"
)

// TouchState caches the latest detector reading and press statistics.
type TouchState struct {
	Last         touchpilot.Reading
	LastKnown    bool
	Presses      uint64
	Releases     uint64
	LastChangeAt time.Time
}

// RemoteState is the last applied remote joystick state.
type RemoteState struct {
	JoyX    uint8
	JoyY    uint8
	ButtonB bool
	Known   bool
	At      time.Time
}

// FaultState counts problems that did not stop the daemon.
type FaultState struct {
	ReadErrors      uint64 // source read failures (tick skipped)
	RejectedSamples uint64 // samples the detector refused (non-finite)
	OutputErrors    uint64
	LastError       string
	LastErrorAt     time.Time
}

// NewDaemonState wraps a calibrated detector.
func NewDaemonState(det *touchpilot.Detector, now time.Time) *DaemonState {
	return &DaemonState{
		SessionID: uuid.NewString(),
		StartedAt: now,
		Detector:  det,
		Remote: RemoteState{
			JoyX: stickCenter,
			JoyY: stickCenter,
		},
	}
}

func (s *DaemonState) recordFault(counter *uint64, err error, now time.Time) {
	*counter++
	if err != nil {
		s.Faults.LastError = err.Error()
	}
	s.Faults.LastErrorAt = now
}

// resolveSensitivity picks the raw sensitivity for this tick:
// IPC override, then the configured fixed value, then the pot, then the last pot seen.
func (s *DaemonState) resolveSensitivity(smp Sample, cfg ReducerConfig) (int, string) {
	if smp.HasPot {
		s.Sensitivity.LastPot = smp.Pot
		s.Sensitivity.PotKnown = true
	}
	switch {
	case s.Sensitivity.Override != nil:
		return *s.Sensitivity.Override, sensitivitySourceIPC
	case cfg.FixedSensitivity != nil:
		return *cfg.FixedSensitivity, sensitivitySourceConfig
	case s.Sensitivity.PotKnown:
		return s.Sensitivity.LastPot, sensitivitySourcePot
	default:
		return 0, sensitivitySourceDefault
	}
}

// StateSnapshot is an immutable, JSON-ready view of DaemonState.
// It is served on /state and as the websocket state_init payload.
type StateSnapshot struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`

	Calibrated bool    `json:"calibrated"`
	State      string  `json:"state"`
	Ticks      uint64  `json:"ticks"`
	Raw        float64 `json:"raw"`
	Smoothed   float64 `json:"smoothed"`
	Baseline   float64 `json:"baseline"`
	Trigger    float64 `json:"trigger_point"`
	Release    float64 `json:"release_point"`

	Sensitivity       int    `json:"sensitivity"`
	SensitivitySource string `json:"sensitivity_source"`

	Presses      uint64    `json:"presses"`
	Releases     uint64    `json:"releases"`
	LastChangeAt time.Time `json:"last_change_at"`

	Remote RemoteSnapshot `json:"remote"`

	ChatterWarnings uint64 `json:"chatter_warnings"`

	Faults FaultSnapshot `json:"faults"`
}

type RemoteSnapshot struct {
	JoyX    uint8     `json:"joy_x"`
	JoyY    uint8     `json:"joy_y"`
	ButtonB bool      `json:"button_b"`
	Known   bool      `json:"known"`
	At      time.Time `json:"at"`
}

type FaultSnapshot struct {
	ReadErrors      uint64    `json:"read_errors"`
	RejectedSamples uint64    `json:"rejected_samples"`
	OutputErrors    uint64    `json:"output_errors"`
	LastError       string    `json:"last_error,omitempty"`
	LastErrorAt     time.Time `json:"last_error_at"`
}

// Snapshot copies the state into a StateSnapshot.
func (s *DaemonState) Snapshot() StateSnapshot {
	snap := StateSnapshot{
		SessionID:         s.SessionID,
		StartedAt:         s.StartedAt,
		Sensitivity:       s.Sensitivity.Applied,
		SensitivitySource: s.Sensitivity.Source,
		Presses:           s.Touch.Presses,
		Releases:          s.Touch.Releases,
		LastChangeAt:      s.Touch.LastChangeAt,
		Remote: RemoteSnapshot{
			JoyX:    s.Remote.JoyX,
			JoyY:    s.Remote.JoyY,
			ButtonB: s.Remote.ButtonB,
			Known:   s.Remote.Known,
			At:      s.Remote.At,
		},
		ChatterWarnings: s.Chatter.Warnings,
		Faults: FaultSnapshot{
			ReadErrors:      s.Faults.ReadErrors,
			RejectedSamples: s.Faults.RejectedSamples,
			OutputErrors:    s.Faults.OutputErrors,
			LastError:       s.Faults.LastError,
			LastErrorAt:     s.Faults.LastErrorAt,
		},
	}
	if s.Detector != nil {
		snap.Calibrated = s.Detector.Calibrated()
		snap.State = s.Detector.State().String()
		snap.Ticks = s.Detector.Ticks()
		snap.Baseline = s.Detector.Baseline()
	}
	if s.Touch.LastKnown {
		r := s.Touch.Last
		snap.Raw = r.Raw
		snap.Smoothed = r.Smoothed
		snap.Trigger = r.Thresholds.Trigger
		snap.Release = r.Thresholds.Release
	}
	return snap
}
