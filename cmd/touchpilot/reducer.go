package main

import (
	"fmt"
	"time"

	"touchpilot"
)

// This file implements the reducer-style architecture building blocks:
//
//   - Events: inputs to the reducer (ticks carrying a sample, control events, output failures)
//   - Commands: side effects requested by the reducer (button/stick output, snapshot replies)
//   - Broadcasts: state changes for websocket clients
//   - Reduce(): computes next state + commands + broadcasts without performing I/O
//
// The daemon loop reads the source, executes Commands and feeds failures back as Events.

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// Tick is emitted by the daemon loop once per period with the sample just read.
type Tick struct {
	Now    time.Time
	Sample Sample
}

func (Tick) eventMarker() {}

// SampleFailed is emitted instead of Tick when the source could not be read.
type SampleFailed struct {
	Err error
	At  time.Time
}

func (SampleFailed) eventMarker() {}

// TimedEvent stamps a control event with its arrival time.
type TimedEvent struct {
	Event Event
	At    time.Time
}

func (TimedEvent) eventMarker() {}

// RequestStateSnapshot asks the daemon for a StateSnapshot delivered on Reply.
// Reply should be buffered; the effects stage never blocks on it.
type RequestStateSnapshot struct {
	Reply chan<- StateSnapshot
}

func (RequestStateSnapshot) eventMarker() {}

// OutputCommandFailed is emitted when executing a Command fails.
type OutputCommandFailed struct {
	Command Command
	Err     error
	At      time.Time
}

func (OutputCommandFailed) eventMarker() {}

// ==============================
// Commands (side effects)
// ==============================

// Command represents an external side effect to be executed by the daemon loop.
type Command interface {
	commandMarker()
	String() string
}

// Button identifies an output button.
type Button int

const (
	ButtonA Button = iota // touch pad
	ButtonB               // remote run button
)

func (b Button) String() string {
	switch b {
	case ButtonA:
		return "A"
	case ButtonB:
		return "B"
	default:
		return fmt.Sprintf("Button(%d)", int(b))
	}
}

// CmdSetButton presses or releases a button.
type CmdSetButton struct {
	Button  Button
	Pressed bool
}

func (CmdSetButton) commandMarker() {}
func (c CmdSetButton) String() string {
	return fmt.Sprintf("CmdSetButton(button=%s, pressed=%v)", c.Button, c.Pressed)
}

// CmdSetStick moves the left stick.
type CmdSetStick struct {
	X, Y uint8
}

func (CmdSetStick) commandMarker() {}
func (c CmdSetStick) String() string {
	return fmt.Sprintf("CmdSetStick(x=%d, y=%d)", c.X, c.Y)
}

// CmdPublishStateSnapshot delivers a snapshot to a requester.
type CmdPublishStateSnapshot struct {
	Snapshot StateSnapshot
	Reply    chan<- StateSnapshot
}

func (CmdPublishStateSnapshot) commandMarker() {}
func (CmdPublishStateSnapshot) String() string { return "CmdPublishStateSnapshot()" }

// ==============================
// Broadcasts (websocket state stream)
// ==============================

// StateBroadcast is a state change worth pushing to websocket clients.
type StateBroadcast interface {
	broadcastMarker()
}

// BroadcastTouch is emitted on every press and release.
type BroadcastTouch struct {
	Pressed      bool
	Smoothed     float64
	Baseline     float64
	TriggerPoint float64
	ReleasePoint float64
	Presses      uint64
	At           time.Time
}

func (BroadcastTouch) broadcastMarker() {}

// BroadcastLevels carries the signal levels of one tick. The broadcaster coalesces them.
type BroadcastLevels struct {
	Raw          float64
	Smoothed     float64
	Baseline     float64
	TriggerPoint float64
	ReleasePoint float64
	Sensitivity  int
	At           time.Time
}

func (BroadcastLevels) broadcastMarker() {}

// BroadcastRemoteChanged is emitted when the applied remote state changes.
type BroadcastRemoteChanged struct {
	JoyX    uint8
	JoyY    uint8
	ButtonB bool
	At      time.Time
}

func (BroadcastRemoteChanged) broadcastMarker() {}

// BroadcastChatterWarning is emitted when presses exceed the configured rate.
type BroadcastChatterWarning struct {
	Presses     int
	Window      time.Duration
	Sensitivity int
	At          time.Time
}

func (BroadcastChatterWarning) broadcastMarker() {}

// ==============================
// Reducer input/output
// ==============================

// ReducerConfig is the static configuration Reduce needs.
type ReducerConfig struct {
	FixedSensitivity *int

	ChatterWindow time.Duration
	ChatterMax    int // 0 disables
}

// ReduceResult is the output of Reduce(): next state plus Commands to execute and
// Broadcasts to publish.
type ReduceResult struct {
	State      *DaemonState
	Commands   []Command
	Broadcasts []StateBroadcast
}

// Reduce computes the next state.
//
// Rules:
// - Must not perform I/O
// - Must not block
// - Must only mutate the state it was given (including its Detector)
func Reduce(s *DaemonState, e Event, cfg ReducerConfig) ReduceResult {
	if s == nil {
		s = &DaemonState{}
	}

	var cmds []Command
	var bcasts []StateBroadcast

	switch ev := e.(type) {
	case Tick:
		if s.Detector == nil {
			s.recordFault(&s.Faults.RejectedSamples, touchpilot.ErrNotCalibrated, ev.Now)
			break
		}

		sens, source := s.resolveSensitivity(ev.Sample, cfg)
		r, err := s.Detector.Tick(ev.Sample.Touch, sens)
		if err != nil {
			// Non-finite samples leave the detector untouched; count and move on.
			s.recordFault(&s.Faults.RejectedSamples, err, ev.Now)
			break
		}

		s.Sensitivity.Applied = r.SensitivityRaw
		s.Sensitivity.Source = source
		s.Touch.Last = r
		s.Touch.LastKnown = true

		bcasts = append(bcasts, BroadcastLevels{
			Raw:          r.Raw,
			Smoothed:     r.Smoothed,
			Baseline:     r.Baseline,
			TriggerPoint: r.Thresholds.Trigger,
			ReleasePoint: r.Thresholds.Release,
			Sensitivity:  r.SensitivityRaw,
			At:           ev.Now,
		})

		switch r.Event {
		case touchpilot.EventPressed:
			s.Touch.Presses++
			s.Touch.LastChangeAt = ev.Now
			cmds = append(cmds, CmdSetButton{Button: ButtonA, Pressed: true})
			bcasts = append(bcasts, touchBroadcast(s, r, true, ev.Now))

			if cfg.ChatterMax > 0 {
				n := s.Chatter.recordPress(ev.Now, cfg.ChatterWindow)
				if chatterCrossed(n, cfg.ChatterMax) {
					s.Chatter.Warnings++
					bcasts = append(bcasts, BroadcastChatterWarning{
						Presses:     n,
						Window:      cfg.ChatterWindow,
						Sensitivity: r.SensitivityRaw,
						At:          ev.Now,
					})
				}
			}

		case touchpilot.EventReleased:
			s.Touch.Releases++
			s.Touch.LastChangeAt = ev.Now
			cmds = append(cmds, CmdSetButton{Button: ButtonA, Pressed: false})
			bcasts = append(bcasts, touchBroadcast(s, r, false, ev.Now))
		}

	case SampleFailed:
		s.recordFault(&s.Faults.ReadErrors, ev.Err, ev.At)

	case TimedEvent:
		switch a := ev.Event.(type) {
		case SetSensitivity:
			v := a.Raw
			s.Sensitivity.Override = &v

		case ClearSensitivity:
			s.Sensitivity.Override = nil

		case RemoteInput:
			first := !s.Remote.Known
			if first || a.JoyX != s.Remote.JoyX || a.JoyY != s.Remote.JoyY {
				cmds = append(cmds, CmdSetStick{X: a.JoyX, Y: a.JoyY})
			}
			if first || a.ButtonB != s.Remote.ButtonB {
				cmds = append(cmds, CmdSetButton{Button: ButtonB, Pressed: a.ButtonB})
			}
			if len(cmds) > 0 {
				bcasts = append(bcasts, BroadcastRemoteChanged{
					JoyX:    a.JoyX,
					JoyY:    a.JoyY,
					ButtonB: a.ButtonB,
					At:      ev.At,
				})
			}
			s.Remote = RemoteState{
				JoyX:    a.JoyX,
				JoyY:    a.JoyY,
				ButtonB: a.ButtonB,
				Known:   true,
				At:      ev.At,
			}

		default:
			// no-op
		}

	case RequestStateSnapshot:
		cmds = append(cmds, CmdPublishStateSnapshot{
			Snapshot: s.Snapshot(),
			Reply:    ev.Reply,
		})

	case OutputCommandFailed:
		s.recordFault(&s.Faults.OutputErrors, ev.Err, ev.At)

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{
		State:      s,
		Commands:   cmds,
		Broadcasts: bcasts,
	}
}

func touchBroadcast(s *DaemonState, r touchpilot.Reading, pressed bool, at time.Time) BroadcastTouch {
	return BroadcastTouch{
		Pressed:      pressed,
		Smoothed:     r.Smoothed,
		Baseline:     r.Baseline,
		TriggerPoint: r.Thresholds.Trigger,
		ReleasePoint: r.Thresholds.Release,
		Presses:      s.Touch.Presses,
		At:           at,
	}
}
