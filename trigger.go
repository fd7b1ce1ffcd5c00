package touchpilot

// TriggerState is the two-state press flag.
type TriggerState int

const (
	Idle TriggerState = iota
	Pressed
)

func (s TriggerState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Pressed:
		return "pressed"
	default:
		return "unknown"
	}
}

// Event is a press/release transition.
type Event int

const (
	EventNone Event = iota
	EventPressed
	EventReleased
)

func (e Event) String() string {
	switch e {
	case EventPressed:
		return "pressed"
	case EventReleased:
		return "released"
	default:
		return "none"
	}
}

// Thresholds are the two switching points derived for one tick.
type Thresholds struct {
	Offset  float64
	Trigger float64
	Release float64
}

// HysteresisTrigger is a Schmitt trigger over the smoothed signal. The release point
// sits below the trigger point, so a signal hovering near one threshold cannot chatter.
type HysteresisTrigger struct {
	sens  SensitivityMap
	ratio float64
	state TriggerState
}

// NewHysteresisTrigger creates a trigger in the Idle state.
func NewHysteresisTrigger(sens SensitivityMap, hysteresisRatio float64) *HysteresisTrigger {
	return &HysteresisTrigger{
		sens:  sens,
		ratio: hysteresisRatio,
		state: Idle,
	}
}

// Thresholds computes trigger and release points for baseline and sensitivityRaw.
func (t *HysteresisTrigger) Thresholds(baseline float64, sensitivityRaw int) Thresholds {
	offset := t.sens.Offset(sensitivityRaw)
	return Thresholds{
		Offset:  offset,
		Trigger: baseline + offset,
		Release: baseline + offset*t.ratio,
	}
}

// Evaluate advances the state machine for one tick. It reports the emitted event and
// true on a transition, or EventNone and false otherwise.
func (t *HysteresisTrigger) Evaluate(smoothed, baseline float64, sensitivityRaw int) (Event, bool) {
	ev := t.step(smoothed, t.Thresholds(baseline, sensitivityRaw))
	return ev, ev != EventNone
}

func (t *HysteresisTrigger) step(smoothed float64, th Thresholds) Event {
	switch t.state {
	case Idle:
		if smoothed > th.Trigger {
			t.state = Pressed
			return EventPressed
		}
	case Pressed:
		if smoothed < th.Release {
			t.state = Idle
			return EventReleased
		}
	}
	return EventNone
}

// State returns the current trigger state.
func (t *HysteresisTrigger) State() TriggerState {
	return t.state
}
