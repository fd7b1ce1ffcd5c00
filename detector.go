package touchpilot

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
)

var (
	// ErrNonFiniteSample is returned for NaN or infinite raw samples. The detector
	// state is left exactly as it was.
	ErrNonFiniteSample = errors.New("non-finite sample")

	// ErrNotCalibrated is returned by Tick before Calibrate or Prime has run.
	ErrNotCalibrated = errors.New("detector not calibrated")

	// ErrAlreadyCalibrated is returned when calibration is attempted a second time.
	ErrAlreadyCalibrated = errors.New("detector already calibrated")
)

// Reading is the outcome of one tick.
type Reading struct {
	Raw            float64
	Smoothed       float64
	Baseline       float64
	SensitivityRaw int // after clamping
	Thresholds     Thresholds
	State          TriggerState // after this tick
	Event          Event        // EventNone when nothing changed
}

// HasEvent reports whether this tick produced a transition.
func (r Reading) HasEvent() bool {
	return r.Event != EventNone
}

// Detector turns a raw capacitive sample stream into press/release events.
//
// Each tick runs the fixed pipeline Kalman smoother -> baseline tracker -> hysteresis
// trigger; the trigger reads the baseline already updated for the same tick. A
// Detector is owned by one goroutine and is not safe for concurrent use.
type Detector struct {
	params   Params
	smoother *KalmanSmoother
	tracker  BaselineTracker
	trigger  *HysteresisTrigger

	baseline   float64
	calibrated bool
	ticks      uint64

	logger *slog.Logger
}

// NewDetector validates p and builds an uncalibrated detector.
func NewDetector(p Params) (*Detector, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	smoother, err := NewKalmanSmoother(p.ErrorMeasure, p.ErrorEstimate, p.ProcessNoise)
	if err != nil {
		return nil, err
	}
	return &Detector{
		params:   p,
		smoother: smoother,
		tracker:  NewBaselineTracker(p.DeviationLimit, p.BaselineAlpha),
		trigger:  NewHysteresisTrigger(NewSensitivityMap(p), p.HysteresisRatio),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, nil
}

// SetLogger replaces the discard logger used by default.
func (d *Detector) SetLogger(logger *slog.Logger) {
	if logger != nil {
		d.logger = logger
	}
}

// Params returns the configuration the detector was built with.
func (d *Detector) Params() Params {
	return d.params
}

// Tick runs one sample through the pipeline.
//
// sensitivityRaw is clamped into the configured input range. A non-finite raw sample
// is rejected with ErrNonFiniteSample before anything is updated.
func (d *Detector) Tick(raw float64, sensitivityRaw int) (Reading, error) {
	if !d.calibrated {
		return Reading{}, ErrNotCalibrated
	}
	if !isFinite(raw) {
		return Reading{}, fmt.Errorf("tick %d: %w (%v)", d.ticks+1, ErrNonFiniteSample, raw)
	}
	d.ticks++

	smoothed := d.smoother.Update(raw)
	d.baseline = d.tracker.Update(smoothed, d.baseline)

	sens := d.trigger.sens.Clamp(sensitivityRaw)
	th := d.trigger.Thresholds(d.baseline, sens)
	ev := d.trigger.step(smoothed, th)

	if ev != EventNone {
		d.logger.Debug("touch transition",
			"event", ev.String(),
			"tick", d.ticks,
			"smoothed", smoothed,
			"baseline", d.baseline,
			"trigger_point", th.Trigger,
			"release_point", th.Release)
	}

	return Reading{
		Raw:            raw,
		Smoothed:       smoothed,
		Baseline:       d.baseline,
		SensitivityRaw: sens,
		Thresholds:     th,
		State:          d.trigger.State(),
		Event:          ev,
	}, nil
}

// Calibrated reports whether the resting level has been established.
func (d *Detector) Calibrated() bool {
	return d.calibrated
}

// Baseline returns the current resting level estimate.
func (d *Detector) Baseline() float64 {
	return d.baseline
}

// State returns the current trigger state.
func (d *Detector) State() TriggerState {
	return d.trigger.State()
}

// Filter returns a copy of the Kalman smoother internals.
func (d *Detector) Filter() FilterState {
	return d.smoother.State()
}

// Ticks returns the number of accepted samples since calibration.
func (d *Detector) Ticks() uint64 {
	return d.ticks
}
