package touchpilot

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Reference tuning for a touch pad read by an ESP32-class touch peripheral at 100 Hz.
const (
	DefaultErrorMeasure  = 5.0  // assumed sensor noise variance
	DefaultErrorEstimate = 5.0  // initial estimate error
	DefaultProcessNoise  = 0.01 // assumed process variance

	DefaultCalibrationSamples  = 50
	DefaultCalibrationInterval = 10 * time.Millisecond

	// A real touch deviates from the resting level by far more than this, so the
	// baseline stops following as soon as a finger lands.
	DefaultDeviationLimit = 5000.0

	// EMA weight of the newest smoothed sample; time constant is about 20 ticks.
	DefaultBaselineAlpha = 0.05

	DefaultSensitivityInMin = 0
	DefaultSensitivityInMax = 4096
	DefaultOffsetMin        = 10000.0
	DefaultOffsetMax        = 80000.0

	// Release point sits at this fraction of the trigger offset above baseline.
	DefaultHysteresisRatio = 0.8
)

// ErrInvalidParams is wrapped by every configuration error returned from this package.
var ErrInvalidParams = errors.New("invalid detector params")

// Params holds every tunable of a Detector.
type Params struct {
	// Kalman smoother
	ErrorMeasure  float64
	ErrorEstimate float64
	ProcessNoise  float64

	// Calibration
	CalibrationSamples  int
	CalibrationInterval time.Duration

	// Baseline tracker
	DeviationLimit float64
	BaselineAlpha  float64

	// Sensitivity mapping: raw input range -> threshold offset range
	SensitivityInMin int
	SensitivityInMax int
	OffsetMin        float64
	OffsetMax        float64

	// Hysteresis trigger
	HysteresisRatio float64
}

// DefaultParams returns the reference tuning.
func DefaultParams() Params {
	return Params{
		ErrorMeasure:        DefaultErrorMeasure,
		ErrorEstimate:       DefaultErrorEstimate,
		ProcessNoise:        DefaultProcessNoise,
		CalibrationSamples:  DefaultCalibrationSamples,
		CalibrationInterval: DefaultCalibrationInterval,
		DeviationLimit:      DefaultDeviationLimit,
		BaselineAlpha:       DefaultBaselineAlpha,
		SensitivityInMin:    DefaultSensitivityInMin,
		SensitivityInMax:    DefaultSensitivityInMax,
		OffsetMin:           DefaultOffsetMin,
		OffsetMax:           DefaultOffsetMax,
		HysteresisRatio:     DefaultHysteresisRatio,
	}
}

// Validate checks Params invariants. Every returned error wraps ErrInvalidParams.
func (p Params) Validate() error {
	if err := validateFilter(p.ErrorMeasure, p.ErrorEstimate, p.ProcessNoise); err != nil {
		return err
	}
	if p.CalibrationSamples < 1 {
		return invalidf("calibration samples must be >= 1, got %d", p.CalibrationSamples)
	}
	if p.CalibrationInterval < 0 {
		return invalidf("calibration interval must be >= 0, got %s", p.CalibrationInterval)
	}
	if !isFinite(p.DeviationLimit) || p.DeviationLimit <= 0 {
		return invalidf("deviation limit must be > 0, got %v", p.DeviationLimit)
	}
	if !isFinite(p.BaselineAlpha) || p.BaselineAlpha <= 0 || p.BaselineAlpha > 1 {
		return invalidf("baseline alpha must be in (0, 1], got %v", p.BaselineAlpha)
	}
	if p.SensitivityInMax <= p.SensitivityInMin {
		return invalidf("sensitivity input range [%d, %d] is empty", p.SensitivityInMin, p.SensitivityInMax)
	}
	if !isFinite(p.OffsetMin) || p.OffsetMin <= 0 {
		return invalidf("offset min must be > 0, got %v", p.OffsetMin)
	}
	if !isFinite(p.OffsetMax) || p.OffsetMax < p.OffsetMin {
		return invalidf("offset max must be >= offset min, got %v < %v", p.OffsetMax, p.OffsetMin)
	}
	if !isFinite(p.HysteresisRatio) || p.HysteresisRatio <= 0 || p.HysteresisRatio >= 1 {
		return invalidf("hysteresis ratio must be in (0, 1), got %v", p.HysteresisRatio)
	}
	return nil
}

func validateFilter(errorMeasure, errorEstimate, processNoise float64) error {
	if !isFinite(errorMeasure) || errorMeasure <= 0 {
		return invalidf("error measure must be > 0, got %v", errorMeasure)
	}
	if !isFinite(errorEstimate) || errorEstimate < 0 {
		return invalidf("error estimate must be >= 0, got %v", errorEstimate)
	}
	if !isFinite(processNoise) || processNoise < 0 {
		return invalidf("process noise must be >= 0, got %v", processNoise)
	}
	return nil
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidParams}, args...)...)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
