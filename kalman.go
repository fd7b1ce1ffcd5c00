package touchpilot

import "math"

// FilterState is a read-only copy of the smoother's internals.
type FilterState struct {
	ErrorMeasure  float64
	ErrorEstimate float64
	ProcessNoise  float64
	LastEstimate  float64
	KalmanGain    float64
}

// KalmanSmoother is a fixed-parameter one-dimensional Kalman filter with no control
// input. It is not safe for concurrent use; one goroutine feeds it in sample order.
type KalmanSmoother struct {
	errMeasure  float64
	errEstimate float64
	q           float64

	lastEstimate float64
	gain         float64
}

// NewKalmanSmoother creates a smoother.
//
// errorMeasure is the assumed measurement noise and must be > 0.
// errorEstimate is the initial estimate error and must be >= 0.
// processNoise scales how much a moving estimate inflates the error and must be >= 0.
func NewKalmanSmoother(errorMeasure, errorEstimate, processNoise float64) (*KalmanSmoother, error) {
	if err := validateFilter(errorMeasure, errorEstimate, processNoise); err != nil {
		return nil, err
	}
	return &KalmanSmoother{
		errMeasure:  errorMeasure,
		errEstimate: errorEstimate,
		q:           processNoise,
	}, nil
}

// Update folds one raw sample into the estimate and returns the new estimate.
// raw must be finite; Detector.Tick enforces that before calling.
func (k *KalmanSmoother) Update(raw float64) float64 {
	k.gain = k.errEstimate / (k.errEstimate + k.errMeasure)
	current := k.lastEstimate + k.gain*(raw-k.lastEstimate)
	k.errEstimate = (1.0-k.gain)*k.errEstimate + math.Abs(k.lastEstimate-current)*k.q
	k.lastEstimate = current
	return current
}

// Estimate returns the last estimate without updating.
func (k *KalmanSmoother) Estimate() float64 {
	return k.lastEstimate
}

// State returns a copy of the filter internals.
func (k *KalmanSmoother) State() FilterState {
	return FilterState{
		ErrorMeasure:  k.errMeasure,
		ErrorEstimate: k.errEstimate,
		ProcessNoise:  k.q,
		LastEstimate:  k.lastEstimate,
		KalmanGain:    k.gain,
	}
}
