package touchpilot

import "math"

// BaselineTracker follows slow environmental drift of the resting level.
//
// Samples that sit DeviationLimit or more away from the current baseline are treated
// as a touch and ignored; chasing them would raise the trigger point along with the
// finger and the pad could never fire.
type BaselineTracker struct {
	DeviationLimit float64
	Alpha          float64 // weight of the new sample, 1-Alpha stays on the old baseline
}

// NewBaselineTracker returns a tracker with the given limit and EMA weight.
func NewBaselineTracker(deviationLimit, alpha float64) BaselineTracker {
	return BaselineTracker{DeviationLimit: deviationLimit, Alpha: alpha}
}

// Update returns the next baseline for this tick.
func (t BaselineTracker) Update(smoothed, baseline float64) float64 {
	if math.Abs(smoothed-baseline) >= t.DeviationLimit {
		return baseline
	}
	return baseline*(1-t.Alpha) + smoothed*t.Alpha
}
