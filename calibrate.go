package touchpilot

import (
	"context"
	"fmt"
	"time"
)

// RawSource supplies raw touch samples. Implementations may block for at most one
// sampling period.
type RawSource interface {
	ReadRaw() (float64, error)
}

// RawSourceFunc adapts a function to RawSource.
type RawSourceFunc func() (float64, error)

func (f RawSourceFunc) ReadRaw() (float64, error) { return f() }

// Calibrate reads Params.CalibrationSamples samples from src, one every
// Params.CalibrationInterval, feeds them through the smoother, and seeds the baseline
// with the arithmetic mean of the raw samples. The smoother starts from zero and needs
// a few ticks to converge, so its output is not used for the seed.
//
// Calibrate blocks until done or ctx is canceled, and runs at most once.
func (d *Detector) Calibrate(ctx context.Context, src RawSource) (float64, error) {
	if d.calibrated {
		return d.baseline, ErrAlreadyCalibrated
	}

	n := d.params.CalibrationSamples
	interval := d.params.CalibrationInterval
	samples := make([]float64, 0, n)

	d.logger.Info("calibrating", "samples", n, "interval", interval)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < n; i++ {
		if i > 0 && tick != nil {
			select {
			case <-ctx.Done():
			case <-tick:
			}
		}
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("calibration interrupted after %d samples: %w", i, err)
		}

		raw, err := src.ReadRaw()
		if err != nil {
			return 0, fmt.Errorf("calibration sample %d: %w", i+1, err)
		}
		if !isFinite(raw) {
			return 0, fmt.Errorf("calibration sample %d: %w (%v)", i+1, ErrNonFiniteSample, raw)
		}
		samples = append(samples, raw)
	}

	return d.Prime(samples)
}

// Prime calibrates from samples already collected. It is the synchronous core of
// Calibrate and is used directly for replayed recordings.
func (d *Detector) Prime(samples []float64) (float64, error) {
	if d.calibrated {
		return d.baseline, ErrAlreadyCalibrated
	}
	if len(samples) == 0 {
		return 0, fmt.Errorf("%w: no calibration samples", ErrInvalidParams)
	}
	for i, s := range samples {
		if !isFinite(s) {
			return 0, fmt.Errorf("calibration sample %d: %w (%v)", i+1, ErrNonFiniteSample, s)
		}
	}

	var total float64
	for _, s := range samples {
		d.smoother.Update(s)
		total += s
	}

	d.baseline = total / float64(len(samples))
	d.calibrated = true

	d.logger.Info("calibrated",
		"steady_baseline", d.baseline,
		"samples", len(samples),
		"filter_estimate", d.smoother.Estimate())

	return d.baseline, nil
}
