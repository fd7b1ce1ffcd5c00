// Package touchpilot turns a noisy, drifting capacitive-touch signal into debounced
// press/release events.
//
// A Detector smooths each raw sample with a one-dimensional Kalman filter, follows the
// resting level with a gated exponential moving average, and compares the smoothed
// value against a trigger point and a lower release point derived from the baseline
// and a live sensitivity reading.
//
//	d, err := touchpilot.NewDetector(touchpilot.DefaultParams())
//	if err != nil { ... }
//	if _, err := d.Calibrate(ctx, src); err != nil { ... }
//	for range ticker.C {
//		r, err := d.Tick(readTouch(), readPot())
//		if err == nil && r.HasEvent() { ... }
//	}
package touchpilot
