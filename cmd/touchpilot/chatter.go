package main

import "time"

// ChatterState tracks recent presses for press-rate detection.
//
// A pad that fires many times per second usually has too small a trigger offset:
// noise crosses the trigger point and the hysteresis band is too narrow to hold it.
// Raising the sensitivity value widens both.
type ChatterState struct {
	RecentPresses []time.Time
	Warnings      uint64
}

// recordPress records a press at now and returns the number of presses inside the
// trailing window, the new one included.
func (c *ChatterState) recordPress(now time.Time, window time.Duration) int {
	cutoff := now.Add(-window)

	// Drop presses outside the window, reusing the underlying array.
	filtered := c.RecentPresses[:0]
	for _, at := range c.RecentPresses {
		if at.After(cutoff) {
			filtered = append(filtered, at)
		}
	}

	c.RecentPresses = append(filtered, now)
	return len(c.RecentPresses)
}

// chatterCrossed reports whether count is the first press over limit in the current
// burst. Only the crossing press warns, so a sustained burst produces one warning
// instead of one per press.
func chatterCrossed(count, limit int) bool {
	return limit > 0 && count == limit+1
}
