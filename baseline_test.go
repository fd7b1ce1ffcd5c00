package touchpilot

import "testing"

func TestBaselineTracker_FollowsSmallDrift(t *testing.T) {
	tr := NewBaselineTracker(DefaultDeviationLimit, DefaultBaselineAlpha)

	got := tr.Update(1100, 1000)
	want := 1000*0.95 + 1100*0.05
	if got != want {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestBaselineTracker_IgnoresDeviationAtOrAboveLimit(t *testing.T) {
	tr := NewBaselineTracker(5000, 0.05)

	if got := tr.Update(6000, 1000); got != 1000 {
		t.Errorf("deviation exactly at limit must not update, got %v", got)
	}
	if got := tr.Update(-4000, 1000); got != 1000 {
		t.Errorf("negative deviation at limit must not update, got %v", got)
	}
	if got := tr.Update(90000, 1000); got != 1000 {
		t.Errorf("touch spike must not update, got %v", got)
	}
	if got := tr.Update(5999.5, 1000); got == 1000 {
		t.Errorf("deviation just under limit should update")
	}
}

func TestBaselineTracker_DoesNotChaseSustainedSpike(t *testing.T) {
	tr := NewBaselineTracker(5000, 0.05)

	baseline := 20000.0
	for i := 0; i < 10000; i++ {
		baseline = tr.Update(95000, baseline)
	}
	if baseline != 20000 {
		t.Errorf("baseline chased a sustained spike: %v", baseline)
	}
}

func TestBaselineTracker_BoundedByBorderlineFluctuation(t *testing.T) {
	tr := NewBaselineTracker(5000, 0.05)

	// Alternate a large spike with a sample just inside the limit of the resting
	// level. The baseline creeps toward the borderline level but never past it.
	const rest = 20000.0
	const borderline = rest + 4000
	baseline := rest
	for i := 0; i < 500; i++ {
		baseline = tr.Update(95000, baseline)
		baseline = tr.Update(borderline, baseline)
		if baseline > borderline+1e-6 {
			t.Fatalf("baseline passed the borderline level at step %d: %v", i, baseline)
		}
	}
	if baseline < borderline-1 {
		t.Errorf("baseline did not converge on the borderline level: %v", baseline)
	}
}
