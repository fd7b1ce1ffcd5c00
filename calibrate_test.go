package touchpilot

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"
)

func fastParams() Params {
	p := DefaultParams()
	p.CalibrationInterval = 0
	return p
}

func constSource(v float64, count *int) RawSource {
	return RawSourceFunc(func() (float64, error) {
		if count != nil {
			*count++
		}
		return v, nil
	})
}

func TestCalibrate_SteadyInputSeedsBaseline(t *testing.T) {
	d, err := NewDetector(fastParams())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	reads := 0
	baseline, err := d.Calibrate(context.Background(), constSource(1000, &reads))
	if err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if baseline != 1000 || d.Baseline() != 1000 {
		t.Errorf("expected baseline 1000, got %v / %v", baseline, d.Baseline())
	}
	if reads != DefaultCalibrationSamples {
		t.Errorf("expected %d reads, got %d", DefaultCalibrationSamples, reads)
	}
	if !d.Calibrated() {
		t.Errorf("detector should be calibrated")
	}
	if d.State() != Idle {
		t.Errorf("expected idle after calibration, got %s", d.State())
	}
	// The smoother saw every calibration sample.
	if est := d.Filter().LastEstimate; est <= 0 || est > 1000 {
		t.Errorf("filter estimate not primed: %v", est)
	}
}

func TestCalibrate_UsesRawMeanNotFilterOutput(t *testing.T) {
	d, err := NewDetector(fastParams())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	samples := make([]float64, 50)
	for i := range samples {
		samples[i] = float64(900 + (i%5)*50) // 900..1100, mean 1000
	}
	baseline, err := d.Prime(samples)
	if err != nil {
		t.Fatalf("Prime: %v", err)
	}
	if math.Abs(baseline-1000) > 1e-9 {
		t.Errorf("expected mean 1000, got %v", baseline)
	}
	if d.Filter().LastEstimate == baseline {
		t.Errorf("filter estimate should differ from the raw mean after a cold start")
	}
}

func TestCalibrate_PacedByInterval(t *testing.T) {
	p := DefaultParams()
	p.CalibrationSamples = 5
	p.CalibrationInterval = 5 * time.Millisecond
	d, err := NewDetector(p)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	start := time.Now()
	if _, err := d.Calibrate(context.Background(), constSource(1000, nil)); err != nil {
		t.Fatalf("Calibrate: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 4*p.CalibrationInterval {
		t.Errorf("calibration finished too fast: %s", elapsed)
	}
}

func TestCalibrate_ContextCancel(t *testing.T) {
	p := DefaultParams()
	p.CalibrationInterval = time.Millisecond
	d, err := NewDetector(p)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reads := 0
	src := RawSourceFunc(func() (float64, error) {
		reads++
		if reads == 3 {
			cancel()
		}
		return 1000, nil
	})

	_, err = d.Calibrate(ctx, src)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if reads != 3 {
		t.Errorf("expected reads to stop at 3, got %d", reads)
	}
	if d.Calibrated() {
		t.Errorf("detector must stay uncalibrated after cancel")
	}
}

func TestCalibrate_SourceError(t *testing.T) {
	d, err := NewDetector(fastParams())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	boom := errors.New("boom")
	_, err = d.Calibrate(context.Background(), RawSourceFunc(func() (float64, error) {
		return 0, boom
	}))
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
	if d.Calibrated() {
		t.Errorf("detector must stay uncalibrated")
	}
}

func TestCalibrate_RejectsNonFinite(t *testing.T) {
	d, err := NewDetector(fastParams())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}

	_, err = d.Calibrate(context.Background(), constSource(math.NaN(), nil))
	if !errors.Is(err, ErrNonFiniteSample) {
		t.Fatalf("expected ErrNonFiniteSample, got %v", err)
	}

	_, err = d.Prime([]float64{1000, math.Inf(1)})
	if !errors.Is(err, ErrNonFiniteSample) {
		t.Fatalf("expected ErrNonFiniteSample from Prime, got %v", err)
	}
	if d.Calibrated() {
		t.Errorf("detector must stay uncalibrated")
	}
	if d.Filter().LastEstimate != 0 {
		t.Errorf("rejected samples must not reach the smoother")
	}
}

func TestCalibrate_OnlyOnce(t *testing.T) {
	d, err := NewDetector(fastParams())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if _, err := d.Prime([]float64{1000}); err != nil {
		t.Fatalf("Prime: %v", err)
	}

	baseline, err := d.Calibrate(context.Background(), constSource(5000, nil))
	if !errors.Is(err, ErrAlreadyCalibrated) {
		t.Fatalf("expected ErrAlreadyCalibrated, got %v", err)
	}
	if baseline != 1000 {
		t.Errorf("second calibration must not move baseline, got %v", baseline)
	}
}

func TestPrime_Empty(t *testing.T) {
	d, err := NewDetector(fastParams())
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	if _, err := d.Prime(nil); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
}
