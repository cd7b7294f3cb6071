package agc

import (
	"math"
	"testing"

	"github.com/rustyguts/micpipe/internal/noisefloor"
)

const (
	testTarget    = 0.18
	testMinGain   = 0.5
	testMaxGain   = 8.0
	testSmoothing = 0.05
	testMargin    = 2.5
)

func newTestController() *Controller {
	return New(testTarget, testMinGain, testMaxGain, testSmoothing, testMargin)
}

func TestNewClampsInitialGain(t *testing.T) {
	c := New(0.18, 2.0, 8.0, 0.05, 2.5)
	if c.Gain() != 2.0 {
		t.Errorf("initial gain with minGain=2: got %f, want 2.0", c.Gain())
	}
	c = New(0.18, 0.1, 0.8, 0.05, 2.5)
	if c.Gain() != 0.8 {
		t.Errorf("initial gain with maxGain=0.8: got %f, want 0.8", c.Gain())
	}
}

func TestGateHoldsGain(t *testing.T) {
	// Frames with rms < floor*margin must leave gain untouched, however
	// many arrive.
	c := newTestController()
	before := c.Gain()
	for i := 0; i < 100; i++ {
		gain, gated := c.Step(0.01, 0.005) // 0.01 < 0.005*2.5
		if !gated {
			t.Fatalf("step %d: frame not gated", i)
		}
		if gain != before {
			t.Fatalf("step %d: gain moved under gate: %f → %f", i, before, gain)
		}
	}
}

func TestQuietFrameHoldsGain(t *testing.T) {
	// Above the gate but below the audible threshold: hold, not gated.
	c := newTestController()
	before := c.Gain()
	gain, gated := c.Step(0.0009, 0.0001)
	if gated {
		t.Error("sub-audible frame reported as gated")
	}
	if gain != before {
		t.Errorf("gain moved on sub-audible frame: %f → %f", before, gain)
	}
}

func TestGeometricConvergence(t *testing.T) {
	// Constant rms above the gate: gain converges toward
	// clamp(target/rms, min, max), each step covering exactly
	// smoothing of the remaining distance.
	c := newTestController()
	rms := 0.09
	want := testTarget / rms // 2.0, inside bounds
	for i := 0; i < 200; i++ {
		prev := c.Gain()
		gain, gated := c.Step(rms, 0.005)
		if gated {
			t.Fatalf("step %d: unexpectedly gated", i)
		}
		step := math.Abs(gain - prev)
		bound := testSmoothing*math.Abs(want-prev) + 1e-12
		if step > bound {
			t.Fatalf("step %d: per-cycle change %f exceeds bound %f", i, step, bound)
		}
	}
	if math.Abs(c.Gain()-want) > 0.001 {
		t.Errorf("converged gain: got %f, want ~%f", c.Gain(), want)
	}
}

func TestGainBoundsAdversarial(t *testing.T) {
	// Silence, then a loud spike, then silence again, plus extremes:
	// none of it may push gain outside [min, max].
	c := newTestController()
	seq := []float64{0, 0, 0, 0.9, 0, 0, 0.0001, 1.0, 0.5, 0, 0.002, 0.9, 0.9, 0.9, 0}
	for i := 0; i < 50; i++ {
		for _, rms := range seq {
			gain, _ := c.Step(rms, 0.005)
			if gain < testMinGain-1e-9 || gain > testMaxGain+1e-9 {
				t.Fatalf("gain out of bounds: %f", gain)
			}
		}
	}
}

func TestInvalidRMSSkipsUpdate(t *testing.T) {
	c := newTestController()
	c.Step(0.02, 0.005) // move gain off its initial value
	before := c.Gain()
	for _, rms := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		gain, gated := c.Step(rms, 0.005)
		if gated {
			t.Errorf("rms %f reported gated", rms)
		}
		if gain != before {
			t.Errorf("rms %f changed gain: %f → %f", rms, before, gain)
		}
	}
}

func TestSpeechAfterNoiseScenario(t *testing.T) {
	// 50 frames of rms=0.005 establish the floor, then 20 frames of
	// rms=0.02 (speech). The floor settles at 0.005; gain rises
	// monotonically toward clamp(0.18/0.02, 0.5, 8.0) = 8.0, covering
	// ~64% of the distance in 20 cycles at a 5% EMA rate.
	c := newTestController()
	nf := noisefloor.New(50)

	var floor float64
	for i := 0; i < 50; i++ {
		floor = nf.Update(0.005)
		c.Step(0.005, floor)
	}
	if math.Abs(floor-0.005) > 1e-9 {
		t.Fatalf("warm-up floor: got %f, want 0.005", floor)
	}

	start := c.Gain()
	prev := start
	for i := 0; i < 20; i++ {
		floor = nf.Update(0.02)
		gain, gated := c.Step(0.02, floor)
		if gated {
			t.Fatalf("speech frame %d gated (floor %f)", i, floor)
		}
		if gain <= prev {
			t.Fatalf("speech frame %d: gain not rising: %f → %f", i, prev, gain)
		}
		prev = gain
	}

	if prev >= testMaxGain {
		t.Errorf("gain reached max within 20 cycles: %f", prev)
	}
	progress := (prev - start) / (testMaxGain - start)
	wantProgress := 1 - math.Pow(1-testSmoothing, 20) // ≈ 0.6415
	if math.Abs(progress-wantProgress) > 0.05 {
		t.Errorf("convergence progress: got %f, want ~%f", progress, wantProgress)
	}
}

func TestImpulseDoesNotOverreact(t *testing.T) {
	// One rms=0.9 frame amid 0.02 frames moves gain by no more than
	// smoothing * (maxGain - gain) in that cycle.
	c := newTestController()
	for i := 0; i < 10; i++ {
		c.Step(0.02, 0.005)
	}
	before := c.Gain()
	gain, _ := c.Step(0.9, 0.005)
	if math.Abs(gain-before) > testSmoothing*(testMaxGain-before)+1e-12 {
		t.Errorf("impulse moved gain %f → %f, more than one smoothing step", before, gain)
	}
}

func TestReset(t *testing.T) {
	c := newTestController()
	for i := 0; i < 30; i++ {
		c.Step(0.02, 0.005)
	}
	c.Reset()
	if c.Gain() != 1.0 {
		t.Errorf("gain after reset: got %f, want 1.0", c.Gain())
	}
}
