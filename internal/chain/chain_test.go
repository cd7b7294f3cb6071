package chain

import (
	"math"
	"testing"
	"time"
)

const (
	testRate  = 48000.0
	testFrame = 960
	testRamp  = 50 * time.Millisecond
)

// makeSine returns n samples of a continuous-phase sine at freq Hz.
func makeSine(n int, amplitude, freq float64) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = float32(amplitude * math.Sin(2*math.Pi*freq*float64(i)/testRate))
	}
	return buf
}

func rms(buf []float32) float64 {
	var sum float64
	for _, s := range buf {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(buf)))
}

// processAll pushes sig through c one frame at a time and returns the
// processed signal.
func processAll(c *Chain, sig []float32) []float32 {
	out := make([]float32, len(sig))
	copy(out, sig)
	for i := 0; i+testFrame <= len(out); i += testFrame {
		c.Process(out[i : i+testFrame])
	}
	return out
}

func TestHighPassBlocksDC(t *testing.T) {
	c := New(testRate, testFrame, testRamp)
	sig := make([]float32, testFrame*20)
	for i := range sig {
		sig[i] = 0.5
	}
	out := processAll(c, sig)
	// After settling, a constant offset must be gone.
	tail := out[len(out)-testFrame:]
	if got := rms(tail); got > 0.01 {
		t.Errorf("DC leaked through high-pass: tail rms %f", got)
	}
}

func TestVoiceBandPassesThrough(t *testing.T) {
	// 1 kHz sits well inside the 80 Hz – 12 kHz band; at a low level the
	// compressor is idle, so the tone should come through nearly intact.
	c := New(testRate, testFrame, testRamp)
	sig := makeSine(testFrame*20, 0.05, 1000)
	out := processAll(c, sig)
	in := rms(sig[len(sig)-testFrame:])
	got := rms(out[len(out)-testFrame:])
	if math.Abs(got-in)/in > 0.1 {
		t.Errorf("1 kHz tone altered: in rms %f, out rms %f", in, got)
	}
}

func TestGainRampReachesTarget(t *testing.T) {
	c := New(testRate, testFrame, testRamp)
	c.SetGain(2.0)
	// 30 frames = 600 ms, a dozen ramp time constants.
	sig := makeSine(testFrame*30, 0.01, 1000)
	out := processAll(c, sig)
	in := rms(sig[len(sig)-testFrame:])
	got := rms(out[len(out)-testFrame:])
	if math.Abs(got-2*in)/(2*in) > 0.05 {
		t.Errorf("ramped gain: out rms %f, want ~%f", got, 2*in)
	}
}

func TestGainRampAvoidsStep(t *testing.T) {
	// Right after a target change the applied gain must still be close
	// to the previous value; the ramp, not the controller, spreads the
	// change over time.
	c := New(testRate, testFrame, testRamp)
	c.SetGain(8.0)
	sig := makeSine(testFrame, 0.01, 1000)
	first := make([]float32, testFrame)
	copy(first, sig)
	c.Process(first)
	// Within the first quarter frame (5 ms of a 50 ms ramp) gain should
	// still be below 2x.
	quarter := testFrame / 4
	inRMS := rms(sig[:quarter])
	outRMS := rms(first[:quarter])
	if outRMS > 2*inRMS {
		t.Errorf("gain stepped instead of ramping: %fx within 5 ms", outRMS/inRMS)
	}
}

func TestCompressorTamesLoudSignal(t *testing.T) {
	c := New(testRate, testFrame, testRamp)
	sig := makeSine(testFrame*20, 0.9, 1000)
	out := processAll(c, sig)
	tail := out[len(out)-testFrame:]
	var peak float64
	for _, s := range tail {
		if a := math.Abs(float64(s)); a > peak {
			peak = a
		}
	}
	// −1 dB input against a −24 dB threshold at 4:1 must shed most of
	// the overage.
	if peak > 0.6 {
		t.Errorf("loud signal not compressed: peak %f", peak)
	}
	for i, s := range out {
		if s > 1 || s < -1 {
			t.Fatalf("sample %d out of range: %f", i, s)
		}
	}
}

func TestReadTap(t *testing.T) {
	c := New(testRate, testFrame, testRamp)
	dst := make([]float32, testFrame)
	if c.ReadTap(dst) {
		t.Error("tap readable before any frame was processed")
	}
	buf := makeSine(testFrame, 0.05, 1000)
	c.Process(buf)
	if !c.ReadTap(dst) {
		t.Fatal("tap not readable after processing")
	}
	for i := range dst {
		if dst[i] != buf[i] {
			t.Fatalf("tap sample %d: got %f, want %f", i, dst[i], buf[i])
		}
	}
}

func TestResetClearsTapAndState(t *testing.T) {
	c := New(testRate, testFrame, testRamp)
	c.Process(makeSine(testFrame, 0.5, 1000))
	c.Reset()
	if c.ReadTap(make([]float32, testFrame)) {
		t.Error("tap still readable after reset")
	}
}

func TestSetGainRoundTrip(t *testing.T) {
	c := New(testRate, testFrame, testRamp)
	c.SetGain(3.5)
	if got := c.Gain(); got != 3.5 {
		t.Errorf("gain target: got %f, want 3.5", got)
	}
}
