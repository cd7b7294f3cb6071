package chain

import (
	"math"
	"sync/atomic"
	"time"
)

// gainStage applies a variable linear gain with first-order parameter
// smoothing so a target change ramps over roughly rampTime instead of
// stepping. An instantaneous set would click at the output.
//
// The ramp target is stored as atomic float64 bits: the control loop
// sets it while the audio goroutine reads it every frame. The ramping
// current value is touched only by the audio goroutine.
type gainStage struct {
	target  atomic.Uint64
	current float64
	coeff   float64 // per-sample smoothing coefficient
}

func newGainStage(sampleRate float64, rampTime time.Duration) *gainStage {
	samples := rampTime.Seconds() * sampleRate
	if samples < 1 {
		samples = 1
	}
	g := &gainStage{
		// Reaches ~63% of a target step within rampTime.
		coeff:   1 - math.Exp(-1/samples),
		current: 1,
	}
	g.target.Store(math.Float64bits(1))
	return g
}

// setTarget sets the ramp target. Safe to call from the control loop
// while audio is running.
func (g *gainStage) setTarget(v float64) {
	g.target.Store(math.Float64bits(v))
}

// targetGain returns the current ramp target.
func (g *gainStage) targetGain() float64 {
	return math.Float64frombits(g.target.Load())
}

// process applies the ramping gain to buf in place.
func (g *gainStage) process(buf []float32) {
	t := g.targetGain()
	for i, s := range buf {
		g.current += (t - g.current) * g.coeff
		buf[i] = float32(float64(s) * g.current)
	}
}

// reset snaps the ramp to its target so a new session does not fade in
// from a stale gain.
func (g *gainStage) reset() {
	g.current = g.targetGain()
}
