// Package chain implements the fixed signal path the raw input is
// routed through: band-limiting high-pass → band-limiting low-pass →
// variable gain stage → dynamics compressor → output, with an analysis
// tap after the last stage.
//
// The filters and compressor are configured at construction and never
// change; only the gain stage is dynamic, driven by the control loop
// through SetGain. Frames are mono float32 PCM processed in place.
package chain

import (
	"sync"
	"time"
)

const (
	// highPassCutoff removes rumble and mains hum below the voice band.
	highPassCutoff = 80.0
	// lowPassCutoff removes hiss above the useful voice band.
	lowPassCutoff = 12000.0
	// filterQ is a Butterworth response for both band-limit filters.
	filterQ = 0.7071067811865476
)

// Chain is the ordered stage pipeline for one session. Zero value is
// not usable; use New().
type Chain struct {
	hp   *biquad
	lp   *biquad
	gain *gainStage
	comp *compressor

	// Analysis tap: the audio goroutine writes each processed window,
	// the control loop copies it out once per cycle.
	tapMu  sync.Mutex
	tap    []float32
	tapped bool
}

// New constructs the stage chain for the given sample geometry.
// rampTime is the gain stage's parameter smoothing time.
func New(sampleRate float64, frameSize int, rampTime time.Duration) *Chain {
	return &Chain{
		hp:   newHighPass(sampleRate, highPassCutoff, filterQ),
		lp:   newLowPass(sampleRate, lowPassCutoff, filterQ),
		gain: newGainStage(sampleRate, rampTime),
		comp: newCompressor(sampleRate),
		tap:  make([]float32, frameSize),
	}
}

// Process runs buf through every stage in place, then records the
// result in the analysis tap.
func (c *Chain) Process(buf []float32) {
	c.hp.process(buf)
	c.lp.process(buf)
	c.gain.process(buf)
	c.comp.process(buf)

	c.tapMu.Lock()
	copy(c.tap, buf)
	c.tapped = true
	c.tapMu.Unlock()
}

// SetGain sets the gain stage's ramp target. Safe to call while audio
// is being processed.
func (c *Chain) SetGain(v float64) {
	c.gain.setTarget(v)
}

// Gain returns the gain stage's current ramp target.
func (c *Chain) Gain() float64 {
	return c.gain.targetGain()
}

// ReadTap copies the most recently processed window into dst and
// reports whether a window was available. Before the first Process
// call it returns false and leaves dst untouched.
func (c *Chain) ReadTap(dst []float32) bool {
	c.tapMu.Lock()
	defer c.tapMu.Unlock()
	if !c.tapped {
		return false
	}
	copy(dst, c.tap)
	return true
}

// Reset clears the state of every stage and the tap. Each stage is
// reset independently so teardown always completes whole.
func (c *Chain) Reset() {
	c.hp.reset()
	c.lp.reset()
	c.gain.reset()
	c.comp.reset()

	c.tapMu.Lock()
	for i := range c.tap {
		c.tap[i] = 0
	}
	c.tapped = false
	c.tapMu.Unlock()
}
