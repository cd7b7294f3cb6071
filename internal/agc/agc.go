// Package agc implements the control loop of an automatic gain control
// processor.
//
// Each cycle the controller classifies the measured frame as background
// noise or signal against the tracked noise floor, derives the gain that
// would bring the frame to the target RMS level, clamps it to the
// configured bounds, and moves the live gain toward it with exponential
// smoothing. Smoothing is the anti-oscillation mechanism: the applied
// gain feeds back into the next cycle's measurement, and an undamped
// loop would hunt or clip. Frames classified as noise never adjust the
// gain; adapting on silence would drive gain to the maximum and cause
// a level jump when speech resumes.
package agc

import "math"

// minAudibleRMS is the level below which a frame is too quiet to
// classify; gain holds rather than chasing near-silence.
const minAudibleRMS = 0.001

// Controller holds the adaptive gain state for one session. Zero value
// is not usable; use New().
type Controller struct {
	targetRMS  float64
	minGain    float64
	maxGain    float64
	smoothing  float64 // EMA factor in (0, 1]
	gateMargin float64 // noise gate threshold = floor * gateMargin

	gain float64
}

// New returns a Controller with unity gain clamped into
// [minGain, maxGain]. Parameter validation is the caller's concern;
// the controller itself never fails.
func New(targetRMS, minGain, maxGain, smoothing, gateMargin float64) *Controller {
	return &Controller{
		targetRMS:  targetRMS,
		minGain:    minGain,
		maxGain:    maxGain,
		smoothing:  smoothing,
		gateMargin: gateMargin,
		gain:       clamp(1.0, minGain, maxGain),
	}
}

// Step runs one control cycle against the measured frame RMS and the
// current noise floor estimate. It returns the updated gain and whether
// the frame was classified as noise (gated).
//
// The noise classification is a plain threshold with no hysteresis;
// readings oscillating near floor*gateMargin flip the gate each cycle.
// That threshold behavior is kept exact for compatibility and must not
// be smoothed here.
func (c *Controller) Step(rms, floor float64) (gain float64, gated bool) {
	// An invalid reading must never reach the gain arithmetic: the
	// result drives a live audio parameter.
	if math.IsNaN(rms) || math.IsInf(rms, 0) {
		return c.gain, false
	}

	if rms < floor*c.gateMargin {
		return c.gain, true
	}

	if rms <= minAudibleRMS {
		// Too quiet to classify as signal; hold the last smoothed gain.
		return c.gain, false
	}

	desired := c.targetRMS / math.Max(rms, minAudibleRMS)
	desired = clamp(desired, c.minGain, c.maxGain)

	// EMA toward the clamped target, never a direct assignment. A single
	// transient nudges gain only slightly; a sustained level change
	// pulls it to target over several cycles. The blend of two values
	// already inside [minGain, maxGain] cannot leave the range.
	c.gain += (desired - c.gain) * c.smoothing

	return c.gain, false
}

// Gain returns the current linear gain multiplier.
func (c *Controller) Gain() float64 { return c.gain }

// Reset returns the gain to its initial clamped-unity value.
func (c *Controller) Reset() {
	c.gain = clamp(1.0, c.minGain, c.maxGain)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
