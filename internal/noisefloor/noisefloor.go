// Package noisefloor tracks a running estimate of the ambient noise
// level from recent per-frame RMS readings.
//
// The estimate is the 10th percentile of a bounded FIFO window of
// readings. The minimum would be dragged down by a single silent frame
// and the mean is biased upward by speech frames; a low percentile
// follows ambient noise while rejecting occasional speech
// contamination of the window.
package noisefloor

import (
	"math"
	"sort"
)

const (
	// DefaultFloor is returned while no reading has been recorded. Small
	// but positive so the first control cycles never work against a
	// near-zero floor.
	DefaultFloor = 0.005

	// DefaultWindow is the number of recent RMS readings retained.
	DefaultWindow = 50

	// percentile is the rank used for the floor estimate.
	percentile = 0.1
)

// Estimator derives a noise floor from a bounded window of RMS
// readings. Zero value is not usable; use New().
type Estimator struct {
	window  int
	history []float64
	scratch []float64 // sorted copy, reused across updates
}

// New returns an Estimator holding up to window readings. A window
// below 1 falls back to DefaultWindow.
func New(window int) *Estimator {
	if window < 1 {
		window = DefaultWindow
	}
	return &Estimator{
		window:  window,
		history: make([]float64, 0, window),
		scratch: make([]float64, 0, window),
	}
}

// Update records one RMS reading and returns the current floor
// estimate. The oldest reading is evicted once the window is full.
// Invalid readings (NaN, Inf, negative) are ignored rather than
// allowed to poison the window.
func (e *Estimator) Update(rms float64) float64 {
	if !math.IsNaN(rms) && !math.IsInf(rms, 0) && rms >= 0 {
		if len(e.history) >= e.window {
			copy(e.history, e.history[1:])
			e.history = e.history[:len(e.history)-1]
		}
		e.history = append(e.history, rms)
	}
	return e.Floor()
}

// Floor returns the current estimate without recording a reading:
// the value at the 10th percentile of the sorted window, or
// DefaultFloor while the window is empty.
func (e *Estimator) Floor() float64 {
	if len(e.history) == 0 {
		return DefaultFloor
	}
	e.scratch = append(e.scratch[:0], e.history...)
	sort.Float64s(e.scratch)
	idx := int(float64(len(e.scratch)) * percentile)
	if idx >= len(e.scratch) {
		idx = len(e.scratch) - 1
	}
	return e.scratch[idx]
}

// Len returns the number of readings currently held.
func (e *Estimator) Len() int { return len(e.history) }

// Reset discards all recorded readings.
func (e *Estimator) Reset() {
	e.history = e.history[:0]
}
