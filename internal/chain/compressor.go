package chain

import (
	"math"
	"time"
)

// Fixed compressor tuning: tame peaks and even out dynamics without
// audible pumping. Configured once at construction, never at runtime.
const (
	compThresholdDB = -24.0
	compRatio       = 4.0
	compKneeDB      = 6.0
	compAttack      = 3 * time.Millisecond
	compRelease     = 150 * time.Millisecond
)

// compressor is a mono soft-knee dynamics compressor. A peak envelope
// follower with separate attack and release time constants feeds a
// dB-domain gain computer; the resulting reduction is applied per
// sample and the output hard-limited to [-1, 1].
type compressor struct {
	attackCoeff  float64
	releaseCoeff float64
	envelope     float64
}

func newCompressor(sampleRate float64) *compressor {
	return &compressor{
		attackCoeff:  envCoeff(compAttack, sampleRate),
		releaseCoeff: envCoeff(compRelease, sampleRate),
	}
}

// envCoeff converts a time constant to a per-sample smoothing
// coefficient: 1 - e^(-1/(t·fs)).
func envCoeff(t time.Duration, sampleRate float64) float64 {
	return 1 - math.Exp(-1/(t.Seconds()*sampleRate))
}

// process compresses buf in place.
func (c *compressor) process(buf []float32) {
	for i, s := range buf {
		level := math.Abs(float64(s))
		if level > c.envelope {
			c.envelope += c.attackCoeff * (level - c.envelope)
		} else {
			c.envelope += c.releaseCoeff * (level - c.envelope)
		}

		v := float64(s) * c.reductionFor(c.envelope)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		buf[i] = float32(v)
	}
}

// reductionFor returns the linear gain reduction for an envelope level.
// Below the knee region the signal passes untouched; inside the knee
// the reduction curve is quadratic; above it the full ratio applies.
func (c *compressor) reductionFor(level float64) float64 {
	if level <= 0 {
		return 1
	}
	levelDB := 20 * math.Log10(level)
	over := levelDB - compThresholdDB

	var reductionDB float64
	switch {
	case 2*over < -compKneeDB:
		return 1
	case 2*math.Abs(over) <= compKneeDB:
		d := over + compKneeDB/2
		reductionDB = (1/compRatio - 1) * d * d / (2 * compKneeDB)
	default:
		reductionDB = (1/compRatio - 1) * over
	}
	return math.Pow(10, reductionDB/20)
}

// reset clears the envelope follower.
func (c *compressor) reset() {
	c.envelope = 0
}
