// Package frame measures the level of one window of mono float32 PCM
// audio: RMS loudness and peak absolute amplitude.
package frame

import "math"

// Analyze returns the RMS level and peak absolute amplitude of buf.
// Pure function of its input; an empty or all-zero buffer yields (0, 0).
func Analyze(buf []float32) (rms, peak float64) {
	if len(buf) == 0 {
		return 0, 0
	}
	var sum float64
	for _, s := range buf {
		v := float64(s)
		sum += v * v
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return math.Sqrt(sum / float64(len(buf))), peak
}
