package processor

// Snapshot is the telemetry published once per control cycle. Consumers
// always receive a copy; mutating it cannot corrupt pipeline state.
type Snapshot struct {
	// RMS is the measured loudness of the last analyzed window,
	// post-processing.
	RMS float64 `json:"rms"`
	// Gain is the live linear gain multiplier, always within the
	// configured [MinGain, MaxGain].
	Gain float64 `json:"gain"`
	// NoiseFloor is the current ambient noise estimate.
	NoiseFloor float64 `json:"noise_floor"`
	// Peak is the peak absolute amplitude of the last window.
	Peak float64 `json:"peak"`
	// NoiseGated reports whether the last window was classified as
	// background noise (gain held).
	NoiseGated bool `json:"noise_gated"`
}
