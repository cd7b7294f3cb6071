// Package config holds the per-session tunables for the gain pipeline.
// A Config is immutable for the lifetime of a session. Settings persist
// as JSON at os.UserConfigDir()/micpipe/config.json.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// ErrInvalidConfiguration marks out-of-range tunables detected at
// construction. Use errors.Is to test for it.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Config holds all pipeline tunables.
type Config struct {
	// SampleRate is the source sample rate in Hz.
	SampleRate float64 `json:"sample_rate"`
	// FrameSize is the window length in samples fed to each stage.
	FrameSize int `json:"frame_size"`
	// TickInterval paces the control loop.
	TickInterval time.Duration `json:"tick_interval"`

	// TargetRMS is the desired output loudness (linear).
	TargetRMS float64 `json:"target_rms"`
	// MinGain and MaxGain bound the live gain multiplier.
	MinGain float64 `json:"min_gain"`
	MaxGain float64 `json:"max_gain"`
	// Smoothing is the per-cycle EMA factor in (0, 1].
	Smoothing float64 `json:"smoothing"`
	// NoiseWindow is the number of RMS readings kept for the noise
	// floor estimate.
	NoiseWindow int `json:"noise_window"`
	// GateMargin scales the noise floor into the gate threshold.
	GateMargin float64 `json:"gate_margin"`
	// GainRampTime is the gain stage's parameter smoothing time.
	GainRampTime time.Duration `json:"gain_ramp_time"`
}

// Default returns a Config tuned for 48 kHz mono capture in 20 ms
// frames.
func Default() Config {
	return Config{
		SampleRate:   48000,
		FrameSize:    960,
		TickInterval: 16 * time.Millisecond,
		TargetRMS:    0.18,
		MinGain:      0.5,
		MaxGain:      8.0,
		Smoothing:    0.05,
		NoiseWindow:  50,
		GateMargin:   2.5,
		GainRampTime: 50 * time.Millisecond,
	}
}

// Validate reports the first out-of-range tunable, wrapped in
// ErrInvalidConfiguration.
func (c Config) Validate() error {
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
	}
	for name, v := range map[string]float64{
		"sample_rate": c.SampleRate,
		"target_rms":  c.TargetRMS,
		"min_gain":    c.MinGain,
		"max_gain":    c.MaxGain,
		"smoothing":   c.Smoothing,
		"gate_margin": c.GateMargin,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return bad("%s is not finite: %f", name, v)
		}
	}
	if c.SampleRate <= 0 {
		return bad("sample_rate must be positive: %f", c.SampleRate)
	}
	if c.FrameSize < 1 {
		return bad("frame_size must be at least 1: %d", c.FrameSize)
	}
	if c.TickInterval <= 0 {
		return bad("tick_interval must be positive: %v", c.TickInterval)
	}
	if c.TargetRMS <= 0 {
		return bad("target_rms must be positive: %f", c.TargetRMS)
	}
	if c.MinGain <= 0 {
		return bad("min_gain must be positive: %f", c.MinGain)
	}
	if c.MinGain > c.MaxGain {
		return bad("min_gain %f exceeds max_gain %f", c.MinGain, c.MaxGain)
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		return bad("smoothing must be in (0, 1]: %f", c.Smoothing)
	}
	if c.NoiseWindow < 1 {
		return bad("noise_window must be at least 1: %d", c.NoiseWindow)
	}
	if c.GateMargin <= 0 {
		return bad("gate_margin must be positive: %f", c.GateMargin)
	}
	if c.GainRampTime < 0 {
		return bad("gain_ramp_time must not be negative: %v", c.GainRampTime)
	}
	return nil
}

// Path returns the location of the config file.
func Path() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "micpipe", "config.json"), nil
}

// Load reads the config file and returns it. If the file is missing or
// unreadable, the default config is returned, never an error.
func Load() Config {
	path, err := Path()
	if err != nil {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Default()
	}
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Default()
	}
	return cfg
}

// Save writes cfg to disk, creating the directory if needed.
func Save(cfg Config) error {
	path, err := Path()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
