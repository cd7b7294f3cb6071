// Package metrics exposes pipeline telemetry as Prometheus gauges so a
// long-running capture session can be watched from the outside.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyguts/micpipe/internal/processor"
)

// Collector tracks the latest telemetry snapshot in a dedicated
// registry.
type Collector struct {
	registry *prometheus.Registry

	rms        prometheus.Gauge
	gain       prometheus.Gauge
	noiseFloor prometheus.Gauge
	peak       prometheus.Gauge
	gated      prometheus.Gauge
}

// New returns a Collector with all gauges registered.
func New() *Collector {
	reg := prometheus.NewRegistry()
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "micpipe",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(g)
		return g
	}
	return &Collector{
		registry:   reg,
		rms:        gauge("rms", "RMS level of the last analyzed window."),
		gain:       gauge("gain", "Live linear gain multiplier."),
		noiseFloor: gauge("noise_floor", "Current ambient noise estimate."),
		peak:       gauge("peak", "Peak absolute amplitude of the last window."),
		gated:      gauge("noise_gated", "1 while the input is classified as background noise."),
	}
}

// Observe updates the gauges from one telemetry snapshot. It satisfies
// processor.Observer.
func (c *Collector) Observe(s processor.Snapshot) {
	c.rms.Set(s.RMS)
	c.gain.Set(s.Gain)
	c.noiseFloor.Set(s.NoiseFloor)
	c.peak.Set(s.Peak)
	if s.NoiseGated {
		c.gated.Set(1)
	} else {
		c.gated.Set(0)
	}
}

// Handler returns the scrape endpoint for the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
