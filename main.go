// micpipe runs a microphone (or a WAV file) through a fixed
// high-pass → low-pass → AGC → compressor chain and reports level
// telemetry. The processed stream can optionally be recorded as Opus
// packets or watched through a Prometheus endpoint.
package main

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/gordonklaus/portaudio"

	"github.com/rustyguts/micpipe/internal/config"
	"github.com/rustyguts/micpipe/internal/metrics"
	"github.com/rustyguts/micpipe/internal/opusrec"
	"github.com/rustyguts/micpipe/internal/processor"
	"github.com/rustyguts/micpipe/internal/wavsrc"
)

// CLI is the command-line surface. Tunable flags override the saved
// config for this run only.
type CLI struct {
	TargetRMS *float64 `help:"Desired output loudness (linear RMS)."`
	MinGain   *float64 `help:"Lower gain bound."`
	MaxGain   *float64 `help:"Upper gain bound."`
	Smoothing *float64 `help:"Per-cycle gain EMA factor in (0, 1]."`

	MetricsAddr string `help:"Serve Prometheus telemetry on this address (e.g. :9090)."`
	Record      string `help:"Write the processed stream as length-prefixed Opus packets to this file." type:"path"`

	Live    LiveCmd    `cmd:"" default:"1" help:"Process the microphone in real time."`
	Wav     WavCmd     `cmd:"" help:"Run the pipeline over a WAV file."`
	Devices DevicesCmd `cmd:"" help:"List audio input devices."`
}

// effectiveConfig is the saved config with flag overrides applied.
func (c *CLI) effectiveConfig() config.Config {
	cfg := config.Load()
	if c.TargetRMS != nil {
		cfg.TargetRMS = *c.TargetRMS
	}
	if c.MinGain != nil {
		cfg.MinGain = *c.MinGain
	}
	if c.MaxGain != nil {
		cfg.MaxGain = *c.MaxGain
	}
	if c.Smoothing != nil {
		cfg.Smoothing = *c.Smoothing
	}
	return cfg
}

// LiveCmd captures from a microphone until interrupted or a duration
// elapses.
type LiveCmd struct {
	Device   int           `short:"d" default:"-1" help:"Input device index (see the devices command)."`
	Duration time.Duration `help:"Stop after this long (0 = until interrupted)."`
}

func (l *LiveCmd) Run(cli *CLI) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()

	cfg := cli.effectiveConfig()
	src, err := openMic(l.Device, cfg.FrameSize, cfg.SampleRate)
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	return runSession(cli, cfg, src, l.Duration)
}

// WavCmd runs the pipeline over a WAV file at real-time pace.
type WavCmd struct {
	Path string `arg:"" type:"existingfile" help:"WAV file to process."`
}

func (w *WavCmd) Run(cli *CLI) error {
	cfg := cli.effectiveConfig()
	src, err := wavsrc.Open(w.Path, cfg.FrameSize, true)
	if err != nil {
		return err
	}
	cfg.SampleRate = src.SampleRate()

	dur, err := src.Duration()
	if err != nil {
		src.Close()
		return err
	}
	// Slack so the control loop can work through the file's tail.
	return runSession(cli, cfg, src, dur+500*time.Millisecond)
}

// DevicesCmd lists capture devices.
type DevicesCmd struct{}

func (DevicesCmd) Run(*CLI) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}
	defer portaudio.Terminate()
	for _, d := range listInputDevices() {
		fmt.Printf("%3d  %s\n", d.ID, d.Name)
	}
	return nil
}

// levelMeter prints a throttled one-line level readout.
type levelMeter struct {
	mu   sync.Mutex
	last time.Time
}

func (m *levelMeter) observe(s processor.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if time.Since(m.last) < 250*time.Millisecond {
		return
	}
	m.last = time.Now()
	gate := " "
	if s.NoiseGated {
		gate = "G"
	}
	fmt.Printf("\r[%s] rms %.4f  peak %.4f  floor %.4f  gain %.2fx   ",
		gate, s.RMS, s.Peak, s.NoiseFloor, s.Gain)
}

// runSession drives one pipeline session until the duration elapses or
// the process is interrupted.
func runSession(cli *CLI, cfg config.Config, src processor.Source, duration time.Duration) error {
	proc, err := processor.New(cfg)
	if err != nil {
		src.Close()
		return err
	}

	var col *metrics.Collector
	if cli.MetricsAddr != "" {
		col = metrics.New()
		mux := http.NewServeMux()
		mux.Handle("/metrics", col.Handler())
		srv := &http.Server{Addr: cli.MetricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Printf("[metrics] serve: %v", err)
			}
		}()
		defer srv.Close()
	}

	meter := &levelMeter{}
	proc.SetObserver(func(s processor.Snapshot) {
		meter.observe(s)
		if col != nil {
			col.Observe(s)
		}
	})

	out, err := proc.Start(src)
	if err != nil {
		return err
	}
	defer proc.Stop()

	// The output stream needs a consumer either way: the recorder, or a
	// plain drain.
	consumerDone := make(chan error, 1)
	if cli.Record != "" {
		f, err := os.Create(cli.Record)
		if err != nil {
			return err
		}
		rec, err := opusrec.New(int(cfg.SampleRate), 1, cfg.FrameSize, opusrec.DefaultBitrate)
		if err != nil {
			f.Close()
			return err
		}
		go func() {
			n, recErr := rec.Record(out, f)
			if cerr := f.Close(); recErr == nil {
				recErr = cerr
			}
			log.Printf("[record] %d packets written to %s", n, cli.Record)
			consumerDone <- recErr
		}()
	} else {
		go func() {
			for range out {
			}
			consumerDone <- nil
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	var timeout <-chan time.Time
	if duration > 0 {
		timeout = time.After(duration)
	}

	select {
	case <-sig:
		fmt.Println()
		log.Println("[micpipe] interrupted")
	case <-timeout:
		fmt.Println()
	}

	proc.Stop()
	return <-consumerDone
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli,
		kong.Name("micpipe"),
		kong.Description("Real-time microphone AGC and noise gating."),
		kong.UsageOnError(),
	)
	if err := ctx.Run(cli); err != nil {
		log.Fatalf("[micpipe] %v", err)
	}
}
