// Package processor owns the lifetime of one gain-control session: it
// routes an audio source through the signal path, runs the periodic
// control loop (analyze → estimate noise floor → adjust gain), and
// publishes telemetry snapshots.
//
// Two goroutines run per session. The read loop is paced by the source
// and pushes each window through the signal path; the control loop is
// paced by a ticker (default 16 ms) and is the only writer of the
// adaptive state. One goroutine per concern, so a control cycle can
// never overlap itself.
package processor

import (
	"errors"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rustyguts/micpipe/internal/agc"
	"github.com/rustyguts/micpipe/internal/chain"
	"github.com/rustyguts/micpipe/internal/config"
	"github.com/rustyguts/micpipe/internal/frame"
	"github.com/rustyguts/micpipe/internal/noisefloor"
)

// ErrSourceUnavailable is returned by Start when no audio source is
// provided.
var ErrSourceUnavailable = errors.New("no audio source available")

// outChannelBuf is the output channel depth: ~600 ms of 20 ms frames.
// Frames are dropped rather than blocking the audio path when the
// consumer falls behind.
const outChannelBuf = 30

// Source is the opaque audio input handle. Acquisition and permission
// handling belong to the caller; the processor only distinguishes
// "provided" from "not provided".
type Source interface {
	// ReadFrame fills buf with the next window of mono float32 samples
	// in [-1, 1]. A blocked call must return once Close is called.
	ReadFrame(buf []float32) error
	Close() error
}

// Observer receives one telemetry snapshot per control cycle. It is
// invoked synchronously on the control goroutine; a panicking observer
// is recovered and logged, never allowed to abort the loop.
type Observer func(Snapshot)

// Processor runs the AGC and noise-gating pipeline for one session at
// a time. Zero value is not usable; use New().
type Processor struct {
	cfg config.Config

	running atomic.Bool
	mu      sync.Mutex // guards the session fields below across start/stop
	src     Source
	path    *chain.Chain
	out     chan []float32
	stopCh  chan struct{}
	wg      sync.WaitGroup
	session string

	// Adaptive state, written only by the control goroutine.
	floor  *noisefloor.Estimator
	ctrl   *agc.Controller
	tapBuf []float32

	obsMu    sync.Mutex
	observer Observer

	statsMu sync.Mutex
	stats   Snapshot
}

// New returns an idle Processor. The configuration is validated once
// here and immutable afterwards.
func New(cfg config.Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{
		cfg:   cfg,
		floor: noisefloor.New(cfg.NoiseWindow),
		ctrl:  agc.New(cfg.TargetRMS, cfg.MinGain, cfg.MaxGain, cfg.Smoothing, cfg.GateMargin),
	}, nil
}

// SetObserver registers fn to receive a snapshot each control cycle.
// Pass nil to unregister. Safe to call while running.
func (p *Processor) SetObserver(fn Observer) {
	p.obsMu.Lock()
	p.observer = fn
	p.obsMu.Unlock()
}

// Stats returns a copy of the last published snapshot.
func (p *Processor) Stats() Snapshot {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()
	return p.stats
}

// Active reports whether a session is currently running.
func (p *Processor) Active() bool { return p.running.Load() }

// Start begins a session reading from src and returns the processed
// output stream. Frames arrive on the returned channel until Stop,
// which closes it. Starting while already active stops the previous
// session first.
func (p *Processor) Start(src Source) (<-chan []float32, error) {
	if src == nil {
		return nil, ErrSourceUnavailable
	}
	p.Stop()

	p.mu.Lock()
	defer p.mu.Unlock()

	p.path = chain.New(p.cfg.SampleRate, p.cfg.FrameSize, p.cfg.GainRampTime)
	p.floor.Reset()
	p.ctrl.Reset()
	p.path.SetGain(p.ctrl.Gain())
	p.tapBuf = make([]float32, p.cfg.FrameSize)

	p.src = src
	p.out = make(chan []float32, outChannelBuf)
	p.stopCh = make(chan struct{})
	p.session = uuid.NewString()

	p.statsMu.Lock()
	p.stats = Snapshot{}
	p.statsMu.Unlock()

	p.running.Store(true)
	p.wg.Add(2)
	path, out, stop := p.path, p.out, p.stopCh
	go func() { defer p.wg.Done(); p.readLoop(src, path, out, stop) }()
	go func() { defer p.wg.Done(); p.controlLoop(path, stop) }()

	log.Printf("[processor] session %s started", p.session)
	return p.out, nil
}

// Stop ends the current session: the control loop is cancelled, the
// source released, the output channel closed, and all state reset.
// Safe to call repeatedly or when never started; a no-op then.
// Teardown always completes; a failing source close is logged and
// swallowed.
func (p *Processor) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}

	p.mu.Lock()
	close(p.stopCh)
	// Close the source first: it unblocks a read in flight so the read
	// loop can exit before we wait on it.
	if err := p.src.Close(); err != nil {
		log.Printf("[processor] source close: %v", err)
	}
	p.mu.Unlock()

	p.wg.Wait()

	p.mu.Lock()
	close(p.out)
	p.path.Reset()
	p.path = nil
	p.src = nil
	p.out = nil
	p.statsMu.Lock()
	p.stats = Snapshot{}
	p.statsMu.Unlock()
	log.Printf("[processor] session %s stopped", p.session)
	p.mu.Unlock()
}

// readLoop pushes source windows through the signal path and fans the
// processed frames out to the output channel. It exits when the source
// errors or the session stops.
func (p *Processor) readLoop(src Source, path *chain.Chain, out chan<- []float32, stop <-chan struct{}) {
	buf := make([]float32, p.cfg.FrameSize)
	for p.running.Load() {
		if err := src.ReadFrame(buf); err != nil {
			if p.running.Load() && !errors.Is(err, io.EOF) {
				log.Printf("[processor] source read: %v", err)
			}
			return
		}
		select {
		case <-stop:
			return
		default:
		}

		path.Process(buf)

		processed := make([]float32, len(buf))
		copy(processed, buf)
		select {
		case out <- processed:
		default: // consumer behind: drop rather than stall the audio path
		}
	}
}

// controlLoop runs one cycle per tick until the session stops. An
// in-flight cycle completes but never reschedules after stop.
func (p *Processor) controlLoop(path *chain.Chain, stop <-chan struct{}) {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.cycle(path)
		}
	}
}

// cycle is the single entry point mutating the adaptive state: read
// the analysis tap, measure, update the floor estimate, step the gain
// controller, feed the new gain back into the path, publish telemetry.
// No blocking work happens here.
func (p *Processor) cycle(path *chain.Chain) {
	if !path.ReadTap(p.tapBuf) {
		return // nothing captured yet
	}
	rms, peak := frame.Analyze(p.tapBuf)
	floor := p.floor.Update(rms)
	gain, gated := p.ctrl.Step(rms, floor)
	path.SetGain(gain)
	p.publish(Snapshot{
		RMS:        rms,
		Gain:       gain,
		NoiseFloor: floor,
		Peak:       peak,
		NoiseGated: gated,
	})
}

// publish overwrites the stats snapshot and notifies the observer with
// a copy. Observer failures must not reach the control loop.
func (p *Processor) publish(s Snapshot) {
	p.statsMu.Lock()
	p.stats = s
	p.statsMu.Unlock()

	p.obsMu.Lock()
	fn := p.observer
	p.obsMu.Unlock()
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[processor] observer panic: %v", r)
		}
	}()
	fn(s)
}
