// Package wavsrc adapts a RIFF/WAV file to the processor's Source
// interface so the pipeline can be run offline over recorded material.
// Multi-channel files are mixed down to mono and integer PCM is
// normalized to [-1, 1].
package wavsrc

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Source reads fixed-size mono frames from a WAV file. When paced, each
// read sleeps one frame duration so the pipeline behaves as it would on
// a live capture stream.
type Source struct {
	f         *os.File
	dec       *wav.Decoder
	frameSize int
	channels  int
	scale     float64
	paced     bool
	interval  time.Duration
	pcm       *audio.IntBuffer
	closed    atomic.Bool
}

// Open prepares path for frame reads of frameSize samples. If paced is
// true, reads are throttled to real time.
func Open(path string, frameSize int, paced bool) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}
	if dec.BitDepth != 16 && dec.BitDepth != 24 && dec.BitDepth != 32 {
		f.Close()
		return nil, fmt.Errorf("%s: unsupported bit depth %d", path, dec.BitDepth)
	}
	if dec.NumChans < 1 {
		f.Close()
		return nil, fmt.Errorf("%s: no audio channels", path)
	}

	channels := int(dec.NumChans)
	rate := int(dec.SampleRate)
	return &Source{
		f:         f,
		dec:       dec,
		frameSize: frameSize,
		channels:  channels,
		scale:     float64(int(1) << (dec.BitDepth - 1)),
		paced:     paced,
		interval:  time.Duration(frameSize) * time.Second / time.Duration(rate),
		pcm: &audio.IntBuffer{
			Data:   make([]int, frameSize*channels),
			Format: &audio.Format{NumChannels: channels, SampleRate: rate},
		},
	}, nil
}

// SampleRate returns the file's sample rate in Hz.
func (s *Source) SampleRate() float64 { return float64(s.dec.SampleRate) }

// Duration returns the total playing time of the file.
func (s *Source) Duration() (time.Duration, error) { return s.dec.Duration() }

// ReadFrame fills buf with the next mono frame, zero-padding a short
// final read. Returns io.EOF once the file is exhausted.
func (s *Source) ReadFrame(buf []float32) error {
	if s.closed.Load() {
		return io.EOF
	}
	n, err := s.dec.PCMBuffer(s.pcm)
	if err != nil {
		return err
	}
	if n == 0 {
		return io.EOF
	}

	frames := n / s.channels
	for i := range buf {
		if i >= frames {
			buf[i] = 0
			continue
		}
		var sum float64
		for c := 0; c < s.channels; c++ {
			sum += float64(s.pcm.Data[i*s.channels+c])
		}
		buf[i] = float32(sum / float64(s.channels) / s.scale)
	}

	if s.paced {
		time.Sleep(s.interval)
	}
	return nil
}

// Close releases the underlying file. Safe to call more than once.
func (s *Source) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	return s.f.Close()
}
