// Package opusrec encodes the processed output stream to Opus for
// downstream recording. Packets are written with a uint16 big-endian
// length prefix, minimal framing that preserves packet boundaries
// without dragging in a container format.
package opusrec

import (
	"encoding/binary"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"
)

const (
	// maxPacketBytes is the RFC 6716 maximum Opus packet size.
	maxPacketBytes = 1275

	// DefaultBitrate suits voice recording.
	DefaultBitrate = 32000
)

// frameEncoder abstracts the Opus encoder for testing.
type frameEncoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

// Recorder encodes fixed-size float32 frames into Opus packets. Not
// safe for concurrent use; feed it from a single goroutine.
type Recorder struct {
	enc frameEncoder
	pcm []int16
	pkt []byte
}

// New returns a Recorder for the given stream geometry. frameSize must
// be an Opus-legal frame duration for sampleRate (e.g. 960 samples at
// 48 kHz).
func New(sampleRate, channels, frameSize, bitrate int) (*Recorder, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppVoIP)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	if err := enc.SetBitrate(bitrate); err != nil {
		return nil, fmt.Errorf("opus bitrate: %w", err)
	}
	return newWithEncoder(enc, frameSize), nil
}

func newWithEncoder(enc frameEncoder, frameSize int) *Recorder {
	return &Recorder{
		enc: enc,
		pcm: make([]int16, frameSize),
		pkt: make([]byte, maxPacketBytes),
	}
}

// WriteFrame encodes one frame and writes the length-prefixed packet
// to w. Samples are clamped to [-1, 1] before conversion.
func (r *Recorder) WriteFrame(w io.Writer, frame []float32) error {
	if len(frame) != len(r.pcm) {
		return fmt.Errorf("frame size %d, want %d", len(frame), len(r.pcm))
	}
	for i, s := range frame {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		r.pcm[i] = int16(s * 32767)
	}
	n, err := r.enc.Encode(r.pcm, r.pkt)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(n))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err = w.Write(r.pkt[:n])
	return err
}

// Record drains frames into w until the channel closes and returns the
// number of packets written.
func (r *Recorder) Record(frames <-chan []float32, w io.Writer) (int, error) {
	written := 0
	for frame := range frames {
		if err := r.WriteFrame(w, frame); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}
