package main

import (
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// AudioDevice describes an available audio input device.
type AudioDevice struct {
	ID   int
	Name string
}

// listInputDevices returns devices capable of capture.
func listInputDevices() []AudioDevice {
	devices, err := portaudio.Devices()
	if err != nil {
		log.Printf("[audio] list devices: %v", err)
		return nil
	}
	var out []AudioDevice
	for i, d := range devices {
		if d.MaxInputChannels > 0 {
			out = append(out, AudioDevice{ID: i, Name: d.Name})
		}
	}
	return out
}

// resolveDevice returns the device at idx if valid, otherwise calls fallback.
func resolveDevice(devices []*portaudio.DeviceInfo, idx int, fallback func() (*portaudio.DeviceInfo, error)) (*portaudio.DeviceInfo, error) {
	if idx >= 0 && idx < len(devices) {
		return devices[idx], nil
	}
	return fallback()
}

// micSource adapts a PortAudio capture stream to the processor's
// Source interface.
type micSource struct {
	stream *portaudio.Stream
	buf    []float32

	mu     sync.Mutex
	closed bool
}

// openMic opens and starts a mono capture stream on the given device
// (-1 selects the system default).
func openMic(deviceID, frameSize int, sampleRate float64) (*micSource, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, err
	}
	dev, err := resolveDevice(devices, deviceID, portaudio.DefaultInputDevice)
	if err != nil {
		return nil, err
	}

	buf := make([]float32, frameSize)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      sampleRate,
		FramesPerBuffer: frameSize,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, err
	}
	log.Printf("[audio] capturing from %s", dev.Name)
	return &micSource{stream: stream, buf: buf}, nil
}

// ReadFrame blocks until the next capture buffer is available.
func (m *micSource) ReadFrame(buf []float32) error {
	if err := m.stream.Read(); err != nil {
		return err
	}
	copy(buf, m.buf)
	return nil
}

// Close stops the stream first so a blocked Read returns, then frees
// it. Closing while a read is in flight can fault inside PortAudio.
func (m *micSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if err := m.stream.Stop(); err != nil {
		log.Printf("[audio] stream stop: %v", err)
	}
	return m.stream.Close()
}
