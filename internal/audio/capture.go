// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"auviz/internal/config"
)

// Stream is the callback-driven capture shape. The hardware callback
// downmixes each buffer to mono, wraps it in a timestamped chunk, and pushes
// it into the ring. The only allocation in the callback is the chunk buffer
// itself, whose ownership transfers to the ring slot.
type Stream struct {
	info       *portaudio.DeviceInfo
	stream     *portaudio.Stream
	ring       *Ring
	sampleRate float64
	channels   int
	frames     int
	latency    time.Duration

	active atomic.Bool
	drops  atomic.Uint64
}

var _ Capture = (*Stream)(nil)

// NewStream resolves the configured input device and prepares a callback
// capture stream feeding the given ring.
func NewStream(cfg *config.Config, ring *Ring) (*Stream, error) {
	info, err := InputDevice(cfg.Audio.Device, cfg.Audio.Loopback)
	if err != nil {
		return nil, err
	}

	channels := cfg.Audio.Channels
	if channels > info.MaxInputChannels {
		channels = info.MaxInputChannels
	}

	s := &Stream{
		info:       info,
		ring:       ring,
		sampleRate: cfg.Audio.SampleRate,
		channels:   channels,
		frames:     cfg.Audio.FramesPerBuffer,
	}
	if cfg.Audio.LowLatency {
		s.latency = info.DefaultLowInputLatency
	} else {
		s.latency = info.DefaultHighInputLatency
	}
	return s, nil
}

// DeviceName returns the resolved device name.
func (s *Stream) DeviceName() string {
	return s.info.Name
}

// Start opens the stream and returns once the backend confirms it running.
func (s *Stream) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: s.channels,
			Device:   s.info,
			Latency:  s.latency,
		},
		FramesPerBuffer: s.frames,
		SampleRate:      s.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.onInput)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	s.stream = stream

	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		s.stream = nil
		return fmt.Errorf("%w: %v", ErrStream, err)
	}

	s.active.Store(true)
	return nil
}

// Stop halts capture. Idempotent.
func (s *Stream) Stop() error {
	s.active.Store(false)
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return fmt.Errorf("%w: %v", ErrStream, err)
	}
	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStream, err)
	}
	s.stream = nil
	return nil
}

// Active reports whether the stream is still delivering audio. The frame
// loop polls this once per tick; there is no async loss notification.
func (s *Stream) Active() bool {
	return s.active.Load()
}

// ReadChunk returns the next buffered chunk without blocking.
func (s *Stream) ReadChunk() (*Chunk, bool) {
	return s.ring.Pop()
}

// Drops returns the number of chunks evicted because the frame loop fell
// behind. Diagnostic only.
func (s *Stream) Drops() uint64 {
	return s.drops.Load()
}

// onInput is the hardware callback.
// Performance critical: no locks held across the consumer, no I/O, and no
// allocation beyond the chunk buffer handed to the ring.
func (s *Stream) onInput(in []float32) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if len(in) == 0 {
		// Empty buffers mean the device went away; never enqueue them.
		s.active.Store(false)
		return
	}

	mono := downmix(in, s.channels)
	chunk := &Chunk{
		Samples:    mono,
		SampleRate: s.sampleRate,
		Channels:   1,
		Timestamp:  time.Now(),
	}
	if !s.ring.Push(chunk) {
		s.drops.Add(1)
	}
}

// downmix averages interleaved frames into a fresh mono buffer.
func downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		mono := make([]float32, len(in))
		copy(mono, in)
		return mono
	}

	frames := len(in) / channels
	mono := make([]float32, frames)
	scale := 1 / float32(channels)
	for f := range frames {
		var sum float32
		base := f * channels
		for c := range channels {
			sum += in[base+c]
		}
		mono[f] = sum * scale
	}
	return mono
}
