// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"auviz/internal/config"
	applog "auviz/internal/log"
)

// LoopbackStream is the thread-driven capture shape used for monitor and
// loopback sources, where blocking reads behave better than callbacks on
// some hosts. It owns a goroutine that reads the stream and pushes chunks;
// Stop signals the goroutine and joins it before closing the stream.
// It satisfies the same Capture contract as Stream.
type LoopbackStream struct {
	info       *portaudio.DeviceInfo
	stream     *portaudio.Stream
	ring       *Ring
	sampleRate float64
	channels   int
	frames     int
	latency    time.Duration

	readBuf []float32

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	active atomic.Bool
	drops  atomic.Uint64
}

var _ Capture = (*LoopbackStream)(nil)

// NewLoopbackStream resolves a loopback-capable input and prepares a
// blocking-read capture stream feeding the given ring.
func NewLoopbackStream(cfg *config.Config, ring *Ring) (*LoopbackStream, error) {
	info, err := InputDevice(cfg.Audio.Device, true)
	if err != nil {
		return nil, err
	}

	channels := cfg.Audio.Channels
	if channels > info.MaxInputChannels {
		channels = info.MaxInputChannels
	}

	s := &LoopbackStream{
		info:       info,
		ring:       ring,
		sampleRate: cfg.Audio.SampleRate,
		channels:   channels,
		frames:     cfg.Audio.FramesPerBuffer,
		readBuf:    make([]float32, cfg.Audio.FramesPerBuffer*channels),
	}
	if cfg.Audio.LowLatency {
		s.latency = info.DefaultLowInputLatency
	} else {
		s.latency = info.DefaultHighInputLatency
	}
	return s, nil
}

// DeviceName returns the resolved device name.
func (s *LoopbackStream) DeviceName() string {
	return s.info.Name
}

// Start opens the stream in blocking-read mode and launches the capture
// goroutine. It returns once the backend confirms the stream running.
func (s *LoopbackStream) Start() error {
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: s.channels,
			Device:   s.info,
			Latency:  s.latency,
		},
		FramesPerBuffer: s.frames,
		SampleRate:      s.sampleRate,
	}

	stream, err := portaudio.OpenStream(params, s.readBuf)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfig, err)
	}
	s.stream = stream

	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		s.stream = nil
		return fmt.Errorf("%w: %v", ErrStream, err)
	}

	s.doneChan = make(chan struct{})
	s.stopOnce = sync.Once{}
	s.active.Store(true)

	s.wg.Add(1)
	go s.captureLoop()
	return nil
}

// captureLoop blocks on stream reads until Stop signals done or the device
// is lost. A read error only flips the active flag; the frame loop notices
// it on the next poll.
func (s *LoopbackStream) captureLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.doneChan:
			return
		default:
		}

		if err := s.stream.Read(); err != nil {
			applog.Debugf("Loopback: stream read failed: %v", err)
			s.active.Store(false)
			return
		}

		mono := downmix(s.readBuf, s.channels)
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
}

// Stop signals the capture goroutine, joins it, and closes the stream.
// Idempotent.
func (s *LoopbackStream) Stop() error {
	s.active.Store(false)
	if s.stream == nil {
		return nil
	}

	s.stopOnce.Do(func() {
		close(s.doneChan)
	})

	// Abort unblocks the pending Read so the goroutine can observe done.
	if err := s.stream.Abort(); err != nil {
		applog.Debugf("Loopback: stream abort: %v", err)
	}
	s.wg.Wait()

	if err := s.stream.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrStream, err)
	}
	s.stream = nil
	return nil
}

// Active reports whether the capture goroutine is still delivering audio.
func (s *LoopbackStream) Active() bool {
	return s.active.Load()
}

// ReadChunk returns the next buffered chunk without blocking.
func (s *LoopbackStream) ReadChunk() (*Chunk, bool) {
	return s.ring.Pop()
}

// Drops returns the number of evicted chunks. Diagnostic only.
func (s *LoopbackStream) Drops() uint64 {
	return s.drops.Load()
}
