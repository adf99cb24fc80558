// SPDX-License-Identifier: MIT
package engine

import (
	"errors"
	"testing"
	"time"

	"auviz/internal/audio"
	"auviz/internal/config"
	"auviz/internal/dsp"
	"auviz/internal/transport"
	"auviz/pkg/utils"
)

// scriptedCapture feeds a fixed sequence of chunks and records calls.
type scriptedCapture struct {
	chunks    []*audio.Chunk
	active    bool
	startErrs []error
	starts    int
}

func (c *scriptedCapture) Start() error {
	c.starts++
	if len(c.startErrs) > 0 {
		err := c.startErrs[0]
		c.startErrs = c.startErrs[1:]
		return err
	}
	c.active = true
	return nil
}

func (c *scriptedCapture) Stop() error {
	c.active = false
	return nil
}

func (c *scriptedCapture) Active() bool {
	return c.active
}

func (c *scriptedCapture) ReadChunk() (*audio.Chunk, bool) {
	if len(c.chunks) == 0 {
		return nil, false
	}
	chunk := c.chunks[0]
	c.chunks = c.chunks[1:]
	return chunk, true
}

// captureSink records every published snapshot.
type captureSink struct {
	published []dsp.Parameters
}

func (s *captureSink) Publish(params dsp.Parameters) error {
	s.published = append(s.published, params)
	return nil
}

func (s *captureSink) Close() error { return nil }

var _ transport.Sink = (*captureSink)(nil)

func toneChunk(t *testing.T) *audio.Chunk {
	t.Helper()
	return &audio.Chunk{
		Samples:    utils.GenerateSineWave(2048, 44100, 440),
		SampleRate: 44100,
		Channels:   1,
		Timestamp:  time.Now(),
	}
}

func newTestScheduler(t *testing.T, cfg *config.Config, dev audio.Capture) *Scheduler {
	t.Helper()
	spectral, err := dsp.NewSpectral(cfg.Audio.SampleRate, cfg.Analysis.WindowSize)
	if err != nil {
		t.Fatalf("NewSpectral: %v", err)
	}
	return New(cfg, dev, spectral)
}

func TestTickActiveThenDecaying(t *testing.T) {
	cfg := config.Default()
	dev := &scriptedCapture{chunks: []*audio.Chunk{toneChunk(t)}, active: true}
	s := newTestScheduler(t, cfg, dev)

	now := time.Now()
	out := s.tick(now)
	if s.State() != StateActive {
		t.Fatal("tick with a fresh chunk should be Active")
	}
	if out.Amplitude <= 0 {
		t.Fatalf("Amplitude = %f, want > 0 for a tone", out.Amplitude)
	}
	if out.Timestamp != now {
		t.Error("snapshot not stamped with the tick time")
	}

	// The ring is now empty: K consecutive silent frames must never let
	// the emitted amplitude spike; it decreases or rests at zero.
	const k = 10
	prev := out.Amplitude
	for i := range k {
		out = s.tick(now.Add(time.Duration(i+1) * 16 * time.Millisecond))
		if s.State() != StateDecaying {
			t.Fatalf("frame %d: state = %v, want Decaying", i, s.State())
		}
		if out.Amplitude > prev {
			t.Fatalf("frame %d: amplitude rose from %f to %f during decay", i, prev, out.Amplitude)
		}
		if out.Amplitude != 0 && out.Amplitude >= prev {
			t.Fatalf("frame %d: amplitude %f did not strictly decrease", i, out.Amplitude)
		}
		prev = out.Amplitude
	}
}

func TestTickSquelchZeroesQuietMicInput(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.Squelch = 0.05
	cfg.Audio.Loopback = false

	quiet := &audio.Chunk{
		Samples:    utils.GenerateSineWave(2048, 44100, 440),
		SampleRate: 44100,
		Channels:   1,
		Timestamp:  time.Now(),
	}
	for i := range quiet.Samples {
		quiet.Samples[i] *= 0.01 // well below the floor
	}

	dev := &scriptedCapture{chunks: []*audio.Chunk{quiet}, active: true}
	s := newTestScheduler(t, cfg, dev)

	out := s.tick(time.Now())
	if s.State() != StateActive {
		t.Error("squelched frame is still Active; audio did arrive")
	}
	if out.Bass != 0 || out.Mid != 0 || out.Treble != 0 || out.Amplitude != 0 {
		t.Errorf("squelch should zero all parameters, got %+v", out)
	}
}

func TestTickLoopbackSkipsSquelch(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.Squelch = 0.05
	cfg.Audio.Loopback = true

	quiet := toneChunk(t)
	for i := range quiet.Samples {
		quiet.Samples[i] *= 0.01
	}

	dev := &scriptedCapture{chunks: []*audio.Chunk{quiet}, active: true}
	s := newTestScheduler(t, cfg, dev)

	out := s.tick(time.Now())
	if out.Amplitude <= 0 {
		t.Errorf("loopback source must bypass the squelch, got %+v", out)
	}
}

func TestTickBeatStampedOnOnset(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Loopback = true
	cfg.Analysis.Beat.Enabled = true
	cfg.Analysis.Beat.Threshold = 0.05
	cfg.Analysis.Beat.MinRatio = 1.5

	dev := &scriptedCapture{chunks: []*audio.Chunk{toneChunk(t)}, active: true}
	s := newTestScheduler(t, cfg, dev)

	now := time.Now()
	out := s.tick(now)
	if !out.Beat {
		t.Error("silence-to-tone jump should stamp the beat flag")
	}

	// No new chunk: decaying frames never flag a beat.
	out = s.tick(now.Add(16 * time.Millisecond))
	if out.Beat {
		t.Error("decaying frame flagged a beat")
	}
}

func TestResetSmoothing(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Loopback = true
	dev := &scriptedCapture{chunks: []*audio.Chunk{toneChunk(t)}, active: true}
	s := newTestScheduler(t, cfg, dev)

	first := s.tick(time.Now())
	s.ResetSmoothing()

	// Post-reset the EMA passes its input through again: a silent tick
	// emits exactly zero instead of a decayed remnant.
	out := s.tick(time.Now())
	if out.Amplitude != 0 {
		t.Errorf("post-reset silent tick = %f, want 0 (first was %f)", out.Amplitude, first.Amplitude)
	}
}

func TestStartCaptureRetriesStreamErrors(t *testing.T) {
	cfg := config.Default()
	streamErr := errors.New("boom")
	dev := &scriptedCapture{
		startErrs: []error{
			errors.Join(audio.ErrStream, streamErr),
			errors.Join(audio.ErrStream, streamErr),
		},
	}
	s := newTestScheduler(t, cfg, dev)

	if err := s.StartCapture(); err != nil {
		t.Fatalf("StartCapture should succeed on the third attempt: %v", err)
	}
	if dev.starts != 3 {
		t.Errorf("starts = %d, want 3", dev.starts)
	}
}

func TestStartCaptureGivesUpAfterBoundedAttempts(t *testing.T) {
	cfg := config.Default()
	dev := &scriptedCapture{
		startErrs: []error{audio.ErrStream, audio.ErrStream, audio.ErrStream, audio.ErrStream},
	}
	s := newTestScheduler(t, cfg, dev)

	if err := s.StartCapture(); err == nil {
		t.Fatal("StartCapture should give up after bounded attempts")
	}
	if dev.starts != 3 {
		t.Errorf("starts = %d, want exactly 3", dev.starts)
	}
}

func TestStartCaptureNoRetryForMissingDevice(t *testing.T) {
	cfg := config.Default()
	dev := &scriptedCapture{startErrs: []error{audio.ErrDeviceUnavailable}}
	s := newTestScheduler(t, cfg, dev)

	if err := s.StartCapture(); !errors.Is(err, audio.ErrDeviceUnavailable) {
		t.Fatalf("expected ErrDeviceUnavailable, got %v", err)
	}
	if dev.starts != 1 {
		t.Errorf("starts = %d, want 1 (deterministic failures never retry)", dev.starts)
	}
}

func TestRunReportsCaptureLoss(t *testing.T) {
	cfg := config.Default()
	cfg.Render.FPS = 200 // keep the test fast
	dev := &scriptedCapture{active: false}
	s := newTestScheduler(t, cfg, dev)

	s.Start()
	select {
	case err := <-s.Fatal():
		if !errors.Is(err, ErrCaptureLost) {
			t.Errorf("fatal error = %v, want ErrCaptureLost", err)
		}
	case <-time.After(time.Second):
		t.Fatal("capture loss not reported within a second")
	}
	s.Stop()
}

func TestRunPublishesToSinks(t *testing.T) {
	cfg := config.Default()
	cfg.Render.FPS = 200
	cfg.Audio.Loopback = true
	dev := &scriptedCapture{chunks: []*audio.Chunk{toneChunk(t)}, active: true}
	s := newTestScheduler(t, cfg, dev)

	sink := &captureSink{}
	s.AddSink(sink)

	s.Start()
	time.Sleep(50 * time.Millisecond)
	s.Stop()

	if len(sink.published) == 0 {
		t.Fatal("no snapshots published")
	}
	// The first snapshot came from the tone; later ones from decay.
	if sink.published[0].Amplitude <= 0 {
		t.Errorf("first snapshot amplitude = %f, want > 0", sink.published[0].Amplitude)
	}
}
