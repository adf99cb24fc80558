// SPDX-License-Identifier: MIT
/*
Package engine drives the fixed-cadence frame loop: drain at most one chunk
per tick, analyze it, smooth the parameters, and hand the snapshot to the
sinks. The loop owns all spectral and smoother state; the chunk ring is the
only thing it shares with the capture side.
*/
package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"auviz/internal/audio"
	"auviz/internal/config"
	"auviz/internal/dsp"
	applog "auviz/internal/log"
	"auviz/internal/smooth"
	"auviz/internal/transport"
)

// State is the frame loop's steady state for a tick.
type State int

const (
	// StateActive means fresh audio drove this tick.
	StateActive State = iota
	// StateDecaying means no chunk was available; zeroed parameters are
	// substituted so the visuals fall toward silence instead of freezing
	// on stale data.
	StateDecaying
)

// ErrCaptureLost is reported when the capture device goes inactive
// mid-session.
var ErrCaptureLost = errors.New("capture device lost")

// startup retry policy: bounded, increasing delay, never used mid-session.
const (
	startAttempts = 3
	startBackoff  = 250 * time.Millisecond
)

// Scheduler is the frame loop.
type Scheduler struct {
	capture  audio.Capture
	spectral *dsp.Spectral
	detector *dsp.BeatDetector
	recorder *audio.Recorder
	sinks    []transport.Sink

	bass      smooth.Smoother
	mid       smooth.Smoother
	treble    smooth.Smoother
	amplitude smooth.Smoother

	state         State
	frameDuration time.Duration
	squelch       float64
	loopback      bool

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	fatal    chan error
}

// New wires a scheduler from the config. Sinks and recorder are attached
// separately so callers can compose them.
func New(cfg *config.Config, capture audio.Capture, spectral *dsp.Spectral) *Scheduler {
	rate := float64(cfg.Render.FPS)
	s := &Scheduler{
		capture:       capture,
		spectral:      spectral,
		bass:          smooth.ForMode(cfg.Smoothing, rate),
		mid:           smooth.ForMode(cfg.Smoothing, rate),
		treble:        smooth.ForMode(cfg.Smoothing, rate),
		amplitude:     smooth.ForMode(cfg.Smoothing, rate),
		state:         StateDecaying,
		frameDuration: time.Second / time.Duration(cfg.Render.FPS),
		squelch:       cfg.Analysis.Squelch,
		loopback:      cfg.Audio.Loopback,
		fatal:         make(chan error, 1),
	}
	if cfg.Analysis.Beat.Enabled {
		s.detector = dsp.NewBeatDetector(
			cfg.Analysis.Beat.Threshold,
			cfg.Analysis.Beat.MinRatio,
			time.Duration(cfg.Analysis.Beat.CooldownMs)*time.Millisecond,
		)
	}
	return s
}

// AddSink attaches a snapshot sink.
func (s *Scheduler) AddSink(sink transport.Sink) {
	s.sinks = append(s.sinks, sink)
}

// SetRecorder attaches the WAV tap; each popped chunk is written before
// analysis.
func (s *Scheduler) SetRecorder(r *audio.Recorder) {
	s.recorder = r
}

// StartCapture starts the capture device, retrying transient stream
// failures with increasing delay. Deterministic failures (no device, format
// rejected) surface immediately. This retry exists at startup only; a
// stream lost mid-session is fatal.
func (s *Scheduler) StartCapture() error {
	var err error
	for attempt := 1; attempt <= startAttempts; attempt++ {
		err = s.capture.Start()
		if err == nil {
			return nil
		}
		if !errors.Is(err, audio.ErrStream) {
			return err
		}
		if attempt < startAttempts {
			delay := time.Duration(attempt) * startBackoff
			applog.Warnf("Engine: capture start failed (attempt %d/%d), retrying in %s: %v",
				attempt, startAttempts, delay, err)
			time.Sleep(delay)
		}
	}
	return fmt.Errorf("capture failed after %d attempts: %w", startAttempts, err)
}

// Start launches the frame loop goroutine.
func (s *Scheduler) Start() {
	s.doneChan = make(chan struct{})
	s.stopOnce = sync.Once{}

	s.wg.Add(1)
	go s.run()
}

// Stop signals the loop and waits for it to exit. Idempotent. Sinks are not
// closed here; their lifecycle belongs to whoever attached them.
func (s *Scheduler) Stop() {
	if s.doneChan == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.doneChan)
	})
	s.wg.Wait()
}

// Fatal delivers at most one mid-session error (currently only capture
// loss). The loop has already stopped by the time it is readable.
func (s *Scheduler) Fatal() <-chan error {
	return s.fatal
}

// ResetSmoothing clears all smoother and onset state, for mode switches in
// the presentation layer.
func (s *Scheduler) ResetSmoothing() {
	s.bass.Reset()
	s.mid.Reset()
	s.treble.Reset()
	s.amplitude.Reset()
	if s.detector != nil {
		s.detector.Reset()
	}
}

// State returns the steady state of the most recent tick.
func (s *Scheduler) State() State {
	return s.state
}

func (s *Scheduler) run() {
	defer s.wg.Done()
	applog.Infof("Engine: frame loop started (%.0f fps budget %s)",
		float64(time.Second)/float64(s.frameDuration), s.frameDuration)

	// One timer reused across frames; the hot loop allocates nothing.
	timer := time.NewTimer(s.frameDuration)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-s.doneChan:
			applog.Infof("Engine: frame loop stopped")
			return
		default:
		}

		start := time.Now()

		if !s.capture.Active() {
			applog.Errorf("Engine: capture device went inactive, stopping")
			s.fatal <- ErrCaptureLost
			return
		}

		params := s.tick(start)
		for _, sink := range s.sinks {
			if err := sink.Publish(params); err != nil {
				applog.Warnf("Engine: sink publish failed: %v", err)
			}
		}

		elapsed := time.Since(start)
		if elapsed > s.frameDuration {
			applog.Warnf("Engine: frame overran budget (%s > %s)", elapsed, s.frameDuration)
			continue // skip the sleep, never abort the frame
		}

		timer.Reset(s.frameDuration - elapsed)
		select {
		case <-s.doneChan:
			applog.Infof("Engine: frame loop stopped")
			return
		case <-timer.C:
		}
	}
}

// tick produces one smoothed snapshot. With a fresh chunk the tick is
// Active; otherwise it is Decaying and zeroed raw parameters pull the
// smoothed outputs toward silence.
func (s *Scheduler) tick(now time.Time) dsp.Parameters {
	var raw dsp.Parameters

	if chunk, ok := s.capture.ReadChunk(); ok {
		s.state = StateActive

		if s.recorder != nil {
			if err := s.recorder.Write(chunk); err != nil {
				applog.Warnf("Engine: recording write failed: %v", err)
			}
		}

		raw = s.spectral.Process(chunk)

		// Microphone squelch: below the noise floor, background hiss
		// must not drive visuals. Loopback sources skip this.
		if !s.loopback && s.squelch > 0 && raw.Amplitude < s.squelch {
			raw = dsp.Parameters{}
		}
	} else {
		s.state = StateDecaying
		// raw stays zeroed.
	}

	out := dsp.Parameters{
		Bass:      s.bass.Smooth(raw.Bass),
		Mid:       s.mid.Smooth(raw.Mid),
		Treble:    s.treble.Smooth(raw.Treble),
		Amplitude: s.amplitude.Smooth(raw.Amplitude),
		Timestamp: now,
	}
	if s.detector != nil {
		out.Beat = s.detector.Detect(raw.Amplitude, now)
	}
	return out
}
