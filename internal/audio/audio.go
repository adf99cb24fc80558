// SPDX-License-Identifier: MIT
/*
Package audio wraps the PortAudio backend behind a small capture interface:
- Device enumeration with substring selection and loopback detection
- Callback-driven capture with mono downmix into a chunk ring buffer
- A thread-owned blocking-read variant for loopback/monitor sources
- An optional WAV tap fed from the frame loop

Thread Safety:
- The hardware callback only writes chunks into the ring buffer
- Stream state is tracked with atomics; no locks cross the callback
*/
package audio

import (
	"errors"
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Error taxonomy for capture failures. Startup errors surface synchronously
// from Start; stream loss after startup only flips the active flag.
var (
	ErrDeviceUnavailable = errors.New("no suitable audio input device")
	ErrConfig            = errors.New("backend rejected the requested format")
	ErrStream            = errors.New("audio stream failed")
)

// Chunk is one hardware callback's worth of audio, already downmixed to
// mono. It is immutable after creation: the callback hands ownership to the
// ring buffer, and the frame loop takes it on Pop.
type Chunk struct {
	Samples    []float32
	SampleRate float64
	Channels   int // Always 1 after downmix.
	Timestamp  time.Time
}

// Capture is the backend-agnostic contract shared by the callback-driven
// and thread-driven capture shapes. ReadChunk never blocks.
type Capture interface {
	Start() error
	Stop() error
	Active() bool
	ReadChunk() (*Chunk, bool)
}

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}
