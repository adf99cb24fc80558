package audio

import (
	"fmt"
	"math"
	"os"
	"sync/atomic"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Recorder writes captured mono chunks to a 16-bit WAV file. It is fed from
// the frame loop, not the hardware callback, so encoding never touches the
// real-time path. The started flag is atomic so Start/Stop can come from a
// different goroutine than Write.
type Recorder struct {
	started    int32
	outputFile *os.File
	encoder    *wav.Encoder
	sampleBuf  *goaudio.IntBuffer
}

// NewRecorder returns an idle recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start creates the output file and WAV encoder.
func (r *Recorder) Start(filename string, sampleRate float64, framesPerBuffer int) error {
	if atomic.LoadInt32(&r.started) == 1 {
		return fmt.Errorf("already recording")
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	r.outputFile = file

	r.encoder = wav.NewEncoder(file, int(sampleRate), 16, 1, 1)
	r.sampleBuf = &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: 1,
			SampleRate:  int(sampleRate),
		},
		SourceBitDepth: 16,
		Data:           make([]int, framesPerBuffer),
	}

	atomic.StoreInt32(&r.started, 1)
	return nil
}

// Write encodes one chunk. A no-op while the recorder is stopped.
func (r *Recorder) Write(chunk *Chunk) error {
	if atomic.LoadInt32(&r.started) == 0 || r.encoder == nil {
		return nil
	}

	if cap(r.sampleBuf.Data) < len(chunk.Samples) {
		r.sampleBuf.Data = make([]int, len(chunk.Samples))
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:len(chunk.Samples)]

	for i, sample := range chunk.Samples {
		v := float64(sample)
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		r.sampleBuf.Data[i] = int(v * float64(math.MaxInt16))
	}

	return r.encoder.Write(r.sampleBuf)
}

// Stop finalizes the WAV header and closes the file. Idempotent.
func (r *Recorder) Stop() error {
	if atomic.LoadInt32(&r.started) == 0 {
		return nil
	}
	atomic.StoreInt32(&r.started, 0)

	if r.encoder != nil {
		if err := r.encoder.Close(); err != nil {
			return err
		}
		r.encoder = nil
	}
	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}
	return nil
}

// Recording reports whether a file is currently open.
func (r *Recorder) Recording() bool {
	return atomic.LoadInt32(&r.started) == 1
}
