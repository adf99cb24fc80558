package audio

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
)

func TestRecorderLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")

	r := NewRecorder()
	if r.Recording() {
		t.Error("new recorder should be idle")
	}

	if err := r.Start(path, 44100, 4); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !r.Recording() {
		t.Error("recorder should report recording after Start")
	}
	if err := r.Start(path, 44100, 4); err == nil {
		t.Error("second Start should fail while recording")
	}

	chunk := &Chunk{
		Samples:    []float32{0, 0.5, -0.5, 1.0},
		SampleRate: 44100,
		Channels:   1,
		Timestamp:  time.Now(),
	}
	if err := r.Write(chunk); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if err := r.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Errorf("Stop should be idempotent, got %v", err)
	}

	// The file must be a decodable mono 16-bit WAV.
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if buf.Format.NumChannels != 1 {
		t.Errorf("channels = %d, want 1", buf.Format.NumChannels)
	}
	if buf.Format.SampleRate != 44100 {
		t.Errorf("sample rate = %d, want 44100", buf.Format.SampleRate)
	}
	if len(buf.Data) != 4 {
		t.Errorf("samples = %d, want 4", len(buf.Data))
	}
}

func TestRecorderWriteWhileStopped(t *testing.T) {
	r := NewRecorder()
	chunk := &Chunk{Samples: []float32{0.1}, SampleRate: 44100, Channels: 1}
	if err := r.Write(chunk); err != nil {
		t.Errorf("Write on idle recorder should be a no-op, got %v", err)
	}
}
