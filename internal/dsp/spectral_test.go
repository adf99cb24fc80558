// SPDX-License-Identifier: MIT
package dsp

import (
	"math"
	"testing"
	"time"

	"auviz/internal/audio"
	"auviz/internal/config"
	"auviz/pkg/utils"
)

const (
	testWindowLen  = 2048
	testSampleRate = 44100.0
)

func newTestSpectral(t *testing.T) *Spectral {
	t.Helper()
	s, err := NewSpectral(testSampleRate, testWindowLen)
	if err != nil {
		t.Fatalf("NewSpectral: %v", err)
	}
	return s
}

func chunkOf(samples []float32) *audio.Chunk {
	return &audio.Chunk{
		Samples:    samples,
		SampleRate: testSampleRate,
		Channels:   1,
		Timestamp:  time.Now(),
	}
}

func TestNewSpectralRejectsBadWindow(t *testing.T) {
	tests := []struct {
		windowLen int
		ok        bool
	}{
		{2048, true},
		{256, true},
		{1000, false}, // not a power of two
		{0, false},
		{-512, false},
	}

	for _, tt := range tests {
		_, err := NewSpectral(testSampleRate, tt.windowLen)
		if tt.ok && err != nil {
			t.Errorf("NewSpectral(%d) unexpected error: %v", tt.windowLen, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("NewSpectral(%d) expected error, got nil", tt.windowLen)
		}
	}
}

func TestProcessChunkAllZero(t *testing.T) {
	s := newTestSpectral(t)

	spectrum := s.ProcessChunk(chunkOf(make([]float32, testWindowLen)))
	if len(spectrum) != testWindowLen/2 {
		t.Fatalf("spectrum length = %d, want %d", len(spectrum), testWindowLen/2)
	}
	for i, m := range spectrum {
		if m != 0 {
			t.Fatalf("bin %d = %f, want 0 for silent input", i, m)
		}
	}

	params := s.Process(chunkOf(make([]float32, testWindowLen)))
	if params.Bass != 0 || params.Mid != 0 || params.Treble != 0 || params.Amplitude != 0 {
		t.Errorf("silent chunk produced non-zero parameters: %+v", params)
	}
}

func TestProcessChunk440HzPeak(t *testing.T) {
	s := newTestSpectral(t)
	samples := utils.GenerateSineWave(testWindowLen, testSampleRate, 440)

	spectrum := s.ProcessChunk(chunkOf(samples))

	peakBin := utils.FindPeakBin(spectrum, 0, len(spectrum)-1)
	peakFreq := s.BinFrequency(peakBin)
	binWidth := testSampleRate / testWindowLen // ~21.5 Hz
	if math.Abs(peakFreq-440) > binWidth {
		t.Errorf("peak at %.1f Hz, want within %.1f Hz of 440", peakFreq, binWidth)
	}

	// Per-frame normalization: the peak bin is exactly 1.
	if math.Abs(spectrum[peakBin]-1) > 1e-9 {
		t.Errorf("peak magnitude = %f, want 1 after normalization", spectrum[peakBin])
	}
}

func TestProcessChunkZeroPadsShortInput(t *testing.T) {
	s := newTestSpectral(t)

	// Half a window of tone still produces a finite, normalized spectrum.
	samples := utils.GenerateSineWave(testWindowLen/2, testSampleRate, 440)
	spectrum := s.ProcessChunk(chunkOf(samples))

	for i, m := range spectrum {
		if m < 0 || m > 1 || math.IsNaN(m) {
			t.Fatalf("bin %d = %f outside [0, 1]", i, m)
		}
	}
}

func TestExtractBand(t *testing.T) {
	s := newTestSpectral(t)
	samples := utils.GenerateComplexWave(testWindowLen, testSampleRate)
	spectrum := s.ProcessChunk(chunkOf(samples))

	tests := []struct {
		name   string
		lo, hi float64
	}{
		{"bass", 20, 250},
		{"mid", 250, 4000},
		{"treble", 4000, 20000},
		{"full", 0, testSampleRate / 2},
	}
	for _, tt := range tests {
		if got := s.ExtractBand(spectrum, tt.lo, tt.hi); got < 0 {
			t.Errorf("ExtractBand(%s) = %f, want >= 0", tt.name, got)
		}
	}

	// A range covering no bins returns 0. One bin is ~21.5 Hz wide, so a
	// sub-Hz range between bin centers is empty.
	if got := s.ExtractBand(spectrum, 30, 30.5); got != 0 {
		t.Errorf("ExtractBand(empty range) = %f, want 0", got)
	}
	if got := s.ExtractBand(spectrum, 25000, 30000); got != 0 {
		t.Errorf("ExtractBand(above Nyquist) = %f, want 0", got)
	}
}

func TestRMS(t *testing.T) {
	tests := []struct {
		name     string
		samples  []float32
		expected float64
	}{
		{"unit square wave", []float32{0, 1, 0, -1}, math.Sqrt(0.5)},
		{"empty", nil, 0},
		{"all zero", make([]float32, 512), 0},
		{"dc", []float32{0.5, 0.5, 0.5, 0.5}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RMS(tt.samples)
			if math.Abs(got-tt.expected) > 1e-3 {
				t.Errorf("RMS = %f, want %f", got, tt.expected)
			}
		})
	}
}

func TestProcessComposesBands(t *testing.T) {
	s := newTestSpectral(t)
	s.SetBands(
		config.Band{Low: 20, High: 250},
		config.Band{Low: 250, High: 4000},
		config.Band{Low: 4000, High: 20000},
	)

	// A 440 Hz tone lands in the mid band and should dominate it.
	samples := utils.GenerateSineWave(testWindowLen, testSampleRate, 440)
	params := s.Process(chunkOf(samples))

	if params.Mid <= params.Bass || params.Mid <= params.Treble {
		t.Errorf("440 Hz tone should peak in mid band: %+v", params)
	}
	if params.Amplitude <= 0 {
		t.Errorf("Amplitude = %f, want > 0 for a tone", params.Amplitude)
	}
	if params.Beat {
		t.Error("Process must leave Beat false; the frame loop owns onset state")
	}
}

func TestProcessChunkHotPath(t *testing.T) {
	s := newTestSpectral(t)
	chunk := chunkOf(utils.GenerateComplexWave(testWindowLen, testSampleRate))

	// Warm-up for any lazy initialization inside the FFT.
	s.ProcessChunk(chunk)
	allocs := testing.AllocsPerRun(100, func() {
		s.ProcessChunk(chunk)
	})
	if allocs > 0 {
		t.Errorf("Expected zero allocations in ProcessChunk hot path, got %.1f", allocs)
	}
}

func BenchmarkProcess(b *testing.B) {
	s, err := NewSpectral(testSampleRate, testWindowLen)
	if err != nil {
		b.Fatal(err)
	}
	chunk := chunkOf(utils.GenerateComplexWave(testWindowLen, testSampleRate))

	b.ReportAllocs()
	for b.Loop() {
		s.Process(chunk)
	}
}
