// SPDX-License-Identifier: MIT
/*
Package dsp reduces captured audio chunks to a handful of perceptual
parameters: bass/mid/treble band energy, RMS loudness, and an onset flag.

All buffers are pre-allocated at construction; ProcessChunk performs no
allocations and is owned exclusively by the frame-loop goroutine.
*/
package dsp

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"

	"auviz/internal/audio"
	"auviz/internal/config"
	"auviz/pkg/bitint"
)

// ErrInvalidWindowSize is returned when the requested FFT window length is
// not a power of 2.
var ErrInvalidWindowSize = errors.New("fft window length must be a power of 2")

// workspace holds the pre-allocated buffers for spectral analysis.
type workspace struct {
	input     []float64    // windowed input samples
	fftOutput []complex128 // complex FFT output
	magnitude []float64    // normalized magnitude spectrum
	window    []float64    // window coefficients, values in [0, 1]
}

// Spectral computes the windowed magnitude spectrum of a chunk and reduces
// it to named band energies plus RMS loudness.
type Spectral struct {
	fft        *fourier.FFT
	windowLen  int
	sampleRate float64
	bass       config.Band
	mid        config.Band
	treble     config.Band
	workspace  workspace
}

// NewSpectral creates a spectral processor for the given sample rate and
// window length. The window length must be a power of 2. Bands default to
// bass 20-250 Hz, mid 250-4000 Hz, treble 4000-20000 Hz.
func NewSpectral(sampleRate float64, windowLen int) (*Spectral, error) {
	if !bitint.IsPowerOfTwo(windowLen) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidWindowSize, windowLen)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", sampleRate)
	}

	s := &Spectral{
		fft:        fourier.NewFFT(windowLen),
		windowLen:  windowLen,
		sampleRate: sampleRate,
		bass:       config.Band{Low: 20, High: 250},
		mid:        config.Band{Low: 250, High: 4000},
		treble:     config.Band{Low: 4000, High: 20000},
		workspace: workspace{
			input:     make([]float64, windowLen),
			fftOutput: make([]complex128, windowLen/2+1),
			magnitude: make([]float64, windowLen/2),
			window:    makeWindow(windowLen, "hann"),
		},
	}
	return s, nil
}

// SetWindowFunc swaps the window coefficients. Unknown names fall back to
// Hann.
func (s *Spectral) SetWindowFunc(name string) {
	s.workspace.window = makeWindow(s.windowLen, name)
}

// SetBands overrides the default band ranges.
func (s *Spectral) SetBands(bass, mid, treble config.Band) {
	s.bass, s.mid, s.treble = bass, mid, treble
}

// WindowLen returns the FFT window length.
func (s *Spectral) WindowLen() int {
	return s.windowLen
}

// makeWindow precomputes coefficients for the named window function.
func makeWindow(n int, name string) []float64 {
	coeffs := make([]float64, n)
	for i := range coeffs {
		coeffs[i] = 1
	}
	switch name {
	case "hamming":
		window.Hamming(coeffs)
	case "blackman":
		window.Blackman(coeffs)
	case "rect":
		// Coefficients stay 1.
	default:
		window.Hann(coeffs)
	}
	return coeffs
}

// ProcessChunk computes the normalized magnitude spectrum of one chunk.
// Chunks shorter than the window are zero-padded; longer ones are truncated.
// Every bin is divided by the frame's own peak magnitude, so the result is
// relative within the frame (all-zero input stays all-zero). The returned
// slice is the internal buffer, valid until the next call.
func (s *Spectral) ProcessChunk(chunk *audio.Chunk) []float64 {
	ws := &s.workspace

	n := len(chunk.Samples)
	for i := range s.windowLen {
		if i < n {
			ws.input[i] = float64(chunk.Samples[i]) * ws.window[i]
		} else {
			ws.input[i] = 0 // zero-padding
		}
	}

	s.fft.Coefficients(ws.fftOutput, ws.input)

	// Real input spectra are symmetric; only the first half carries
	// information.
	peak := 0.0
	for i := range ws.magnitude {
		m := cmplx.Abs(ws.fftOutput[i])
		ws.magnitude[i] = m
		if m > peak {
			peak = m
		}
	}
	if peak > 0 {
		inv := 1 / peak
		for i := range ws.magnitude {
			ws.magnitude[i] *= inv
		}
	}
	return ws.magnitude
}

// BinFrequency returns the center frequency in Hz for a bin index.
func (s *Spectral) BinFrequency(bin int) float64 {
	return float64(bin) * s.sampleRate / float64(s.windowLen)
}

// ExtractBand averages the magnitudes of all bins whose frequency falls in
// [lo, hi). Returns 0 when no bin lands in the range.
func (s *Spectral) ExtractBand(spectrum []float64, lo, hi float64) float64 {
	var sum float64
	var count int
	for i, m := range spectrum {
		freq := s.BinFrequency(i)
		if freq >= lo && freq < hi {
			sum += m
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// RMS returns the root-mean-square of the samples, 0 for empty input.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSquare float64
	for _, sample := range samples {
		v := float64(sample)
		sumSquare += v * v
	}
	return math.Sqrt(sumSquare / float64(len(samples)))
}

// Process reduces one chunk to a parameter snapshot. The Beat field is left
// false here; onset detection runs in the frame loop where frame-to-frame
// state lives.
func (s *Spectral) Process(chunk *audio.Chunk) Parameters {
	spectrum := s.ProcessChunk(chunk)
	return Parameters{
		Bass:      s.ExtractBand(spectrum, s.bass.Low, s.bass.High),
		Mid:       s.ExtractBand(spectrum, s.mid.Low, s.mid.High),
		Treble:    s.ExtractBand(spectrum, s.treble.Low, s.treble.High),
		Amplitude: RMS(chunk.Samples),
	}
}
