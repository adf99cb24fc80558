package dsp

import "time"

// Parameters is the per-frame snapshot handed to the presentation layer.
// Band energies are normalized within the frame (each divided by the frame's
// own spectral peak), so they are relative, not an absolute loudness measure;
// Amplitude carries the absolute RMS loudness. A new value supersedes the
// previous one every tick.
type Parameters struct {
	Bass      float64   `json:"bass"`      // 0.0-1.0 relative band energy
	Mid       float64   `json:"mid"`       // 0.0-1.0 relative band energy
	Treble    float64   `json:"treble"`    // 0.0-1.0 relative band energy
	Amplitude float64   `json:"amplitude"` // RMS loudness, >= 0
	Beat      bool      `json:"beat"`      // Onset flag
	Timestamp time.Time `json:"timestamp"` // Frame emission time
}
