package dsp

import "time"

// BeatDetector flags onsets from frame-to-frame energy jumps: the current
// RMS must clear an absolute threshold and exceed the previous frame's
// energy by a minimum ratio. A cooldown keeps one kick from flagging several
// consecutive frames.
type BeatDetector struct {
	threshold  float64
	minRatio   float64
	cooldown   time.Duration
	lastEnergy float64
	lastOnset  time.Time
}

// NewBeatDetector creates a detector. threshold is the minimum RMS for a
// candidate onset, minRatio the required jump over the previous frame.
func NewBeatDetector(threshold, minRatio float64, cooldown time.Duration) *BeatDetector {
	return &BeatDetector{
		threshold: threshold,
		minRatio:  minRatio,
		cooldown:  cooldown,
	}
}

// Detect reports whether the given frame energy is an onset. Call once per
// frame; the detector keeps the previous frame's energy either way.
func (d *BeatDetector) Detect(energy float64, now time.Time) bool {
	prev := d.lastEnergy
	d.lastEnergy = energy

	if energy <= d.threshold {
		return false
	}
	if prev > 0 && energy/prev < d.minRatio {
		return false
	}
	if !d.lastOnset.IsZero() && now.Sub(d.lastOnset) < d.cooldown {
		return false
	}
	d.lastOnset = now
	return true
}

// Reset clears the frame-to-frame state.
func (d *BeatDetector) Reset() {
	d.lastEnergy = 0
	d.lastOnset = time.Time{}
}
