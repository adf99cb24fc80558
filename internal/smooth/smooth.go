// SPDX-License-Identifier: MIT
/*
Package smooth provides interchangeable single-value filters applied per
audio parameter to suppress frame-to-frame jitter. All state is owned by the
frame-loop goroutine; nothing here locks.
*/
package smooth

import (
	"math"

	"auviz/internal/config"
)

// Smoother filters one scalar stream. Smooth is called once per frame.
type Smoother interface {
	Smooth(value float64) float64
	Reset()
}

// Exponential is an exponential moving average. The first call passes its
// input through unchanged; afterwards output = alpha*prev + (1-alpha)*input.
// Higher alpha means slower response.
type Exponential struct {
	alpha       float64
	prev        float64
	initialized bool
}

// NewExponential creates an EMA smoother with alpha in [0, 1].
func NewExponential(alpha float64) *Exponential {
	return &Exponential{alpha: alpha}
}

func (e *Exponential) Smooth(value float64) float64 {
	if !e.initialized {
		e.initialized = true
		e.prev = value
		return value
	}
	e.prev = e.alpha*e.prev + (1-e.alpha)*value
	return e.prev
}

func (e *Exponential) Reset() {
	e.prev = 0
	e.initialized = false
}

// MovingAverage keeps the last W inputs in a circular store and outputs the
// mean of however many have been seen so far.
type MovingAverage struct {
	values []float64
	head   int
	count  int
	sum    float64
}

// NewMovingAverage creates a moving-average smoother over a window of the
// given length.
func NewMovingAverage(window int) *MovingAverage {
	return &MovingAverage{values: make([]float64, window)}
}

func (m *MovingAverage) Smooth(value float64) float64 {
	if m.count == len(m.values) {
		m.sum -= m.values[m.head]
	} else {
		m.count++
	}
	m.values[m.head] = value
	m.sum += value
	m.head = (m.head + 1) % len(m.values)
	return m.sum / float64(m.count)
}

func (m *MovingAverage) Reset() {
	for i := range m.values {
		m.values[i] = 0
	}
	m.head = 0
	m.count = 0
	m.sum = 0
}

// OnePole is a first-order IIR low-pass filter parameterized by sample rate
// and cutoff: a = dt/(rc+dt) with rc = 1/(2*pi*cutoff) and dt = 1/rate.
type OnePole struct {
	a    float64
	prev float64
}

// NewOnePole creates a one-pole low-pass filter. rate is the update rate of
// the value stream (the frame rate here, not the audio sample rate).
func NewOnePole(rate, cutoff float64) *OnePole {
	dt := 1 / rate
	rc := 1 / (2 * math.Pi * cutoff)
	return &OnePole{a: dt / (rc + dt)}
}

func (o *OnePole) Smooth(value float64) float64 {
	o.prev = o.a*value + (1-o.a)*o.prev
	return o.prev
}

func (o *OnePole) Reset() {
	o.prev = 0
}

// ForMode builds a smoother from the config. rate is the frame cadence in
// Hz, the update rate the filters see. Unknown modes fall back to EMA.
func ForMode(cfg config.SmoothingConfig, rate float64) Smoother {
	switch cfg.Mode {
	case "window":
		return NewMovingAverage(cfg.Window)
	case "lowpass":
		return NewOnePole(rate, cfg.CutoffHz)
	default:
		return NewExponential(cfg.Alpha)
	}
}
