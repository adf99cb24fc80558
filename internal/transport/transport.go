package transport

import (
	"auviz/internal/dsp"
	applog "auviz/internal/log"
)

// Sink receives one parameter snapshot per frame tick. Implementations must
// not block the frame loop; drop data rather than stall.
type Sink interface {
	Publish(params dsp.Parameters) error
	Close() error
}

// LoggingSink logs each snapshot at debug level. Useful when bringing up a
// renderer without a transport attached.
type LoggingSink struct{}

// NewLoggingSink creates a LoggingSink.
func NewLoggingSink() *LoggingSink {
	return &LoggingSink{}
}

// Publish logs the snapshot; it never fails.
func (s *LoggingSink) Publish(params dsp.Parameters) error {
	applog.Debugf("params: bass=%.3f mid=%.3f treble=%.3f amp=%.3f beat=%v",
		params.Bass, params.Mid, params.Treble, params.Amplitude, params.Beat)
	return nil
}

// Close is a no-op.
func (s *LoggingSink) Close() error {
	return nil
}

var _ Sink = (*LoggingSink)(nil)
