// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"

	"auviz/internal/dsp"
)

/*
UDP Packet Structure (BigEndian)

| Field           | Type    | Size | Description                  |
|-----------------|---------|------|------------------------------|
| Sequence Number | uint32  | 4    | Monotonically increasing     |
| Timestamp       | int64   | 8    | Nanoseconds since epoch      |
| Bass            | float32 | 4    | Relative band energy 0-1     |
| Mid             | float32 | 4    | Relative band energy 0-1     |
| Treble          | float32 | 4    | Relative band energy 0-1     |
| Amplitude       | float32 | 4    | RMS loudness                 |
| Beat            | uint8   | 1    | 1 on onset, else 0           |
*/

// UDPSink packs each snapshot into a fixed binary packet and fires it at a
// configured address. Datagram loss is acceptable; the next frame
// supersedes anyway.
type UDPSink struct {
	conn         *net.UDPConn
	sequenceNum  uint32
	packetBuffer *bytes.Buffer // reused across frames
}

// NewUDPSink resolves and connects the target address, e.g. "127.0.0.1:9090".
func NewUDPSink(target string) (*UDPSink, error) {
	addr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("invalid UDP target %q: %w", target, err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP target %q: %w", target, err)
	}
	return &UDPSink{
		conn:         conn,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Publish packs and sends one snapshot.
func (s *UDPSink) Publish(params dsp.Parameters) error {
	s.sequenceNum++

	var beat uint8
	if params.Beat {
		beat = 1
	}

	s.packetBuffer.Reset()
	for _, field := range []any{
		s.sequenceNum,
		params.Timestamp.UnixNano(),
		float32(params.Bass),
		float32(params.Mid),
		float32(params.Treble),
		float32(params.Amplitude),
		beat,
	} {
		if err := binary.Write(s.packetBuffer, binary.BigEndian, field); err != nil {
			return fmt.Errorf("failed to pack parameter packet: %w", err)
		}
	}

	if _, err := s.conn.Write(s.packetBuffer.Bytes()); err != nil {
		return fmt.Errorf("failed to send parameter packet: %w", err)
	}
	return nil
}

// Close closes the socket.
func (s *UDPSink) Close() error {
	return s.conn.Close()
}

var _ Sink = (*UDPSink)(nil)
