// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package likehdlc

import (
	"errors"
	"fmt"
	"time"
)

// Decode errors. A frame that fails with any of these is discarded and the
// decoder resumes at the next delimiter.
var (
	ErrCRCMismatch      = errors.New("CRC mismatch")
	ErrFrameTooShort    = errors.New("frame too short")
	ErrFrameTooLong     = errors.New("frame too long")
	ErrIncompleteEscape = errors.New("incomplete escape sequence at end of data")
)

// CRCError reports the calculated and received CRC of a rejected frame
type CRCError struct {
	Expected uint16
	Received uint16
}

func (e *CRCError) Error() string {
	return fmt.Sprintf("CRC mismatch: expected 0x%04X, got 0x%04X", e.Expected, e.Received)
}

// Unwrap lets errors.Is match ErrCRCMismatch
func (e *CRCError) Unwrap() error {
	return ErrCRCMismatch
}

// IsCRCError reports whether err counts as a CRC failure. Frames too short
// to carry a CRC count as CRC failures.
func IsCRCError(err error) bool {
	return errors.Is(err, ErrCRCMismatch) || errors.Is(err, ErrFrameTooShort)
}

// Frame is a successfully decoded frame
type Frame struct {
	payload   []byte
	crc       uint16
	timestamp time.Time
}

// NewFrame creates a frame from an already validated payload
func NewFrame(payload []byte, crc uint16) *Frame {
	return &Frame{payload: payload, crc: crc, timestamp: time.Now()}
}

// Payload returns the de-escaped payload without the CRC
func (f *Frame) Payload() []byte {
	return f.payload
}

// CRC returns the received CRC
func (f *Frame) CRC() uint16 {
	return f.crc
}

// Timestamp returns when the closing delimiter was decoded
func (f *Frame) Timestamp() time.Time {
	return f.timestamp
}

// rxFrame is the frame currently being read
type rxFrame struct {
	state    State
	buffer   []byte
	crc      [crcSize]byte
	finished bool
	failed   bool
}

func newRxFrame() *rxFrame {
	return &rxFrame{state: StateReading, buffer: make([]byte, 0, 64)}
}

func (f *rxFrame) addByte(b, escape byte) {
	switch {
	case f.state == StateEscaped:
		f.buffer = append(f.buffer, b^EscXor)
		f.state = StateReading
	case b == escape:
		f.state = StateEscaped
	default:
		f.buffer = append(f.buffer, b)
	}
}

// finish splits the trailing CRC bytes off the buffer
func (f *rxFrame) finish() error {
	f.finished = true
	if len(f.buffer) < crcSize {
		f.failed = true
		return fmt.Errorf("%w: %d bytes", ErrFrameTooShort, len(f.buffer))
	}
	n := len(f.buffer) - crcSize
	copy(f.crc[:], f.buffer[n:])
	f.buffer = f.buffer[:n]
	return nil
}

func (f *rxFrame) receivedCRC() uint16 {
	return uint16(f.crc[0])<<8 | uint16(f.crc[1])
}

func (f *rxFrame) checkCRC(calc func([]byte) uint16) error {
	expected := calc(f.buffer)
	if received := f.receivedCRC(); received != expected {
		f.failed = true
		return &CRCError{Expected: expected, Received: received}
	}
	return nil
}
