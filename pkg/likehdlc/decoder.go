// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package likehdlc

import (
	"fmt"
	"time"
)

// Handler receives the outcome of every frame closed by the decoder
type Handler interface {
	HandleFrame(payload []byte)
	HandleFrameError(err error)
}

// HandlerFuncs adapts a pair of functions to Handler. Nil functions are
// skipped.
type HandlerFuncs struct {
	Frame func(payload []byte)
	Error func(err error)
}

// HandleFrame implements Handler
func (h HandlerFuncs) HandleFrame(payload []byte) {
	if h.Frame != nil {
		h.Frame(payload)
	}
}

// HandleFrameError implements Handler
func (h HandlerFuncs) HandleFrameError(err error) {
	if h.Error != nil {
		h.Error(err)
	}
}

// Decoder implements the frame decoder state machine.
// A Decoder must only be fed from one goroutine.
type Decoder struct {
	esc     Escapes
	crc     func([]byte) uint16
	maxLen  int
	current *rxFrame
	stats   Stats
}

// NewDecoder creates a new frame decoder
func NewDecoder(cfg Config) *Decoder {
	return &Decoder{
		esc:    cfg.Escapes,
		crc:    cfg.crcFunc(),
		maxLen: cfg.MaxFrameLen,
	}
}

// Reset drops any partial frame and returns the decoder to idle.
// Statistics are kept.
func (d *Decoder) Reset() {
	d.current = nil
}

// State returns the current decoder state
func (d *Decoder) State() State {
	if d.current == nil {
		return StateIdle
	}
	return d.current.state
}

// Stats returns the decoder statistics
func (d *Decoder) Stats() *Stats {
	return &d.stats
}

// DecodeByte processes a single byte through the decoder state machine.
// Returns the completed frame when b closes a valid frame, an error when b
// closes a frame that failed validation, and (nil, nil) otherwise.
func (d *Decoder) DecodeByte(b byte) (*Frame, error) {
	if b == d.esc.Delimiter {
		// A delimiter with nothing buffered opens a frame, so repeated
		// delimiters never produce empty frames
		if d.current == nil || len(d.current.buffer) == 0 {
			d.current = newRxFrame()
			return nil, nil
		}
		return d.closeFrame()
	}

	// Bytes outside a frame are discarded
	if d.current == nil {
		return nil, nil
	}

	d.current.addByte(b, d.esc.Escape)
	if d.maxLen > 0 && len(d.current.buffer) > d.maxLen {
		d.current = nil
		d.stats.tooLong.Add(1)
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFrameTooLong, d.maxLen)
	}
	return nil, nil
}

func (d *Decoder) closeFrame() (*Frame, error) {
	f := d.current
	d.current = nil

	if err := f.finish(); err != nil {
		d.stats.crcErrors.Add(1)
		return nil, err
	}
	if err := f.checkCRC(d.crc); err != nil {
		d.stats.crcErrors.Add(1)
		return nil, err
	}

	d.stats.rxFrames.Add(1)
	return &Frame{
		payload:   f.buffer,
		crc:       f.receivedCRC(),
		timestamp: time.Now(),
	}, nil
}

// Decode feeds a chunk of received bytes through the decoder, reporting
// each closed frame to h in stream order
func (d *Decoder) Decode(chunk []byte, h Handler) {
	for _, b := range chunk {
		frame, err := d.DecodeByte(b)
		if err != nil {
			h.HandleFrameError(err)
			continue
		}
		if frame != nil {
			h.HandleFrame(frame.payload)
		}
	}
}
