// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

// Package capture records link traffic to a file and reads it back.
//
// A capture is a stream of CBOR items: one Header followed by any number of
// Records, each a map with small integer keys.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/robdobson/likecomms/pkg/likehdlc"
)

// Version is the capture format version written by this package
const Version = 1

// ErrBadHeader is returned when a stream does not start with a capture header
var ErrBadHeader = errors.New("not a capture stream")

// Direction of captured traffic
type Direction uint8

const (
	DirRx Direction = iota
	DirTx
)

func (d Direction) String() string {
	if d == DirTx {
		return "TX"
	}
	return "RX"
}

// Kind of captured event
type Kind uint8

const (
	KindFrame      Kind = iota // decoded frame payload
	KindFrameError             // frame rejected by the decoder
	KindRaw                    // raw transport bytes
	KindLogLine                // overlay log text
)

// Header describes the link a capture was taken from
type Header struct {
	Version   int       `cbor:"1,keyasint"`
	Started   time.Time `cbor:"2,keyasint"`
	Delimiter byte      `cbor:"3,keyasint"`
	Escape    byte      `cbor:"4,keyasint"`
	OverASCII bool      `cbor:"5,keyasint"`
	Source    string    `cbor:"6,keyasint,omitempty"`
}

// NewHeader creates a header for a link using esc
func NewHeader(esc likehdlc.Escapes, overASCII bool, source string) Header {
	return Header{
		Version:   Version,
		Started:   time.Now(),
		Delimiter: esc.Delimiter,
		Escape:    esc.Escape,
		OverASCII: overASCII,
		Source:    source,
	}
}

// Escapes returns the delimiter/escape pair of the captured link
func (h Header) Escapes() likehdlc.Escapes {
	return likehdlc.Escapes{Delimiter: h.Delimiter, Escape: h.Escape}
}

// Record is one captured event
type Record struct {
	Time  time.Time `cbor:"1,keyasint"`
	Dir   Direction `cbor:"2,keyasint"`
	Kind  Kind      `cbor:"3,keyasint"`
	Data  []byte    `cbor:"4,keyasint,omitempty"`
	Error string    `cbor:"5,keyasint,omitempty"`
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Writer appends records to a capture stream. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	n   int
}

// NewWriter writes h to w and returns a Writer for the records
func NewWriter(w io.Writer, h Header) (*Writer, error) {
	if h.Version == 0 {
		h.Version = Version
	}
	enc := encMode.NewEncoder(w)
	if err := enc.Encode(h); err != nil {
		return nil, fmt.Errorf("writing capture header: %w", err)
	}
	return &Writer{enc: enc}, nil
}

// Write appends rec. A zero Time is set to now.
func (w *Writer) Write(rec Record) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("writing capture record: %w", err)
	}
	w.n++
	return nil
}

// Frame records a decoded frame payload
func (w *Writer) Frame(dir Direction, payload []byte) error {
	return w.Write(Record{Dir: dir, Kind: KindFrame, Data: payload})
}

// FrameError records a rejected frame
func (w *Writer) FrameError(err error) error {
	return w.Write(Record{Dir: DirRx, Kind: KindFrameError, Error: err.Error()})
}

// Raw records transport bytes
func (w *Writer) Raw(dir Direction, chunk []byte) error {
	return w.Write(Record{Dir: dir, Kind: KindRaw, Data: chunk})
}

// LogLine records a line of overlay log text
func (w *Writer) LogLine(line string) error {
	return w.Write(Record{Dir: DirRx, Kind: KindLogLine, Data: []byte(line)})
}

// Count returns the number of records written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Reader reads records from a capture stream
type Reader struct {
	Header Header
	dec    *cbor.Decoder
}

// NewReader reads and checks the capture header
func NewReader(r io.Reader) (*Reader, error) {
	dec := decMode.NewDecoder(r)
	var h Header
	if err := dec.Decode(&h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if h.Version < 1 || h.Version > Version {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadHeader, h.Version)
	}
	return &Reader{Header: h, dec: dec}, nil
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading capture record: %w", err)
	}
	return &rec, nil
}
