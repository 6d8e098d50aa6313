// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

// Package likehdlc implements the HDLC-like framing used on BusRaider and RIC
// serial, TCP and WebSocket links.
//
// A frame is the payload followed by a big-endian CRC-16-CCITT, byte-stuffed
// and wrapped in delimiter bytes:
//
//	<DELIM> <escaped payload...> <escaped CRC hi> <escaped CRC lo> <DELIM>
//
// The delimiter/escape pair is configuration. Links that share the stream
// with plain text logging use the non-ASCII pair.
package likehdlc

// Escapes is a delimiter/escape byte pair.
type Escapes struct {
	Delimiter byte
	Escape    byte
}

// Standard delimiter/escape pairs
var (
	ASCIIEscapes    = Escapes{Delimiter: 0x7E, Escape: 0x7D}
	NonASCIIEscapes = Escapes{Delimiter: 0xE7, Escape: 0xD7}
)

// EscXor is applied to an escaped byte
const EscXor = 0x20

// CRC-16-CCITT configuration
const (
	crcPolynomial = 0x1021
	crcInitial    = 0xFFFF
	crcSize       = 2
)

// DefaultMaxFrameLen bounds the de-escaped length of a received frame
const DefaultMaxFrameLen = 10000

// State is the decoder state
type State int

// Decoder states
const (
	StateIdle State = iota
	StateReading
	StateEscaped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateReading:
		return "READING"
	case StateEscaped:
		return "ESCAPED"
	default:
		return "UNKNOWN"
	}
}

// CRCAlgorithm selects between the two equivalent CRC implementations
type CRCAlgorithm int

const (
	CRCTable CRCAlgorithm = iota
	CRCBitwise
)

// Config holds codec configuration for one link.
type Config struct {
	Escapes     Escapes
	CRC         CRCAlgorithm
	MaxFrameLen int
}

// DefaultConfig returns the non-ASCII pair with the table CRC.
func DefaultConfig() Config {
	return Config{
		Escapes:     NonASCIIEscapes,
		CRC:         CRCTable,
		MaxFrameLen: DefaultMaxFrameLen,
	}
}

// EscapesFor returns the ASCII pair when asciiEscapes is set, otherwise the
// non-ASCII pair.
func EscapesFor(asciiEscapes bool) Escapes {
	if asciiEscapes {
		return ASCIIEscapes
	}
	return NonASCIIEscapes
}

func (c Config) crcFunc() func([]byte) uint16 {
	if c.CRC == CRCBitwise {
		return CalculateCRCBitwise
	}
	return CalculateCRC
}
