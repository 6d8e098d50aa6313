// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

// Package overascii carries binary protocol data on a line that also carries
// plain-text logging.
//
// Log text is assumed to be 7-bit, so every protocol byte is sent with bit 7
// set. Values that cannot be expressed that way are sent as a two byte
// escape sequence:
//
//	0x00-0x0F  Escape1, (b ^ 0x20) | 0x80
//	0x10-0x7F  b | 0x80
//	0x80-0x8F  Escape2, b ^ 0x20
//	0x90-0xFF  Escape3, b
package overascii

// Escape markers
const (
	Escape1 = 0x85
	Escape2 = 0x8E
	Escape3 = 0x8F
	ModCode = 0x20
)

const highBit = 0x80

// IsProtocolByte reports whether a byte received on the line belongs to the
// protocol stream rather than to log text
func IsProtocolByte(b byte) bool {
	return b&highBit != 0
}

// Encode returns the overlay form of data
func Encode(data []byte) []byte {
	return AppendEncode(make([]byte, 0, len(data)*2), data)
}

// AppendEncode appends the overlay form of data to dst
func AppendEncode(dst, data []byte) []byte {
	for _, b := range data {
		switch {
		case b <= 0x0F:
			dst = append(dst, Escape1, (b^ModCode)|highBit)
		case b <= 0x7F:
			dst = append(dst, b|highBit)
		case b <= 0x8F:
			dst = append(dst, Escape2, b^ModCode)
		default:
			dst = append(dst, Escape3, b)
		}
	}
	return dst
}

// Decoder reverses Encode one byte at a time. Only protocol bytes should be
// fed to it.
type Decoder struct {
	pending byte // escape marker awaiting its second byte, 0 if none
}

// DecodeByte returns the decoded byte and true, or false when b was an
// escape marker and the value follows in the next byte
func (d *Decoder) DecodeByte(b byte) (byte, bool) {
	if d.pending != 0 {
		esc := d.pending
		d.pending = 0
		switch esc {
		case Escape1:
			return (b ^ ModCode) &^ highBit, true
		case Escape2:
			return b ^ ModCode, true
		default:
			return b, true
		}
	}

	switch b {
	case Escape1, Escape2, Escape3:
		d.pending = b
		return 0, false
	}
	return b &^ highBit, true
}

// Reset discards a pending escape
func (d *Decoder) Reset() {
	d.pending = 0
}

// Pending reports whether the decoder is inside an escape sequence
func (d *Decoder) Pending() bool {
	return d.pending != 0
}
