// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package likehdlc

// Encoder encodes payloads into frames for transmission.
// Handles CRC calculation, byte stuffing and delimiting.
type Encoder struct {
	esc Escapes
	crc func([]byte) uint16
}

// NewEncoder creates an encoder for the given configuration.
func NewEncoder(cfg Config) *Encoder {
	return &Encoder{esc: cfg.Escapes, crc: cfg.crcFunc()}
}

// Escapes returns the delimiter/escape pair in use.
func (e *Encoder) Escapes() Escapes {
	return e.esc
}

// Encode returns the wire form of payload.
func (e *Encoder) Encode(payload []byte) []byte {
	return e.AppendEncoded(make([]byte, 0, MaxEncodedLen(len(payload))), payload)
}

// AppendEncoded appends the wire form of payload to dst.
func (e *Encoder) AppendEncoded(dst, payload []byte) []byte {
	crc := e.crc(payload)

	dst = append(dst, e.esc.Delimiter)
	dst = appendStuffed(dst, payload, e.esc)
	dst = appendStuffed(dst, []byte{byte(crc >> 8), byte(crc)}, e.esc)
	return append(dst, e.esc.Delimiter)
}

// Encode frames payload with the given delimiter/escape pair.
func Encode(payload []byte, esc Escapes) []byte {
	return NewEncoder(Config{Escapes: esc}).Encode(payload)
}

// MaxEncodedLen is the worst case encoded size: every payload and CRC byte
// escaped plus two delimiters.
func MaxEncodedLen(payloadLen int) int {
	return (payloadLen+crcSize)*2 + 2
}

// StuffBytes escapes every delimiter and escape byte in data.
func StuffBytes(data []byte, esc Escapes) []byte {
	return appendStuffed(make([]byte, 0, len(data)*2), data, esc)
}

func appendStuffed(dst, data []byte, esc Escapes) []byte {
	for _, b := range data {
		if b == esc.Delimiter || b == esc.Escape {
			dst = append(dst, esc.Escape, b^EscXor)
		} else {
			dst = append(dst, b)
		}
	}
	return dst
}

// UnstuffBytes removes byte stuffing from escaped data.
// This is the inverse of StuffBytes.
func UnstuffBytes(data []byte, esc Escapes) ([]byte, error) {
	result := make([]byte, 0, len(data))
	escapeNext := false

	for _, b := range data {
		if escapeNext {
			result = append(result, b^EscXor)
			escapeNext = false
		} else if b == esc.Escape {
			escapeNext = true
		} else {
			result = append(result, b)
		}
	}

	if escapeNext {
		return nil, ErrIncompleteEscape
	}

	return result, nil
}
