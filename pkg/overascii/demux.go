// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package overascii

// Demux splits a shared line into decoded protocol bytes and log lines
type Demux struct {
	dec   Decoder
	lines *LineSplitter
}

// NewDemux creates a demultiplexer. Log lines go to onLine, which may be nil.
func NewDemux(onLine func(line string)) *Demux {
	return &Demux{lines: NewLineSplitter(onLine)}
}

// Feed routes each byte of chunk in order. Decoded protocol bytes are
// appended to dst, which is returned.
func (m *Demux) Feed(dst, chunk []byte) []byte {
	for _, b := range chunk {
		if !IsProtocolByte(b) {
			_ = m.lines.WriteByte(b)
			continue
		}
		if v, ok := m.dec.DecodeByte(b); ok {
			dst = append(dst, v)
		}
	}
	return dst
}

// Reset drops any pending escape and partial log line
func (m *Demux) Reset() {
	m.dec.Reset()
	m.lines.Reset()
}
