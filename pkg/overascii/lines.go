// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package overascii

import "bytes"

// DefaultMaxLineLen bounds a log line that never sees a newline
const DefaultMaxLineLen = 4096

// LineSplitter collects log text into lines. A line is emitted on '\n' with
// any trailing '\r' removed, or when it reaches MaxLen bytes.
type LineSplitter struct {
	OnLine func(line string)
	MaxLen int

	buf bytes.Buffer
}

// NewLineSplitter creates a splitter that reports lines to onLine
func NewLineSplitter(onLine func(line string)) *LineSplitter {
	return &LineSplitter{OnLine: onLine, MaxLen: DefaultMaxLineLen}
}

// WriteByte adds one log byte. It never fails.
func (s *LineSplitter) WriteByte(b byte) error {
	if b == '\n' {
		s.flush()
		return nil
	}
	s.buf.WriteByte(b)
	if s.MaxLen > 0 && s.buf.Len() >= s.MaxLen {
		s.flush()
	}
	return nil
}

// Write adds log bytes, implementing io.Writer
func (s *LineSplitter) Write(p []byte) (int, error) {
	for _, b := range p {
		_ = s.WriteByte(b)
	}
	return len(p), nil
}

// Partial returns the text received since the last complete line
func (s *LineSplitter) Partial() string {
	return s.buf.String()
}

// Reset drops any partial line
func (s *LineSplitter) Reset() {
	s.buf.Reset()
}

func (s *LineSplitter) flush() {
	line := bytes.TrimSuffix(s.buf.Bytes(), []byte{'\r'})
	if s.OnLine != nil {
		s.OnLine(string(line))
	}
	s.buf.Reset()
}
