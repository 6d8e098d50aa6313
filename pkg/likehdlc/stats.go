// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package likehdlc

import (
	"fmt"
	"sync/atomic"
)

// Stats counts decoder outcomes. Counters are updated by the decoding
// goroutine and may be read from any goroutine.
type Stats struct {
	rxFrames  atomic.Uint64
	crcErrors atomic.Uint64
	tooLong   atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats
type StatsSnapshot struct {
	RxFrames  uint64
	CRCErrors uint64
	TooLong   uint64
}

// Snapshot returns the current counter values
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		RxFrames:  s.rxFrames.Load(),
		CRCErrors: s.crcErrors.Load(),
		TooLong:   s.tooLong.Load(),
	}
}

// CRCErrors returns the number of frames rejected by CRC check
func (s *Stats) CRCErrors() uint64 {
	return s.crcErrors.Load()
}

// Clear resets all counters
func (s *Stats) Clear() {
	s.rxFrames.Store(0)
	s.crcErrors.Store(0)
	s.tooLong.Store(0)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("frames=%d crcErrors=%d tooLong=%d", s.RxFrames, s.CRCErrors, s.TooLong)
}
