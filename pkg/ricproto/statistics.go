// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricproto

import (
	"errors"
	"fmt"
	"time"

	"github.com/robdobson/likecomms/pkg/likehdlc"
)

// Statistics tracks frame and message statistics and error rates for a
// monitored link. It is not safe for concurrent use.
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalFrames       uint64
	ValidMsgs         uint64
	CRCErrors         uint64
	TooLong           uint64
	DecodeErrors      uint64
	MalformedMsgs     uint64
	UnknownProtocol   uint64
	UnknownRESTType   uint64
	AnomalousMsgs     uint64
	UnnumberedResps   uint64
	InvalidJSON       uint64
	LogLines          uint64
	ByDirection       [4]uint64
	ByProtocolRICREST uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics for one closed frame. msg is nil when the frame
// or envelope failed to decode.
func (s *Statistics) Update(msg *DecodedMsg, decodeErr error, validationErrors []ValidationError) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		switch {
		case likehdlc.IsCRCError(decodeErr):
			s.CRCErrors++
		case errors.Is(decodeErr, likehdlc.ErrFrameTooLong):
			s.TooLong++
		default:
			s.DecodeErrors++
		}
		return
	}

	if msg != nil {
		s.ByDirection[msg.Direction&3]++
		if msg.Protocol == ProtocolRICREST {
			s.ByProtocolRICREST++
		}
	}

	if len(validationErrors) == 0 {
		s.ValidMsgs++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyUnknownProtocol:
			s.UnknownProtocol++
			s.MalformedMsgs++
		case AnomalyUnknownRESTType, AnomalyMissingRESTType, AnomalyShortFileBlock:
			s.UnknownRESTType++
			s.MalformedMsgs++
		case AnomalyUnnumberedResponse:
			s.UnnumberedResps++
			s.AnomalousMsgs++
		case AnomalyInvalidJSON:
			s.InvalidJSON++
			s.AnomalousMsgs++
		}
	}
}

// AddLogLine counts a log line received on an overlay link
func (s *Statistics) AddLogLine() {
	s.LogLines++
}

// Errors returns the total of all error counters
func (s *Statistics) Errors() uint64 {
	return s.CRCErrors + s.TooLong + s.DecodeErrors + s.MalformedMsgs + s.AnomalousMsgs
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.Errors()) / elapsed
	}
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100.0 / float64(total)
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Messages:  %8d (%.1f%%)\n", s.ValidMsgs, percent(s.ValidMsgs, s.TotalFrames))

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, percent(s.CRCErrors, s.TotalFrames))
	}
	if s.TooLong > 0 {
		result += fmt.Sprintf("Too Long:        %8d (%.1f%%)\n", s.TooLong, percent(s.TooLong, s.TotalFrames))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors, s.TotalFrames))
	}
	if s.MalformedMsgs > 0 {
		result += fmt.Sprintf("Malformed Msgs:  %8d (%.1f%%)\n", s.MalformedMsgs, percent(s.MalformedMsgs, s.TotalFrames))
		if s.UnknownProtocol > 0 {
			result += fmt.Sprintf("  Unknown Proto:    %5d\n", s.UnknownProtocol)
		}
		if s.UnknownRESTType > 0 {
			result += fmt.Sprintf("  Bad REST Elem:    %5d\n", s.UnknownRESTType)
		}
	}
	if s.AnomalousMsgs > 0 {
		result += fmt.Sprintf("Anomalous Msgs:  %8d (%.1f%%)\n", s.AnomalousMsgs, percent(s.AnomalousMsgs, s.TotalFrames))
		if s.UnnumberedResps > 0 {
			result += fmt.Sprintf("  Unnumbered Resp:  %5d\n", s.UnnumberedResps)
		}
		if s.InvalidJSON > 0 {
			result += fmt.Sprintf("  Invalid JSON:     %5d\n", s.InvalidJSON)
		}
	}
	if s.LogLines > 0 {
		result += fmt.Sprintf("Log Lines:       %8d\n", s.LogLines)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
