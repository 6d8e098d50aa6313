// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/robdobson/likecomms/pkg/ricproto"
)

// analysis is the outcome of decoding and validating one frame
type analysis struct {
	msg    *ricproto.DecodedMsg
	err    error
	issues []ricproto.ValidationError
}

func analyzeFrame(payload []byte) analysis {
	msg, err := ricproto.Decode(payload)
	if err != nil {
		return analysis{err: err}
	}
	return analysis{msg: msg, issues: ricproto.ValidateMsg(msg)}
}

// record adds the analysis to stats
func (a analysis) record(stats *ricproto.Statistics) {
	stats.Update(a.msg, a.err, a.issues)
}

// syncTracker hides frame errors until the first good frame. Attaching to a
// live link usually starts mid-frame.
type syncTracker struct {
	synced  bool
	skipped int
}

// frameError reports whether an error should be shown
func (s *syncTracker) frameError() bool {
	if s.synced {
		return true
	}
	s.skipped++
	return false
}

// frameOK reports whether this is the first good frame
func (s *syncTracker) frameOK() bool {
	if s.synced {
		return false
	}
	s.synced = true
	return true
}

func (s *syncTracker) String() string {
	if s.skipped > 0 {
		return fmt.Sprintf("Synchronized after skipping %d bad frames", s.skipped)
	}
	return "Synchronized"
}

// formatIssues lists validation issues one per line
func formatIssues(issues []ricproto.ValidationError) string {
	var sb strings.Builder
	for i, issue := range issues {
		fmt.Fprintf(&sb, "  Issue %d: %s: %s\n", i+1, issue.Type, issue.Message)
	}
	return sb.String()
}

// formatUptime formats a duration as a human-friendly string
func formatUptime(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}

	seconds := int64(d / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	seconds %= 60
	minutes %= 60
	hours %= 24

	parts := []string{}
	add := func(n int64, unit string) {
		switch {
		case n == 1:
			parts = append(parts, "1 "+unit)
		case n > 1:
			parts = append(parts, fmt.Sprintf("%d %ss", n, unit))
		}
	}
	add(days, "day")
	add(hours, "hour")
	add(minutes, "minute")
	add(seconds, "second")

	switch len(parts) {
	case 0:
		return "0 seconds"
	case 1:
		return parts[0]
	case 2:
		return parts[0] + " and " + parts[1]
	}
	last := parts[len(parts)-1]
	return strings.Join(parts[:len(parts)-1], ", ") + ", and " + last
}
