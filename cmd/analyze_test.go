// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/robdobson/likecomms/pkg/likehdlc"
	"github.com/robdobson/likecomms/pkg/ricif"
	"github.com/robdobson/likecomms/pkg/ricproto"
)

// ============================================================================
// Frame analysis
// ============================================================================

func TestAnalyzeFrame(t *testing.T) {
	valid := ricproto.EncodeMsg(3, ricproto.DirResponse, ricproto.ProtocolRICREST,
		ricproto.RESTURLBody(`{"rslt":"ok"}`))
	badJSON := ricproto.EncodeMsg(4, ricproto.DirResponse, ricproto.ProtocolRICREST,
		ricproto.RESTURLBody(`{"rslt":`))

	tests := []struct {
		name       string
		frame      []byte
		wantErr    bool
		wantIssues int
	}{
		{"valid response", valid, false, 0},
		{"invalid json", badJSON, false, 1},
		{"too short", []byte{0x01}, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := analyzeFrame(tt.frame)
			if (a.err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", a.err, tt.wantErr)
			}
			if len(a.issues) != tt.wantIssues {
				t.Errorf("issues = %v, want %d", a.issues, tt.wantIssues)
			}

			stats := ricproto.NewStatistics()
			a.record(stats)
			if stats.TotalFrames != 1 {
				t.Errorf("TotalFrames = %d", stats.TotalFrames)
			}
			if !tt.wantErr && tt.wantIssues == 0 && stats.ValidMsgs != 1 {
				t.Errorf("ValidMsgs = %d", stats.ValidMsgs)
			}
		})
	}
}

func TestSyncTracker(t *testing.T) {
	var s syncTracker
	if s.frameError() || s.frameError() {
		t.Error("errors before sync should be hidden")
	}
	if !s.frameOK() {
		t.Error("first good frame should report sync")
	}
	if s.frameOK() {
		t.Error("second good frame should not report sync")
	}
	if !s.frameError() {
		t.Error("errors after sync should be shown")
	}
	if got := s.String(); got != "Synchronized after skipping 2 bad frames" {
		t.Errorf("String = %q", got)
	}

	var clean syncTracker
	clean.frameOK()
	if clean.String() != "Synchronized" {
		t.Errorf("String = %q", clean.String())
	}
}

func TestFormatIssues(t *testing.T) {
	got := formatIssues([]ricproto.ValidationError{
		{Type: ricproto.AnomalyInvalidJSON, Message: "reply is not JSON"},
		{Type: ricproto.AnomalyUnnumberedResponse, Message: "response without number"},
	})
	if !strings.Contains(got, "Issue 1: ") || !strings.Contains(got, "Issue 2: ") {
		t.Errorf("formatIssues = %q", got)
	}
	if strings.Count(got, "\n") != 2 {
		t.Errorf("want one line per issue, got %q", got)
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0s"},
		{1500 * time.Millisecond, "1 second"},
		{90 * time.Second, "1 minute and 30 seconds"},
		{2*time.Hour + 1*time.Second, "2 hours and 1 second"},
		{26*time.Hour + 3*time.Minute + 4*time.Second, "1 day, 2 hours, 3 minutes, and 4 seconds"},
		{48 * time.Hour, "2 days"},
	}
	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

// ============================================================================
// Raw dump
// ============================================================================

func TestMarkByte(t *testing.T) {
	esc := likehdlc.NonASCIIEscapes
	tests := []struct {
		b         byte
		overASCII bool
		want      byte
	}{
		{0xE7, false, 'D'},
		{0xD7, false, 'E'},
		{0x41, false, '.'},
		{0xE7, true, 'P'},
		{0x85, true, 'P'},
		{'I', true, 'L'},
		{'\n', true, 'L'},
	}
	for _, tt := range tests {
		if got := markByte(tt.b, esc, tt.overASCII); got != tt.want {
			t.Errorf("markByte(0x%02X, %v) = %c, want %c", tt.b, tt.overASCII, got, tt.want)
		}
	}
}

func TestDumpChunk(t *testing.T) {
	data := likehdlc.Encode([]byte("0123456789abcdef"), likehdlc.NonASCIIEscapes)
	var buf bytes.Buffer
	dumpChunk(&buf, data, likehdlc.NonASCIIEscapes, false)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	wantLines := 2 * ((len(data) + dumpBytesPerLine - 1) / dumpBytesPerLine)
	if len(lines) != wantLines {
		t.Fatalf("got %d lines, want %d:\n%s", len(lines), wantLines, buf.String())
	}
	if !strings.HasPrefix(lines[0], "  0000  E7 30 31") {
		t.Errorf("first hex line = %q", lines[0])
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "D  .  .") {
		t.Errorf("first mark line = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "  0010  ") {
		t.Errorf("second hex line = %q", lines[2])
	}
}

// ============================================================================
// Settings
// ============================================================================

func TestMergeFlags(t *testing.T) {
	savedPort, savedBaud, savedTCP, savedOver := portName, baudRate, tcpAddr, overASCII
	t.Cleanup(func() {
		portName, baudRate, tcpAddr, overASCII = savedPort, savedBaud, savedTCP, savedOver
	})

	cfg := ricif.DefaultConfig()
	cfg.Connection.Port = "/dev/from-file"
	cfg.Connection.TCP = "file:1234"

	portName = "/dev/ttyUSB1"
	baudRate = 921600
	tcpAddr = "flag:9999"
	overASCII = true

	changed := map[string]bool{"baud": true, "overascii": true, "tcp": true}
	mergeFlags(cfg, func(name string) bool { return changed[name] })

	if cfg.Connection.Port != "/dev/from-file" {
		t.Errorf("port overridden without flag: %q", cfg.Connection.Port)
	}
	if cfg.Connection.Baud != 921600 || cfg.Connection.TCP != "flag:9999" || !cfg.Framing.OverASCII {
		t.Errorf("flags not applied: %+v", cfg)
	}
	if cfg.Framing.ASCIIEscapes {
		t.Error("ascii escapes changed without flag")
	}
}

// ============================================================================
// Reconnect backoff
// ============================================================================

func TestBackoff(t *testing.T) {
	b := newBackoff(time.Second, 5*time.Second)
	want := []time.Duration{1, 2, 4, 5, 5}
	for i, w := range want {
		if got := b.Next(); got != w*time.Second {
			t.Errorf("step %d = %v, want %v", i, got, w*time.Second)
		}
	}
	b.Reset()
	if got := b.Next(); got != time.Second {
		t.Errorf("after Reset = %v", got)
	}
}

func TestFrameErrorFromText(t *testing.T) {
	tests := []struct {
		text string
		want error
	}{
		{"CRC mismatch: expected 0x1234, got 0x5678", likehdlc.ErrCRCMismatch},
		{"frame too short", likehdlc.ErrFrameTooShort},
		{"frame too long", likehdlc.ErrFrameTooLong},
	}
	for _, tt := range tests {
		if err := frameErrorFromText(tt.text); !errors.Is(err, tt.want) {
			t.Errorf("frameErrorFromText(%q) = %v, want %v", tt.text, err, tt.want)
		}
	}
	if err := frameErrorFromText("something else"); likehdlc.IsCRCError(err) {
		t.Errorf("unknown text mapped to CRC error: %v", err)
	}
}
