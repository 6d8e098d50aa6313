// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/robdobson/likecomms/pkg/capture"
	"github.com/robdobson/likecomms/pkg/likehdlc"
	"github.com/robdobson/likecomms/pkg/overascii"
	"github.com/robdobson/likecomms/pkg/ricproto"
)

func okResponse(msgNum uint8) []byte {
	return ricproto.EncodeMsg(msgNum, ricproto.DirResponse, ricproto.ProtocolRICREST,
		ricproto.RESTURLBody(`{"rslt":"ok"}`))
}

// buildCapture writes a capture holding both recorded frames and the raw
// bytes they came from
func buildCapture(t *testing.T, overASCII bool) *bytes.Buffer {
	t.Helper()
	esc := likehdlc.NonASCIIEscapes

	var buf bytes.Buffer
	w, err := capture.NewWriter(&buf, capture.NewHeader(esc, overASCII, "test"))
	if err != nil {
		t.Fatal(err)
	}

	good := okResponse(7)
	raw := likehdlc.Encode(good, esc)
	corrupt := likehdlc.Encode(okResponse(8), esc)
	corrupt[3] ^= 0x01
	raw = append(raw, corrupt...)
	if overASCII {
		raw = overascii.Encode(raw)
		raw = append(raw, "I (100) booted\n"...)
	}

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	w.Write(capture.Record{Time: ts, Dir: capture.DirRx, Kind: capture.KindRaw, Data: raw})
	w.Write(capture.Record{Time: ts, Dir: capture.DirRx, Kind: capture.KindFrame, Data: good})
	w.Write(capture.Record{Time: ts, Dir: capture.DirRx, Kind: capture.KindFrameError, Error: "CRC mismatch: expected 0x0000, got 0x0001"})
	if overASCII {
		w.Write(capture.Record{Time: ts, Dir: capture.DirRx, Kind: capture.KindLogLine, Data: []byte("I (100) booted")})
	}
	// Sent frames are not replayed
	w.Write(capture.Record{Time: ts, Dir: capture.DirTx, Kind: capture.KindFrame, Data: okResponse(9)})
	return &buf
}

func TestReplayCapture_RecordedFrames(t *testing.T) {
	r, err := capture.NewReader(buildCapture(t, true))
	if err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	stats, err := replayCapture(r, &out, replayOptions{showLog: true})
	if err != nil {
		t.Fatalf("replayCapture: %v", err)
	}

	if stats.TotalFrames != 2 || stats.ValidMsgs != 1 || stats.CRCErrors != 1 || stats.LogLines != 1 {
		t.Errorf("stats = %+v", stats)
	}
	text := out.String()
	for _, want := range []string{"[03:04:05.000] #7", "[ERROR] CRC mismatch", "[LOG] I (100) booted"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "#9") {
		t.Errorf("sent frame was replayed:\n%s", text)
	}
}

func TestReplayCapture_RawRedecode(t *testing.T) {
	for _, overASCII := range []bool{false, true} {
		r, err := capture.NewReader(buildCapture(t, overASCII))
		if err != nil {
			t.Fatal(err)
		}

		var out bytes.Buffer
		stats, err := replayCapture(r, &out, replayOptions{raw: true, showLog: false})
		if err != nil {
			t.Fatalf("overascii=%v: %v", overASCII, err)
		}
		if stats.ValidMsgs != 1 || stats.CRCErrors != 1 {
			t.Errorf("overascii=%v: stats = %+v", overASCII, stats)
		}
		wantLines := uint64(0)
		if overASCII {
			wantLines = 1
		}
		if stats.LogLines != wantLines {
			t.Errorf("overascii=%v: log lines = %d, want %d", overASCII, stats.LogLines, wantLines)
		}
		if strings.Contains(out.String(), "[LOG]") {
			t.Errorf("log printed with showLog=false:\n%s", out.String())
		}
	}
}
