// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package capture

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/robdobson/likecomms/pkg/likehdlc"
)

func TestCapture_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	h := NewHeader(likehdlc.ASCIIEscapes, true, "/dev/ttyUSB0")
	w, err := NewWriter(&buf, h)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}

	ts := time.Date(2025, 3, 1, 12, 0, 0, 123456000, time.UTC)
	records := []Record{
		{Time: ts, Dir: DirTx, Kind: KindFrame, Data: []byte{0x01, 0x02, 0x00}},
		{Time: ts.Add(time.Millisecond), Dir: DirRx, Kind: KindFrameError, Error: "crc mismatch"},
		{Time: ts.Add(2 * time.Millisecond), Dir: DirRx, Kind: KindLogLine, Data: []byte("I (10) boot")},
		{Time: ts.Add(3 * time.Millisecond), Dir: DirRx, Kind: KindRaw, Data: []byte{0x7E, 0x7D, 0x5E}},
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if w.Count() != len(records) {
		t.Errorf("Count = %d, want %d", w.Count(), len(records))
	}

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Header.Version != Version || !r.Header.OverASCII || r.Header.Source != "/dev/ttyUSB0" {
		t.Errorf("header = %+v", r.Header)
	}
	if r.Header.Escapes() != likehdlc.ASCIIEscapes {
		t.Errorf("escapes = %+v", r.Header.Escapes())
	}

	for i, want := range records {
		got, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if !got.Time.Equal(want.Time) {
			t.Errorf("record %d time = %v, want %v", i, got.Time, want.Time)
		}
		if got.Dir != want.Dir || got.Kind != want.Kind || got.Error != want.Error {
			t.Errorf("record %d = %+v, want %+v", i, got, want)
		}
		if !bytes.Equal(got.Data, want.Data) {
			t.Errorf("record %d data = % X, want % X", i, got.Data, want.Data)
		}
	}
	if _, err := r.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("Next at end = %v, want EOF", err)
	}
}

func TestCapture_HelperWriters(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, Header{})
	if err != nil {
		t.Fatal(err)
	}
	w.Frame(DirTx, []byte("tx"))
	w.FrameError(likehdlc.ErrFrameTooLong)
	w.Raw(DirRx, []byte{0xE7})
	w.LogLine("hello")

	r, err := NewReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	wantKinds := []Kind{KindFrame, KindFrameError, KindRaw, KindLogLine}
	for i, k := range wantKinds {
		rec, err := r.Next()
		if err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
		if rec.Kind != k {
			t.Errorf("record %d kind = %d, want %d", i, rec.Kind, k)
		}
		if rec.Time.IsZero() {
			t.Errorf("record %d has zero time", i)
		}
	}
}

func TestCapture_BadHeader(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not cbor", []byte{0xFF, 0xFF}},
		{"wrong version", func() []byte {
			var buf bytes.Buffer
			encMode.NewEncoder(&buf).Encode(Header{Version: Version + 1})
			return buf.Bytes()
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewReader(bytes.NewReader(tt.data)); !errors.Is(err, ErrBadHeader) {
				t.Errorf("NewReader = %v, want ErrBadHeader", err)
			}
		})
	}
}

func TestCapture_TruncatedRecord(t *testing.T) {
	var buf bytes.Buffer
	w, _ := NewWriter(&buf, Header{})
	w.Frame(DirRx, []byte("payload"))
	data := buf.Bytes()[:buf.Len()-3]

	r, err := NewReader(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Next(); err == nil || errors.Is(err, io.EOF) {
		t.Errorf("Next on truncated record = %v, want a decode error", err)
	}
}

func TestDirection_String(t *testing.T) {
	if DirRx.String() != "RX" || DirTx.String() != "TX" {
		t.Errorf("got %s %s", DirRx, DirTx)
	}
}
