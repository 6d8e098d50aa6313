// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricif

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/robdobson/likecomms/pkg/likehdlc"
	"github.com/robdobson/likecomms/pkg/overascii"
)

// bufferTransport reads from in and writes to out
type bufferTransport struct {
	in     *bytes.Reader
	out    bytes.Buffer
	closed bool
}

func newBufferTransport(in []byte) *bufferTransport {
	return &bufferTransport{in: bytes.NewReader(in)}
}

func (b *bufferTransport) Read(p []byte) (int, error)  { return b.in.Read(p) }
func (b *bufferTransport) Write(p []byte) (int, error) { return b.out.Write(p) }
func (b *bufferTransport) Close() error {
	b.closed = true
	return nil
}

type failingWriter struct{ bufferTransport }

func (f *failingWriter) Write([]byte) (int, error) { return 0, errors.New("unplugged") }

type linkEvents struct {
	frames [][]byte
	errs   []error
	lines  []string
}

func (e *linkEvents) handlers() LinkHandlers {
	return LinkHandlers{
		Frame:      func(p []byte) { e.frames = append(e.frames, p) },
		FrameError: func(err error) { e.errs = append(e.errs, err) },
		LogLine:    func(line string) { e.lines = append(e.lines, line) },
	}
}

func TestLink_SendFramePlain(t *testing.T) {
	tr := newBufferTransport(nil)
	cfg := DefaultLinkConfig()
	l := NewLink(tr, cfg, LinkHandlers{}, quietLogger())

	if err := l.SendFrame([]byte("hello")); err != nil {
		t.Fatalf("SendFrame: %v", err)
	}
	want := likehdlc.Encode([]byte("hello"), likehdlc.NonASCIIEscapes)
	if !bytes.Equal(tr.out.Bytes(), want) {
		t.Errorf("wire = % X, want % X", tr.out.Bytes(), want)
	}
	if s := l.Stats(); s.TxFrames != 1 || s.TxBytes != uint64(len(want)) {
		t.Errorf("stats = %s", s)
	}
}

func TestLink_SendFrameOverASCII(t *testing.T) {
	tr := newBufferTransport(nil)
	cfg := DefaultLinkConfig()
	cfg.OverASCII = true
	l := NewLink(tr, cfg, LinkHandlers{}, quietLogger())

	l.SendFrame([]byte{0x00, 0xE7})
	want := overascii.Encode(likehdlc.Encode([]byte{0x00, 0xE7}, likehdlc.NonASCIIEscapes))
	if !bytes.Equal(tr.out.Bytes(), want) {
		t.Errorf("wire = % X, want % X", tr.out.Bytes(), want)
	}
	for _, b := range tr.out.Bytes() {
		if !overascii.IsProtocolByte(b) {
			t.Fatalf("overlay wire byte 0x%02X has bit 7 clear", b)
		}
	}
}

func TestLink_SendFrameErrors(t *testing.T) {
	l := NewLink(nil, DefaultLinkConfig(), LinkHandlers{}, quietLogger())
	if err := l.SendFrame([]byte("x")); !errors.Is(err, ErrNoTransport) {
		t.Errorf("SendFrame without transport = %v", err)
	}

	l.SetTransport(&failingWriter{})
	if err := l.SendFrame([]byte("x")); err == nil {
		t.Error("expected write error")
	}
	if l.Stats().WriteErrors != 1 {
		t.Errorf("write errors = %d, want 1", l.Stats().WriteErrors)
	}
}

func TestLink_FeedOverASCIIWithLogText(t *testing.T) {
	cfg := DefaultLinkConfig()
	cfg.OverASCII = true
	var ev linkEvents
	l := NewLink(nil, cfg, ev.handlers(), quietLogger())

	frame := overascii.Encode(likehdlc.Encode([]byte("reply"), likehdlc.NonASCIIEscapes))
	half := len(frame) / 2

	l.Feed([]byte("I (10) start\n"))
	l.Feed(frame[:half])
	l.Feed([]byte("W (20) mid-frame log\r\n"))
	l.Feed(frame[half:])

	if len(ev.frames) != 1 || string(ev.frames[0]) != "reply" {
		t.Errorf("frames = %q", ev.frames)
	}
	if len(ev.lines) != 2 || ev.lines[0] != "I (10) start" || ev.lines[1] != "W (20) mid-frame log" {
		t.Errorf("lines = %q", ev.lines)
	}
	if l.Stats().LogLines != 2 {
		t.Errorf("log lines = %d", l.Stats().LogLines)
	}
}

func TestLink_RunUntilEOF(t *testing.T) {
	esc := likehdlc.ASCIIEscapes
	var stream []byte
	stream = append(stream, likehdlc.Encode([]byte("one"), esc)...)
	stream = append(stream, esc.Delimiter, 0x01, esc.Delimiter) // too short
	stream = append(stream, likehdlc.Encode([]byte("two"), esc)...)

	cfg := DefaultLinkConfig()
	cfg.Codec.Escapes = esc
	cfg.ReadBufferSize = 3
	var ev linkEvents
	l := NewLink(newBufferTransport(stream), cfg, ev.handlers(), quietLogger())

	err := l.Run(context.Background())
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Run returned %v, want EOF", err)
	}
	if len(ev.frames) != 2 || string(ev.frames[0]) != "one" || string(ev.frames[1]) != "two" {
		t.Errorf("frames = %q", ev.frames)
	}
	if len(ev.errs) != 1 || !likehdlc.IsCRCError(ev.errs[0]) {
		t.Errorf("errs = %v", ev.errs)
	}
	s := l.Stats()
	if s.RxBytes != uint64(len(stream)) || s.Decoder.RxFrames != 2 || s.Decoder.CRCErrors != 1 {
		t.Errorf("stats = %s", s)
	}

	l.ClearStats()
	if s := l.Stats(); s.RxBytes != 0 || s.Decoder.RxFrames != 0 {
		t.Errorf("after ClearStats = %s", s)
	}
}

func TestLink_RunCancelled(t *testing.T) {
	l := NewLink(newBufferTransport(nil), DefaultLinkConfig(), LinkHandlers{}, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := l.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
}

func TestLink_ResetDropsPartialFrame(t *testing.T) {
	esc := likehdlc.NonASCIIEscapes
	var ev linkEvents
	l := NewLink(nil, DefaultLinkConfig(), ev.handlers(), quietLogger())

	encoded := likehdlc.Encode([]byte("lost"), esc)
	l.Feed(encoded[:4])
	l.Reset()
	l.Feed([]byte("garbage"))
	l.Feed(likehdlc.Encode([]byte("kept"), esc))

	if len(ev.errs) != 0 {
		t.Errorf("errs = %v", ev.errs)
	}
	if len(ev.frames) != 1 || string(ev.frames[0]) != "kept" {
		t.Errorf("frames = %q", ev.frames)
	}
}

func TestLink_Close(t *testing.T) {
	tr := newBufferTransport(nil)
	l := NewLink(tr, DefaultLinkConfig(), LinkHandlers{}, quietLogger())
	if err := l.Close(); err != nil || !tr.closed {
		t.Errorf("Close = %v, closed = %v", err, tr.closed)
	}
	if err := NewLink(nil, DefaultLinkConfig(), LinkHandlers{}, quietLogger()).Close(); err != nil {
		t.Errorf("Close without transport = %v", err)
	}
}
