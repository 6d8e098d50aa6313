// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricif

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"

	"github.com/robdobson/likecomms/pkg/likehdlc"
	"github.com/robdobson/likecomms/pkg/overascii"
)

// ErrNoTransport is returned when sending on a link without a connection
var ErrNoTransport = errors.New("link has no transport")

// DefaultReadBufferSize is the size of each transport read
const DefaultReadBufferSize = 1024

// LinkConfig configures the framing of one connection
type LinkConfig struct {
	Codec likehdlc.Config

	// OverASCII shares the line with log text using the overascii overlay
	OverASCII bool

	ReadBufferSize int
}

// DefaultLinkConfig returns plain framing with the non-ASCII escape pair
func DefaultLinkConfig() LinkConfig {
	return LinkConfig{
		Codec:          likehdlc.DefaultConfig(),
		ReadBufferSize: DefaultReadBufferSize,
	}
}

// LinkHandlers receive link events on the reader goroutine, in stream order.
// Nil functions are skipped.
type LinkHandlers struct {
	Frame      func(payload []byte)
	FrameError func(err error)
	LogLine    func(line string)
}

// LinkStats is a snapshot of link counters
type LinkStats struct {
	Decoder     likehdlc.StatsSnapshot
	RxBytes     uint64
	TxFrames    uint64
	TxBytes     uint64
	WriteErrors uint64
	LogLines    uint64
}

func (s LinkStats) String() string {
	return fmt.Sprintf("%s rxBytes=%d txFrames=%d txBytes=%d writeErrors=%d logLines=%d",
		s.Decoder, s.RxBytes, s.TxFrames, s.TxBytes, s.WriteErrors, s.LogLines)
}

// Link turns a byte stream into frames and back.
//
// Received bytes may be pushed with Feed or pulled by Run, but not both.
// SendFrame may be called from any goroutine.
type Link struct {
	cfg    LinkConfig
	logger *log.Logger

	wmu sync.Mutex
	rw  io.ReadWriteCloser
	enc *likehdlc.Encoder
	out []byte

	rmu     sync.Mutex
	dec     *likehdlc.Decoder
	demux   *overascii.Demux
	handler likehdlc.HandlerFuncs
	scratch []byte

	rxBytes     atomic.Uint64
	txFrames    atomic.Uint64
	txBytes     atomic.Uint64
	writeErrors atomic.Uint64
	logLines    atomic.Uint64
}

// NewLink creates a link over rw, which may be nil until SetTransport
func NewLink(rw io.ReadWriteCloser, cfg LinkConfig, h LinkHandlers, logger *log.Logger) *Link {
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[link] ", log.LstdFlags)
	}
	l := &Link{
		cfg:     cfg,
		logger:  logger,
		rw:      rw,
		enc:     likehdlc.NewEncoder(cfg.Codec),
		dec:     likehdlc.NewDecoder(cfg.Codec),
		handler: likehdlc.HandlerFuncs{Frame: h.Frame, Error: h.FrameError},
	}
	if cfg.OverASCII {
		l.demux = overascii.NewDemux(func(line string) {
			l.logLines.Add(1)
			if h.LogLine != nil {
				h.LogLine(line)
			}
		})
	}
	return l
}

// SendFrame encodes payload and writes it to the transport
func (l *Link) SendFrame(payload []byte) error {
	l.wmu.Lock()
	defer l.wmu.Unlock()

	if l.rw == nil {
		return ErrNoTransport
	}

	l.out = l.enc.AppendEncoded(l.out[:0], payload)
	wire := l.out
	if l.cfg.OverASCII {
		wire = overascii.Encode(l.out)
	}

	if _, err := l.rw.Write(wire); err != nil {
		l.writeErrors.Add(1)
		return fmt.Errorf("link write: %w", err)
	}
	l.txFrames.Add(1)
	l.txBytes.Add(uint64(len(wire)))
	return nil
}

// Feed pushes received bytes through the decoder
func (l *Link) Feed(chunk []byte) {
	l.rmu.Lock()
	defer l.rmu.Unlock()

	l.rxBytes.Add(uint64(len(chunk)))
	if l.demux != nil {
		l.scratch = l.demux.Feed(l.scratch[:0], chunk)
		chunk = l.scratch
	}
	l.dec.Decode(chunk, l.handler)
}

// Run reads from the transport until ctx is done or a read fails. A read
// error is returned to the caller; reconnecting is the caller's job.
// Cancelling ctx does not interrupt a blocked read; close the transport.
func (l *Link) Run(ctx context.Context) error {
	l.wmu.Lock()
	rw := l.rw
	l.wmu.Unlock()
	if rw == nil {
		return ErrNoTransport
	}

	buf := make([]byte, l.cfg.ReadBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := rw.Read(buf)
		if n > 0 {
			l.Feed(buf[:n])
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return fmt.Errorf("link read: %w", err)
		}
	}
}

// SetTransport replaces the transport without closing the old one
func (l *Link) SetTransport(rw io.ReadWriteCloser) {
	l.wmu.Lock()
	l.rw = rw
	l.wmu.Unlock()
}

// Reset drops any partial frame, escape or log line. Counters are kept.
func (l *Link) Reset() {
	l.rmu.Lock()
	defer l.rmu.Unlock()

	l.dec.Reset()
	if l.demux != nil {
		l.demux.Reset()
	}
}

// Close closes the transport
func (l *Link) Close() error {
	l.wmu.Lock()
	rw := l.rw
	l.wmu.Unlock()
	if rw == nil {
		return nil
	}
	return rw.Close()
}

// Escapes returns the delimiter/escape pair in use
func (l *Link) Escapes() likehdlc.Escapes {
	return l.enc.Escapes()
}

// Stats returns a snapshot of the link counters
func (l *Link) Stats() LinkStats {
	return LinkStats{
		Decoder:     l.dec.Stats().Snapshot(),
		RxBytes:     l.rxBytes.Load(),
		TxFrames:    l.txFrames.Load(),
		TxBytes:     l.txBytes.Load(),
		WriteErrors: l.writeErrors.Load(),
		LogLines:    l.logLines.Load(),
	}
}

// ClearStats resets the link and decoder counters
func (l *Link) ClearStats() {
	l.dec.Stats().Clear()
	l.rxBytes.Store(0)
	l.txFrames.Store(0)
	l.txBytes.Store(0)
	l.writeErrors.Store(0)
	l.logLines.Store(0)
}
