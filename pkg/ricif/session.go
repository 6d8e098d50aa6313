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
	"time"

	"github.com/robdobson/likecomms/pkg/ricproto"
)

// DefaultCloseWait bounds how long Close waits for background goroutines
const DefaultCloseWait = 500 * time.Millisecond

// ErrNotStarted is returned by Reconnect before Start
var ErrNotStarted = errors.New("session not started")

// Handlers receive session events. Message, LogLine and FrameError are
// called on the reader goroutine and must not wait for replies.
// Nil functions are skipped.
type Handlers struct {
	// Message receives unnumbered messages and replies that matched no
	// outstanding request
	Message func(msg *ricproto.DecodedMsg)

	LogLine    func(line string)
	FrameError func(err error)

	// LinkError receives the error that stopped the reader
	LinkError func(err error)

	// Tick runs after every correlator sweep
	Tick func()
}

// SessionConfig configures a Session
type SessionConfig struct {
	Link       LinkConfig
	Correlator CorrelatorConfig
	CloseWait  time.Duration
}

// DefaultSessionConfig returns the default link and correlator settings
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Link:       DefaultLinkConfig(),
		Correlator: DefaultCorrelatorConfig(),
		CloseWait:  DefaultCloseWait,
	}
}

// SessionStats aggregates link and correlator statistics
type SessionStats struct {
	Link       LinkStats
	Correlator CorrelatorStats
}

// Session is one open connection to a device: a Link for framing plus a
// Correlator for request/response matching. Sessions share no state.
type Session struct {
	cfg      SessionConfig
	logger   *log.Logger
	handlers Handlers

	link *Link
	corr *Correlator

	mu           sync.Mutex
	ctx          context.Context
	cancel       context.CancelFunc
	readerCancel context.CancelFunc
	readerDone   chan struct{}
	sweepDone    chan struct{}
}

// NewSession creates a session over rw. A nil logger logs to the standard
// logger's output with a [session] prefix.
func NewSession(rw io.ReadWriteCloser, cfg SessionConfig, h Handlers, logger *log.Logger) *Session {
	if cfg.CloseWait <= 0 {
		cfg.CloseWait = DefaultCloseWait
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[session] ", log.LstdFlags)
	}

	s := &Session{cfg: cfg, logger: logger, handlers: h}
	s.link = NewLink(rw, cfg.Link, LinkHandlers{
		Frame:      s.handleFrame,
		FrameError: h.FrameError,
		LogLine:    h.LogLine,
	}, logger)
	s.corr = NewCorrelator(s.link, cfg.Correlator, logger)
	s.corr.SetUnsolicitedHandler(h.Message)
	s.corr.SetSweepHook(h.Tick)
	return s
}

func (s *Session) handleFrame(payload []byte) {
	s.corr.HandleFrame(payload)
}

// Link returns the session's link
func (s *Session) Link() *Link {
	return s.link
}

// Correlator returns the session's correlator
func (s *Session) Correlator() *Correlator {
	return s.corr
}

// Start launches the reader and the sweeper
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	s.sweepDone = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = s.corr.Run(s.ctx)
	}(s.sweepDone)

	s.startReaderLocked()
}

func (s *Session) startReaderLocked() {
	readerCtx, cancel := context.WithCancel(s.ctx)
	s.readerCancel = cancel
	s.readerDone = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		err := s.link.Run(readerCtx)
		if err == nil || readerCtx.Err() != nil {
			return
		}
		s.logger.Printf("reader stopped: %v", err)
		if s.handlers.LinkError != nil {
			s.handlers.LinkError(err)
		}
	}(s.readerDone)
}

// Done is closed when the current reader stops
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readerDone
}

func (s *Session) wait(done <-chan struct{}, what string) {
	if done == nil {
		return
	}
	select {
	case <-done:
	case <-time.After(s.cfg.CloseWait):
		s.logger.Printf("%s did not stop within %s", what, s.cfg.CloseWait)
	}
}

// Reconnect swaps in a new transport. The old transport is closed, the
// decoder and correlator are reset and outstanding SendSync calls fail with
// ErrConnectionReset.
func (s *Session) Reconnect(rw io.ReadWriteCloser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		return ErrNotStarted
	}

	s.readerCancel()
	if err := s.link.Close(); err != nil {
		s.logger.Printf("closing old transport: %v", err)
	}
	s.wait(s.readerDone, "reader")

	s.link.SetTransport(rw)
	s.resetLocked()
	s.startReaderLocked()
	return nil
}

// Reset clears decoder, overlay and correlator state
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
}

func (s *Session) resetLocked() {
	s.link.Reset()
	s.corr.Reset()
}

// Close stops the background goroutines, closes the transport and releases
// any SendSync waiters with ErrClosed
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.corr.Close()
	if s.cancel != nil {
		s.cancel()
	}
	err := s.link.Close()
	s.wait(s.readerDone, "reader")
	s.wait(s.sweepDone, "sweeper")
	return err
}

// SendRESTURL sends a RICREST URL command without waiting
func (s *Session) SendRESTURL(url string) (uint8, error) {
	return s.corr.SendAsync(ricproto.ProtocolRICREST, ricproto.RESTURLBody(url))
}

// CmdRESTURLSync sends a RICREST URL command and waits for the reply.
// A timeout <= 0 uses the configured response timeout.
func (s *Session) CmdRESTURLSync(ctx context.Context, url string, timeout time.Duration) (*ricproto.DecodedMsg, error) {
	return s.corr.SendSync(ctx, ricproto.ProtocolRICREST, ricproto.RESTURLBody(url), timeout)
}

// CmdRESTResult sends a RICREST URL command and reports whether the reply
// had "rslt":"ok"
func (s *Session) CmdRESTResult(ctx context.Context, url string) (bool, error) {
	msg, err := s.CmdRESTURLSync(ctx, url, 0)
	if err != nil {
		return false, err
	}
	return msg.Result() == "ok", nil
}

// SendCmdFrame sends a RICREST command frame without waiting
func (s *Session) SendCmdFrame(cmd, payload []byte) (uint8, error) {
	return s.corr.SendAsync(ricproto.ProtocolRICREST, ricproto.RESTCmdFrameBody(cmd, payload))
}

// SendCmdFrameSync sends a RICREST command frame and waits for the reply
func (s *Session) SendCmdFrameSync(ctx context.Context, cmd, payload []byte, timeout time.Duration) (*ricproto.DecodedMsg, error) {
	return s.corr.SendSync(ctx, ricproto.ProtocolRICREST, ricproto.RESTCmdFrameBody(cmd, payload), timeout)
}

// SendFileBlock sends one RICREST file block without waiting
func (s *Session) SendFileBlock(offset uint32, data []byte) (uint8, error) {
	return s.corr.SendAsync(ricproto.ProtocolRICREST, ricproto.RESTFileBlockBody(offset, data))
}

// Stats returns link and correlator statistics
func (s *Session) Stats() SessionStats {
	return SessionStats{
		Link:       s.link.Stats(),
		Correlator: s.corr.Stats(),
	}
}

func (s SessionStats) String() string {
	return fmt.Sprintf("%s %s", s.Link, s.Correlator)
}
