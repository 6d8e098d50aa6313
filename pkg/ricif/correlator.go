// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricif

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robdobson/likecomms/pkg/ricproto"
)

// Correlator errors. ErrTimeout is a normal, retriable outcome.
var (
	ErrTimeout         = errors.New("response timeout")
	ErrClosed          = errors.New("correlator closed")
	ErrConnectionReset = errors.New("connection reset")
)

// Correlator defaults
const (
	DefaultRespTimeout   = 2 * time.Second
	DefaultSweepInterval = 1 * time.Second
)

// FrameSender transmits one frame payload
type FrameSender interface {
	SendFrame(payload []byte) error
}

// CorrelatorConfig configures a Correlator
type CorrelatorConfig struct {
	// RespTimeout is how long an entry stays outstanding, and the default
	// wait for SendSync
	RespTimeout time.Duration

	// SweepInterval is how often Run removes expired entries
	SweepInterval time.Duration

	// AverageWindow is the number of round trips averaged
	AverageWindow int
}

// DefaultCorrelatorConfig returns a 2 s timeout swept every second
func DefaultCorrelatorConfig() CorrelatorConfig {
	return CorrelatorConfig{
		RespTimeout:   DefaultRespTimeout,
		SweepInterval: DefaultSweepInterval,
		AverageWindow: DefaultAverageWindow,
	}
}

// CorrelatorStats is a snapshot of correlator counters
type CorrelatorStats struct {
	Matched      uint64
	Unmatched    uint64
	Unnumbered   uint64
	Timeouts     uint64
	Malformed    uint64
	Outstanding  int
	RoundTrips   uint64
	RoundTripAvg time.Duration
}

func (s CorrelatorStats) String() string {
	return fmt.Sprintf("matched=%d unmatched=%d unnumbered=%d timeouts=%d outstanding=%d rtt=%s",
		s.Matched, s.Unmatched, s.Unnumbered, s.Timeouts, s.Outstanding, s.RoundTripAvg)
}

type result struct {
	msg *ricproto.DecodedMsg
	err error
}

// pending is an outstanding request
type pending struct {
	sent    time.Time
	timeout time.Duration
	awaited bool
	done    chan result // awaited only, buffered
}

func (p *pending) release(r result) {
	if p.done != nil {
		select {
		case p.done <- r:
		default:
		}
	}
}

// Correlator numbers outgoing requests and matches replies to them by
// message number.
//
// The outstanding table is shared by the reader path (HandleFrame), the
// sweeper and any number of senders, and is guarded by mu.
type Correlator struct {
	sender FrameSender
	cfg    CorrelatorConfig
	logger *log.Logger

	mu          sync.Mutex
	outstanding map[uint8]*pending
	nextNum     uint8
	closed      bool

	onUnsolicited func(*ricproto.DecodedMsg)
	onSweep       func()

	matched    atomic.Uint64
	unmatched  atomic.Uint64
	unnumbered atomic.Uint64
	timeouts   atomic.Uint64
	malformed  atomic.Uint64
	rtt        *Averager

	now func() time.Time
}

// NewCorrelator creates a correlator sending through sender. A nil logger
// logs to the standard logger's output.
func NewCorrelator(sender FrameSender, cfg CorrelatorConfig, logger *log.Logger) *Correlator {
	if cfg.RespTimeout <= 0 {
		cfg.RespTimeout = DefaultRespTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[correlator] ", log.LstdFlags)
	}
	return &Correlator{
		sender:      sender,
		cfg:         cfg,
		logger:      logger,
		outstanding: make(map[uint8]*pending),
		nextNum:     1,
		rtt:         NewAverager(cfg.AverageWindow),
		now:         time.Now,
	}
}

// SetUnsolicitedHandler sets the callback for unnumbered and unmatched
// messages. It is called on the reader goroutine.
func (c *Correlator) SetUnsolicitedHandler(fn func(*ricproto.DecodedMsg)) {
	c.mu.Lock()
	c.onUnsolicited = fn
	c.mu.Unlock()
}

// SetSweepHook sets a callback run after every periodic sweep
func (c *Correlator) SetSweepHook(fn func()) {
	c.mu.Lock()
	c.onSweep = fn
	c.mu.Unlock()
}

// allocate returns the next free message number. Must hold mu.
func (c *Correlator) allocate() uint8 {
	for i := 0; i < ricproto.MsgNumMax; i++ {
		n := c.nextNum
		c.nextNum++
		if c.nextNum == ricproto.MsgNumNone {
			c.nextNum = 1
		}
		if _, busy := c.outstanding[n]; !busy {
			return n
		}
	}

	// Every number is outstanding: expire the oldest
	var oldest uint8
	var oldestTime time.Time
	for n, p := range c.outstanding {
		if oldestTime.IsZero() || p.sent.Before(oldestTime) {
			oldest, oldestTime = n, p.sent
		}
	}
	c.outstanding[oldest].release(result{err: ErrTimeout})
	delete(c.outstanding, oldest)
	c.timeouts.Add(1)
	c.logger.Printf("msgNum %d evicted, all numbers outstanding", oldest)
	return oldest
}

func (c *Correlator) register(awaited bool, timeout time.Duration) (uint8, *pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, nil, ErrClosed
	}
	p := &pending{sent: c.now(), timeout: timeout, awaited: awaited}
	if awaited {
		p.done = make(chan result, 1)
	}
	n := c.allocate()
	c.outstanding[n] = p
	return n, p, nil
}

// remove deletes the entry for n if it is still p and reports whether it did
func (c *Correlator) remove(n uint8, p *pending) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outstanding[n] != p {
		return false
	}
	delete(c.outstanding, n)
	return true
}

func (c *Correlator) send(n uint8, p *pending, proto ricproto.Protocol, body []byte) error {
	frame := ricproto.EncodeMsg(n, ricproto.DirCommand, proto, body)
	if err := c.sender.SendFrame(frame); err != nil {
		c.remove(n, p)
		return err
	}
	return nil
}

// SendAsync sends body as a numbered command without waiting for the reply.
// The reply, if any, only updates statistics.
func (c *Correlator) SendAsync(proto ricproto.Protocol, body []byte) (uint8, error) {
	n, p, err := c.register(false, c.cfg.RespTimeout)
	if err != nil {
		return 0, err
	}
	if err := c.send(n, p, proto, body); err != nil {
		return 0, err
	}
	return n, nil
}

// SendSync sends body as a numbered command and waits for the reply.
// A timeout <= 0 uses the configured RespTimeout. The outstanding entry is
// always removed before SendSync returns.
func (c *Correlator) SendSync(ctx context.Context, proto ricproto.Protocol, body []byte, timeout time.Duration) (*ricproto.DecodedMsg, error) {
	if timeout <= 0 {
		timeout = c.cfg.RespTimeout
	}
	n, p, err := c.register(true, timeout)
	if err != nil {
		return nil, err
	}
	defer c.remove(n, p)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	if err := c.send(n, p, proto, body); err != nil {
		return nil, err
	}

	select {
	case r := <-p.done:
		return r.msg, r.err
	case <-timer.C:
		if !c.remove(n, p) {
			// A reply or the sweeper took the entry first and is releasing it
			r := <-p.done
			return r.msg, r.err
		}
		c.timeouts.Add(1)
		c.logger.Printf("msgNum %d timed out after %s", n, timeout)
		return nil, fmt.Errorf("msgNum %d: %w", n, ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleFrame processes one received frame payload
func (c *Correlator) HandleFrame(frame []byte) {
	msg, err := ricproto.Decode(frame)
	if err != nil {
		c.malformed.Add(1)
		c.logger.Printf("dropping frame: %v", err)
		return
	}

	if !msg.Numbered() {
		c.unnumbered.Add(1)
		c.deliver(msg)
		return
	}

	c.mu.Lock()
	p, ok := c.outstanding[msg.MsgNum]
	if ok {
		delete(c.outstanding, msg.MsgNum)
	}
	c.mu.Unlock()

	if !ok {
		c.unmatched.Add(1)
		c.logger.Printf("unmatched msgNum %d", msg.MsgNum)
		c.deliver(msg)
		return
	}

	c.matched.Add(1)
	c.rtt.Add(msg.Timestamp.Sub(p.sent))
	if p.awaited {
		p.release(result{msg: msg})
	}
}

func (c *Correlator) deliver(msg *ricproto.DecodedMsg) {
	c.mu.Lock()
	fn := c.onUnsolicited
	c.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}

// Sweep removes entries older than their timeout. Entries still in the
// table have never been answered, so each removal is a timeout.
func (c *Correlator) Sweep(now time.Time) {
	var expired []uint8

	c.mu.Lock()
	for n, p := range c.outstanding {
		if now.Sub(p.sent) > p.timeout {
			expired = append(expired, n)
			p.release(result{err: ErrTimeout})
			delete(c.outstanding, n)
		}
	}
	c.mu.Unlock()

	if len(expired) == 0 {
		return
	}
	c.timeouts.Add(uint64(len(expired)))
	sort.Slice(expired, func(i, j int) bool { return expired[i] < expired[j] })
	for _, n := range expired {
		c.logger.Printf("msgNum %d timed out", n)
	}
}

// Run sweeps the table every SweepInterval until ctx is done
func (c *Correlator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.Sweep(c.now())
			c.mu.Lock()
			hook := c.onSweep
			c.mu.Unlock()
			if hook != nil {
				hook()
			}
		}
	}
}

func (c *Correlator) releaseAll(err error) {
	for n, p := range c.outstanding {
		p.release(result{err: err})
		delete(c.outstanding, n)
	}
}

// Reset clears the table after a reconnect. Waiters get ErrConnectionReset.
func (c *Correlator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.releaseAll(ErrConnectionReset)
	c.nextNum = 1
}

// Close releases all waiters with ErrClosed. Later sends fail with ErrClosed.
func (c *Correlator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.releaseAll(ErrClosed)
}

// Outstanding returns the number of requests awaiting a reply
func (c *Correlator) Outstanding() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outstanding)
}

// Stats returns a snapshot of the counters
func (c *Correlator) Stats() CorrelatorStats {
	return CorrelatorStats{
		Matched:      c.matched.Load(),
		Unmatched:    c.unmatched.Load(),
		Unnumbered:   c.unnumbered.Load(),
		Timeouts:     c.timeouts.Load(),
		Malformed:    c.malformed.Load(),
		Outstanding:  c.Outstanding(),
		RoundTrips:   c.rtt.Count(),
		RoundTripAvg: c.rtt.Average(),
	}
}

// ClearStats resets the counters and round-trip average
func (c *Correlator) ClearStats() {
	c.matched.Store(0)
	c.unmatched.Store(0)
	c.unnumbered.Store(0)
	c.timeouts.Store(0)
	c.malformed.Store(0)
	c.rtt.Reset()
}
