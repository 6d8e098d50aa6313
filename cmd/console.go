// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/robdobson/likecomms/pkg/ricif"
	"github.com/robdobson/likecomms/pkg/ricproto"
)

const (
	minReconnectBackoff = 1 * time.Second
	maxReconnectBackoff = 30 * time.Second
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive TUI for sending RICREST commands",
	Long: `Send RICREST commands and watch the link in an interactive terminal UI.

Type a command (for example "v" or "blestatus") and press Enter to send it;
the reply is matched by message number and shown with its round-trip time.
Unsolicited messages and, with --overascii, the target's log lines appear in
the event log as they arrive.

Features:
  - Command history (Tab to focus, arrows to select, Enter to resend)
  - Correlator statistics (matched, unmatched, timeouts, average rtt)
  - Automatic reconnection on connection loss

Console commands: /stats, /reset, /clear, /quit

Supports serial, TCP and WebSocket connections.`,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}

// backoff doubles a delay up to a limit
type backoff struct {
	min, max, cur time.Duration
}

func newBackoff(lo, hi time.Duration) *backoff {
	return &backoff{min: lo, max: hi, cur: lo}
}

// Next returns the delay to wait and advances it
func (b *backoff) Next() time.Duration {
	d := b.cur
	b.cur = min(b.cur*2, b.max)
	return d
}

func (b *backoff) Reset() {
	b.cur = b.min
}

// connectionManager handles connection lifecycle and reconnection. The
// session survives reconnects; only its transport is replaced.
type connectionManager struct {
	connector *connector
	session   *ricif.Session
	p         *tea.Program
	ctx       context.Context

	mu       sync.RWMutex
	connInfo string

	reconnecting atomic.Bool
	wg           sync.WaitGroup
}

func (cm *connectionManager) getConnInfo() string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.connInfo
}

func (cm *connectionManager) setConnInfo(connInfo string) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.connInfo = connInfo
}

// sessionHandlers routes session events into the TUI
func (cm *connectionManager) sessionHandlers() ricif.Handlers {
	return ricif.Handlers{
		Message: func(msg *ricproto.DecodedMsg) {
			cm.p.Send(unsolicitedMsg{msg: msg})
		},
		LogLine: func(line string) {
			cm.p.Send(deviceLogMsg(line))
		},
		FrameError: func(err error) {
			cm.p.Send(frameErrorMsg{err: err})
		},
		LinkError: func(err error) {
			cm.startReconnect(err)
		},
	}
}

// startReconnect begins one reconnect loop unless one is running
func (cm *connectionManager) startReconnect(cause error) {
	if !cm.reconnecting.CompareAndSwap(false, true) {
		return
	}
	cm.p.Send(connectionLostMsg{err: cause})

	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		defer cm.reconnecting.Store(false)
		cm.reconnect()
	}()
}

// reconnect retries with exponential backoff until a connection is made or
// the console is shutting down
func (cm *connectionManager) reconnect() {
	bo := newBackoff(minReconnectBackoff, maxReconnectBackoff)
	for {
		select {
		case <-cm.ctx.Done():
			return
		case <-time.After(bo.Next()):
		}

		conn, connInfo, err := cm.connector.Open()
		if err != nil {
			cm.p.Send(reconnectFailedMsg{err: err})
			continue
		}
		if err := cm.session.Reconnect(conn); err != nil {
			conn.Close()
			cm.p.Send(reconnectFailedMsg{err: err})
			continue
		}

		cm.setConnInfo(connInfo)
		cm.p.Send(reconnectedMsg{connInfo: connInfo})
		return
	}
}

func runConsole(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	cm := &connectionManager{
		connector: newConnector(cfg.Connection),
		ctx:       ctx,
	}

	conn, connInfo, err := cm.connector.Open()
	if err != nil {
		return err
	}
	cm.connInfo = connInfo

	m := initialConsoleModel(cm, connInfo, framingInfo(cfg))
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	cm.p = p

	logger := log.New(programLogWriter{p}, "", 0)
	cm.session = ricif.NewSession(conn, cfg.SessionConfig(), cm.sessionHandlers(), logger)
	cm.session.Start(ctx)

	_, runErr := p.Run()

	stop()
	cm.wg.Wait()
	cm.session.Close()

	if runErr != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", runErr)
	}
	return nil
}
