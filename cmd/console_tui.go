// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robdobson/likecomms/pkg/ricproto"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxHistory   = 50
	historyWidth = 32
)

// Focus states
const (
	focusInput = iota
	focusHistory
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// historyItem is one sent command and its outcome
type historyItem struct {
	command string
	result  string
	ok      bool
}

// Implement list.Item interface
func (h historyItem) Title() string       { return h.command }
func (h historyItem) Description() string { return h.result }
func (h historyItem) FilterValue() string { return h.command }

// consoleModel is the Bubble Tea model for the console TUI
type consoleModel struct {
	connMgr  *connectionManager
	connInfo string
	framing  string

	input   textinput.Model
	history list.Model
	items   []list.Item
	focused int

	eventLog      []errorLogEntry
	maxLogEntries int
	inFlight      int

	width          int
	height         int
	quitting       bool
	connectionLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type consoleTickMsg time.Time

type replyMsg struct {
	command string
	msg     *ricproto.DecodedMsg
	err     error
	rtt     time.Duration
}

type unsolicitedMsg struct {
	msg *ricproto.DecodedMsg
}

type deviceLogMsg string

type frameErrorMsg struct {
	err error
}

type connectionLostMsg struct {
	err error
}

type reconnectFailedMsg struct {
	err error
}

type reconnectedMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialConsoleModel(connMgr *connectionManager, connInfo, framing string) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "v"
	ti.Prompt = "> "
	ti.CharLimit = 256
	ti.Width = 60
	ti.Focus()

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	history := list.New([]list.Item{}, delegate, historyWidth, 10)
	history.Title = "History"
	history.SetShowStatusBar(false)
	history.SetShowHelp(false)
	history.SetFilteringEnabled(false)

	return consoleModel{
		connMgr:       connMgr,
		connInfo:      connInfo,
		framing:       framing,
		input:         ti,
		history:       history,
		focused:       focusInput,
		eventLog:      make([]errorLogEntry, 0),
		maxLogEntries: 200,
		width:         80,
		height:        24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m consoleModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, consoleTickCmd())
}

func consoleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return consoleTickMsg(t)
	})
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()
		return m, nil

	case consoleTickMsg:
		// Redraw for the statistics bar
		return m, consoleTickCmd()

	case replyMsg:
		m.inFlight--
		m.handleReply(msg)
		return m, nil

	case unsolicitedMsg:
		m.addLogEntry("← "+ricproto.FormatMsg(msg.msg), false)
		return m, nil

	case deviceLogMsg:
		m.addLogEntry("LOG "+string(msg), false)
		return m, nil

	case frameErrorMsg:
		m.addLogEntry(fmt.Sprintf("FRAME ERROR: %v", msg.err), true)
		return m, nil

	case loggerMsg:
		m.addLogEntry(string(msg), false)
		return m, nil

	case connectionLostMsg:
		m.connectionLost = true
		m.addLogEntry(fmt.Sprintf("Connection lost (%v) - reconnecting...", msg.err), true)
		return m, nil

	case reconnectFailedMsg:
		m.addLogEntry(fmt.Sprintf("Reconnect failed: %v", msg.err), true)
		return m, nil

	case reconnectedMsg:
		m.connectionLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Reconnected: "+msg.connInfo, false)
		return m, nil
	}

	var cmd tea.Cmd
	if m.focused == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.history, cmd = m.history.Update(msg)
	}
	return m, cmd
}

func (m consoleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focused == focusHistory {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab", "shift+tab":
		m.cycleFocus()
		return m, nil

	case "enter":
		return m.handleEnter()
	}

	var cmd tea.Cmd
	if m.focused == focusInput {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.history, cmd = m.history.Update(msg)
	}
	return m, cmd
}

func (m *consoleModel) cycleFocus() {
	if m.focused == focusInput && len(m.items) > 0 {
		m.focused = focusHistory
		m.input.Blur()
		return
	}
	m.focused = focusInput
	m.input.Focus()
}

func (m consoleModel) handleEnter() (tea.Model, tea.Cmd) {
	var text string
	if m.focused == focusHistory {
		item, ok := m.history.SelectedItem().(historyItem)
		if !ok {
			return m, nil
		}
		text = item.command
	} else {
		text = strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
	}
	if text == "" {
		return m, nil
	}

	if strings.HasPrefix(text, "/") {
		return m.runConsoleCommand(text)
	}

	if m.connectionLost {
		m.addLogEntry("Cannot send command: connection lost", true)
		return m, nil
	}

	m.inFlight++
	m.addLogEntry("→ "+text, false)
	return m, m.sendCommand(text)
}

// sendCommand waits for the reply off the update loop
func (m consoleModel) sendCommand(text string) tea.Cmd {
	session := m.connMgr.session
	ctx := m.connMgr.ctx
	return func() tea.Msg {
		start := time.Now()
		msg, err := session.CmdRESTURLSync(ctx, text, 0)
		return replyMsg{command: text, msg: msg, err: err, rtt: time.Since(start)}
	}
}

func (m consoleModel) runConsoleCommand(text string) (tea.Model, tea.Cmd) {
	session := m.connMgr.session

	switch strings.Fields(text)[0] {
	case "/quit":
		m.quitting = true
		return m, tea.Quit
	case "/stats":
		stats := session.Stats()
		m.addLogEntry("Link: "+stats.Link.String(), false)
		m.addLogEntry("Correlator: "+stats.Correlator.String(), false)
	case "/reset":
		session.Link().ClearStats()
		session.Correlator().ClearStats()
		m.addLogEntry("Statistics reset", false)
	case "/clear":
		m.eventLog = m.eventLog[:0]
	default:
		m.addLogEntry("Unknown console command: "+text, true)
	}
	return m, nil
}

func (m *consoleModel) handleReply(r replyMsg) {
	item := historyItem{command: r.command}

	if r.err != nil {
		item.result = "✗ " + r.err.Error()
		m.addLogEntry(fmt.Sprintf("%s: %v", r.command, r.err), true)
	} else {
		rslt := r.msg.Result()
		item.ok = rslt == "ok"
		item.result = fmt.Sprintf("#%d %s %v", r.msg.MsgNum, rslt, r.rtt.Round(time.Millisecond))
		m.addLogEntry(fmt.Sprintf("← #%d %s (%v)", r.msg.MsgNum, r.msg.Text(), r.rtt.Round(time.Millisecond)), !item.ok)
	}

	m.items = append([]list.Item{item}, m.items...)
	if len(m.items) > maxHistory {
		m.items = m.items[:maxHistory]
	}
	m.history.SetItems(m.items)
}

func (m *consoleModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *consoleModel) updateListSize() {
	m.history.SetSize(historyWidth, max(m.height-12, 5))
	m.input.Width = max(m.width-8, 10)
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

func (m consoleModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	focusedBoxStyle := boxStyle.BorderForeground(lipgloss.Color("12"))

	var s strings.Builder

	helpText := "Enter=send Tab=history Esc=quit"
	if m.focused == focusHistory {
		helpText = "Enter=resend Tab=input q=quit"
	}
	s.WriteString(titleStyle.Render("LIKECOMMS CONSOLE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.connectionLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | %s", connStatus, m.framing, helpText)))
	s.WriteString("\n\n")

	// History | event log
	listStyle := boxStyle.Width(historyWidth)
	if m.focused == focusHistory {
		listStyle = focusedBoxStyle.Width(historyWidth)
	}
	historyPanel := listStyle.Render(m.history.View())

	logHeight := max(m.height-14, 5)
	logPanel := renderEventLog(m.eventLog, logHeight, m.width-historyWidth-4)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, historyPanel, " ", logPanel))
	s.WriteString("\n")

	s.WriteString(m.renderStatisticsBar())
	s.WriteString("\n")

	inputStyle := boxStyle
	if m.focused == focusInput {
		inputStyle = focusedBoxStyle
	}
	s.WriteString(inputStyle.Width(max(m.width-4, 20)).Render(m.input.View()))

	return s.String()
}

func (m consoleModel) renderStatisticsBar() string {
	if m.connMgr == nil || m.connMgr.session == nil {
		return ""
	}
	stats := m.connMgr.session.Stats()
	c := stats.Correlator

	line := fmt.Sprintf("%s %s  %s %d  %s %d  %s %d  %s %d  %s %s  %s %d  %s %d",
		statsLabelStyle.Render("Matched:"), statsValueStyle.Render(fmt.Sprintf("%d", c.Matched)),
		statsLabelStyle.Render("Unmatched:"), c.Unmatched,
		statsLabelStyle.Render("Unnumbered:"), c.Unnumbered,
		statsLabelStyle.Render("Timeouts:"), c.Timeouts,
		statsLabelStyle.Render("Waiting:"), m.inFlight,
		statsLabelStyle.Render("Avg RTT:"), statsValueStyle.Render(c.RoundTripAvg.Round(time.Microsecond).String()),
		statsLabelStyle.Render("RX:"), stats.Link.Decoder.RxFrames,
		statsLabelStyle.Render("CRC:"), stats.Link.Decoder.CRCErrors,
	)
	return " " + line
}
