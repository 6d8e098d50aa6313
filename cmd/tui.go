// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/robdobson/likecomms/pkg/ricproto"
)

// Error log entry
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for warnings
}

// TUI model
type model struct {
	connInfo      string
	framing       string
	statsInterval int
	showAll       bool
	stats         *ricproto.Statistics
	tracker       syncTracker
	errorLog      []errorLogEntry
	maxLogEntries int
	lastLogLine   string
	lastMsg       *ricproto.DecodedMsg
	stopped       error
	width         int
	height        int
	quitting      bool
}

// Messages
type tickMsg time.Time
type linkDataMsg linkEvent
type linkStoppedMsg struct {
	err error
}
type loggerMsg string

// programLogWriter turns log output into TUI messages so it does not tear
// the screen
type programLogWriter struct {
	p *tea.Program
}

func (w programLogWriter) Write(b []byte) (int, error) {
	w.p.Send(loggerMsg(strings.TrimRight(string(b), "\n")))
	return len(b), nil
}

func initialModel(connInfo, framing string, statsInterval int, showAll bool) model {
	return model{
		connInfo:      connInfo,
		framing:       framing,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         ricproto.NewStatistics(),
		errorLog:      make([]errorLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case loggerMsg:
		m.addLogEntry(string(msg), false)

	case linkStoppedMsg:
		m.stopped = msg.err
		m.addLogEntry(fmt.Sprintf("Link stopped: %v", msg.err), true)

	case linkDataMsg:
		m.handleLinkData(linkEvent(msg))
	}

	return m, nil
}

func (m *model) handleLinkData(ev linkEvent) {
	switch {
	case ev.isLine:
		m.stats.AddLogLine()
		m.lastLogLine = ev.line

	case ev.frameErr != nil:
		if m.tracker.frameError() {
			m.stats.Update(nil, ev.frameErr, nil)
			m.addLogEntry(fmt.Sprintf("FRAME ERROR: %v", ev.frameErr), true)
		}

	case ev.err != nil:
		ev.record(m.stats)
		m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", ev.err), true)

	default:
		if m.tracker.frameOK() {
			m.addLogEntry(m.tracker.String(), false)
		}
		ev.record(m.stats)
		m.lastMsg = ev.msg

		if len(ev.issues) > 0 {
			name := ricproto.FormatProtocol(ev.msg.Protocol)
			for _, issue := range ev.issues {
				m.addLogEntry(fmt.Sprintf("%s #%d: %s", name, ev.msg.MsgNum, issue.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(ricproto.FormatMsg(ev.msg), false)
		}
	}
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.errorLog = append(m.errorLog, entry)

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

// Styles shared by the TUIs
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("LIKECOMMS - ERROR DETECTION"))
	s.WriteString("\n")
	mode := "Errors only"
	if m.showAll {
		mode = "All messages"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | %s | Mode: %s | 'r' reset, 'q' quit",
		m.connInfo, m.framing, mode)))
	s.WriteString("\n\n")

	switch {
	case m.stopped != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Link stopped: %v", m.stopped)))
	case !m.tracker.synced:
		s.WriteString(warningStyle.Render("⏳ Waiting for synchronization..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.tracker.skipped > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bad frames)", m.tracker.skipped)))
		}
	}
	s.WriteString("\n\n")

	s.WriteString(boxStyle.Render(renderStats(m.stats)))
	s.WriteString("\n\n")

	if m.lastMsg != nil || m.lastLogLine != "" {
		s.WriteString(statsLabelStyle.Render("Latest:"))
		s.WriteString("\n")
		var latest strings.Builder
		if m.lastMsg != nil {
			latest.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Message:"), ricproto.FormatMsg(m.lastMsg)))
		}
		if m.lastLogLine != "" {
			latest.WriteString(fmt.Sprintf("%s %s\n", statsLabelStyle.Render("Log:"), m.lastLogLine))
		}
		s.WriteString(boxStyle.Width(m.width - 4).Render(strings.TrimRight(latest.String(), "\n")))
		s.WriteString("\n\n")
	}

	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	s.WriteString(renderEventLog(m.errorLog, m.height-18, m.width))

	return s.String()
}

// renderStats renders the statistics box content
func renderStats(stats *ricproto.Statistics) string {
	stats.CalculateRates()

	var validPercent, errorPercent float64
	totalErrors := stats.Errors()
	if stats.TotalFrames > 0 {
		validPercent = float64(stats.ValidMsgs) * 100.0 / float64(stats.TotalFrames)
		errorPercent = float64(totalErrors) * 100.0 / float64(stats.TotalFrames)
	}

	var c strings.Builder
	c.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", stats.ValidMsgs, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", totalErrors, errorPercent)),
	))

	if stats.CRCErrors > 0 || stats.TooLong > 0 || stats.DecodeErrors > 0 {
		c.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.CRCErrors)),
			statsLabelStyle.Render("Too Long:"), errorStyle.Render(fmt.Sprintf("%d", stats.TooLong)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", stats.DecodeErrors)),
		))
	}

	if stats.MalformedMsgs > 0 {
		c.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", stats.MalformedMsgs)),
			headerStyle.Render("unknown protocol"), stats.UnknownProtocol,
			headerStyle.Render("bad REST element"), stats.UnknownRESTType,
		))
	}

	if stats.AnomalousMsgs > 0 {
		c.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalous:"), warningStyle.Render(fmt.Sprintf("%d", stats.AnomalousMsgs)),
			headerStyle.Render("unnumbered resp"), stats.UnnumberedResps,
			headerStyle.Render("invalid JSON"), stats.InvalidJSON,
		))
	}

	if stats.LogLines > 0 {
		c.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Log Lines:"), statsValueStyle.Render(fmt.Sprintf("%d", stats.LogLines))))
	}

	errRate := statsValueStyle
	if stats.ErrorRate > 0 {
		errRate = errorStyle
	}
	c.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Frame Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frames/s", stats.FrameRate)),
		statsLabelStyle.Render("Error Rate:"), errRate.Render(fmt.Sprintf("%.1f err/s", stats.ErrorRate)),
	))
	return c.String()
}

// renderEventLog renders the newest entries that fit in height lines
func renderEventLog(entries []errorLogEntry, height, width int) string {
	if height < 5 {
		height = 5
	}

	var c strings.Builder
	if len(entries) == 0 {
		c.WriteString(headerStyle.Render("  (no events yet)"))
	}

	start := max(len(entries)-height, 0)
	for _, entry := range entries[start:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			c.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
		} else {
			c.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message)))
		}
	}

	return boxStyle.Width(max(width-4, 20)).Render(strings.TrimRight(c.String(), "\n"))
}
