// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/robdobson/likecomms/pkg/ricif"
	"github.com/robdobson/likecomms/pkg/ricproto"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze corrupt frames and malformed messages",
	Long: `Track frame errors, malformed messages and protocol anomalies with statistics.

This command validates each frame and detects:
  - CRC errors, short frames and oversize frames
  - Malformed messages (unknown protocol, unknown RICREST element)
  - Anomalies (unnumbered responses, invalid JSON, short file blocks)
  - Statistics and trends (frame rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid messages too.

Frames are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all messages (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

// linkEvent is one thing seen on the link, in stream order
type linkEvent struct {
	analysis
	frameErr error
	line     string
	isLine   bool
}

// startLinkEvents runs a link over conn and delivers its events on a channel.
// The channel is closed when the link stops; the stop error is sent on errc.
func startLinkEvents(ctx context.Context, conn Connection, cfg ricif.LinkConfig, logger *log.Logger) (<-chan linkEvent, <-chan error) {
	events := make(chan linkEvent, 256)
	errc := make(chan error, 1)

	link := ricif.NewLink(conn, cfg, ricif.LinkHandlers{
		Frame:      func(payload []byte) { events <- linkEvent{analysis: analyzeFrame(payload)} },
		FrameError: func(err error) { events <- linkEvent{frameErr: err} },
		LogLine:    func(line string) { events <- linkEvent{line: line, isLine: true} },
	}, logger)

	// Closing the transport unblocks a pending read
	stopClose := context.AfterFunc(ctx, func() { link.Close() })

	go func() {
		defer close(events)
		errc <- link.Run(ctx)
		if stopClose() {
			link.Close()
		}
	}()
	return events, errc
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	conn, connInfo, err := newConnector(cfg.Connection).Open()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	if useTUI {
		return runTUIMode(ctx, conn, connInfo, cfg)
	}
	return runTextMode(ctx, conn, connInfo, cfg)
}

// printFrameError prints a frame error in highlighted format
func printFrameError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mFRAME ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
}

// printValidationErrors prints validation errors for a message
func printValidationErrors(msg *ricproto.DecodedMsg, issues []ricproto.ValidationError) {
	fmt.Printf("\033[1;33mVALIDATION ERROR:\033[0m %s\n", ricproto.FormatMsg(msg))
	fmt.Printf("  CRC: \033[1;32mOK\033[0m\n")
	fmt.Print(formatIssues(issues))
	fmt.Printf("  >>> MESSAGE REJECTED <<<\n\n")
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(ctx context.Context, conn Connection, connInfo string, cfg *ricif.Config) error {
	m := initialModel(connInfo, framingInfo(cfg), statsInterval, showAll)
	p := tea.NewProgram(m, tea.WithContext(ctx))

	logger := log.New(programLogWriter{p}, "", 0)
	events, errc := startLinkEvents(ctx, conn, cfg.SessionConfig().Link, logger)

	go func() {
		for ev := range events {
			p.Send(linkDataMsg(ev))
		}
		if err := <-errc; err != nil && ctx.Err() == nil {
			p.Send(linkStoppedMsg{err: err})
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(ctx context.Context, conn Connection, connInfo string, cfg *ricif.Config) error {
	fmt.Printf("likecomms - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Framing: %s\n", framingInfo(cfg))
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All messages\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := ricproto.NewStatistics()
	var tracker syncTracker

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	events, errc := startLinkEvents(ctx, conn, cfg.SessionConfig().Link, log.New(os.Stderr, "[link] ", log.LstdFlags))

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				fmt.Println()
				fmt.Print(stats.String())
				if err := <-errc; err != nil && ctx.Err() == nil {
					return err
				}
				return nil
			}

			switch {
			case ev.isLine:
				stats.AddLogLine()
				if showAll {
					fmt.Printf("[LOG] %s\n", ev.line)
				}

			case ev.frameErr != nil:
				if tracker.frameError() {
					stats.Update(nil, ev.frameErr, nil)
					printFrameError(ev.frameErr)
				}

			case ev.err != nil:
				ev.record(stats)
				printFrameError(ev.err)

			default:
				if tracker.frameOK() {
					fmt.Printf("[SYNC] %s\n\n", &tracker)
				}
				ev.record(stats)
				if len(ev.issues) > 0 {
					printValidationErrors(ev.msg, ev.issues)
				} else if showAll {
					fmt.Println(ricproto.FormatMsg(ev.msg))
				}
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
