// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/robdobson/likecomms/pkg/ricif"
	"github.com/robdobson/likecomms/pkg/ricproto"
)

var monitorHideLog bool

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Display decoded messages in human-readable format",
	Long: `Continuously decode and display framed messages as they arrive.

Each message is shown with timestamp, message number, direction, protocol and
RICREST element type, followed by its text or a hex preview of binary data.
With --overascii, the target's log lines are shown interleaved with messages.

Supports serial, TCP and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorHideLog, "hide-log", false, "Do not print log lines (overascii only)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	conn, connInfo, err := newConnector(cfg.Connection).Open()
	if err != nil {
		return err
	}

	fmt.Printf("likecomms - Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Framing: %s\n", framingInfo(cfg))
	fmt.Printf("Press Ctrl+C to exit\n\n")

	var tracker syncTracker
	handlers := ricif.LinkHandlers{
		Frame: func(payload []byte) {
			a := analyzeFrame(payload)
			if a.err != nil {
				fmt.Printf("[ERROR] %v\n", a.err)
				return
			}
			if tracker.frameOK() {
				fmt.Printf("[SYNC] %s\n", &tracker)
			}
			fmt.Println(ricproto.FormatMsg(a.msg))
		},
		FrameError: func(err error) {
			if tracker.frameError() {
				fmt.Printf("[ERROR] %v\n", err)
			}
		},
	}
	if !monitorHideLog {
		handlers.LogLine = func(line string) {
			fmt.Printf("[LOG] %s\n", line)
		}
	}

	link := ricif.NewLink(conn, cfg.SessionConfig().Link, handlers, log.New(os.Stderr, "[link] ", log.LstdFlags))
	defer link.Close()

	ctx, stop := signalContext()
	defer stop()
	context.AfterFunc(ctx, func() { link.Close() })

	err = link.Run(ctx)
	switch {
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, ErrConnectionClosed), errors.Is(err, io.EOF):
		log.Printf("Connection closed")
		return nil
	}
	return err
}
