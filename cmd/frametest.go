// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/robdobson/likecomms/pkg/ricif"
	"github.com/robdobson/likecomms/pkg/ricproto"
)

var frameTestTimeout int

var frameTestCmd = &cobra.Command{
	Use:   "frame_test",
	Short: "Test connection by waiting for a valid frame",
	Long: `Wait for a valid frame on the connection until timeout.

This command connects to a serial port, TCP socket or WebSocket and waits for
any frame that passes the CRC check. Corrupt frames and, with --overascii, log
text are skipped.

Exit codes:
  0 - Frame received before timeout
  1 - Timeout reached without receiving a valid frame
  2 - Connection error

Useful for checking the baud rate and the escape pair before monitoring.`,
	RunE: runFrameTest,
}

func init() {
	rootCmd.AddCommand(frameTestCmd)
	frameTestCmd.Flags().IntVar(&frameTestTimeout, "timeout", 10, "Timeout in seconds to wait for a frame")
}

func runFrameTest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	conn, connInfo, err := newConnector(cfg.Connection).Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("likecomms - Frame Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Framing: %s\n", framingInfo(cfg))
	fmt.Printf("Timeout: %d seconds\n", frameTestTimeout)
	fmt.Printf("Waiting for valid frame...\n\n")

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(frameTestTimeout)*time.Second)
	defer cancel()

	res, err := waitForFrame(ctx, conn, cfg.SessionConfig().Link)
	switch {
	case err != nil && ctx.Err() != nil:
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid frame received within %d seconds\n", frameTestTimeout)
		os.Exit(1)
	case err != nil:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)
	}

	if res.badFrames > 0 {
		fmt.Printf("(skipped %d bad frames before sync)\n", res.badFrames)
	}
	fmt.Printf("SUCCESS: Received valid frame\n")
	fmt.Printf("  Length: %d bytes\n", len(res.payload))
	if msg, err := ricproto.Decode(res.payload); err == nil {
		fmt.Printf("  Message: %s\n", ricproto.FormatMsg(msg))
	} else {
		fmt.Printf("  Payload: %s\n", ricproto.FormatBinary(res.payload))
	}
	os.Exit(0)
	return nil
}

type frameTestResult struct {
	payload   []byte
	badFrames int
}

// waitForFrame reads conn until one frame passes the CRC check. The
// connection is closed on return.
func waitForFrame(ctx context.Context, conn Connection, cfg ricif.LinkConfig) (frameTestResult, error) {
	found := make(chan frameTestResult, 1)
	var res frameTestResult

	link := ricif.NewLink(conn, cfg, ricif.LinkHandlers{
		Frame: func(payload []byte) {
			res.payload = payload
			select {
			case found <- res:
			default:
			}
		},
		FrameError: func(error) { res.badFrames++ },
	}, log.New(os.Stderr, "[link] ", log.LstdFlags))
	defer link.Close()

	readCtx, stopRead := context.WithCancel(ctx)
	defer stopRead()
	context.AfterFunc(readCtx, func() { link.Close() })

	errc := make(chan error, 1)
	go func() { errc <- link.Run(readCtx) }()

	select {
	case r := <-found:
		return r, nil
	case err := <-errc:
		select {
		case r := <-found:
			return r, nil
		default:
		}
		return frameTestResult{}, err
	case <-ctx.Done():
		return frameTestResult{}, ctx.Err()
	}
}
