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
	"time"

	"github.com/spf13/cobra"

	"github.com/robdobson/likecomms/pkg/capture"
	"github.com/robdobson/likecomms/pkg/likehdlc"
	"github.com/robdobson/likecomms/pkg/ricif"
)

var (
	recordDuration int
	recordNoRaw    bool
)

var recordCmd = &cobra.Command{
	Use:   "record <file>",
	Short: "Record link traffic to a capture file",
	Long: `Record received frames, frame errors and log lines to a CBOR capture file.

The raw transport bytes are recorded as well unless --no-raw is given, so a
capture can be replayed through the decoder again with "replay --raw".

Recording runs until Ctrl+C or until --duration seconds have passed.`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)
	recordCmd.Flags().IntVar(&recordDuration, "duration", 0, "Stop after N seconds (0 = until Ctrl+C)")
	recordCmd.Flags().BoolVar(&recordNoRaw, "no-raw", false, "Do not record raw transport bytes")
}

// tapConn records raw bytes passing through a connection
type tapConn struct {
	Connection
	w *capture.Writer
}

func (t *tapConn) Read(p []byte) (int, error) {
	n, err := t.Connection.Read(p)
	if n > 0 {
		if werr := t.w.Raw(capture.DirRx, p[:n]); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (t *tapConn) Write(p []byte) (int, error) {
	n, err := t.Connection.Write(p)
	if n > 0 {
		if werr := t.w.Raw(capture.DirTx, p[:n]); werr != nil {
			return n, werr
		}
	}
	return n, err
}

// recordingHandlers write link events to w. Write failures are logged once.
func recordingHandlers(w *capture.Writer, logger *log.Logger) ricif.LinkHandlers {
	failed := false
	check := func(err error) {
		if err != nil && !failed {
			failed = true
			logger.Printf("capture write failed: %v", err)
		}
	}
	return ricif.LinkHandlers{
		Frame:      func(payload []byte) { check(w.Frame(capture.DirRx, payload)) },
		FrameError: func(err error) { check(w.FrameError(err)) },
		LogLine:    func(line string) { check(w.LogLine(line)) },
	}
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	conn, connInfo, err := newConnector(cfg.Connection).Open()
	if err != nil {
		return err
	}

	f, err := os.Create(args[0])
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating capture file: %w", err)
	}
	defer f.Close()

	esc := likehdlc.EscapesFor(cfg.Framing.ASCIIEscapes)
	w, err := capture.NewWriter(f, capture.NewHeader(esc, cfg.Framing.OverASCII, connInfo))
	if err != nil {
		conn.Close()
		return err
	}

	logger := log.New(os.Stderr, "[record] ", log.LstdFlags)
	var rw io.ReadWriteCloser = conn
	if !recordNoRaw {
		rw = &tapConn{Connection: conn, w: w}
	}
	link := ricif.NewLink(rw, cfg.SessionConfig().Link, recordingHandlers(w, logger), logger)

	fmt.Printf("likecomms - Record\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Framing: %s\n", framingInfo(cfg))
	fmt.Printf("Capture file: %s\n", args[0])
	fmt.Printf("Press Ctrl+C to stop\n\n")

	ctx, stop := signalContext()
	defer stop()
	if recordDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(recordDuration)*time.Second)
		defer cancel()
	}
	context.AfterFunc(ctx, func() { link.Close() })

	start := time.Now()
	runErr := link.Run(ctx)
	link.Close()

	stats := link.Stats()
	fmt.Printf("\n--- Record Results ---\n")
	fmt.Printf("Duration: %v\n", time.Since(start).Round(time.Millisecond))
	fmt.Printf("Records: %d\n", w.Count())
	fmt.Printf("Link: %s\n", stats)

	if runErr != nil && ctx.Err() == nil && !errors.Is(runErr, io.EOF) && !errors.Is(runErr, ErrConnectionClosed) {
		return runErr
	}
	return nil
}
