// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/robdobson/likecomms/pkg/capture"
	"github.com/robdobson/likecomms/pkg/likehdlc"
	"github.com/robdobson/likecomms/pkg/ricif"
	"github.com/robdobson/likecomms/pkg/ricproto"
)

var (
	replayRaw      bool
	replayRealtime bool
	replayShowLog  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <file>",
	Short: "Replay a capture file",
	Long: `Print the messages, frame errors and log lines stored in a capture file,
followed by statistics.

With --raw the recorded transport bytes are decoded again using the framing
stored in the capture header, instead of using the recorded frames. This is
useful for checking decoder changes against real traffic.

No connection is opened.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayRaw, "raw", false, "Decode the recorded raw bytes again")
	replayCmd.Flags().BoolVar(&replayRealtime, "realtime", false, "Replay with the recorded timing")
	replayCmd.Flags().BoolVar(&replayShowLog, "show-log", true, "Print log lines")
}

type replayOptions struct {
	raw      bool
	realtime bool
	showLog  bool
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("opening capture file: %w", err)
	}
	defer f.Close()

	r, err := capture.NewReader(f)
	if err != nil {
		return err
	}

	fmt.Printf("likecomms - Replay\n")
	fmt.Printf("Capture file: %s\n", args[0])
	if r.Header.Source != "" {
		fmt.Printf("Recorded from: %s\n", r.Header.Source)
	}
	fmt.Printf("Recorded at: %s\n\n", r.Header.Started.Format(time.RFC3339))

	stats, err := replayCapture(r, os.Stdout, replayOptions{
		raw:      replayRaw,
		realtime: replayRealtime,
		showLog:  replayShowLog,
	})
	fmt.Println()
	fmt.Print(stats.String())
	return err
}

// replayCapture prints every event of r to w and returns the statistics
func replayCapture(r *capture.Reader, w io.Writer, opts replayOptions) (*ricproto.Statistics, error) {
	stats := ricproto.NewStatistics()
	var recTime time.Time

	printFrame := func(payload []byte) {
		a := analyzeFrame(payload)
		a.record(stats)
		if a.err != nil {
			fmt.Fprintf(w, "[ERROR] %v\n", a.err)
			return
		}
		if !recTime.IsZero() {
			a.msg.Timestamp = recTime
		}
		fmt.Fprintln(w, ricproto.FormatMsg(a.msg))
		if len(a.issues) > 0 {
			fmt.Fprint(w, formatIssues(a.issues))
		}
	}
	printError := func(text string) {
		fmt.Fprintf(w, "[ERROR] %s\n", text)
	}
	printLine := func(line string) {
		stats.AddLogLine()
		if opts.showLog {
			fmt.Fprintf(w, "[LOG] %s\n", line)
		}
	}

	var link *ricif.Link
	if opts.raw {
		cfg := ricif.DefaultLinkConfig()
		cfg.Codec.Escapes = r.Header.Escapes()
		cfg.OverASCII = r.Header.OverASCII
		link = ricif.NewLink(nil, cfg, ricif.LinkHandlers{
			Frame: printFrame,
			FrameError: func(err error) {
				stats.Update(nil, err, nil)
				printError(err.Error())
			},
			LogLine: printLine,
		}, nil)
	}

	var last time.Time
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return stats, nil
		}
		if err != nil {
			return stats, err
		}

		if opts.realtime && !last.IsZero() {
			if gap := rec.Time.Sub(last); gap > 0 {
				time.Sleep(gap)
			}
		}
		last = rec.Time
		recTime = rec.Time

		if opts.raw {
			if rec.Kind == capture.KindRaw && rec.Dir == capture.DirRx {
				link.Feed(rec.Data)
			}
			continue
		}

		switch rec.Kind {
		case capture.KindFrame:
			if rec.Dir == capture.DirRx {
				printFrame(rec.Data)
			}
		case capture.KindFrameError:
			stats.Update(nil, frameErrorFromText(rec.Error), nil)
			printError(rec.Error)
		case capture.KindLogLine:
			printLine(string(rec.Data))
		}
	}
}

// frameErrorFromText maps a recorded error back to a decoder error so the
// statistics count it in the right bucket
func frameErrorFromText(text string) error {
	for _, sentinel := range []error{likehdlc.ErrFrameTooLong, likehdlc.ErrFrameTooShort, likehdlc.ErrCRCMismatch} {
		if strings.Contains(text, sentinel.Error()) {
			return fmt.Errorf("%s: %w", text, sentinel)
		}
	}
	return errors.New(text)
}
