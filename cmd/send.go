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

	"github.com/robdobson/likecomms/pkg/ricif"
	"github.com/robdobson/likecomms/pkg/ricproto"
)

var (
	sendTimeout time.Duration
	sendCount   int
	sendVerbose bool
)

var sendCmd = &cobra.Command{
	Use:   "send <url>",
	Short: "Send a RICREST command and wait for the reply",
	Long: `Send a RICREST URL command (for example "v" or "blestatus") and wait for the
numbered reply.

Each reply is printed as JSON together with the round-trip time. Replies are
matched to requests by message number, so unsolicited traffic on the link
does not disturb the test.

Exit codes:
  0 - All commands answered with "rslt":"ok"
  1 - One or more commands failed, timed out or answered with an error
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().DurationVar(&sendTimeout, "timeout", ricif.DefaultRespTimeout, "Timeout for each reply")
	sendCmd.Flags().IntVar(&sendCount, "count", 1, "Number of times to send the command")
	sendCmd.Flags().BoolVarP(&sendVerbose, "verbose", "v", false, "Print unsolicited messages and log lines")
}

func runSend(cmd *cobra.Command, args []string) error {
	url := args[0]

	var handlers ricif.Handlers
	if sendVerbose {
		handlers.Message = func(msg *ricproto.DecodedMsg) {
			fmt.Printf("  (unsolicited) %s\n", ricproto.FormatMsg(msg))
		}
		handlers.LogLine = func(line string) {
			fmt.Printf("  [LOG] %s\n", line)
		}
	}

	session, cfg, connInfo, err := openSession(cmd, handlers, log.New(os.Stderr, "[session] ", log.LstdFlags))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signalContext()
	defer stop()
	session.Start(ctx)

	fmt.Printf("likecomms - Send\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Framing: %s\n", framingInfo(cfg))
	fmt.Printf("Command: %s\n", url)
	fmt.Printf("Timeout: %v per reply\n\n", sendTimeout)

	okCount, failCount := sendRepeated(ctx, session, url, sendCount, os.Stdout)

	stats := session.Stats()
	session.Close()

	fmt.Printf("\n--- Send statistics ---\n")
	fmt.Printf("%d sent, %d ok, %d failed, avg rtt %v\n",
		okCount+failCount, okCount, failCount, stats.Correlator.RoundTripAvg.Round(time.Microsecond))

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}

// sendRepeated sends url count times and prints each outcome to w
func sendRepeated(ctx context.Context, session *ricif.Session, url string, count int, w io.Writer) (okCount, failCount int) {
	for i := 1; i <= count; i++ {
		if ctx.Err() != nil {
			break
		}
		fmt.Fprintf(w, "Send %d/%d: ", i, count)

		start := time.Now()
		msg, err := session.CmdRESTURLSync(ctx, url, sendTimeout)
		rtt := time.Since(start)

		switch {
		case errors.Is(err, ricif.ErrTimeout):
			fmt.Fprintf(w, "TIMEOUT (no reply in %v)\n", sendTimeout)
			failCount++
		case err != nil:
			fmt.Fprintf(w, "FAILED: %v\n", err)
			failCount++
		default:
			fmt.Fprintf(w, "#%d rtt=%v %s\n", msg.MsgNum, rtt.Round(time.Microsecond), msg.Text())
			if msg.Result() == "ok" {
				okCount++
			} else {
				failCount++
			}
		}

		// Small delay between commands
		if i < count {
			time.Sleep(100 * time.Millisecond)
		}
	}
	return okCount, failCount
}
