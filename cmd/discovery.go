// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/robdobson/likecomms/pkg/likehdlc"
	"github.com/robdobson/likecomms/pkg/ricif"
	"github.com/robdobson/likecomms/pkg/ricproto"
)

var (
	discoveryTimeout time.Duration
	discoveryCommand string
)

var discoveryCmd = &cobra.Command{
	Use:   "discovery",
	Short: "Discover the framing a target uses",
	Long: `Try each framing variant in turn and report which ones the target answers.

For every combination of escape pair (0xE7/0xD7 or 0x7E/0x7D) and overlay
(plain or overascii), the connection is opened, a RICREST command is sent and
the reply is awaited. The --ascii-escapes and --overascii flags are ignored.

Examples:
  # Find the framing of a board on a serial port
  likecomms discovery --port /dev/ttyUSB0

  # Use a different probe command
  likecomms discovery --tcp 192.168.1.20:8080 --command blestatus

Exit codes:
  0 - At least one framing variant answered
  1 - No variant answered
  2 - Connection error`,
	RunE: runDiscovery,
}

func init() {
	rootCmd.AddCommand(discoveryCmd)
	discoveryCmd.Flags().DurationVar(&discoveryTimeout, "timeout", ricif.DefaultRespTimeout, "Time to wait for each reply")
	discoveryCmd.Flags().StringVar(&discoveryCommand, "command", "v", "RICREST command used as the probe")
}

// framingCandidate is one framing variant to probe
type framingCandidate struct {
	asciiEscapes bool
	overASCII    bool
}

func (c framingCandidate) String() string {
	esc := "0xE7/0xD7"
	if c.asciiEscapes {
		esc = "0x7E/0x7D"
	}
	if c.overASCII {
		return esc + " + overascii"
	}
	return esc + " plain"
}

// apply sets the candidate's framing on a session config
func (c framingCandidate) apply(sc ricif.SessionConfig) ricif.SessionConfig {
	sc.Link.Codec.Escapes = likehdlc.EscapesFor(c.asciiEscapes)
	sc.Link.OverASCII = c.overASCII
	return sc
}

var framingCandidates = []framingCandidate{
	{asciiEscapes: false, overASCII: false},
	{asciiEscapes: false, overASCII: true},
	{asciiEscapes: true, overASCII: false},
	{asciiEscapes: true, overASCII: true},
}

// probeFraming sends one command over conn using the candidate framing and
// waits for the reply. conn is closed on return.
func probeFraming(ctx context.Context, conn Connection, base ricif.SessionConfig, cand framingCandidate, command string, timeout time.Duration) (*ricproto.DecodedMsg, error) {
	session := ricif.NewSession(conn, cand.apply(base), ricif.Handlers{}, log.New(io.Discard, "", 0))
	session.Start(ctx)
	defer session.Close()

	return session.CmdRESTURLSync(ctx, command, timeout)
}

func runDiscovery(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opener := newConnector(cfg.Connection)

	ctx, stop := signalContext()
	defer stop()

	fmt.Printf("likecomms - Framing Discovery\n")
	fmt.Printf("Probe command: %s\n", discoveryCommand)
	fmt.Printf("Timeout: %v per variant\n\n", discoveryTimeout)

	found := 0
	for _, cand := range framingCandidates {
		if ctx.Err() != nil {
			break
		}

		conn, connInfo, err := opener.Open()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
			os.Exit(2)
		}
		fmt.Printf("%-22s on %s: ", cand, connInfo)

		msg, err := probeFraming(ctx, conn, cfg.SessionConfig(), cand, discoveryCommand, discoveryTimeout)
		if err != nil {
			fmt.Printf("no reply (%v)\n", err)
			continue
		}
		found++
		fmt.Printf("REPLY #%d %s\n", msg.MsgNum, msg.Text())
	}

	fmt.Printf("\n--- Discovery Results ---\n")
	fmt.Printf("%d of %d framing variants answered\n", found, len(framingCandidates))

	if found == 0 {
		os.Exit(1)
	}
	return nil
}
