// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/robdobson/likecomms/pkg/likehdlc"
	"github.com/robdobson/likecomms/pkg/overascii"
)

var rawDumpDuration int

var rawDumpCmd = &cobra.Command{
	Use:   "raw_dump",
	Short: "Hex dump raw link bytes",
	Long: `Dump the raw bytes received on the connection without decoding frames.

Each read is printed as a hex dump with a marker line underneath:
  D  frame delimiter
  E  escape byte
  P  overlay protocol byte (bit 7 set, --overascii only)
  L  log text byte (bit 7 clear, --overascii only)
  .  frame content

Useful for debugging baud rate, escape pair and overlay settings.

Exit codes:
  0 - Dump completed normally
  1 - Connection failed during the dump
  2 - Connection error`,
	RunE: runRawDump,
}

func init() {
	rootCmd.AddCommand(rawDumpCmd)
	rawDumpCmd.Flags().IntVar(&rawDumpDuration, "duration", 30, "Dump duration in seconds")
}

func runRawDump(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	conn, connInfo, err := newConnector(cfg.Connection).Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	esc := likehdlc.EscapesFor(cfg.Framing.ASCIIEscapes)
	overASCII := cfg.Framing.OverASCII

	fmt.Printf("likecomms - Raw Dump\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Framing: %s\n", framingInfo(cfg))
	fmt.Printf("Duration: %d seconds\n\n", rawDumpDuration)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(rawDumpDuration)*time.Second)
	defer cancel()
	sigCtx, stop := signalContext()
	defer stop()
	context.AfterFunc(sigCtx, cancel)

	readChan := make(chan []byte, 100)
	errChan := make(chan error, 1)

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				data := make([]byte, n)
				copy(data, buf[:n])
				readChan <- data
			}
			if err != nil {
				errChan <- err
				return
			}
		}
	}()

	start := time.Now()
	bytesReceived := 0
	chunks := 0

	for {
		select {
		case data := <-readChan:
			bytesReceived += len(data)
			chunks++
			fmt.Printf("[%s] %d bytes\n", time.Now().Format("15:04:05.000"), len(data))
			dumpChunk(os.Stdout, data, esc, overASCII)

		case err := <-errChan:
			fmt.Printf("\n[%s] Connection error: %v\n", time.Now().Format("15:04:05.000"), err)
			printDumpResults(time.Since(start), chunks, bytesReceived, "FAILED (connection error)")
			os.Exit(1)

		case <-ctx.Done():
			printDumpResults(time.Since(start), chunks, bytesReceived, "PASSED (connection stable)")
			return nil
		}
	}
}

func printDumpResults(elapsed time.Duration, chunks, bytes int, result string) {
	fmt.Printf("\n--- Dump Results ---\n")
	fmt.Printf("Duration: %v\n", elapsed.Round(time.Millisecond))
	fmt.Printf("Reads: %d\n", chunks)
	fmt.Printf("Bytes received: %d\n", bytes)
	fmt.Printf("Result: %s\n", result)
}

const dumpBytesPerLine = 16

// dumpChunk writes data as hex lines, each followed by a marker line
func dumpChunk(w io.Writer, data []byte, esc likehdlc.Escapes, overASCII bool) {
	for off := 0; off < len(data); off += dumpBytesPerLine {
		line := data[off:min(off+dumpBytesPerLine, len(data))]

		var hex, marks strings.Builder
		for _, b := range line {
			fmt.Fprintf(&hex, "%02X ", b)
			marks.WriteByte(markByte(b, esc, overASCII))
			marks.WriteString("  ")
		}
		fmt.Fprintf(w, "  %04X  %s\n", off, hex.String())
		fmt.Fprintf(w, "        %s\n", strings.TrimRight(marks.String(), " "))
	}
}

// markByte classifies one raw byte for dumpChunk
func markByte(b byte, esc likehdlc.Escapes, overASCII bool) byte {
	if overASCII {
		if overascii.IsProtocolByte(b) {
			return 'P'
		}
		return 'L'
	}
	switch b {
	case esc.Delimiter:
		return 'D'
	case esc.Escape:
		return 'E'
	}
	return '.'
}
