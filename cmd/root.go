// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/robdobson/likecomms/pkg/ricif"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// TCP connection flag
	tcpAddr string

	// Framing flags
	overASCII    bool
	asciiEscapes bool

	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "likecomms",
	Short: "HDLC-like link monitor and console for RIC/BusRaider targets",
	Long: `likecomms - A CLI tool for talking to RIC and BusRaider targets over the
HDLC-like framed link.

Provides commands for monitoring decoded traffic, detecting framing and
protocol errors, sending RICREST commands, recording and replaying captures
and an interactive console.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/ws [--username user]
  TCP:       --tcp host:port

Framing:
  --ascii-escapes  use 0x7E/0x7D instead of the default 0xE7/0xD7
  --overascii      the link carries log text; frames are overlay-encoded

Settings may also come from a YAML file (--config) and the LIKECOMMS_PORT,
LIKECOMMS_BAUD, LIKECOMMS_URL and LIKECOMMS_TCP environment variables.
Flags given on the command line win.

For WebSocket authentication, the password is read from the LIKECOMMS_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version: "1.0.0",
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVar(&tcpAddr, "tcp", "", "Raw TCP address (host:port)")

	rootCmd.PersistentFlags().BoolVar(&overASCII, "overascii", false, "Link mixes log text with overlay-encoded frames")
	rootCmd.PersistentFlags().BoolVar(&asciiEscapes, "ascii-escapes", false, "Use 0x7E/0x7D delimiter and escape bytes")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML settings file")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the settings file and lays the command line flags that
// were actually given over it
func loadConfig(cmd *cobra.Command) (*ricif.Config, error) {
	cfg, err := ricif.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	mergeFlags(cfg, cmd.Flags().Changed)
	return cfg, nil
}

func mergeFlags(cfg *ricif.Config, changed func(name string) bool) {
	if changed("port") {
		cfg.Connection.Port = portName
	}
	if changed("baud") {
		cfg.Connection.Baud = baudRate
	}
	if changed("url") {
		cfg.Connection.URL = wsURL
	}
	if changed("username") {
		cfg.Connection.Username = wsUsername
	}
	if changed("no-ssl-verify") {
		cfg.Connection.NoSSLVerify = wsNoSSLVerify
	}
	if changed("tcp") {
		cfg.Connection.TCP = tcpAddr
	}
	if changed("overascii") {
		cfg.Framing.OverASCII = overASCII
	}
	if changed("ascii-escapes") {
		cfg.Framing.ASCIIEscapes = asciiEscapes
	}
}
