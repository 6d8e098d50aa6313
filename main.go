// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors
//
// likecomms - HDLC-like link tooling for RIC and BusRaider targets
//
// A CLI for monitoring, analyzing and talking to targets over serial, TCP and
// WebSocket links using HDLC-like framing and numbered RICREST messages.

package main

import (
	"os"

	"github.com/robdobson/likecomms/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
