// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/robdobson/likecomms/pkg/ricif"
)

// newWSServer starts a WebSocket server that runs script on each connection
func newWSServer(t *testing.T, script func(c *websocket.Conn, r *http.Request)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		script(c, r)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readN(t *testing.T, conn Connection, size int) []byte {
	t.Helper()
	buf := make([]byte, size)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	return buf[:n]
}

// ============================================================================
// WebSocket
// ============================================================================

func TestWebSocketConnection_ReadBuffersAndSkipsText(t *testing.T) {
	url := newWSServer(t, func(c *websocket.Conn, r *http.Request) {
		c.WriteMessage(websocket.TextMessage, []byte("status text"))
		c.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3, 4, 5})
		c.WriteMessage(websocket.BinaryMessage, []byte{6})

		// Echo one message back, then close cleanly
		mt, data, err := c.ReadMessage()
		if err == nil {
			c.WriteMessage(mt, data)
		}
		c.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		c.ReadMessage()
	})

	conn, err := OpenWebSocketConnection(url, "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	defer conn.Close()

	wants := [][]byte{{1, 2}, {3, 4}, {5}, {6}}
	for i, want := range wants {
		if got := readN(t, conn, 2); string(got) != string(want) {
			t.Errorf("read %d = %v, want %v", i, got, want)
		}
	}

	if n, err := conn.Write([]byte("abc")); err != nil || n != 3 {
		t.Fatalf("Write = %d, %v", n, err)
	}
	if got := readN(t, conn, 16); string(got) != "abc" {
		t.Errorf("echo = %q", got)
	}

	if _, err := conn.Read(make([]byte, 4)); !errors.Is(err, io.EOF) {
		t.Errorf("Read after close frame = %v, want EOF", err)
	}
	if _, err := conn.Read(make([]byte, 4)); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Read after EOF = %v, want ErrConnectionClosed", err)
	}
}

func TestWebSocketConnection_CloseRunningSession(t *testing.T) {
	url := newWSServer(t, func(c *websocket.Conn, r *http.Request) {
		c.ReadMessage()
	})

	conn, err := OpenWebSocketConnection(url, "", "", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}

	session := ricif.NewSession(conn, ricif.DefaultSessionConfig(), ricif.Handlers{}, log.New(io.Discard, "", 0))
	session.Start(context.Background())
	done := session.Done()

	time.Sleep(50 * time.Millisecond)
	session.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reader still running after Close")
	}
	if _, err := conn.Read(make([]byte, 1)); !errors.Is(err, ErrConnectionClosed) {
		t.Errorf("Read after Close = %v, want ErrConnectionClosed", err)
	}
}

func TestWebSocketConnection_BasicAuth(t *testing.T) {
	type creds struct {
		user, pass string
		ok         bool
	}
	got := make(chan creds, 1)
	url := newWSServer(t, func(c *websocket.Conn, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		got <- creds{user, pass, ok}
	})

	conn, err := OpenWebSocketConnection(url, "marty", "secret", false)
	if err != nil {
		t.Fatalf("OpenWebSocketConnection: %v", err)
	}
	defer conn.Close()

	select {
	case c := <-got:
		if !c.ok || c.user != "marty" || c.pass != "secret" {
			t.Errorf("server saw %+v", c)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server handler did not run")
	}
}

func TestOpenWebSocketConnection_Errors(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"http scheme", "http://localhost/ws"},
		{"bad url", "ws://[::1"},
		{"nothing listening", "ws://127.0.0.1:1/ws"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := OpenWebSocketConnection(tt.url, "", "", false); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// ============================================================================
// TCP and connector
// ============================================================================

func TestOpenTCPConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		io.Copy(c, c)
	}()

	conn, connInfo, err := newConnector(ricif.ConnectionConfig{TCP: ln.Addr().String()}).Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()

	if !strings.HasPrefix(connInfo, "TCP: ") {
		t.Errorf("connInfo = %q", connInfo)
	}
	conn.Write([]byte{0xE7, 0x01, 0xE7})
	if got := readN(t, conn, 8); string(got) != "\xE7\x01\xE7" {
		t.Errorf("echo = % X", got)
	}
}

func TestConnector_NothingConfigured(t *testing.T) {
	if _, _, err := newConnector(ricif.ConnectionConfig{Baud: 115200}).Open(); err == nil {
		t.Error("expected error without port, tcp or url")
	}
}

func TestConnector_PrefersWebSocket(t *testing.T) {
	url := newWSServer(t, func(c *websocket.Conn, r *http.Request) {
		c.ReadMessage()
	})

	conn, connInfo, err := newConnector(ricif.ConnectionConfig{URL: url, TCP: "127.0.0.1:1"}).Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer conn.Close()
	if connInfo != "WebSocket: "+url {
		t.Errorf("connInfo = %q", connInfo)
	}
}

func TestFramingInfo(t *testing.T) {
	cfg := ricif.DefaultConfig()
	if got := framingInfo(cfg); got != "0xE7/0xD7" {
		t.Errorf("default = %q", got)
	}
	cfg.Framing.ASCIIEscapes = true
	cfg.Framing.OverASCII = true
	if got := framingInfo(cfg); got != "0x7E/0x7D + overascii" {
		t.Errorf("ascii overlay = %q", got)
	}
}
