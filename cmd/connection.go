// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2026 The likecomms Authors

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.bug.st/serial"
	"golang.org/x/term"

	"github.com/robdobson/likecomms/pkg/ricif"
)

const (
	dialTimeout      = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Connection provides a common interface for reading/writing bytes from
// serial, TCP or WebSocket
type Connection interface {
	io.Reader
	io.Writer
	io.Closer
}

// SerialConnection wraps a serial port
type SerialConnection struct {
	port serial.Port
}

func (s *SerialConnection) Read(p []byte) (int, error) {
	return s.port.Read(p)
}

func (s *SerialConnection) Write(p []byte) (int, error) {
	return s.port.Write(p)
}

func (s *SerialConnection) Close() error {
	return s.port.Close()
}

// ErrConnectionClosed is returned when reading from a closed WebSocket connection
var ErrConnectionClosed = errors.New("websocket connection closed")

// WebSocketConnection wraps a WebSocket connection for byte-level reading.
// Each binary message carries a run of link bytes; text messages are skipped.
type WebSocketConnection struct {
	conn      *websocket.Conn
	buf       []byte
	bufOffset int
	closed    atomic.Bool
}

func (w *WebSocketConnection) Read(p []byte) (int, error) {
	if w.closed.Load() {
		return 0, ErrConnectionClosed
	}

	if w.bufOffset < len(w.buf) {
		n := copy(p, w.buf[w.bufOffset:])
		w.bufOffset += n
		return n, nil
	}

	for {
		messageType, data, err := w.conn.ReadMessage()
		if err != nil {
			w.closed.Store(true)
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if messageType != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		w.buf = data
		n := copy(p, w.buf)
		w.bufOffset = n
		return n, nil
	}
}

func (w *WebSocketConnection) Write(p []byte) (int, error) {
	if err := w.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close may be called while another goroutine is blocked in Read
func (w *WebSocketConnection) Close() error {
	w.closed.Store(true)
	return w.conn.Close()
}

// OpenSerialConnection opens a serial port connection
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	return &SerialConnection{port: port}, nil
}

// OpenTCPConnection dials a raw TCP link
func OpenTCPConnection(addr string) (Connection, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return conn, nil
}

// OpenWebSocketConnection opens a WebSocket connection with HTTP Basic auth
func OpenWebSocketConnection(wsURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: skipSSLVerify,
		}
	}

	headers := http.Header{}
	if username != "" && password != "" {
		credentials := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		headers.Set("Authorization", "Basic "+credentials)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout+handshakeTimeout)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("WebSocket connection failed (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("WebSocket connection failed: %w", err)
	}

	return &WebSocketConnection{conn: conn}, nil
}

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("LIKECOMMS_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Not a terminal, read a plain line
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// connector opens connections for one set of settings. The password is asked
// for once and reused on reconnect.
type connector struct {
	cfg      ricif.ConnectionConfig
	password string
	asked    bool
}

func newConnector(cfg ricif.ConnectionConfig) *connector {
	return &connector{cfg: cfg}
}

// Open opens a WebSocket, TCP or serial connection, in that order of
// preference
func (c *connector) Open() (Connection, string, error) {
	switch {
	case c.cfg.URL != "":
		if c.cfg.Username != "" && !c.asked {
			pw, err := GetPassword()
			if err != nil {
				return nil, "", err
			}
			c.password = pw
			c.asked = true
		}

		conn, err := OpenWebSocketConnection(c.cfg.URL, c.cfg.Username, c.password, c.cfg.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", c.cfg.URL), nil

	case c.cfg.TCP != "":
		conn, err := OpenTCPConnection(c.cfg.TCP)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("TCP: %s", c.cfg.TCP), nil

	case c.cfg.Port != "":
		conn, err := OpenSerialConnection(c.cfg.Port, c.cfg.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", c.cfg.Port, c.cfg.Baud), nil
	}

	return nil, "", errors.New("one of --port, --tcp or --url must be specified")
}

// framingInfo describes the framing settings for banners
func framingInfo(cfg *ricif.Config) string {
	esc := "0xE7/0xD7"
	if cfg.Framing.ASCIIEscapes {
		esc = "0x7E/0x7D"
	}
	if cfg.Framing.OverASCII {
		return esc + " + overascii"
	}
	return esc
}

// openSession loads settings, opens the connection and wraps it in a session.
// The session is not started.
func openSession(cmd *cobra.Command, h ricif.Handlers, logger *log.Logger) (*ricif.Session, *ricif.Config, string, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, "", err
	}

	conn, connInfo, err := newConnector(cfg.Connection).Open()
	if err != nil {
		return nil, nil, "", err
	}

	return ricif.NewSession(conn, cfg.SessionConfig(), h, logger), cfg, connInfo, nil
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
