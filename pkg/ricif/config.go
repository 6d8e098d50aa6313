// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricif

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/robdobson/likecomms/pkg/likehdlc"
)

// Config is the file form of the connection and session settings
type Config struct {
	Connection ConnectionConfig `yaml:"connection"`
	Framing    FramingConfig    `yaml:"framing"`
	Correlator TimingConfig     `yaml:"correlator"`
}

// ConnectionConfig selects the transport. At most one of Port, URL and TCP
// is normally set.
type ConnectionConfig struct {
	Port        string `yaml:"port"` // serial device, e.g. /dev/ttyUSB0
	Baud        int    `yaml:"baud"`
	URL         string `yaml:"url"` // ws:// or wss://
	Username    string `yaml:"username"`
	NoSSLVerify bool   `yaml:"no_ssl_verify"`
	TCP         string `yaml:"tcp"` // host:port
}

// FramingConfig selects the codec variant
type FramingConfig struct {
	ASCIIEscapes bool   `yaml:"ascii_escapes"`
	OverASCII    bool   `yaml:"overascii"`
	CRC          string `yaml:"crc"` // "table" or "bitwise"
	MaxFrameLen  int    `yaml:"max_frame_len"`
}

// TimingConfig holds correlator timing
type TimingConfig struct {
	RespTimeout   time.Duration `yaml:"resp_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// DefaultConfig returns a config with the defaults of the RIC tooling
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Baud: 115200,
		},
		Framing: FramingConfig{
			CRC:         "table",
			MaxFrameLen: likehdlc.DefaultMaxFrameLen,
		},
		Correlator: TimingConfig{
			RespTimeout:   DefaultRespTimeout,
			SweepInterval: DefaultSweepInterval,
		},
	}
}

// LoadConfig reads config from a YAML file and applies environment
// overrides. A missing file is not an error: defaults are used.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides reads environment variables and overrides config values.
// Supported: LIKECOMMS_PORT, LIKECOMMS_BAUD, LIKECOMMS_URL, LIKECOMMS_TCP
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LIKECOMMS_PORT"); v != "" {
		c.Connection.Port = v
	}
	if v := os.Getenv("LIKECOMMS_BAUD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Connection.Baud = n
		}
	}
	if v := os.Getenv("LIKECOMMS_URL"); v != "" {
		c.Connection.URL = v
	}
	if v := os.Getenv("LIKECOMMS_TCP"); v != "" {
		c.Connection.TCP = v
	}
}

// Validate checks values that cannot be defaulted
func (c *Config) Validate() error {
	switch c.Framing.CRC {
	case "", "table", "bitwise":
	default:
		return fmt.Errorf("unknown crc algorithm %q (use table or bitwise)", c.Framing.CRC)
	}
	if c.Connection.Baud < 0 {
		return fmt.Errorf("invalid baud rate %d", c.Connection.Baud)
	}
	return nil
}

// SessionConfig converts the file settings into a SessionConfig
func (c *Config) SessionConfig() SessionConfig {
	sc := DefaultSessionConfig()

	sc.Link.Codec.Escapes = likehdlc.EscapesFor(c.Framing.ASCIIEscapes)
	if c.Framing.CRC == "bitwise" {
		sc.Link.Codec.CRC = likehdlc.CRCBitwise
	}
	if c.Framing.MaxFrameLen > 0 {
		sc.Link.Codec.MaxFrameLen = c.Framing.MaxFrameLen
	}
	sc.Link.OverASCII = c.Framing.OverASCII

	if c.Correlator.RespTimeout > 0 {
		sc.Correlator.RespTimeout = c.Correlator.RespTimeout
	}
	if c.Correlator.SweepInterval > 0 {
		sc.Correlator.SweepInterval = c.Correlator.SweepInterval
	}
	return sc
}
