// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricproto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrMsgTooShort is returned for frames that cannot hold the envelope header
var ErrMsgTooShort = errors.New("message too short")

// ErrNotText is returned when JSON is requested from a binary payload
var ErrNotText = errors.New("payload is not text")

// DecodedMsg is a message decoded from a received frame
type DecodedMsg struct {
	MsgNum    uint8
	Protocol  Protocol
	Direction Direction

	// RICREST element code, valid when HasRESTType is set
	RESTType    RESTElem
	HasRESTType bool

	// IsText is set for URL and JSON elements; trailing NULs are removed
	IsText  bool
	Payload []byte

	Timestamp time.Time
}

// Decode splits a frame payload into envelope and protocol payload.
// The returned message references frame.
func Decode(frame []byte) (*DecodedMsg, error) {
	if len(frame) < HeaderLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrMsgTooShort, len(frame))
	}

	m := &DecodedMsg{
		MsgNum:    frame[0],
		Protocol:  Protocol(frame[1] & protocolMask),
		Direction: Direction(frame[1] >> directionBits),
		Payload:   frame[HeaderLen:],
		Timestamp: time.Now(),
	}

	if m.Protocol == ProtocolRICREST && len(m.Payload) > 0 {
		m.RESTType = RESTElem(m.Payload[0])
		m.HasRESTType = true
		m.Payload = m.Payload[1:]
		if m.RESTType == RESTURL || m.RESTType == RESTJSON {
			m.IsText = true
			m.Payload = bytes.TrimRight(m.Payload, "\x00")
		}
	}
	return m, nil
}

// Numbered reports whether the message carries a message number
func (m *DecodedMsg) Numbered() bool {
	return m.MsgNum != MsgNumNone
}

// Text returns the payload as a string, up to the first NUL
func (m *DecodedMsg) Text() string {
	if i := bytes.IndexByte(m.Payload, 0); i >= 0 {
		return string(m.Payload[:i])
	}
	return string(m.Payload)
}

// JSON unmarshals a text payload into v
func (m *DecodedMsg) JSON(v any) error {
	if !m.IsText {
		return ErrNotText
	}
	return json.Unmarshal([]byte(m.Text()), v)
}

// JSONMap returns a text payload decoded as a JSON object
func (m *DecodedMsg) JSONMap() (map[string]any, error) {
	var out map[string]any
	if err := m.JSON(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Result returns the "rslt" field of a JSON reply, or "" if there is none
func (m *DecodedMsg) Result() string {
	var r struct {
		Rslt string `json:"rslt"`
	}
	if err := m.JSON(&r); err != nil {
		return ""
	}
	return r.Rslt
}
