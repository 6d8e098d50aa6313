// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricproto

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// maxHexPreview limits how much of a binary payload FormatMsg dumps
const maxHexPreview = 32

// FormatMsg formats a message into a human-readable string
func FormatMsg(m *DecodedMsg) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "[%s] ", m.Timestamp.Format("15:04:05.000"))
	if m.Numbered() {
		fmt.Fprintf(&sb, "#%-3d ", m.MsgNum)
	} else {
		sb.WriteString("#--  ")
	}
	fmt.Fprintf(&sb, "%-7s %-9s", FormatDirection(m.Direction), FormatProtocol(m.Protocol))
	if m.HasRESTType {
		fmt.Fprintf(&sb, " %-7s", FormatRESTType(m.RESTType))
	}

	if m.IsText {
		sb.WriteString(" ")
		sb.WriteString(m.Text())
	} else {
		sb.WriteString(" ")
		sb.WriteString(FormatBinary(m.Payload))
	}
	return sb.String()
}

// FormatBinary returns a length and a hex preview of data
func FormatBinary(data []byte) string {
	if len(data) == 0 {
		return "len=0"
	}
	if len(data) <= maxHexPreview {
		return fmt.Sprintf("len=%d %s", len(data), hex.EncodeToString(data))
	}
	return fmt.Sprintf("len=%d %s...", len(data), hex.EncodeToString(data[:maxHexPreview]))
}

// FormatDirection returns the name of a direction
func FormatDirection(d Direction) string {
	switch d {
	case DirCommand:
		return "cmd"
	case DirResponse:
		return "resp"
	case DirPublish:
		return "publish"
	case DirReport:
		return "report"
	default:
		return fmt.Sprintf("OTHER %d", d)
	}
}

// FormatProtocol returns the name of a protocol
func FormatProtocol(p Protocol) string {
	switch p {
	case ProtocolROSSerial:
		return "ROSSERIAL"
	case ProtocolM1SC:
		return "M1SC"
	case ProtocolRICREST:
		return "RICREST"
	default:
		return fmt.Sprintf("OTHER %d", p)
	}
}

// FormatRESTType returns the short name of a RICREST element code
func FormatRESTType(e RESTElem) string {
	switch e {
	case RESTURL:
		return "url"
	case RESTJSON:
		return "json"
	case RESTBody:
		return "body"
	case RESTCmdFrame:
		return "cmd"
	case RESTFileBlock:
		return "fileBlk"
	default:
		return fmt.Sprintf("OTHER %d", e)
	}
}
