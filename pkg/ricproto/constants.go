// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

// Package ricproto implements the sequence-numbered message envelope carried
// inside likehdlc frames, and the RICREST element encodings built on it.
//
// Envelope layout:
//
//	byte 0   message number (1-255, 0 = unnumbered)
//	byte 1   direction<<6 | protocol
//	byte 2.. protocol payload
//
// RICREST payloads start with an element code. URL and JSON elements carry
// NUL-terminated text.
package ricproto

// Direction of a message, bits 6-7 of the header byte
type Direction uint8

const (
	DirCommand Direction = iota
	DirResponse
	DirPublish
	DirReport
)

// Protocol identifier, bits 0-5 of the header byte
type Protocol uint8

const (
	ProtocolROSSerial Protocol = 0x00
	ProtocolM1SC      Protocol = 0x01
	ProtocolRICREST   Protocol = 0x02
)

// RESTElem is the RICREST element code, first byte of a RICREST payload
type RESTElem uint8

const (
	RESTURL RESTElem = iota
	RESTJSON
	RESTBody
	RESTCmdFrame
	RESTFileBlock
)

// Header layout
const (
	HeaderLen     = 2
	MsgNumNone    = 0
	MsgNumMax     = 255
	directionBits = 6
	protocolMask  = 0x3F
)

// fileBlockOffsetLen is the size of the big-endian offset that starts a
// RICREST file block
const fileBlockOffsetLen = 4
