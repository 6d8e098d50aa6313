// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package ricproto

import "encoding/binary"

// HeaderByte packs direction and protocol into the second envelope byte
func HeaderByte(dir Direction, proto Protocol) byte {
	return byte(dir)<<directionBits | byte(proto)&protocolMask
}

// EncodeMsg builds an envelope around body
func EncodeMsg(msgNum uint8, dir Direction, proto Protocol, body []byte) []byte {
	out := make([]byte, 0, HeaderLen+len(body))
	out = append(out, msgNum, HeaderByte(dir, proto))
	return append(out, body...)
}

// RESTURLBody builds a RICREST URL element
func RESTURLBody(url string) []byte {
	out := make([]byte, 0, len(url)+2)
	out = append(out, byte(RESTURL))
	out = append(out, url...)
	return append(out, 0)
}

// RESTJSONBody builds a RICREST JSON element
func RESTJSONBody(js string) []byte {
	out := make([]byte, 0, len(js)+2)
	out = append(out, byte(RESTJSON))
	out = append(out, js...)
	return append(out, 0)
}

// RESTCmdFrameBody builds a RICREST command frame. cmd is NUL terminated;
// payload, if any, follows the terminator.
func RESTCmdFrameBody(cmd, payload []byte) []byte {
	out := make([]byte, 0, len(cmd)+len(payload)+2)
	out = append(out, byte(RESTCmdFrame))
	out = append(out, cmd...)
	if len(cmd) == 0 || cmd[len(cmd)-1] != 0 {
		out = append(out, 0)
	}
	return append(out, payload...)
}

// RESTFileBlockBody builds a RICREST file block starting at offset
func RESTFileBlockBody(offset uint32, data []byte) []byte {
	out := make([]byte, 1+fileBlockOffsetLen, 1+fileBlockOffsetLen+len(data))
	out[0] = byte(RESTFileBlock)
	binary.BigEndian.PutUint32(out[1:], offset)
	return append(out, data...)
}

// FileBlockOffset splits a received file block payload into offset and data
func FileBlockOffset(payload []byte) (uint32, []byte, bool) {
	if len(payload) < fileBlockOffsetLen {
		return 0, nil, false
	}
	return binary.BigEndian.Uint32(payload), payload[fileBlockOffsetLen:], true
}
