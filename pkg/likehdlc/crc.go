// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package likehdlc

var crcTable [256]uint16

func init() {
	for i := 0; i < 256; i++ {
		crc := uint16(i) << 8
		for j := 0; j < 8; j++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ crcPolynomial
			} else {
				crc <<= 1
			}
		}
		crcTable[i] = crc
	}
}

// CalculateCRC computes CRC-16-CCITT (poly 0x1021, init 0xFFFF) using the
// lookup table
func CalculateCRC(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, b := range data {
		crc = UpdateCRC(crc, b)
	}
	return crc
}

// UpdateCRC advances a running CRC by one byte
func UpdateCRC(crc uint16, b byte) uint16 {
	return (crc << 8) ^ crcTable[byte(crc>>8)^b]
}

// CalculateCRCBitwise computes the same CRC with the shift-and-xor form,
// no table required
func CalculateCRCBitwise(data []byte) uint16 {
	crc := uint16(crcInitial)
	for _, c := range data {
		x := c ^ byte(crc>>8)
		x ^= x >> 4
		lo := x ^ (x << 5)
		hi := byte(crc) ^ (x >> 3) ^ (x << 4)
		crc = uint16(hi)<<8 | uint16(lo)
	}
	return crc
}

// CRCBytes returns the CRC of data as two big-endian bytes
func CRCBytes(data []byte) [crcSize]byte {
	crc := CalculateCRC(data)
	return [crcSize]byte{byte(crc >> 8), byte(crc)}
}
