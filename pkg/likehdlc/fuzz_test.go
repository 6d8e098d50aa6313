// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2026 The likecomms Authors

package likehdlc

import (
	"bytes"
	"math/rand"
	"os"
	"strconv"
	"testing"
	"time"
)

// getFuzzRounds returns the number of fuzz rounds from FUZZ_ROUNDS env var, default 1000
func getFuzzRounds() int {
	if envRounds := os.Getenv("FUZZ_ROUNDS"); envRounds != "" {
		if rounds, err := strconv.Atoi(envRounds); err == nil && rounds > 0 {
			return rounds
		}
	}
	return 1000
}

// getFuzzSeed returns the seed from FUZZ_SEED env var, or generates one from current time
func getFuzzSeed() int64 {
	if envSeed := os.Getenv("FUZZ_SEED"); envSeed != "" {
		if seed, err := strconv.ParseInt(envSeed, 10, 64); err == nil {
			return seed
		}
	}
	return time.Now().UnixNano()
}

// newFuzzRng creates a new random number generator and logs the seed for reproducibility
func newFuzzRng(t *testing.T) *rand.Rand {
	seed := getFuzzSeed()
	t.Logf("Seed: %d (reproduce with FUZZ_SEED=%d)", seed, seed)
	return rand.New(rand.NewSource(seed))
}

// randomPayload returns 0-maxLen random bytes, biased towards the
// delimiter and escape bytes of esc
func randomPayload(rng *rand.Rand, esc Escapes, maxLen int) []byte {
	data := make([]byte, rng.Intn(maxLen+1))
	rng.Read(data)
	for i := range data {
		switch rng.Intn(8) {
		case 0:
			data[i] = esc.Delimiter
		case 1:
			data[i] = esc.Escape
		}
	}
	return data
}

func randomEscapes(rng *rand.Rand) Escapes {
	if rng.Intn(2) == 0 {
		return ASCIIEscapes
	}
	return NonASCIIEscapes
}

// ============================================================
// CRC Fuzz Tests
// ============================================================

// TestFuzzCRC_TableMatchesBitwise checks both CRC forms agree
func TestFuzzCRC_TableMatchesBitwise(t *testing.T) {
	rounds := getFuzzRounds() * 10
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		data := make([]byte, rng.Intn(1025))
		rng.Read(data)

		table := CalculateCRC(data)
		bitwise := CalculateCRCBitwise(data)
		if table != bitwise {
			t.Fatalf("Round %d: table 0x%04X != bitwise 0x%04X for % X", i, table, bitwise, data)
		}
	}
}

// ============================================================
// Decoder Fuzz Tests
// ============================================================

// TestFuzzDecoder_RoundTrip encodes random payloads and checks they decode
// unchanged
func TestFuzzDecoder_RoundTrip(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		esc := randomEscapes(rng)
		payload := randomPayload(rng, esc, 512)

		d := NewDecoder(configFor(esc))
		c := decodeAll(d, Encode(payload, esc))
		if len(c.errs) != 0 {
			t.Errorf("Round %d: unexpected errors %v", i, c.errs)
			continue
		}
		if len(c.frames) != 1 {
			t.Errorf("Round %d: expected 1 frame, got %d", i, len(c.frames))
			continue
		}
		if !bytes.Equal(c.frames[0], payload) {
			t.Errorf("Round %d: payload mismatch\n got % X\nwant % X", i, c.frames[0], payload)
		}
	}
}

// TestFuzzDecoder_RandomBytes feeds random bytes to the decoder
// and verifies it doesn't crash or panic
func TestFuzzDecoder_RandomBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		cfg := configFor(randomEscapes(rng))
		cfg.MaxFrameLen = 64
		d := NewDecoder(cfg)

		data := make([]byte, rng.Intn(512)+1)
		rng.Read(data)
		d.Decode(data, HandlerFuncs{})

		snap := d.Stats().Snapshot()
		if snap.RxFrames+snap.CRCErrors+snap.TooLong > uint64(len(data)) {
			t.Errorf("Round %d: more outcomes than bytes: %s", i, snap)
		}
	}
}

// TestFuzzDecoder_CorruptedFrames flips random bits inside a frame and
// checks the decoder resynchronises on the following frame
func TestFuzzDecoder_CorruptedFrames(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		esc := randomEscapes(rng)
		encoded := Encode(randomPayload(rng, esc, 128), esc)

		// Corrupt a random byte (not the delimiters)
		idx := rng.Intn(len(encoded)-2) + 1
		encoded[idx] ^= byte(rng.Intn(255) + 1)

		d := NewDecoder(configFor(esc))
		d.Decode(encoded, HandlerFuncs{})

		next := randomPayload(rng, esc, 32)
		c := decodeAll(d, Encode(next, esc))
		if len(c.errs) != 0 || len(c.frames) != 1 || !bytes.Equal(c.frames[0], next) {
			t.Errorf("Round %d: no resync after corruption: frames=%X errs=%v", i, c.frames, c.errs)
		}
	}
}

// TestFuzzDecoder_MissingBytes tests frames with missing bytes
func TestFuzzDecoder_MissingBytes(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		esc := randomEscapes(rng)
		encoded := Encode(randomPayload(rng, esc, 128), esc)

		numToRemove := rng.Intn(5) + 1
		for j := 0; j < numToRemove && len(encoded) > 2; j++ {
			idx := rng.Intn(len(encoded))
			encoded = append(encoded[:idx], encoded[idx+1:]...)
		}

		// Feed truncated frame - should not panic
		d := NewDecoder(configFor(esc))
		d.Decode(encoded, HandlerFuncs{})
	}
}

// TestFuzzDecoder_RepeatedDelimiters tests handling of runs of delimiters
// before a valid frame
func TestFuzzDecoder_RepeatedDelimiters(t *testing.T) {
	rounds := getFuzzRounds()
	rng := newFuzzRng(t)
	t.Logf("Running %d fuzz rounds", rounds)

	for i := 0; i < rounds; i++ {
		esc := randomEscapes(rng)
		stream := bytes.Repeat([]byte{esc.Delimiter}, rng.Intn(100)+1)
		payload := randomPayload(rng, esc, 64)
		stream = append(stream, Encode(payload, esc)...)

		d := NewDecoder(configFor(esc))
		c := decodeAll(d, stream)
		if len(c.errs) != 0 {
			t.Errorf("Round %d: unexpected error after repeated delimiters: %v", i, c.errs)
		}
		if len(c.frames) != 1 || !bytes.Equal(c.frames[0], payload) {
			t.Errorf("Round %d: expected valid frame after repeated delimiters", i)
		}
	}
}
