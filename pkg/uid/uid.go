// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

// Package uid generates monotonic, lexicographically sortable unique
// identifiers (ULIDs) for use as database keys and identifiers throughout
// the Sylos system.
//
// An identifier is a 128-bit value: the low 48 bits of a millisecond
// timestamp followed by an 80-bit random payload, rendered as 26 characters
// of Crockford Base32. Identifiers minted by one Generator always sort in
// generation order, with a single documented exception: if the payload is
// incremented past 2^80-1 within one millisecond it wraps to zero, and the
// identifier minted immediately after the wrap sorts before the one minted
// immediately before it. Callers that need strict ordering under payload
// exhaustion must detect this externally, for example by forcing a timestamp
// advance.
package uid

import (
	"math/rand/v2"
	"time"
)

// Alphabet is Crockford's Base32 character set: digits 0-9 then the
// uppercase letters excluding I, L, O and U to avoid visual ambiguity.
const Alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// EncodedLen is the length of every encoded identifier.
const EncodedLen = 26

// timeMask truncates a millisecond timestamp to the 48 bits that fit in the
// identifier. Timestamps above 2^48-1 silently lose their high bits.
const timeMask = uint64(1)<<48 - 1

// source supplies fixed-width random draws from a seeded PRNG.
// Identical seeds and identical call sequences reproduce identical outputs.
type source struct {
	rng *rand.Rand
}

func newSource(seed uint64) *source {
	return &source{rng: rand.New(rand.NewPCG(seed, seed))}
}

func (s *source) draw64() uint64 {
	return s.rng.Uint64()
}

func (s *source) draw16() uint16 {
	return uint16(s.rng.Uint32())
}

// Generator mints identifiers from a millisecond timestamp and an internal
// random payload. It remembers the last timestamp and payload it used so
// that identifiers minted within the same millisecond (or across a backward
// clock jump) still increase.
//
// A Generator is NOT safe for concurrent use. The state is owned by a single
// caller: either give each goroutine its own Generator or serialize all
// calls with an explicit mutex. No internal locking is provided.
type Generator struct {
	src *source

	// lastTime holds the masked timestamp of the most recent call.
	// The 80-bit payload of that call is held as its high 64 bits and
	// low 16 bits, matching the two draws that produce a fresh payload.
	lastTime uint64
	randHi   uint64
	randLo   uint16
}

// New constructs a Generator whose random source is seeded from seed.
// The initial state is zero: no identifier has been generated yet.
func New(seed uint64) *Generator {
	return &Generator{src: newSource(seed)}
}

// Next mints the identifier for the given millisecond timestamp.
//
// If the (48-bit masked) timestamp is greater than the one used by the
// previous call, a fresh random payload is drawn. Otherwise the previous
// payload is incremented by one, so same-millisecond calls and backward
// clock jumps both preserve generation order. Incrementing past 2^80-1
// wraps the payload to zero; see the package documentation.
func (g *Generator) Next(timestampMS uint64) string {
	ts := timestampMS & timeMask

	if ts > g.lastTime {
		g.randHi = g.src.draw64()
		g.randLo = g.src.draw16()
	} else {
		// Same millisecond, or the clock went backward: increment the
		// prior payload. Both halves wrap naturally, so exhausting the
		// full 80-bit space rolls the payload over to zero.
		g.randLo++
		if g.randLo == 0 {
			g.randHi++
		}
	}
	g.lastTime = ts

	hi := ts<<16 | g.randHi>>48
	lo := g.randHi<<16 | uint64(g.randLo)
	return Encode(hi, lo)
}

// NextNow mints an identifier for the current wall-clock time.
func (g *Generator) NextNow() string {
	return g.Next(uint64(time.Now().UnixMilli()))
}

// Encode renders a 128-bit value, given as two 64-bit words (hi is the most
// significant), as 26 characters of Crockford Base32. Every value has a
// representation; the first character covers the top 3 bits only, since
// 26 groups of 5 bits span 130 bits.
func Encode(hi, lo uint64) string {
	var buf [EncodedLen]byte
	for i := EncodedLen - 1; i >= 0; i-- {
		buf[i] = Alphabet[lo&0x1F]
		lo = lo>>5 | hi<<59
		hi >>= 5
	}
	return string(buf[:])
}
