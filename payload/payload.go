// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package payload defines the contract that application data must satisfy
// to be ordered by the automaton: a deterministic digest, a height, an
// optional parent link for chain-continuity checks, and a symmetric
// encode/decode pair.
package payload

import "crypto/sha256"

// Digest is a 32-byte content-addressed identifier, computed the same
// way a candidate ID is computed in the wire sequencer stack: the hash
// covers every field that participates in chain-continuity decisions.
type Digest [32]byte

// EmptyDigest is the canonical zero value, returned by the automaton's
// genesis query before any payload has been certified.
var EmptyDigest Digest

// Bytes returns the digest as a byte slice.
func (d Digest) Bytes() []byte {
	return d[:]
}

// Sum hashes arbitrary bytes into a Digest.
func Sum(b []byte) Digest {
	return sha256.Sum256(b)
}

// Payload is the contract an application type must implement to be
// ordered by a PayloadAutomaton. Digest must be a pure function of the
// payload's content: height, parent (if any), and application bytes.
type Payload interface {
	// Digest returns the content-addressed identifier of this payload.
	Digest() Digest

	// Height returns the payload's position in the certified chain.
	Height() uint64

	// Parent returns the digest of the payload this one extends, and
	// whether a parent was set at all. A payload with no parent link
	// (ok == false) is accepted at any height; the parent check is
	// opt-in per payload.
	Parent() (digest Digest, ok bool)

	// Encode serializes the payload to bytes.
	Encode() []byte
}

// Decoder reconstructs a payload of type P from bytes produced by
// Encode. It returns ok == false on malformed input rather than an
// error.
type Decoder[P Payload] func(b []byte) (p P, ok bool)
