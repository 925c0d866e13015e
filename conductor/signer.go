// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conductor

import (
	"crypto/ed25519"
	"crypto/rand"

	"github.com/luxfi/conductor/payload"
)

// Signer authenticates the digests this conductor commits: sign one
// digest, expose the public key. Nothing here aggregates signatures.
type Signer interface {
	Sign(d payload.Digest) ([]byte, error)
	PublicKey() []byte
}

// Ed25519Signer is a reference Signer backed by crypto/ed25519. It
// exists for tests and small deployments; production callers typically
// bring their own Signer wired to a validator's real key material.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewEd25519Signer generates a fresh key pair.
func NewEd25519Signer() (*Ed25519Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519Signer{priv: priv, pub: pub}, nil
}

func (s *Ed25519Signer) Sign(d payload.Digest) ([]byte, error) {
	return ed25519.Sign(s.priv, d.Bytes()), nil
}

func (s *Ed25519Signer) PublicKey() []byte {
	return s.pub
}
