// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package payload

import "encoding/json"

// SimplePayload is a default, JSON-backed Payload implementation.
// Applications with no bespoke wire format can embed or alias this
// type rather than writing their own Encode/Decode pair.
type SimplePayload struct {
	PayloadHeight uint64  `json:"height"`
	ParentDigest  *Digest `json:"parent,omitempty"`
	Body          []byte  `json:"body"`
}

// NewSimplePayload builds a SimplePayload and nothing else; callers
// wanting a parent link should set one with WithParent before the
// first call to Digest.
func NewSimplePayload(height uint64, body []byte) *SimplePayload {
	return &SimplePayload{PayloadHeight: height, Body: body}
}

// WithParent attaches a parent digest and returns the receiver for
// chaining.
func (p *SimplePayload) WithParent(d Digest) *SimplePayload {
	p.ParentDigest = &d
	return p
}

// Digest hashes height, parent (if any), and body so that mutating any
// of the three changes the digest.
func (p *SimplePayload) Digest() Digest {
	h := make([]byte, 0, 8+32+len(p.Body))
	h = appendUint64(h, p.PayloadHeight)
	if p.ParentDigest != nil {
		h = append(h, p.ParentDigest[:]...)
	}
	h = append(h, p.Body...)
	return Sum(h)
}

func (p *SimplePayload) Height() uint64 { return p.PayloadHeight }

func (p *SimplePayload) Parent() (Digest, bool) {
	if p.ParentDigest == nil {
		return EmptyDigest, false
	}
	return *p.ParentDigest, true
}

func (p *SimplePayload) Encode() []byte {
	b, err := json.Marshal(p)
	if err != nil {
		// SimplePayload's fields are all directly JSON-marshalable;
		// this can only fail on an impossible Go runtime condition.
		panic(err)
	}
	return b
}

// DecodeSimplePayload is the Decoder for SimplePayload, the
// counterpart to Encode.
func DecodeSimplePayload(b []byte) (*SimplePayload, bool) {
	var p SimplePayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, false
	}
	return &p, true
}

func appendUint64(b []byte, v uint64) []byte {
	return append(b,
		byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
		byte(v>>24), byte(v>>16), byte(v>>8), byte(v),
	)
}
