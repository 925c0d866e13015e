// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package store defines the optional persistence contract for certified
// payloads. The automaton does not require a store; when one is
// attached to a conductor, certification writes through to it before
// the certifying call returns.
package store

import (
	"errors"
	"fmt"

	"github.com/luxfi/conductor/payload"
)

// Sentinel errors a Store implementation wraps with fmt.Errorf("%w: ...").
var (
	// ErrAlreadyExists is returned when Store is called with a digest
	// already present in the backend.
	ErrAlreadyExists = errors.New("payload already exists")

	// ErrBackend wraps an underlying storage failure.
	ErrBackend = errors.New("store backend error")
)

// StoreError reports a failure from a PayloadStore implementation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func newStoreError(op string, err error) *StoreError {
	return &StoreError{Op: op, Err: err}
}

// PayloadStore is the pluggable persistence contract. P is constrained to payload.Payload so a store implementation can
// always recover height and digest from a stored value.
type PayloadStore[P payload.Payload] interface {
	// Store persists p. Returns ErrAlreadyExists if p's digest is
	// already present.
	Store(p P) error

	// Get looks up a payload by digest.
	Get(d payload.Digest) (p P, ok bool)

	// GetByHeight looks up a payload by height.
	GetByHeight(h uint64) (p P, ok bool)

	// Latest returns the stored payload with the highest height, if any.
	Latest() (p P, ok bool)
}
