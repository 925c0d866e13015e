// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package store

import (
	"sync"

	"github.com/luxfi/conductor/payload"
)

// MemStore is the reference, in-memory PayloadStore: the same
// RWMutex-guarded map discipline the automaton itself uses for
// by_height, exposed as a standalone store so a conductor can be
// constructed with or without one.
type MemStore[P payload.Payload] struct {
	mu        sync.RWMutex
	byDigest  map[payload.Digest]P
	byHeight  map[uint64]P
	latest    P
	hasLatest bool
}

// NewMemStore creates an empty in-memory store.
func NewMemStore[P payload.Payload]() *MemStore[P] {
	return &MemStore[P]{
		byDigest: make(map[payload.Digest]P),
		byHeight: make(map[uint64]P),
	}
}

func (s *MemStore[P]) Store(p P) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d := p.Digest()
	if _, exists := s.byDigest[d]; exists {
		return newStoreError("store", ErrAlreadyExists)
	}

	s.byDigest[d] = p
	s.byHeight[p.Height()] = p
	if !s.hasLatest || p.Height() > s.latest.Height() {
		s.latest = p
		s.hasLatest = true
	}
	return nil
}

func (s *MemStore[P]) Get(d payload.Digest) (P, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byDigest[d]
	return p, ok
}

func (s *MemStore[P]) GetByHeight(h uint64) (P, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byHeight[h]
	return p, ok
}

func (s *MemStore[P]) Latest() (P, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.hasLatest
}
