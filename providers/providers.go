// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package providers adapts an epoch manager's per-epoch view into the
// deduplicated key sets a lower broadcast layer consumes.
package providers

import (
	"github.com/luxfi/conductor/epoch"
)

// EpochSequencersProvider exposes an epoch's sequencer as a
// one-element set, so callers that expect a set of recipients don't
// need a separate single-key code path.
type EpochSequencersProvider[K comparable] struct {
	mgr epoch.Manager[K]
}

// NewEpochSequencersProvider wraps mgr.
func NewEpochSequencersProvider[K comparable](mgr epoch.Manager[K]) *EpochSequencersProvider[K] {
	return &EpochSequencersProvider[K]{mgr: mgr}
}

// Sequencers returns a one-element set containing the sequencer for e,
// or ok == false if the manager has no opinion for that epoch.
func (p *EpochSequencersProvider[K]) Sequencers(e uint64) (KeySet[K], bool) {
	seq, ok := p.mgr.Sequencer(e)
	if !ok {
		return nil, false
	}
	return Of(seq), true
}

// StaticSequencersProvider answers Sequencers from a fixed, bounded
// table built at construction time. It needs no live epoch manager,
// which makes it useful for tests and for bootstrapping a network
// whose early epochs are pinned to known keys.
type StaticSequencersProvider[K comparable] struct {
	byEpoch map[uint64]KeySet[K]
}

// NewStaticSequencersProvider builds a provider from an explicit
// epoch-to-keys table. Each value is deduplicated into a set.
func NewStaticSequencersProvider[K comparable](byEpoch map[uint64][]K) *StaticSequencersProvider[K] {
	table := make(map[uint64]KeySet[K], len(byEpoch))
	for e, keys := range byEpoch {
		table[e] = Of(keys...)
	}
	return &StaticSequencersProvider[K]{byEpoch: table}
}

// NewSingleKeySequencersProvider builds a provider that returns key as
// the sole sequencer for every epoch in [0, epochs), and ok == false
// beyond that bound.
func NewSingleKeySequencersProvider[K comparable](key K, epochs uint64) *StaticSequencersProvider[K] {
	table := make(map[uint64]KeySet[K], epochs)
	for e := uint64(0); e < epochs; e++ {
		table[e] = Of(key)
	}
	return &StaticSequencersProvider[K]{byEpoch: table}
}

// Sequencers returns the pinned set for e, if one was configured.
func (p *StaticSequencersProvider[K]) Sequencers(e uint64) (KeySet[K], bool) {
	s, ok := p.byEpoch[e]
	return s, ok
}

// ValidatorsProvider exposes an epoch manager's validator set and
// quorum threshold by direct delegation, deduplicated into a KeySet.
type ValidatorsProvider[K comparable] struct {
	mgr epoch.Manager[K]
}

// NewValidatorsProvider wraps mgr.
func NewValidatorsProvider[K comparable](mgr epoch.Manager[K]) *ValidatorsProvider[K] {
	return &ValidatorsProvider[K]{mgr: mgr}
}

// Validators returns the deduplicated validator set for e.
func (p *ValidatorsProvider[K]) Validators(e uint64) (KeySet[K], bool) {
	keys, ok := p.mgr.Validators(e)
	if !ok {
		return nil, false
	}
	return Of(keys...), true
}

// QuorumThreshold delegates to the underlying epoch manager.
func (p *ValidatorsProvider[K]) QuorumThreshold(e uint64) (int, bool) {
	return p.mgr.QuorumThreshold(e)
}
