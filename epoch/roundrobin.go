// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package epoch

import (
	"context"
	"sync"
)

// RoundRobin is the deterministic rotation policy: sequencer duty
// advances through a fixed, ordered list of participants one position
// per epoch.
type RoundRobin[K comparable] struct {
	mu sync.RWMutex

	participants []K
	self         K
	selfIdx      int

	currentEpoch uint64
	sequencerIdx int

	bcast *broadcaster[K]
}

// NewRoundRobin constructs a round-robin policy over participants,
// starting at epoch 0. self must appear in participants; its index is
// used to compute EpochChange.IsSelf.
func NewRoundRobin[K comparable](participants []K, self K) *RoundRobin[K] {
	selfIdx := -1
	cp := make([]K, len(participants))
	copy(cp, participants)
	for i, p := range cp {
		if p == self {
			selfIdx = i
			break
		}
	}

	return &RoundRobin[K]{
		participants: cp,
		self:         self,
		selfIdx:      selfIdx,
		sequencerIdx: 0,
		bcast:        newBroadcaster[K](),
	}
}

func (r *RoundRobin[K]) CurrentEpoch() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.currentEpoch
}

// Sequencer returns participants[e mod n]. Unlike the health policy
// it is defined for any epoch e, past or future.
func (r *RoundRobin[K]) Sequencer(e uint64) (K, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.participants)
	if n == 0 {
		var zero K
		return zero, false
	}
	return r.participants[e%uint64(n)], true
}

func (r *RoundRobin[K]) IsSequencer(k K) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.participants)
	if n == 0 {
		return false
	}
	return r.participants[r.sequencerIdx] == k
}

func (r *RoundRobin[K]) Validators(e uint64) ([]K, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.participants) == 0 {
		return nil, false
	}
	out := make([]K, len(r.participants))
	copy(out, r.participants)
	return out, true
}

// QuorumThreshold is floor(n/2)+1, an honest-majority threshold.
func (r *RoundRobin[K]) QuorumThreshold(e uint64) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.participants)
	if n == 0 {
		return 0, false
	}
	return n/2 + 1, true
}

func (r *RoundRobin[K]) Subscribe() <-chan Change[K] {
	return r.bcast.subscribe()
}

func (r *RoundRobin[K]) Unsubscribe(ch <-chan Change[K]) {
	r.bcast.unsubscribe(ch)
}

// TransferLeader always fails: round-robin rotation is fully
// automatic and has no notion of a voluntary handoff.
func (r *RoundRobin[K]) TransferLeader(ctx context.Context) error {
	return &TransferError{Err: ErrTransferNotSupported}
}

// AdvanceEpoch is the external harness's drive method: it increments
// the epoch, recomputes the sequencer index, and broadcasts the
// resulting EpochChange. Nothing in the core calls this; it models the
// clock/driver that sits outside the policy contract.
func (r *RoundRobin[K]) AdvanceEpoch() Change[K] {
	r.mu.Lock()
	n := len(r.participants)
	r.currentEpoch++
	if n > 0 {
		r.sequencerIdx = int(r.currentEpoch % uint64(n))
	}

	var sequencer K
	isSelf := false
	if n > 0 {
		sequencer = r.participants[r.sequencerIdx]
		isSelf = r.sequencerIdx == r.selfIdx
	}
	change := Change[K]{Epoch: r.currentEpoch, Sequencer: sequencer, IsSelf: isSelf}
	r.mu.Unlock()

	r.bcast.publish(change)
	return change
}
