// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package automaton implements the payload ordering engine: it owns
// the certified chain, enforces the two ordering invariants (sequential
// height, parent continuity), and tracks the single outstanding
// proposal and its acknowledgment count.
package automaton

import (
	"context"
	"sync"

	"github.com/luxfi/conductor/payload"
)

// PendingPayload is the single outstanding proposal awaiting
// certification. At most one instance exists in an automaton at a
// time; acks only ever increases and is compared against threshold to
// decide certification.
type PendingPayload[P payload.Payload] struct {
	Payload   P
	Acks      int
	Threshold int
}

// Certified reports whether this pending payload has collected enough
// acknowledgments to be promoted to the chain.
func (p *PendingPayload[P]) Certified() bool {
	return p.Acks >= p.Threshold
}

// PayloadAutomaton owns chain state for payloads of type P: the
// newest certified payload, the full height index, and at most one
// pending proposal. All reads take the read lock; SubmitProposal,
// Acknowledge, and Certify take the write lock, so there is a single
// writer at a time and any number of concurrent readers.
type PayloadAutomaton[P payload.Payload] struct {
	mu sync.RWMutex

	hasLatest       bool
	latestCertified P

	byHeight map[uint64]P

	pending *PendingPayload[P]
}

// New creates an empty automaton with no genesis: Latest is empty and
// NextHeight is 0 until the first certification.
func New[P payload.Payload]() *PayloadAutomaton[P] {
	return &PayloadAutomaton[P]{
		byHeight: make(map[uint64]P),
	}
}

// NewWithGenesis creates an automaton pre-seeded with a genesis
// payload already certified at its own height.
func NewWithGenesis[P payload.Payload](genesis P) *PayloadAutomaton[P] {
	a := New[P]()
	a.byHeight[genesis.Height()] = genesis
	a.latestCertified = genesis
	a.hasLatest = true
	return a
}

// Latest returns the newest certified payload.
func (a *PayloadAutomaton[P]) Latest() (P, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.latestCertified, a.hasLatest
}

// NextHeight is the height the next certified payload must occupy.
func (a *PayloadAutomaton[P]) NextHeight() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.nextHeightLocked()
}

func (a *PayloadAutomaton[P]) nextHeightLocked() uint64 {
	if !a.hasLatest {
		return 0
	}
	return a.latestCertified.Height() + 1
}

// GetByHeight looks up a certified payload by height.
func (a *PayloadAutomaton[P]) GetByHeight(h uint64) (P, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.byHeight[h]
	return p, ok
}

// Genesis returns the digest of the latest certified payload, or the
// canonical empty digest if nothing has been certified yet.
func (a *PayloadAutomaton[P]) Genesis() payload.Digest {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if !a.hasLatest {
		return payload.EmptyDigest
	}
	return a.latestCertified.Digest()
}

// Validate checks the two ordering invariants: sequential height, and — when the payload declares a parent —
// parent continuity against the latest certified payload.
func (a *PayloadAutomaton[P]) Validate(p P) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.validateLocked(p)
}

func (a *PayloadAutomaton[P]) validateLocked(p P) bool {
	if p.Height() != a.nextHeightLocked() {
		return false
	}

	parent, hasParent := p.Parent()
	if !hasParent {
		return true
	}
	if !a.hasLatest {
		return false
	}
	return parent == a.latestCertified.Digest()
}

// SubmitProposal records p as the single pending proposal, replacing
// any proposal already pending: a new submission always shadows the
// old one, silently discarding its partial ack count.
// It returns a one-shot channel that receives p's digest exactly once,
// modeling the signal an external broadcaster waits on to learn what
// to gossip.
func (a *PayloadAutomaton[P]) SubmitProposal(p P, threshold int) <-chan payload.Digest {
	ch := make(chan payload.Digest, 1)

	a.mu.Lock()
	a.pending = &PendingPayload[P]{Payload: p, Threshold: threshold}
	a.mu.Unlock()

	ch <- p.Digest()
	close(ch)
	return ch
}

// Acknowledge increments the pending proposal's ack count. If the
// count now meets or exceeds its threshold, the payload is certified:
// indexed by height, installed as latest, and pending is cleared. It
// returns the certified payload on the call that crosses the
// threshold, and ok == false on every other call (including when no
// proposal is pending).
func (a *PayloadAutomaton[P]) Acknowledge() (P, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var zero P
	if a.pending == nil {
		return zero, false
	}

	a.pending.Acks++
	if !a.pending.Certified() {
		return zero, false
	}

	p := a.pending.Payload
	a.byHeight[p.Height()] = p
	a.latestCertified = p
	a.hasLatest = true
	a.pending = nil
	return p, true
}

// Certify folds an already-certified payload into the chain directly,
// bypassing pending/ack tracking. Used by validators receiving
// certified payloads from a peer out of band. latest_certified is
// updated only if p's height strictly exceeds the current latest (or
// there is no latest yet). If a pending proposal exists at the same
// height as p, it is cleared: otherwise it would dangle and shadow
// future submissions.
func (a *PayloadAutomaton[P]) Certify(p P) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.byHeight[p.Height()] = p
	if !a.hasLatest || p.Height() > a.latestCertified.Height() {
		a.latestCertified = p
		a.hasLatest = true
	}

	if a.pending != nil && a.pending.Payload.Height() == p.Height() {
		a.pending = nil
	}
}

// Propose returns a one-shot channel that fires with the pending
// payload's digest if one exists. If there is nothing pending, the
// channel is closed without a value, signalling "nothing to propose
// this round". If ctx is already done when Propose is called, the
// channel closes without a value rather than racing a reader against
// the automaton's read lock.
func (a *PayloadAutomaton[P]) Propose(ctx context.Context) <-chan payload.Digest {
	ch := make(chan payload.Digest, 1)

	if ctx.Err() != nil {
		close(ch)
		return ch
	}

	a.mu.RLock()
	pending := a.pending
	a.mu.RUnlock()

	if pending == nil {
		close(ch)
		return ch
	}
	ch <- pending.Payload.Digest()
	close(ch)
	return ch
}

// Verify reports whether digest matches the current pending payload or
// any payload already certified by height. If ctx is already done when
// Verify is called, it reports false without scanning the chain.
func (a *PayloadAutomaton[P]) Verify(ctx context.Context, digest payload.Digest) <-chan bool {
	ch := make(chan bool, 1)

	if ctx.Err() != nil {
		ch <- false
		close(ch)
		return ch
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.pending != nil && a.pending.Payload.Digest() == digest {
		ch <- true
		close(ch)
		return ch
	}
	for _, p := range a.byHeight {
		if p.Digest() == digest {
			ch <- true
			close(ch)
			return ch
		}
	}
	ch <- false
	close(ch)
	return ch
}
