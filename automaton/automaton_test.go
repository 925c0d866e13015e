// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package automaton

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/conductor/payload"
)

func mustCertify[P payload.Payload](t *testing.T, a *PayloadAutomaton[P], p P, threshold int) P {
	t.Helper()
	require.True(t, a.Validate(p))
	a.SubmitProposal(p, threshold)

	var certified P
	var ok bool
	for i := 0; i < threshold; i++ {
		certified, ok = a.Acknowledge()
	}
	require.True(t, ok)
	return certified
}

// S1 — genesis bootstrap: empty automaton, validate(height=0,
// parent=None) is true, and after commit+enough acks latest().height
// == 0.
func TestScenarioS1GenesisBootstrap(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	genesis := payload.NewSimplePayload(0, []byte("genesis"))

	require.True(a.Validate(genesis))
	mustCertify(t, a, genesis, 1)

	latest, ok := a.Latest()
	require.True(ok)
	require.Equal(uint64(0), latest.Height())
}

// S2 — wrong height rejection: genesis at height 0 present; validating
// a height-5 payload fails and the automaton is left unchanged.
func TestScenarioS2WrongHeightRejection(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	genesis := payload.NewSimplePayload(0, []byte("genesis"))
	mustCertify(t, a, genesis, 1)

	bad := payload.NewSimplePayload(5, []byte("too far"))
	require.False(a.Validate(bad))

	latest, ok := a.Latest()
	require.True(ok)
	require.Equal(uint64(0), latest.Height())
	require.Equal(uint64(1), a.NextHeight())
}

// S3 — quorum 2: after one Acknowledge the pending payload is not yet
// certified; after the second it is, and Latest updates.
func TestScenarioS3Quorum2(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	p := payload.NewSimplePayload(0, []byte("p"))
	a.SubmitProposal(p, 2)

	_, ok := a.Acknowledge()
	require.False(ok)

	certified, ok := a.Acknowledge()
	require.True(ok)
	require.Equal(p.Digest(), certified.Digest())

	latest, ok := a.Latest()
	require.True(ok)
	require.Equal(p.Digest(), latest.Digest())
}

// Invariant 4: Acknowledge returns Some exactly once per pending
// payload, None on every call afterward while nothing new is pending.
func TestAcknowledgeReturnsOnceThenNoneUntilNewProposal(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	p := payload.NewSimplePayload(0, []byte("p"))
	a.SubmitProposal(p, 1)

	_, ok := a.Acknowledge()
	require.True(ok)

	_, ok = a.Acknowledge()
	require.False(ok)

	_, ok = a.Acknowledge()
	require.False(ok)
}

func TestAcknowledgeWithNoPendingReturnsNone(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	_, ok := a.Acknowledge()
	require.False(ok)
}

// Invariants 1 & 2: certified payloads land at the expected height and
// successive commits increase height by exactly one.
func TestSequentialCommitsIncrementHeight(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	var prevDigest payload.Digest
	for h := uint64(0); h < 5; h++ {
		body := []byte{byte(h)}
		var p *payload.SimplePayload
		if h == 0 {
			p = payload.NewSimplePayload(h, body)
		} else {
			p = payload.NewSimplePayload(h, body).WithParent(prevDigest)
		}
		require.True(a.Validate(p))
		certified := mustCertify(t, a, p, 1)
		require.Equal(h, certified.Height())
		prevDigest = certified.Digest()
	}

	latest, ok := a.Latest()
	require.True(ok)
	require.Equal(uint64(4), latest.Height())

	got, ok := a.GetByHeight(2)
	require.True(ok)
	require.Equal(uint64(2), got.Height())
}

// Invariant 3: a payload declaring a parent must match the previous
// certified digest exactly.
func TestParentContinuityEnforced(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	genesis := payload.NewSimplePayload(0, []byte("genesis"))
	mustCertify(t, a, genesis, 1)

	wrongParent := payload.NewSimplePayload(1, []byte("x")).WithParent(payload.Sum([]byte("not genesis")))
	require.False(a.Validate(wrongParent))

	rightParent := payload.NewSimplePayload(1, []byte("x")).WithParent(genesis.Digest())
	require.True(a.Validate(rightParent))
}

func TestParentRequiredOnlyWhenDeclared(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	noParent := payload.NewSimplePayload(0, []byte("no parent at genesis"))
	require.True(a.Validate(noParent))
}

func TestSubmitProposalShadowsPriorPending(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	first := payload.NewSimplePayload(0, []byte("first"))
	second := payload.NewSimplePayload(0, []byte("second"))

	a.SubmitProposal(first, 2)
	_, ok := a.Acknowledge()
	require.False(ok)

	// Re-proposing overwrites the prior pending payload and discards
	// its partial ack count.
	a.SubmitProposal(second, 1)
	certified, ok := a.Acknowledge()
	require.True(ok)
	require.Equal(second.Digest(), certified.Digest())
}

func TestCertifyUpdatesLatestOnlyWhenHigher(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	low := payload.NewSimplePayload(0, []byte("low"))
	high := payload.NewSimplePayload(5, []byte("high"))

	a.Certify(high)
	latest, ok := a.Latest()
	require.True(ok)
	require.Equal(uint64(5), latest.Height())

	a.Certify(low)
	latest, ok = a.Latest()
	require.True(ok)
	require.Equal(uint64(5), latest.Height())

	got, ok := a.GetByHeight(0)
	require.True(ok)
	require.Equal(uint64(0), got.Height())
}

func TestCertifyClearsDanglingPendingAtSameHeight(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	pending := payload.NewSimplePayload(0, []byte("pending"))
	a.SubmitProposal(pending, 2)

	externallyCertified := payload.NewSimplePayload(0, []byte("from peer"))
	a.Certify(externallyCertified)

	// The pending proposal at the same height must be cleared so it
	// cannot shadow the next submission.
	_, ok := a.Acknowledge()
	require.False(ok)

	next := payload.NewSimplePayload(1, []byte("next")).WithParent(externallyCertified.Digest())
	require.True(a.Validate(next))
}

func TestGenesisDigestEmptyBeforeCertification(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	require.Equal(payload.EmptyDigest, a.Genesis())

	p := payload.NewSimplePayload(0, []byte("p"))
	mustCertify(t, a, p, 1)
	require.Equal(p.Digest(), a.Genesis())
}

func TestProposeFiresPendingDigestOrClosesEmpty(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	ctx := context.Background()
	ch := a.Propose(ctx)
	_, ok := <-ch
	require.False(ok, "no pending proposal: channel should close without a value")

	p := payload.NewSimplePayload(0, []byte("p"))
	a.SubmitProposal(p, 1)

	ch = a.Propose(ctx)
	digest, ok := <-ch
	require.True(ok)
	require.Equal(p.Digest(), digest)
}

func TestProposeWithDoneContextClosesEmpty(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	p := payload.NewSimplePayload(0, []byte("p"))
	a.SubmitProposal(p, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := <-a.Propose(ctx)
	require.False(ok, "a done context short-circuits Propose even with a pending proposal")
}

func TestVerifyMatchesPendingAndCertified(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	ctx := context.Background()
	p := payload.NewSimplePayload(0, []byte("p"))
	a.SubmitProposal(p, 1)

	require.True(boolFromChan(a.Verify(ctx, p.Digest())))
	require.False(boolFromChan(a.Verify(ctx, payload.Sum([]byte("unknown")))))

	a.Acknowledge()
	require.True(boolFromChan(a.Verify(ctx, p.Digest())))
}

func TestVerifyWithDoneContextReturnsFalse(t *testing.T) {
	require := require.New(t)

	a := New[*payload.SimplePayload]()
	p := payload.NewSimplePayload(0, []byte("p"))
	a.SubmitProposal(p, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.False(boolFromChan(a.Verify(ctx, p.Digest())))
}

func boolFromChan(ch <-chan bool) bool {
	return <-ch
}

func TestNewWithGenesisSeedsChain(t *testing.T) {
	require := require.New(t)

	genesis := payload.NewSimplePayload(0, []byte("genesis"))
	a := NewWithGenesis[*payload.SimplePayload](genesis)

	latest, ok := a.Latest()
	require.True(ok)
	require.Equal(genesis.Digest(), latest.Digest())
	require.Equal(uint64(1), a.NextHeight())
}
