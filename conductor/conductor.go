// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package conductor ties the payload automaton to an epoch policy and
// a signer: it gates writes on sequencer identity, translates
// automaton outcomes into typed errors, and reacts to epoch-change
// notifications.
package conductor

import (
	"context"
	"sync"

	luxlog "github.com/luxfi/log"
	"github.com/luxfi/metric"

	"github.com/luxfi/conductor/automaton"
	"github.com/luxfi/conductor/epoch"
	"github.com/luxfi/conductor/payload"
	"github.com/luxfi/conductor/store"
)

// Config configures a Conductor. QuorumThreshold is the fallback
// acknowledgment count used when the epoch manager has no opinion for
// the current epoch (epoch.Manager.QuorumThreshold returns ok == false).
type Config struct {
	QuorumThreshold int
	Logger          luxlog.Logger
	Metrics         metric.MultiGatherer
}

// Conductor is the single public entry point for ordering payloads.
// P is the application payload type, K the comparable identity type
// the epoch manager resolves sequencers and validators to.
type Conductor[P payload.Payload, K comparable] struct {
	mu sync.RWMutex

	running      bool
	currentEpoch uint64
	isSequencer  bool

	automaton *automaton.PayloadAutomaton[P]
	epochMgr  epoch.Manager[K]
	signer    Signer
	store     store.PayloadStore[P]

	config  Config
	logger  luxlog.Logger
	metrics *metrics

	epochWatch <-chan epoch.Change[K]
	stopWatch  chan struct{}
	watchDone  chan struct{}
}

// New constructs a Conductor with an empty automaton. The conductor is
// created inactive: running is false, current_epoch is 0, and
// is_sequencer is false until Start is called.
func New[P payload.Payload, K comparable](config Config, epochMgr epoch.Manager[K], signer Signer) (*Conductor[P, K], error) {
	return newConductor(config, epochMgr, signer, automaton.New[P]())
}

// WithGenesis constructs a Conductor whose automaton is pre-seeded
// with a certified genesis payload.
func WithGenesis[P payload.Payload, K comparable](config Config, epochMgr epoch.Manager[K], signer Signer, genesis P) (*Conductor[P, K], error) {
	return newConductor(config, epochMgr, signer, automaton.NewWithGenesis[P](genesis))
}

func newConductor[P payload.Payload, K comparable](config Config, epochMgr epoch.Manager[K], signer Signer, a *automaton.PayloadAutomaton[P]) (*Conductor[P, K], error) {
	logger := config.Logger
	if logger == nil {
		logger = luxlog.NewNoOpLogger()
	}

	m, err := newMetrics(config.Metrics)
	if err != nil {
		return nil, err
	}

	return &Conductor[P, K]{
		automaton: a,
		epochMgr:  epochMgr,
		signer:    signer,
		config:    config,
		logger:    logger,
		metrics:   m,
	}, nil
}

// WithStore attaches an optional payload store. Certification writes
// through to it before Acknowledge returns.
func (c *Conductor[P, K]) WithStore(s store.PayloadStore[P]) *Conductor[P, K] {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store = s
	return c
}

// Start activates the conductor: it reads the current epoch and
// resolved sequencer from the epoch manager, sets is_sequencer
// accordingly, and begins watching the epoch-change stream.
func (c *Conductor[P, K]) Start(ctx context.Context) {
	c.mu.Lock()
	c.running = true
	c.currentEpoch = c.epochMgr.CurrentEpoch()
	if seq, ok := c.epochMgr.Sequencer(c.currentEpoch); ok {
		c.isSequencer = c.epochMgr.IsSequencer(seq)
	} else {
		c.isSequencer = false
	}
	c.epochWatch = c.epochMgr.Subscribe()
	c.stopWatch = make(chan struct{})
	c.watchDone = make(chan struct{})
	epoch := c.currentEpoch
	isSequencer := c.isSequencer
	c.mu.Unlock()

	c.logger.Info("conductor started", "epoch", epoch, "is_sequencer", isSequencer)
	go c.watchEpochChanges(ctx)
}

func (c *Conductor[P, K]) watchEpochChanges(ctx context.Context) {
	defer close(c.watchDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopWatch:
			return
		case change, ok := <-c.epochWatch:
			if !ok {
				return
			}
			c.HandleEpochChange(change)
		}
	}
}

// Stop deactivates the conductor. Chain state is preserved; a stopped
// conductor can still answer reads.
func (c *Conductor[P, K]) Stop() {
	c.mu.Lock()
	running := c.running
	c.running = false
	stopWatch := c.stopWatch
	watchDone := c.watchDone
	epochMgr := c.epochMgr
	sub := c.epochWatch
	c.mu.Unlock()

	if !running {
		return
	}
	close(stopWatch)
	<-watchDone
	epochMgr.Unsubscribe(sub)
	c.logger.Info("conductor stopped")
}

// Leader reports whether this conductor currently holds the sequencer
// role.
func (c *Conductor[P, K]) Leader() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isSequencer
}

// CurrentEpoch returns the epoch this conductor last observed.
func (c *Conductor[P, K]) CurrentEpoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentEpoch
}

// NextHeight is a thin read-through to the automaton.
func (c *Conductor[P, K]) NextHeight() uint64 {
	return c.automaton.NextHeight()
}

// Latest is a thin read-through to the automaton.
func (c *Conductor[P, K]) Latest() (P, bool) {
	return c.automaton.Latest()
}

// GetByHeight is a thin read-through to the automaton.
func (c *Conductor[P, K]) GetByHeight(h uint64) (P, bool) {
	return c.automaton.GetByHeight(h)
}

// Commit submits p as the next proposal. It is the only write gated on
// sequencer identity; the remaining preconditions are checked in
// order, and the first one that fails determines the returned
// ConductorError.
func (c *Conductor[P, K]) Commit(ctx context.Context, p P) error {
	c.mu.RLock()
	running := c.running
	isSequencer := c.isSequencer
	currentEpoch := c.currentEpoch
	c.mu.RUnlock()

	if !running {
		return &ConductorError{Kind: KindNotInitialized, Err: ErrNotInitialized}
	}
	if !isSequencer {
		c.metrics.recordCommitFailure("not_sequencer")
		return errNotSequencer()
	}

	expected := c.automaton.NextHeight()
	if p.Height() != expected {
		c.metrics.recordCommitFailure("invalid_height")
		return errInvalidHeight(expected, p.Height())
	}

	if !c.automaton.Validate(p) {
		c.metrics.recordCommitFailure("validation_failed")
		return errValidationFailed("parent digest mismatch")
	}

	threshold, ok := c.epochMgr.QuorumThreshold(currentEpoch)
	if !ok {
		threshold = c.config.QuorumThreshold
	}

	ch := c.automaton.SubmitProposal(p, threshold)

	// SubmitProposal delivers the digest into a buffered, already-closed
	// channel synchronously, so ch is ready the instant we reach this
	// point — a select below would race ctx.Done() against an
	// already-settled ch and, per the Go spec, choose between two ready
	// cases pseudo-randomly. Checking ctx.Err() first with priority
	// makes an already-cancelled (or already-expired) context behave
	// deterministically: the pending proposal remains in the automaton
	// either way (a future SubmitProposal will overwrite it), but the
	// caller reliably
	// observes the cancellation instead of a coin-flip success.
	if err := ctx.Err(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case digest, ok := <-ch:
		if !ok {
			c.metrics.recordCommitFailure("channel_closed")
			return errChannelClosed()
		}
		if c.signer != nil {
			if _, err := c.signer.Sign(digest); err != nil {
				c.logger.Warn("failed to sign committed digest", "error", err)
			}
		}
		c.metrics.recordCommit()
		c.logger.Info("sequencer committed payload", "height", p.Height(), "epoch", currentEpoch)
		return nil
	}
}

// Acknowledge forwards to the automaton. When the acknowledgment
// crosses quorum and a store is attached, the certified payload is
// written through before returning.
func (c *Conductor[P, K]) Acknowledge() (P, bool) {
	certified, ok := c.automaton.Acknowledge()
	c.metrics.recordAck()
	if !ok {
		return certified, false
	}

	c.metrics.recordCertification()
	c.logger.Info("payload certified", "height", certified.Height())

	c.mu.RLock()
	s := c.store
	c.mu.RUnlock()
	if s != nil {
		if err := s.Store(certified); err != nil {
			c.logger.Error("failed to persist certified payload", "error", err)
		}
	}
	return certified, true
}

// Certify forwards an out-of-band certified payload to the automaton,
// for non-sequencers folding in data a peer already finalized.
func (c *Conductor[P, K]) Certify(p P) {
	c.automaton.Certify(p)
	c.logger.Info("folded externally certified payload", "height", p.Height())

	c.mu.RLock()
	s := c.store
	c.mu.RUnlock()
	if s != nil {
		if err := s.Store(p); err != nil {
			c.logger.Error("failed to persist certified payload", "error", err)
		}
	}
}

// TransferLeader forwards to the epoch manager.
func (c *Conductor[P, K]) TransferLeader(ctx context.Context) error {
	return c.epochMgr.TransferLeader(ctx)
}

// LeaderChannel returns a fresh subscription to the epoch manager's
// change stream, forwarded from the epoch manager.
func (c *Conductor[P, K]) LeaderChannel() <-chan epoch.Change[K] {
	return c.epochMgr.Subscribe()
}

// HandleEpochChange updates current_epoch and is_sequencer from an
// EpochChange. It is idempotent: applying the same change twice leaves
// state unchanged the second time.
func (c *Conductor[P, K]) HandleEpochChange(change epoch.Change[K]) {
	c.mu.Lock()
	c.currentEpoch = change.Epoch
	c.isSequencer = change.IsSelf
	c.mu.Unlock()

	c.metrics.recordEpochChange()
	c.logger.Info("epoch changed", "epoch", change.Epoch, "is_self", change.IsSelf)
}
