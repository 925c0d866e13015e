// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package epoch defines the epoch-management contract and the two
// canonical policies (deterministic round-robin rotation and
// health-driven sorted election) that project sequencer and validator
// identity over time.
package epoch

import (
	"context"
	"errors"
)

// Manager is the epoch-management contract. K is the comparable
// identity type used for sequencers and validators
// (typically a public key or node ID).
type Manager[K comparable] interface {
	// CurrentEpoch returns the epoch the manager currently considers
	// active.
	CurrentEpoch() uint64

	// Sequencer resolves the sequencer identity for epoch e, or
	// ok == false if e is unknown to this manager.
	Sequencer(e uint64) (k K, ok bool)

	// IsSequencer reports whether k is the sequencer of the current
	// epoch.
	IsSequencer(k K) bool

	// Validators returns the entire participant set for epoch e
	// (sequencer included), or ok == false for an unknown epoch.
	Validators(e uint64) (validators []K, ok bool)

	// QuorumThreshold returns the acknowledgment count required to
	// certify a payload proposed during epoch e, or ok == false if
	// the manager has no opinion (the caller should fall back to its
	// own configured default).
	QuorumThreshold(e uint64) (threshold int, ok bool)

	// Subscribe returns a channel of EpochChange notifications.
	// Delivery is at-least-once and best-effort: a slow consumer may
	// miss intermediate events but never observes epochs out of
	// order. Consumers should treat each event as a signal to refresh
	// state, not as a complete log.
	Subscribe() <-chan Change[K]

	// Unsubscribe stops delivery to a channel returned by Subscribe
	// and releases its resources.
	Unsubscribe(ch <-chan Change[K])

	// TransferLeader asks the policy to hand off sequencer duty. The
	// two reference policies are both automatic and always return
	// ErrTransferNotSupported.
	TransferLeader(ctx context.Context) error
}

// Change is an epoch-change notification, emitted whenever the epoch
// number or the resolved sequencer changes.
type Change[K comparable] struct {
	Epoch     uint64
	Sequencer K
	IsSelf    bool
}

// Sentinel errors for TransferLeader.
var (
	ErrTransferNotSupported = errors.New("leader transfer not supported by this policy")
	ErrNoSuccessor          = errors.New("no eligible successor for leader transfer")
	ErrTransferInProgress   = errors.New("leader transfer already in progress")
	ErrTransferTimeout      = errors.New("leader transfer timed out")
)

// TransferError reports a failed TransferLeader call.
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string { return "transfer leader: " + e.Err.Error() }
func (e *TransferError) Unwrap() error { return e.Err }
