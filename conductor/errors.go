// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package conductor

import (
	"errors"
	"fmt"
)

// Sentinel errors a ConductorError carries in its Err field, so callers
// can match them with errors.Is.
var (
	// ErrNotSequencer is returned by Commit when the caller's
	// conductor does not currently hold the sequencer role.
	ErrNotSequencer = errors.New("not sequencer")

	// ErrChannelClosed is returned when the one-shot digest channel
	// drops before firing.
	ErrChannelClosed = errors.New("proposal channel closed before digest was delivered")

	// ErrNotInitialized is reserved for callers that invoke
	// operations before Start.
	ErrNotInitialized = errors.New("conductor not started")
)

// ConductorError reports a failed Commit call. Kind identifies which
// precondition in Commit's chain produced it.
type ConductorError struct {
	Kind     ConductorErrorKind
	Expected uint64
	Got      uint64
	Reason   string
	Err      error
}

// ConductorErrorKind enumerates the role, validation, and transport
// error branches a Commit call can fail on.
type ConductorErrorKind int

const (
	KindNotSequencer ConductorErrorKind = iota
	KindInvalidHeight
	KindValidationFailed
	KindChannelClosed
	KindNotInitialized
)

func (e *ConductorError) Error() string {
	switch e.Kind {
	case KindNotSequencer:
		return "conductor: not sequencer"
	case KindInvalidHeight:
		return fmt.Sprintf("conductor: invalid height: expected %d, got %d", e.Expected, e.Got)
	case KindValidationFailed:
		return fmt.Sprintf("conductor: validation failed: %s", e.Reason)
	case KindChannelClosed:
		return "conductor: proposal channel closed"
	case KindNotInitialized:
		return "conductor: not initialized"
	default:
		return "conductor: unknown error"
	}
}

func (e *ConductorError) Unwrap() error { return e.Err }

func errNotSequencer() *ConductorError {
	return &ConductorError{Kind: KindNotSequencer, Err: ErrNotSequencer}
}

func errInvalidHeight(expected, got uint64) *ConductorError {
	return &ConductorError{Kind: KindInvalidHeight, Expected: expected, Got: got, Err: fmt.Errorf("invalid height")}
}

func errValidationFailed(reason string) *ConductorError {
	return &ConductorError{Kind: KindValidationFailed, Reason: reason, Err: fmt.Errorf("validation failed: %s", reason)}
}

func errChannelClosed() *ConductorError {
	return &ConductorError{Kind: KindChannelClosed, Err: ErrChannelClosed}
}
