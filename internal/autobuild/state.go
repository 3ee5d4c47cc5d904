package autobuild

import (
	"slices"

	"github.com/mrz1836/autocompose/internal/errors"
)

// ComposeState is the compose scheduler's lifecycle state.
type ComposeState int

// Compose scheduler states.
const (
	// Idle means no compose batch is running.
	Idle ComposeState = iota
	// ComposeRunning means a batch is in flight.
	ComposeRunning
	// ComposePendingRerun means a batch is in flight and another poll
	// arrived; a new batch starts as soon as this one completes.
	ComposePendingRerun
)

// String returns the state name used in logs.
func (s ComposeState) String() string {
	switch s {
	case Idle:
		return "idle"
	case ComposeRunning:
		return "running"
	case ComposePendingRerun:
		return "pending-rerun"
	default:
		return "unknown"
	}
}

// ValidTransitions defines the allowed compose state transitions.
//
//	Idle → ComposeRunning
//	ComposeRunning → ComposePendingRerun, Idle
//	ComposePendingRerun → ComposeRunning
//
//nolint:gochecknoglobals // read-only lookup table
var ValidTransitions = map[ComposeState][]ComposeState{
	Idle:                {ComposeRunning},
	ComposeRunning:      {ComposePendingRerun, Idle},
	ComposePendingRerun: {ComposeRunning},
}

// IsValidTransition reports whether from → to is allowed.
func IsValidTransition(from, to ComposeState) bool {
	return slices.Contains(ValidTransitions[from], to)
}

// transition moves *state to to, or returns ErrProtocol.
func transition(state *ComposeState, to ComposeState) error {
	if !IsValidTransition(*state, to) {
		return errors.Wrapf(errors.ErrProtocol, "invalid compose transition %s → %s", *state, to)
	}
	*state = to
	return nil
}
