// Package timer implements the focus session engine: a single countdown that
// progresses on its own worker while accepting pause, resume, stop and
// force-complete commands from any goroutine.
package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/berth-dev/focus/internal/store"
)

var (
	// ErrInvalidState is returned when a command is not allowed in the
	// engine's current state. The state is left unchanged.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidDuration is returned for a non-positive or oversized
	// session length.
	ErrInvalidDuration = errors.New("invalid duration")

	// ErrClosed is returned by commands issued after Close.
	ErrClosed = errors.New("engine closed")
)

// MaxDuration bounds a single session.
const MaxDuration = 24 * time.Hour

// State is a position in the session state machine.
type State int

const (
	Ready State = iota
	Running
	Paused
	Completed
	Abandoned
	ForceCompleted
	// Interrupted is an unresolved session restored from a checkpoint
	// after the process exited mid-session.
	Interrupted
)

var stateNames = map[State]string{
	Ready:          "ready",
	Running:        "running",
	Paused:         "paused",
	Completed:      "completed",
	Abandoned:      "abandoned",
	ForceCompleted: "force_completed",
	Interrupted:    "interrupted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether s is a resolved outcome.
func (s State) Terminal() bool {
	return s == Completed || s == Abandoned || s == ForceCompleted
}

// Active reports whether a session is in progress in s.
func (s State) Active() bool {
	return s == Running || s == Paused || s == Interrupted
}

func terminalState(status store.SessionStatus) State {
	switch status {
	case store.StatusCompleted:
		return Completed
	case store.StatusForceCompleted:
		return ForceCompleted
	default:
		return Abandoned
	}
}

// ValidateDuration checks that d is a usable session length.
func ValidateDuration(d time.Duration) error {
	if d <= 0 || d > MaxDuration {
		return fmt.Errorf("%w: %v", ErrInvalidDuration, d)
	}
	return nil
}

func invalid(op string, s State) error {
	return fmt.Errorf("%s while %s: %w", op, s, ErrInvalidState)
}
