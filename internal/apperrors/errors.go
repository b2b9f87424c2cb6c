// Package apperrors defines the typed error taxonomy shared by the
// matchmaking core. All core errors are returned as values and matched
// with errors.Is / errors.As; nothing in the core panics across a
// package boundary.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind classifies a core error for the caller.
type Kind int

const (
	// KindValidation marks malformed, out-of-turn, or duplicate
	// submissions. Recoverable; no state was mutated.
	KindValidation Kind = iota
	// KindCapacity marks a queue that is not full or has too few
	// players for the requested pick mode.
	KindCapacity
	// KindStateConflict marks an operation against a game that is not
	// in the expected state, e.g. voting on a canceled game.
	KindStateConflict
	// KindOverload marks an operation dropped by the scheduler because
	// a tenant's queue depth was exceeded.
	KindOverload
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapacity:
		return "capacity"
	case KindStateConflict:
		return "state_conflict"
	case KindOverload:
		return "overload"
	default:
		return "unknown"
	}
}

// Error is a classified core error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a classified error.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap creates a classified error wrapping an underlying cause.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// IsKind reports whether err is (or wraps) an Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// Sentinel errors for the conditions callers branch on. Each carries its
// kind so both errors.Is on the sentinel and IsKind matching work.
var (
	ErrInsufficientPlayers = New(KindCapacity, "not enough players in queue")
	ErrQueueNotFull        = New(KindCapacity, "queue has not reached capacity")

	ErrNotYourTurn      = New(KindValidation, "it is not this captain's turn to pick")
	ErrWrongPickCount   = New(KindValidation, "wrong number of players for this pick")
	ErrPlayerNotInQueue = New(KindValidation, "player is not in the game's queue")
	ErrAlreadyPicked    = New(KindValidation, "player is already on a team")
	ErrAlreadyInQueue   = New(KindValidation, "player is already in the queue")
	ErrNotOnTeam        = New(KindValidation, "player is not on either team")

	ErrGameNotPicking   = New(KindStateConflict, "game is not in the picking state")
	ErrGameNotUndecided = New(KindStateConflict, "game is not undecided")
	ErrGameFinished     = New(KindStateConflict, "game already reached a terminal state")

	ErrSchedulerOverload = New(KindOverload, "tenant queue depth exceeded, operation dropped")
	ErrSchedulerClosed   = New(KindOverload, "scheduler is shut down")
)
