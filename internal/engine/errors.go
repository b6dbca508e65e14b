package engine

import (
	"errors"
	"fmt"

	"github.com/talgya/impetus/internal/realm"
)

// ErrInvalidAction marks submissions rejected without touching game state:
// wrong phase, wrong spirit, illegal target. The submitting client learns,
// nobody else is affected.
var ErrInvalidAction = errors.New("invalid action")

// ErrInvariant marks internal consistency failures. These indicate a bug in
// the engine, never bad input; the room is marked failed and accepts no
// further submissions.
var ErrInvariant = errors.New("invariant violation")

// InvalidActionError reports why a spirit's submission was rejected.
type InvalidActionError struct {
	Spirit realm.SpiritID
	Reason string
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action by %q: %s", e.Spirit, e.Reason)
}

func (e *InvalidActionError) Unwrap() error {
	return ErrInvalidAction
}

// invalidf builds an InvalidActionError with a formatted reason.
func invalidf(spirit realm.SpiritID, format string, args ...any) error {
	return &InvalidActionError{Spirit: spirit, Reason: fmt.Sprintf(format, args...)}
}

// InvariantError reports which consistency check failed.
type InvariantError struct {
	Check string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated: %s", e.Check)
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariant
}
