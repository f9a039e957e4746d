package pagination

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session is no longer live.
var ErrSessionNotFound = errors.New("pagination session not found")

// ErrMessageNotFound marks a message that was deleted or whose channel is gone.
var ErrMessageNotFound = errors.New("message not found")

// ErrForbidden marks a message the bot may no longer read or edit.
var ErrForbidden = errors.New("message access forbidden")

// TransientFetchError wraps a dataset source failure.
type TransientFetchError struct {
	WorldID int
	Err     error
}

func (e *TransientFetchError) Error() string {
	return fmt.Sprintf("fetching world %d: %v", e.WorldID, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// MalformedPersistedStateError reports a durable row that cannot be turned
// back into a session.
type MalformedPersistedStateError struct {
	SessionID string
	Err       error
}

func (e *MalformedPersistedStateError) Error() string {
	return fmt.Sprintf("malformed persisted session %s: %v", e.SessionID, e.Err)
}

func (e *MalformedPersistedStateError) Unwrap() error { return e.Err }

// StaleSessionError is returned for a click on a session that has ended.
type StaleSessionError struct {
	SessionID string
}

func (e *StaleSessionError) Error() string {
	return "pagination session " + e.SessionID + " has expired"
}

// Is makes StaleSessionError match ErrSessionNotFound.
func (e *StaleSessionError) Is(target error) bool { return target == ErrSessionNotFound }

// PersistenceWriteError reports a failed durable write. It is logged and never
// aborts the in-memory operation.
type PersistenceWriteError struct {
	SessionID string
	Op        string
	Err       error
}

func (e *PersistenceWriteError) Error() string {
	return fmt.Sprintf("%s pagination session %s: %v", e.Op, e.SessionID, e.Err)
}

func (e *PersistenceWriteError) Unwrap() error { return e.Err }

// EditOutcome classifies the result of a message fetch or edit.
type EditOutcome int

// Edit outcomes.
const (
	EditOK EditOutcome = iota
	EditNotFound
	EditForbidden
	EditFailed
)

// OutcomeOf classifies an error returned by a MessageEditor.
func OutcomeOf(err error) EditOutcome {
	switch {
	case err == nil:
		return EditOK
	case errors.Is(err, ErrMessageNotFound):
		return EditNotFound
	case errors.Is(err, ErrForbidden):
		return EditForbidden
	default:
		return EditFailed
	}
}

// Unreachable reports whether the outcome means the message can never be
// edited again.
func (o EditOutcome) Unreachable() bool {
	return o == EditNotFound || o == EditForbidden
}
