package session

import (
	"errors"
	"fmt"
)

// DuplicateSessionError indicates that a non-terminal session already
// exists for the profile. Admitting a second driver for the same remote
// browser profile would corrupt its state, so admission refuses instead
// of queuing.
type DuplicateSessionError struct {
	ProfileID string
	SessionID string // id of the session already holding the profile
}

// Error implements the error interface.
func (e *DuplicateSessionError) Error() string {
	return fmt.Sprintf("profile %s already has active session %s", e.ProfileID, e.SessionID)
}

// IsDuplicateSession checks if an error is a DuplicateSessionError.
func IsDuplicateSession(err error) bool {
	var dse *DuplicateSessionError
	return errors.As(err, &dse)
}

// StateConflictError is returned by Transition when the session is not
// in the state the caller expected. The usual cause is a reaper force:
// the caller must treat the session as terminated and stop all further
// side-effecting work.
type StateConflictError struct {
	SessionID string
	Expected  State
	Actual    State
}

// Error implements the error interface.
func (e *StateConflictError) Error() string {
	return fmt.Sprintf("session %s is in state %s, expected %s", e.SessionID, e.Actual, e.Expected)
}

// IsStateConflict checks if an error is a StateConflictError.
func IsStateConflict(err error) bool {
	var sce *StateConflictError
	return errors.As(err, &sce)
}

// NotFoundError indicates the session id is unknown to the registry.
type NotFoundError struct {
	SessionID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("session %s not found", e.SessionID)
}

// IsNotFound checks if an error is a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
