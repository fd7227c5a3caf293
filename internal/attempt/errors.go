package attempt

import "errors"

// The error taxonomy surfaced to callers. None of these are transient, so
// nothing here is ever retried internally; the HTTP layer maps each to a
// distinct user-visible failure.
var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidState          = errors.New("attempt is not in a state that allows this operation")
	ErrAttemptLimitExceeded  = errors.New("attempt limit exceeded")
	ErrAttemptExpired        = errors.New("attempt time limit exceeded")
	ErrAssessmentUnavailable = errors.New("assessment unavailable")
)
