package queue

import (
	"errors"
	"fmt"
)

// ErrQueueNotFound is returned when a job is submitted against a queue name
// that was never registered. The registry never creates queues implicitly on
// submission; queue creation is an explicit step so job-policy configuration
// is never silently defaulted away.
var ErrQueueNotFound = errors.New("queue not found")

// ErrJobNotFound is returned by job mutation paths that require an existing
// job record. Plain lookups return (nil, nil) for absence instead.
var ErrJobNotFound = errors.New("job not found")

// TerminalError wraps a processing error that must not be retried. Workers
// fail the job permanently instead of scheduling a backoff re-attempt.
type TerminalError struct {
	Err error
}

func (e *TerminalError) Error() string { return e.Err.Error() }

func (e *TerminalError) Unwrap() error { return e.Err }

// Terminal marks err as non-retryable.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &TerminalError{Err: err}
}

// Terminalf is shorthand for Terminal(fmt.Errorf(...)).
func Terminalf(format string, args ...interface{}) error {
	return &TerminalError{Err: fmt.Errorf(format, args...)}
}

// IsTerminal reports whether err (or anything it wraps) is a TerminalError.
func IsTerminal(err error) bool {
	var te *TerminalError
	return errors.As(err, &te)
}
