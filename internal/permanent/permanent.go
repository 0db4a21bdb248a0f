// Package permanent marks failures that must not be retried. The offline
// queue uses it to distinguish operations that will never sync (drop and
// stop) from transient failures (keep and stop).
package permanent

import "errors"

// Error wraps a root cause with a non-retryable marker.
// Params: wrapped cause.
// Returns: typed permanent error.
type Error struct {
	Err error
}

// Error returns the wrapped error message.
// Params: none.
// Returns: string representation.
func (e Error) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
// Params: none.
// Returns: wrapped error.
func (e Error) Unwrap() error {
	return e.Err
}

// Mark wraps an error with the permanent marker.
// Params: source error.
// Returns: wrapped error, or nil when input is nil.
func Mark(err error) error {
	if err == nil {
		return nil
	}
	return Error{Err: err}
}

// Is reports whether the error carries the permanent marker.
// Params: candidate error.
// Returns: true when the failure must not be retried.
func Is(err error) bool {
	var marked Error
	return errors.As(err, &marked)
}
