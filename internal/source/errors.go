package source

import (
	"context"
	"errors"
	"net"

	httpkit "MarketPull/pkg/http"
)

// transientError marks a failure worth retrying: the upstream may answer on
// the next attempt.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// permanentError marks a failure that retrying cannot fix, like a rejected
// API key or an unknown instrument.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Transient wraps err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Permanent wraps err as non-retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTransient reports whether err should be retried. Unclassified errors are
// classified by shape: throttling and server-side statuses plus network
// failures are transient, other client statuses are permanent.
func IsTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *httpkit.StatusError
	if errors.As(err, &se) {
		return se.Code == 429 || se.Code >= 500
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	// Unknown failures (connection resets, truncated bodies, malformed JSON
	// from a flapping upstream) get the benefit of the doubt.
	return true
}
