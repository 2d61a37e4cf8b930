package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// TransientError wraps a network or timeout failure. Transient failures
// abort the current table's cycle without advancing its cursor; the next
// scheduled cycle retries automatically.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient sync error during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError wraps a payload the server rejected as invalid or a
// malformed response. Permanent failures are surfaced to the caller and not
// retried automatically.
type PermanentError struct {
	Op     string
	Status int
	Err    error
}

func (e *PermanentError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("permanent sync error during %s (status %d): %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("permanent sync error during %s: %v", e.Op, e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsTransient reports whether err is (or wraps) a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// IsPermanent reports whether err is (or wraps) a PermanentError.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// classifyStatus maps a non-2xx HTTP status to the error taxonomy.
// Timeouts, throttling and server errors are retryable; everything else
// means the payload itself was refused.
func classifyStatus(op string, status int, err error) error {
	switch {
	case status == http.StatusRequestTimeout,
		status == http.StatusTooManyRequests,
		status >= 500:
		return &TransientError{Op: op, Err: err}
	default:
		return &PermanentError{Op: op, Status: status, Err: err}
	}
}

// classifyTransport maps a transport-level failure. Cancellation passes
// through so callers can distinguish shutdown from a flaky network.
func classifyTransport(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &TransientError{Op: op, Err: err}
}
