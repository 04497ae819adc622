package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrEmptyMessage    = errors.New("message is empty")
	ErrEmptyText       = errors.New("text is empty")
	ErrNoAudio         = errors.New("no audio file provided")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrUnsupported     = errors.New("capability not available")
	ErrCaptureConsumed = errors.New("capture session already used")
	ErrNothingToRetry  = errors.New("no failed request to retry")
	ErrLockHeld        = errors.New("lock held by another worker")
)

// ValidationError reports bad client input; never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Reason
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidArgument }

// TimeoutError reports a local deadline exceeded while waiting on an external service.
// Err keeps the upstream failure for logs; Unwrap still reports only the deadline.
type TimeoutError struct {
	Op       string
	Timeout  time.Duration
	Attempts int
	Err      error
}

func (e *TimeoutError) Error() string {
	var msg string
	switch {
	case e.Attempts > 1:
		msg = fmt.Sprintf("%s timed out after %d attempts (last timeout %s)", e.Op, e.Attempts, e.Timeout)
	case e.Timeout > 0:
		msg = fmt.Sprintf("%s timed out after %s", e.Op, e.Timeout)
	default:
		msg = e.Op + " timed out"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }

// ServiceError reports an external service that was reachable but failed or returned malformed data.
type ServiceError struct {
	Service    string
	StatusCode int
	Detail     string
	Err        error
}

func (e *ServiceError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Service, e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("%s error: %s", e.Service, e.Detail)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// NetworkError reports an unreachable service (offline, DNS, refused connection).
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s unreachable: %v", e.Service, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// IsTimeout reports whether err is a TimeoutError or a bare deadline expiry.
func IsTimeout(err error) bool {
	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsService reports whether err is a ServiceError.
func IsService(err error) bool {
	var se *ServiceError
	return errors.As(err, &se)
}
