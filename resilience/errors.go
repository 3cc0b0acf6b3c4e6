package resilience

import (
	"errors"
	"fmt"
)

// Sentinel errors for resilience operations.
var (
	// ErrRateLimitExceeded is matched by every admission rejection.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")

	// ErrTimeout is returned when an operation times out.
	ErrTimeout = errors.New("resilience: operation timed out")

	// ErrExecutorClosed is returned for work submitted to, or still queued
	// in, an executor whose loop has stopped.
	ErrExecutorClosed = errors.New("resilience: executor closed")

	// ErrExecutorRunning is returned when Run is called twice.
	ErrExecutorRunning = errors.New("resilience: executor already running")

	// ErrInvalidPriority indicates a priority outside the fixed set.
	ErrInvalidPriority = errors.New("resilience: invalid priority")

	// ErrInvalidLimits indicates inconsistent rps bounds.
	ErrInvalidLimits = errors.New("resilience: invalid rate limits")
)

// RejectionError reports an admission rejection. It matches
// ErrRateLimitExceeded with errors.Is.
type RejectionError struct {
	Priority Priority
	Depth    int
	Limit    int
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("%v: %s priority rejected at queue depth %d (limit %d)",
		ErrRateLimitExceeded, e.Priority, e.Depth, e.Limit)
}

func (e *RejectionError) Unwrap() error {
	return ErrRateLimitExceeded
}
