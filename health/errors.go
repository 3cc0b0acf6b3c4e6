package health

import "errors"

var (
	// ErrProbeUnavailable indicates the platform offers no utilization probe.
	ErrProbeUnavailable = errors.New("health: probe unavailable")

	// ErrProbeFailed indicates an OS utilization query failed.
	ErrProbeFailed = errors.New("health: probe failed")

	// ErrInvalidInterval indicates a non-positive sampling interval.
	ErrInvalidInterval = errors.New("health: interval must be positive")
)
