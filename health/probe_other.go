//go:build !linux

package health

import "context"

type unsupportedProbe struct{}

// NewSystemProbe returns a probe that always reports ErrProbeUnavailable on
// this platform; samplers fall back to estimates.
func NewSystemProbe(string) Probe {
	return unsupportedProbe{}
}

func (unsupportedProbe) Usage(context.Context) (Usage, error) {
	return unknownUsage, ErrProbeUnavailable
}
