package health

import "context"

// Usage holds utilization percentages in [0, 100]. A negative field means the
// probe could not read it.
type Usage struct {
	CPUPercent    float64
	MemoryPercent float64
	DiskPercent   float64
}

// unknownUsage marks every field unreadable.
var unknownUsage = Usage{CPUPercent: -1, MemoryPercent: -1, DiskPercent: -1}

// Probe reads host utilization.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: on partial failure, Usage carries the readable fields and
//     negative values for the rest, together with a non-nil error.
type Probe interface {
	Usage(ctx context.Context) (Usage, error)
}

// ProbeFunc adapts a function to Probe.
type ProbeFunc func(ctx context.Context) (Usage, error)

// Usage calls f.
func (f ProbeFunc) Usage(ctx context.Context) (Usage, error) {
	return f(ctx)
}

// FallbackPercent is substituted for any utilization the probe cannot read.
const FallbackPercent = 50.0

func percent(used, total float64) float64 {
	if total <= 0 {
		return -1
	}
	p := used / total * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
