package health

// Status is the load classification of a snapshot.
type Status int

const (
	// StatusNormal is neither healthy nor stressed.
	StatusNormal Status = iota
	// StatusHealthy indicates ample headroom on every signal.
	StatusHealthy
	// StatusStressed indicates at least one signal is saturated.
	StatusStressed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusNormal:
		return "normal"
	case StatusStressed:
		return "stressed"
	default:
		return "unknown"
	}
}

// Thresholds are the classification boundaries. A snapshot is healthy when
// every signal is strictly below its Healthy* bound, and stressed when any of
// CPU, memory or latency is strictly above its Stressed* bound.
type Thresholds struct {
	HealthyCPU       float64
	HealthyMemory    float64
	HealthyDisk      float64
	HealthyLatencyMs float64
	HealthyDepth     int

	StressedCPU       float64
	StressedMemory    float64
	StressedLatencyMs float64
}

// DefaultThresholds returns the standard classification boundaries.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HealthyCPU:        70,
		HealthyMemory:     80,
		HealthyDisk:       85,
		HealthyLatencyMs:  100,
		HealthyDepth:      50,
		StressedCPU:       85,
		StressedMemory:    90,
		StressedLatencyMs: 500,
	}
}

// Classify maps a snapshot to a Status. Stressed wins over healthy when
// custom thresholds overlap.
func (t Thresholds) Classify(s Snapshot) Status {
	if s.CPUPercent > t.StressedCPU ||
		s.MemoryPercent > t.StressedMemory ||
		s.AvgLatencyMs > t.StressedLatencyMs {
		return StatusStressed
	}
	if s.CPUPercent < t.HealthyCPU &&
		s.MemoryPercent < t.HealthyMemory &&
		s.DiskPercent < t.HealthyDisk &&
		s.AvgLatencyMs < t.HealthyLatencyMs &&
		s.QueueDepth < t.HealthyDepth {
		return StatusHealthy
	}
	return StatusNormal
}

// Classify classifies s with DefaultThresholds.
func Classify(s Snapshot) Status {
	return DefaultThresholds().Classify(s)
}
