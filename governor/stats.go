package governor

import (
	"github.com/jonwraymond/toolgate/cache"
	"github.com/jonwraymond/toolgate/health"
	"github.com/jonwraymond/toolgate/resilience"
)

// HealthReport is the latest health sample and its classification.
type HealthReport struct {
	Snapshot health.Snapshot
	Status   health.Status

	// Sampled is false until the first sampling tick.
	Sampled bool
}

// Stats is a read-only view of a governor.
type Stats struct {
	Cache    cache.Stats
	Limiter  resilience.LimiterState
	Executor resilience.ExecutorMetrics
	Health   HealthReport
}

// HitRate returns the fraction of cache lookups answered by any tier.
func (s Stats) HitRate() float64 {
	return s.Cache.HitRate()
}

// DropRate returns rejected / (admitted + rejected).
func (s Stats) DropRate() float64 {
	return s.Executor.DropRate()
}

// QueueDepth returns the depth of the queue for p.
func (s Stats) QueueDepth(p resilience.Priority) int {
	if !p.Valid() {
		return 0
	}
	return s.Executor.QueueDepths[p]
}

// Stats returns counters and state from every component. It never blocks
// on the executor loop.
func (g *Governor) Stats() Stats {
	return Stats{
		Cache:    g.cache.Stats(),
		Limiter:  g.admission.State(),
		Executor: g.executor.Metrics(),
		Health:   g.Health(),
	}
}

// Health returns the latest health sample and its status.
func (g *Governor) Health() HealthReport {
	snap, ok := g.sampler.Latest()
	if !ok {
		return HealthReport{Status: health.StatusNormal}
	}
	return HealthReport{
		Snapshot: snap,
		Status:   g.sampler.Classify(snap),
		Sampled:  true,
	}
}
