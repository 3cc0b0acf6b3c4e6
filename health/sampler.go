package health

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/toolgate/observe"
)

// DepthFunc reports the current aggregate queue depth.
type DepthFunc func() int

// SamplerConfig configures a Sampler.
type SamplerConfig struct {
	// Probe reads host utilization.
	// Default: NewSystemProbe(DiskPath)
	Probe Probe

	// DiskPath selects the filesystem reported by the default probe.
	// Default: "/"
	DiskPath string

	// Depth reports the aggregate queue depth.
	// Default: always 0
	Depth DepthFunc

	// Latency supplies the rolling-average latency.
	// Default: NewLatencyTracker(DefaultLatencyWindow)
	Latency *LatencyTracker

	// HistorySize bounds the snapshot ring.
	// Default: DefaultHistorySize
	HistorySize int

	// Thresholds drives Classify.
	// Default: DefaultThresholds()
	Thresholds *Thresholds

	// Logger receives throttled probe-failure warnings.
	// Default: no-op logger
	Logger observe.Logger

	// Now is the clock used to stamp snapshots.
	// Default: time.Now
	Now func() time.Time
}

// Sampler produces health snapshots.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors: Sample never fails; unreadable figures become FallbackPercent
//     and the snapshot is marked Estimated.
type Sampler struct {
	probe      Probe
	depth      DepthFunc
	latency    *LatencyTracker
	history    *History
	thresholds Thresholds
	logger     observe.Logger
	now        func() time.Time
	probeLog   rate.Sometimes
}

// NewSampler creates a Sampler, filling unset fields with defaults.
func NewSampler(cfg SamplerConfig) *Sampler {
	if cfg.Probe == nil {
		cfg.Probe = NewSystemProbe(cfg.DiskPath)
	}
	if cfg.Depth == nil {
		cfg.Depth = func() int { return 0 }
	}
	if cfg.Latency == nil {
		cfg.Latency = NewLatencyTracker(DefaultLatencyWindow)
	}
	thresholds := DefaultThresholds()
	if cfg.Thresholds != nil {
		thresholds = *cfg.Thresholds
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNoopLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Sampler{
		probe:      cfg.Probe,
		depth:      cfg.Depth,
		latency:    cfg.Latency,
		history:    NewHistory(cfg.HistorySize),
		thresholds: thresholds,
		logger:     cfg.Logger,
		now:        cfg.Now,
		probeLog:   rate.Sometimes{First: 1, Interval: time.Minute},
	}
}

// Sample reads the probe, combines it with latency and queue depth, records
// the snapshot in History and returns it.
func (s *Sampler) Sample(ctx context.Context) Snapshot {
	return s.sampleAt(ctx, s.now())
}

// sampleAt is Sample stamped with at.
func (s *Sampler) sampleAt(ctx context.Context, at time.Time) Snapshot {
	u, err := s.probe.Usage(ctx)
	if err != nil {
		s.probeLog.Do(func() {
			s.logger.Warn(ctx, "health probe failed, using estimates",
				observe.Field{Key: "error", Value: err.Error()},
			)
		})
	}

	snap := Snapshot{
		AvgLatencyMs: s.latency.AverageMs(),
		QueueDepth:   s.depth(),
		Timestamp:    at,
	}
	snap.CPUPercent, snap.Estimated = orFallback(u.CPUPercent, snap.Estimated)
	snap.MemoryPercent, snap.Estimated = orFallback(u.MemoryPercent, snap.Estimated)
	snap.DiskPercent, snap.Estimated = orFallback(u.DiskPercent, snap.Estimated)

	s.history.Add(snap)
	return snap
}

func orFallback(v float64, estimated bool) (float64, bool) {
	if v < 0 {
		return FallbackPercent, true
	}
	return v, estimated
}

// Classify classifies snap with the sampler's thresholds.
func (s *Sampler) Classify(snap Snapshot) Status {
	return s.thresholds.Classify(snap)
}

// History returns the snapshot ring.
func (s *Sampler) History() *History {
	return s.history
}

// Latency returns the latency tracker fed by callers.
func (s *Sampler) Latency() *LatencyTracker {
	return s.latency
}

// Latest returns the most recent snapshot, if any.
func (s *Sampler) Latest() (Snapshot, bool) {
	return s.history.Latest()
}

// Run samples every interval and passes each snapshot to fn until ctx is
// done. Snapshots are stamped with their tick time, so their spacing tracks
// the ticker rather than probe latency. It returns ctx.Err().
func (s *Sampler) Run(ctx context.Context, interval time.Duration, fn func(Snapshot)) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInterval, interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case tick := <-ticker.C:
			snap := s.sampleAt(ctx, tick)
			if fn != nil {
				fn(snap)
			}
		}
	}
}
