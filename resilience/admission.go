package resilience

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/toolgate/health"
)

// Admission defaults.
const (
	DefaultInitialRPS         = 100.0
	DefaultMinRPS             = 10.0
	DefaultMaxRPS             = 1000.0
	DefaultAdjustmentInterval = 5 * time.Second

	// DefaultLowDepthLimit is the aggregate depth above which low priority
	// work is rejected.
	DefaultLowDepthLimit = 100

	// DefaultNormalDepthLimit is the aggregate depth above which normal and
	// low priority work is rejected.
	DefaultNormalDepthLimit = 200
)

// Rate adjustment factors.
const (
	stressedFactor = 0.5
	healthyFactor  = 1.1
	idleFactor     = 1.05
	busyFactor     = 0.9

	idleCPU = 50.0
	busyCPU = 80.0

	// intervalSlack divides Interval into the tolerated tick jitter.
	intervalSlack = 10
)

// AdmissionConfig configures the admission controller.
type AdmissionConfig struct {
	// InitialRPS is the starting rate, clamped into [MinRPS, MaxRPS].
	// Default: 100
	InitialRPS float64

	// MinRPS is the rate floor.
	// Default: 10
	MinRPS float64

	// MaxRPS is the rate ceiling.
	// Default: 1000
	MaxRPS float64

	// Interval is the minimum spacing between rate adjustments. Spacing
	// within a tenth of Interval counts as a full interval so that a sampler
	// ticking at the same period is never skipped.
	// Default: 5 seconds
	Interval time.Duration

	// Thresholds classify snapshots.
	// Default: health.DefaultThresholds()
	Thresholds *health.Thresholds

	// LowDepthLimit and NormalDepthLimit are the backlog rejection points.
	// Default: 100 and 200
	LowDepthLimit    int
	NormalDepthLimit int

	// Now is the clock used to space adjustments.
	// Default: time.Now
	Now func() time.Time
}

// Validate reports inconsistent bounds after defaults are applied.
func (c AdmissionConfig) Validate() error {
	if c.MinRPS <= 0 || c.MaxRPS <= 0 {
		return fmt.Errorf("%w: min_rps and max_rps must be positive", ErrInvalidLimits)
	}
	if c.MinRPS > c.MaxRPS {
		return fmt.Errorf("%w: min_rps %v exceeds max_rps %v", ErrInvalidLimits, c.MinRPS, c.MaxRPS)
	}
	return nil
}

func (c AdmissionConfig) withDefaults() AdmissionConfig {
	if c.MinRPS <= 0 {
		c.MinRPS = DefaultMinRPS
	}
	if c.MaxRPS <= 0 {
		c.MaxRPS = DefaultMaxRPS
	}
	if c.InitialRPS <= 0 {
		c.InitialRPS = DefaultInitialRPS
	}
	if c.Interval <= 0 {
		c.Interval = DefaultAdjustmentInterval
	}
	if c.LowDepthLimit <= 0 {
		c.LowDepthLimit = DefaultLowDepthLimit
	}
	if c.NormalDepthLimit <= 0 {
		c.NormalDepthLimit = DefaultNormalDepthLimit
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// LimiterState is a read-only view of the controller.
type LimiterState struct {
	CurrentRPS     float64
	MinRPS         float64
	MaxRPS         float64
	LastAdjustment time.Time
	LastStatus     health.Status
}

// Adjustment describes the outcome of one Update.
type Adjustment struct {
	// Evaluated is false when the call fell inside the adjustment interval.
	Evaluated bool
	Status    health.Status
	Previous  float64
	Current   float64
}

// Changed reports whether the rate moved.
func (a Adjustment) Changed() bool {
	return a.Evaluated && a.Previous != a.Current
}

// Admission adapts the allowed request rate to health and gates work by
// priority and backlog.
//
// Contract:
//   - Concurrency: Update has a single logical writer; CurrentRPS and Admit
//     may be called from any goroutine.
//   - Errors: Admit returns a *RejectionError for every rejection.
type Admission struct {
	cfg        AdmissionConfig
	thresholds health.Thresholds

	rps atomic.Uint64 // math.Float64bits

	mu             sync.Mutex
	lastAdjustment time.Time
	lastStatus     health.Status
}

// NewAdmission creates an admission controller.
func NewAdmission(cfg AdmissionConfig) (*Admission, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &Admission{cfg: cfg, thresholds: health.DefaultThresholds()}
	if cfg.Thresholds != nil {
		a.thresholds = *cfg.Thresholds
	}
	a.storeRPS(clamp(cfg.InitialRPS, cfg.MinRPS, cfg.MaxRPS))
	return a, nil
}

// CurrentRPS returns the current rate ceiling.
func (a *Admission) CurrentRPS() float64 {
	return math.Float64frombits(a.rps.Load())
}

func (a *Admission) storeRPS(v float64) {
	a.rps.Store(math.Float64bits(v))
}

// State returns a copy of the limiter state.
func (a *Admission) State() LimiterState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return LimiterState{
		CurrentRPS:     a.CurrentRPS(),
		MinRPS:         a.cfg.MinRPS,
		MaxRPS:         a.cfg.MaxRPS,
		LastAdjustment: a.lastAdjustment,
		LastStatus:     a.lastStatus,
	}
}

// Update re-evaluates the rate from snap, at most once per interval. Spacing
// is measured between snapshot timestamps, or the configured clock for
// unstamped snapshots. The first call after construction is always evaluated.
func (a *Admission) Update(snap health.Snapshot) Adjustment {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := snap.Timestamp
	if now.IsZero() {
		now = a.cfg.Now()
	}
	prev := a.CurrentRPS()
	if !a.lastAdjustment.IsZero() && now.Sub(a.lastAdjustment) < a.cfg.Interval-a.cfg.Interval/intervalSlack {
		return Adjustment{Status: a.lastStatus, Previous: prev, Current: prev}
	}

	status := a.thresholds.Classify(snap)
	next := prev
	switch {
	case status == health.StatusStressed:
		next = prev * stressedFactor
	case status == health.StatusHealthy:
		next = prev * healthyFactor
	case snap.CPUPercent < idleCPU:
		next = prev * idleFactor
	case snap.CPUPercent > busyCPU:
		next = prev * busyFactor
	}
	next = clamp(next, a.cfg.MinRPS, a.cfg.MaxRPS)

	a.storeRPS(next)
	a.lastAdjustment = now
	a.lastStatus = status

	return Adjustment{Evaluated: true, Status: status, Previous: prev, Current: next}
}

// Admit decides whether work of priority p may join a backlog of depth.
// Critical and high priority work is always admitted.
func (a *Admission) Admit(p Priority, depth int) error {
	switch p {
	case PriorityCritical, PriorityHigh:
		return nil
	case PriorityNormal:
		if depth > a.cfg.NormalDepthLimit {
			return &RejectionError{Priority: p, Depth: depth, Limit: a.cfg.NormalDepthLimit}
		}
		return nil
	case PriorityLow:
		if depth > a.cfg.LowDepthLimit {
			return &RejectionError{Priority: p, Depth: depth, Limit: a.cfg.LowDepthLimit}
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidPriority, uint8(p))
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}
