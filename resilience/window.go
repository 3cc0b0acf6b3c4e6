package resilience

import (
	"context"
	"sync"
	"time"
)

// SlidingWindowConfig configures the sliding window gate.
type SlidingWindowConfig struct {
	// Window is the trailing span over which admissions are counted.
	// Default: 1 second
	Window time.Duration

	// PollInterval is how long Wait sleeps between attempts.
	// Default: 10 milliseconds
	PollInterval time.Duration

	// Now is the clock used to stamp admissions.
	// Default: time.Now
	Now func() time.Time
}

// SlidingWindow admits at most limit events per trailing window.
type SlidingWindow struct {
	config SlidingWindowConfig

	mu     sync.Mutex
	stamps []time.Time // ascending
}

// NewSlidingWindow creates a new sliding window gate.
func NewSlidingWindow(config SlidingWindowConfig) *SlidingWindow {
	if config.Window <= 0 {
		config.Window = time.Second
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 10 * time.Millisecond
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &SlidingWindow{config: config}
}

// Allow records an admission and reports true if fewer than limit
// admissions occurred in the trailing window. A limit below 1 is treated
// as 1.
func (w *SlidingWindow) Allow(limit int) bool {
	if limit < 1 {
		limit = 1
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.config.Now()
	w.pruneLocked(now)
	if len(w.stamps) >= limit {
		return false
	}
	w.stamps = append(w.stamps, now)
	return true
}

// Wait blocks until Allow(limit()) succeeds or ctx is done. limit is
// re-read on every attempt so rate changes apply to waiting callers.
func (w *SlidingWindow) Wait(ctx context.Context, limit func() int) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for !w.Allow(limit()) {
		timer.Reset(w.config.PollInterval)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Count returns the number of admissions in the trailing window.
func (w *SlidingWindow) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pruneLocked(w.config.Now())
	return len(w.stamps)
}

// Reset forgets all recorded admissions.
func (w *SlidingWindow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stamps = nil
}

func (w *SlidingWindow) pruneLocked(now time.Time) {
	cutoff := now.Add(-w.config.Window)
	i := 0
	for i < len(w.stamps) && !w.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.stamps = append(w.stamps[:0], w.stamps[i:]...)
	}
}
