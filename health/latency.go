package health

import (
	"sync"
	"time"
)

// DefaultLatencyWindow is the number of observations averaged by default.
const DefaultLatencyWindow = 100

// LatencyTracker keeps a rolling average over the last N observed latencies.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64
	next    int
	count   int
	sum     float64
}

// NewLatencyTracker creates a tracker averaging the last window observations.
// Non-positive windows use DefaultLatencyWindow.
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = DefaultLatencyWindow
	}
	return &LatencyTracker{samples: make([]float64, window)}
}

// Observe records one latency.
func (l *LatencyTracker) Observe(d time.Duration) {
	ms := float64(d) / float64(time.Millisecond)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == len(l.samples) {
		l.sum -= l.samples[l.next]
	} else {
		l.count++
	}
	l.samples[l.next] = ms
	l.sum += ms
	l.next = (l.next + 1) % len(l.samples)
}

// AverageMs returns the mean of the retained observations in milliseconds,
// or 0 when nothing has been observed.
func (l *LatencyTracker) AverageMs() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.count == 0 {
		return 0
	}
	return l.sum / float64(l.count)
}

// Count returns the number of retained observations.
func (l *LatencyTracker) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}
