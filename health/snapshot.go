package health

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time reading of process and host load.
// Snapshots are values; History stores copies.
type Snapshot struct {
	CPUPercent    float64   `json:"cpu_percent"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskPercent   float64   `json:"disk_percent"`
	AvgLatencyMs  float64   `json:"avg_latency_ms"`
	QueueDepth    int       `json:"queue_depth"`
	Timestamp     time.Time `json:"timestamp"`

	// Estimated is set when one or more utilization figures are fallback
	// values rather than OS readings.
	Estimated bool `json:"estimated,omitempty"`
}

// DefaultHistorySize is the number of snapshots retained by default.
const DefaultHistorySize = 60

// History is a bounded ring buffer of the most recent snapshots.
type History struct {
	mu    sync.RWMutex
	buf   []Snapshot
	next  int
	count int
}

// NewHistory creates a ring holding at most size snapshots.
// Non-positive sizes use DefaultHistorySize.
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{buf: make([]Snapshot, size)}
}

// Add appends s, discarding the oldest snapshot when full.
func (h *History) Add(s Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buf[h.next] = s
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
}

// Len returns the number of retained snapshots.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Latest returns the most recent snapshot.
func (h *History) Latest() (Snapshot, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.count == 0 {
		return Snapshot{}, false
	}
	return h.buf[(h.next-1+len(h.buf))%len(h.buf)], true
}

// Snapshots returns the retained snapshots, oldest first.
func (h *History) Snapshots() []Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Snapshot, 0, h.count)
	start := (h.next - h.count + len(h.buf)) % len(h.buf)
	for i := 0; i < h.count; i++ {
		out = append(out, h.buf[(start+i)%len(h.buf)])
	}
	return out
}

// Average returns the field-wise mean of the retained snapshots, stamped
// with the latest timestamp. QueueDepth is rounded down.
func (h *History) Average() (Snapshot, bool) {
	snaps := h.Snapshots()
	if len(snaps) == 0 {
		return Snapshot{}, false
	}

	var avg Snapshot
	var depth int
	for _, s := range snaps {
		avg.CPUPercent += s.CPUPercent
		avg.MemoryPercent += s.MemoryPercent
		avg.DiskPercent += s.DiskPercent
		avg.AvgLatencyMs += s.AvgLatencyMs
		depth += s.QueueDepth
		avg.Estimated = avg.Estimated || s.Estimated
	}
	n := float64(len(snaps))
	avg.CPUPercent /= n
	avg.MemoryPercent /= n
	avg.DiskPercent /= n
	avg.AvgLatencyMs /= n
	avg.QueueDepth = depth / len(snaps)
	avg.Timestamp = snaps[len(snaps)-1].Timestamp
	return avg, true
}
