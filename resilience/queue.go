package resilience

import "sync"

// PriorityQueues holds one FIFO per priority and pops in strict priority
// order. It is safe for concurrent use.
type PriorityQueues[T any] struct {
	mu      sync.Mutex
	buckets [NumPriorities][]T
	total   int
	ready   chan struct{}
}

// NewPriorityQueues creates an empty set of queues.
func NewPriorityQueues[T any]() *PriorityQueues[T] {
	return &PriorityQueues[T]{ready: make(chan struct{}, 1)}
}

// Push appends v to the bucket for p.
func (q *PriorityQueues[T]) Push(p Priority, v T) error {
	if !p.Valid() {
		return ErrInvalidPriority
	}

	q.mu.Lock()
	q.buckets[p] = append(q.buckets[p], v)
	q.total++
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return nil
}

// Pop removes the oldest item of the highest non-empty priority.
func (q *PriorityQueues[T]) Pop() (T, Priority, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range Priorities {
		b := q.buckets[p]
		if len(b) == 0 {
			continue
		}
		v := b[0]
		var zero T
		b[0] = zero
		q.buckets[p] = b[1:]
		if len(q.buckets[p]) == 0 {
			q.buckets[p] = nil
		}
		q.total--
		return v, p, true
	}

	var zero T
	return zero, 0, false
}

// Drain removes and returns every queued item in service order.
func (q *PriorityQueues[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]T, 0, q.total)
	for _, p := range Priorities {
		out = append(out, q.buckets[p]...)
		q.buckets[p] = nil
	}
	q.total = 0
	return out
}

// Len returns the aggregate depth across all priorities.
func (q *PriorityQueues[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.total
}

// Depths returns the depth of each bucket, indexed by Priority.
func (q *PriorityQueues[T]) Depths() [NumPriorities]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	var d [NumPriorities]int
	for _, p := range Priorities {
		d[p] = len(q.buckets[p])
	}
	return d
}

// Ready is signalled after a Push. A receive does not guarantee an item is
// still queued.
func (q *PriorityQueues[T]) Ready() <-chan struct{} {
	return q.ready
}
