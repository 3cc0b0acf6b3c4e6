package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jonwraymond/toolgate/observe"
)

// DefaultMaxInFlight bounds concurrently dispatched operations.
const DefaultMaxInFlight = 64

// ExecutorConfig configures the rate-limited executor.
type ExecutorConfig struct {
	// Admission gates submissions and supplies the current rate.
	// Required.
	Admission *Admission

	// Window enforces the current rate.
	// Default: NewSlidingWindow(SlidingWindowConfig{})
	Window *SlidingWindow

	// MaxInFlight bounds concurrently running operations.
	// Default: 64
	MaxInFlight int64

	// DefaultTimeout applies when Submit is given no timeout.
	// Default: 30 seconds
	DefaultTimeout time.Duration

	// Logger receives lifecycle messages.
	// Default: no-op logger
	Logger observe.Logger

	// OnAdmission, if set, is called once per submission that reaches
	// admission control: with false on rejection, with true once the job is
	// queued. Submissions that fail earlier report nothing.
	OnAdmission func(ctx context.Context, p Priority, admitted bool)
}

// Job states.
const (
	jobPending int32 = iota
	jobRunning
	jobAbandoned
)

type job struct {
	ctx      context.Context
	op       func(context.Context) error
	timeout  time.Duration
	priority Priority
	state    atomic.Int32
	done     chan error
}

// ExecutorMetrics is a snapshot of executor counters.
type ExecutorMetrics struct {
	Admitted      [NumPriorities]uint64
	Rejected      [NumPriorities]uint64
	Completed     uint64
	Failures      uint64
	Cancellations uint64
	QueueDepths   [NumPriorities]int
	InFlight      int64
}

// TotalAdmitted sums admissions across priorities.
func (m ExecutorMetrics) TotalAdmitted() uint64 {
	var n uint64
	for _, v := range m.Admitted {
		n += v
	}
	return n
}

// TotalRejected sums rejections across priorities.
func (m ExecutorMetrics) TotalRejected() uint64 {
	var n uint64
	for _, v := range m.Rejected {
		n += v
	}
	return n
}

// DropRate is the share of submissions rejected by admission control.
func (m ExecutorMetrics) DropRate() float64 {
	rejected := m.TotalRejected()
	total := rejected + m.TotalAdmitted()
	if total == 0 {
		return 0
	}
	return float64(rejected) / float64(total)
}

// QueueDepth sums the bucket depths.
func (m ExecutorMetrics) QueueDepth() int {
	var n int
	for _, d := range m.QueueDepths {
		n += d
	}
	return n
}

// Executor schedules submitted operations in strict priority order under
// the admission controller's current rate.
//
// Contract:
//   - Concurrency: Submit is safe for concurrent use; Run is called once.
//   - Context: a caller's ctx bounds only its own operation.
//   - Errors: operation errors are returned unchanged and never retried.
type Executor struct {
	admission      *Admission
	window         *SlidingWindow
	queues         *PriorityQueues[*job]
	sem            *semaphore.Weighted
	defaultTimeout time.Duration
	logger         observe.Logger
	onAdmission    func(context.Context, Priority, bool)

	running atomic.Bool
	mu      sync.Mutex // guards closed against Push
	closed  bool
	wg      sync.WaitGroup

	inFlight      atomic.Int64
	admitted      [NumPriorities]atomic.Uint64
	rejected      [NumPriorities]atomic.Uint64
	completed     atomic.Uint64
	failures      atomic.Uint64
	cancellations atomic.Uint64
}

// NewExecutor creates an executor. It does nothing until Run is called.
func NewExecutor(cfg ExecutorConfig) (*Executor, error) {
	if cfg.Admission == nil {
		return nil, errors.New("resilience: executor requires an admission controller")
	}
	if cfg.Window == nil {
		cfg.Window = NewSlidingWindow(SlidingWindowConfig{})
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNoopLogger()
	}
	if cfg.OnAdmission == nil {
		cfg.OnAdmission = func(context.Context, Priority, bool) {}
	}

	return &Executor{
		admission:      cfg.Admission,
		window:         cfg.Window,
		queues:         NewPriorityQueues[*job](),
		sem:            semaphore.NewWeighted(cfg.MaxInFlight),
		defaultTimeout: cfg.DefaultTimeout,
		logger:         cfg.Logger,
		onAdmission:    cfg.OnAdmission,
	}, nil
}

// Depth returns the aggregate queue depth.
func (e *Executor) Depth() int {
	return e.queues.Len()
}

// Submit admits op at priority p, queues it, and blocks until it has run or
// ctx is done. A non-positive timeout uses the executor default.
//
// Rejections are *RejectionError. An expired timeout yields ErrTimeout.
// If ctx ends while op is still queued, op never runs and ctx.Err() is
// returned.
func (e *Executor) Submit(ctx context.Context, p Priority, timeout time.Duration, op func(context.Context) error) error {
	if !p.Valid() {
		return ErrInvalidPriority
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := e.admission.Admit(p, e.queues.Len()); err != nil {
		e.rejected[p].Add(1)
		e.onAdmission(ctx, p, false)
		return err
	}
	if timeout <= 0 {
		timeout = e.defaultTimeout
	}

	j := &job{
		ctx:      ctx,
		op:       op,
		timeout:  timeout,
		priority: p,
		done:     make(chan error, 1),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	_ = e.queues.Push(p, j)
	e.mu.Unlock()
	e.admitted[p].Add(1)
	e.onAdmission(ctx, p, true)

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		if j.state.CompareAndSwap(jobPending, jobAbandoned) {
			e.cancellations.Add(1)
			return ctx.Err()
		}
		// Already dispatched: the op sees the same cancellation.
		return <-j.done
	}
}

// Run is the scheduling loop. It waits for work, an in-flight slot and a
// rate window slot, then dispatches the highest priority job. It returns
// when ctx is done; queued jobs then fail with ErrExecutorClosed and Run
// waits for dispatched jobs to finish.
func (e *Executor) Run(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return ErrExecutorRunning
	}
	defer e.close()

	for {
		if err := e.waitForWork(ctx); err != nil {
			return err
		}
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return err
		}
		if err := e.window.Wait(ctx, e.limit); err != nil {
			e.sem.Release(1)
			return err
		}

		j, ok := e.next()
		if !ok {
			e.sem.Release(1)
			continue
		}

		e.wg.Add(1)
		e.inFlight.Add(1)
		go e.dispatch(j)
	}
}

func (e *Executor) waitForWork(ctx context.Context) error {
	for e.queues.Len() == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-e.queues.Ready():
		}
	}
	return nil
}

// next pops jobs until one is claimed, skipping abandoned ones.
func (e *Executor) next() (*job, bool) {
	for {
		j, _, ok := e.queues.Pop()
		if !ok {
			return nil, false
		}
		if j.state.CompareAndSwap(jobPending, jobRunning) {
			return j, true
		}
	}
}

// limit is the window size for the current rate, at least 1.
func (e *Executor) limit() int {
	n := int(e.admission.CurrentRPS())
	if n < 1 {
		return 1
	}
	return n
}

func (e *Executor) dispatch(j *job) {
	defer e.wg.Done()
	defer e.sem.Release(1)
	defer e.inFlight.Add(-1)

	err := RunWithTimeout(j.ctx, j.timeout, j.op)
	switch {
	case err == nil:
		e.completed.Add(1)
	case errors.Is(err, ErrTimeout), errors.Is(err, context.Canceled):
		e.cancellations.Add(1)
	default:
		e.failures.Add(1)
	}
	j.done <- err
}

func (e *Executor) close() {
	e.mu.Lock()
	e.closed = true
	pending := e.queues.Drain()
	e.mu.Unlock()

	var failed int
	for _, j := range pending {
		if j.state.CompareAndSwap(jobPending, jobAbandoned) {
			j.done <- ErrExecutorClosed
			failed++
		}
	}
	if failed > 0 {
		e.logger.Warn(context.Background(), "executor stopped with queued work",
			observe.Field{Key: "queued", Value: failed},
		)
	}

	e.wg.Wait()
}

// Metrics returns a snapshot of the executor counters.
func (e *Executor) Metrics() ExecutorMetrics {
	m := ExecutorMetrics{
		Completed:     e.completed.Load(),
		Failures:      e.failures.Load(),
		Cancellations: e.cancellations.Load(),
		QueueDepths:   e.queues.Depths(),
		InFlight:      e.inFlight.Load(),
	}
	for _, p := range Priorities {
		m.Admitted[p] = e.admitted[p].Load()
		m.Rejected[p] = e.rejected[p].Load()
	}
	return m
}
