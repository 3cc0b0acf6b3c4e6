package governor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/toolgate/cache"
	"github.com/jonwraymond/toolgate/health"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/resilience"
)

// Request is one call to the downstream service.
type Request struct {
	Method string
	Params any
	Tags   []string // side-effect tags such as "write" bypass the cache
}

// Response is the result of AdmitAndRun.
type Response struct {
	Value json.RawMessage

	// Source is the cache tier that answered, or cache.LevelNone when the
	// downstream service was called.
	Source cache.Level
}

// Invoker calls the downstream service.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (json.RawMessage, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, req Request) (json.RawMessage, error)

// Invoke calls f.
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (json.RawMessage, error) {
	return f(ctx, req)
}

// Governor governs calls to one downstream service: it answers repeated
// requests from a tiered cache and schedules the rest through admission
// control and a health-adaptive rate limit.
//
// Contract:
//   - Lifecycle: New, then Start, then Shutdown. Governors share no state.
//   - Concurrency: AdmitAndRun, Stats and Health are safe for concurrent use.
//   - Errors: rejections match resilience.ErrRateLimitExceeded, timeouts are
//     resilience.ErrTimeout, downstream errors are returned unchanged.
type Governor struct {
	cfg     Config
	invoker Invoker

	logger   observe.Logger
	metrics  observe.Metrics
	observed *observe.Middleware
	observer observe.Observer // owned; nil unless built from cfg.Observe

	cache     *cache.Tiered
	cacheMW   *cache.Middleware
	sampler   *health.Sampler
	admission *resilience.Admission
	executor  *resilience.Executor
	flight    singleflight.Group

	mu      sync.Mutex
	running bool
	stopped bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// New builds a governor. It does not start any goroutine; call Start.
func New(cfg Config, inv Invoker, opts ...Option) (*Governor, error) {
	if inv == nil {
		return nil, ErrNilInvoker
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	g := &Governor{cfg: cfg, invoker: inv}
	if err := g.setupTelemetry(&o); err != nil {
		return nil, err
	}

	g.cache = cache.NewTiered(cache.Config{
		L1Size:     cfg.L1Size,
		L2Path:     cfg.L2Path,
		L2MaxBytes: cfg.L2MaxBytes(),
		Logger:     g.logger.With(observe.Field{Key: "component", Value: "cache"}),
	})
	g.cacheMW = cache.NewMiddleware(g.cache, cache.MiddlewareConfig{
		Policy:  o.policy,
		Metrics: g.metrics,
		Logger:  g.logger.With(observe.Field{Key: "component", Value: "cache"}),
	})

	admission, err := resilience.NewAdmission(resilience.AdmissionConfig{
		InitialRPS: cfg.InitialRPS,
		MinRPS:     cfg.MinRPS,
		MaxRPS:     cfg.MaxRPS,
		Interval:   cfg.HealthCheckInterval(),
	})
	if err != nil {
		return nil, g.abort(fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}
	g.admission = admission

	executor, err := resilience.NewExecutor(resilience.ExecutorConfig{
		Admission:      admission,
		MaxInFlight:    cfg.MaxInFlight,
		DefaultTimeout: cfg.DefaultTimeout(),
		Logger:         g.logger.With(observe.Field{Key: "component", Value: "executor"}),
		OnAdmission: func(ctx context.Context, p resilience.Priority, admitted bool) {
			g.metrics.RecordAdmission(ctx, p.String(), admitted)
		},
	})
	if err != nil {
		return nil, g.abort(err)
	}
	g.executor = executor

	g.sampler = health.NewSampler(health.SamplerConfig{
		Probe:    o.probe,
		DiskPath: cfg.SampledDiskPath(),
		Depth:    executor.Depth,
		Logger:   g.logger.With(observe.Field{Key: "component", Value: "health"}),
	})

	return g, nil
}

func (g *Governor) setupTelemetry(o *options) error {
	obs := o.observer
	if obs == nil && o.metrics == nil && o.tracer == nil && g.cfg.Observe.ServiceName != "" {
		built, err := observe.NewObserver(context.Background(), g.cfg.Observe)
		if err != nil {
			return fmt.Errorf("governor: observer: %w", err)
		}
		g.observer = built
		obs = built
	}

	g.logger = o.logger
	g.metrics = o.metrics
	tracer := o.tracer

	if obs != nil {
		if g.metrics == nil {
			m, err := observe.NewMetrics(obs.Meter())
			if err != nil {
				return g.abort(fmt.Errorf("governor: metrics: %w", err))
			}
			g.metrics = m
		}
		if tracer == nil {
			tracer = observe.NewTracer(obs.Tracer())
		}
		if g.logger == nil && g.cfg.Observe.Logging.Enabled {
			g.logger = obs.Logger()
		}
	}

	if g.logger == nil {
		g.logger = observe.NewLogger(g.cfg.LogLevel)
	}
	if g.metrics == nil {
		g.metrics = observe.NewNoopMetrics()
	}
	g.observed = observe.NewMiddleware(tracer, g.metrics, g.logger)
	return nil
}

// abort releases what New acquired before failing.
func (g *Governor) abort(err error) error {
	if g.cache != nil {
		_ = g.cache.Close()
	}
	if g.observer != nil {
		_ = g.observer.Shutdown(context.Background())
	}
	return err
}

// Start launches the sampling loop and the executor loop. They stop when
// ctx is done or Shutdown is called.
func (g *Governor) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.running || g.stopped {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, gctx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return g.executor.Run(gctx)
	})
	group.Go(func() error {
		return g.sampler.Run(gctx, g.cfg.HealthCheckInterval(), func(snap health.Snapshot) {
			g.onSample(gctx, snap)
		})
	})

	g.cancel = cancel
	g.group = group
	g.running = true

	g.logger.Info(ctx, "governor started",
		observe.Field{Key: "rps", Value: g.admission.CurrentRPS()},
		observe.Field{Key: "l2_enabled", Value: g.cache.L2() != nil},
	)
	return nil
}

func (g *Governor) onSample(ctx context.Context, snap health.Snapshot) {
	adj := g.admission.Update(snap)
	if !adj.Evaluated {
		return
	}

	g.metrics.RecordLimiter(ctx, adj.Current, snap.QueueDepth, adj.Status.String())
	if adj.Changed() {
		g.logger.Info(ctx, "rate limit adjusted",
			observe.Field{Key: "status", Value: adj.Status.String()},
			observe.Field{Key: "previous_rps", Value: adj.Previous},
			observe.Field{Key: "rps", Value: adj.Current},
			observe.Field{Key: "cpu_percent", Value: snap.CPUPercent},
			observe.Field{Key: "queue_depth", Value: snap.QueueDepth},
		)
	}
}

// Shutdown stops both loops, waits for them, fails still-queued calls with
// resilience.ErrExecutorClosed and closes the warm tier log. It is safe to
// call more than once.
func (g *Governor) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return nil
	}
	g.stopped = true
	running := g.running
	g.running = false
	cancel, group := g.cancel, g.group
	g.mu.Unlock()

	var errs []error
	if running {
		cancel()
		done := make(chan error, 1)
		go func() { done <- group.Wait() }()

		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				errs = append(errs, err)
			}
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("governor: shutdown: %w", ctx.Err()))
		}
	}

	if err := g.cache.Close(); err != nil {
		errs = append(errs, fmt.Errorf("governor: close cache: %w", err))
	}
	if g.observer != nil {
		if err := g.observer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	g.logger.Info(ctx, "governor stopped")
	return errors.Join(errs...)
}

func (g *Governor) isRunning() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.running
}

// AdmitAndRun answers req from the cache when possible; otherwise it admits
// the call at priority p, waits for a rate slot, invokes the downstream
// service with the given timeout and caches a successful result.
//
// Cache hits are served without admission. Concurrent identical cacheable
// misses at the same priority share one downstream call; each caller still
// stops waiting when its own ctx ends. A non-positive timeout uses the
// configured default.
func (g *Governor) AdmitAndRun(ctx context.Context, req Request, p resilience.Priority, timeout time.Duration) (Response, error) {
	if strings.TrimSpace(req.Method) == "" {
		return Response{}, ErrInvalidRequest
	}
	if !p.Valid() {
		return Response{}, resilience.ErrInvalidPriority
	}
	if !g.isRunning() {
		return Response{}, ErrNotStarted
	}

	value, source, err := g.cacheMW.Execute(ctx, req.Method, req.Params, req.Tags,
		func(ctx context.Context, key string) (json.RawMessage, error) {
			if key == "" {
				return g.submit(ctx, req, p, timeout, "")
			}
			return g.coalesce(ctx, req, p, timeout, key)
		})
	if err != nil {
		return Response{}, err
	}
	return Response{Value: value, Source: source}, nil
}

// coalesce shares one downstream call among identical concurrent misses.
func (g *Governor) coalesce(ctx context.Context, req Request, p resilience.Priority, timeout time.Duration, key string) (json.RawMessage, error) {
	ch := g.flight.DoChan(key+"|"+p.String(), func() (any, error) {
		// Detached so that one waiter leaving does not fail the others;
		// the call stays bounded by its timeout.
		return g.submit(context.WithoutCancel(ctx), req, p, timeout, key)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(json.RawMessage), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *Governor) submit(ctx context.Context, req Request, p resilience.Priority, timeout time.Duration, key string) (json.RawMessage, error) {
	meta := observe.RequestMeta{
		Method:      req.Method,
		Priority:    p.String(),
		Fingerprint: key,
		Tags:        req.Tags,
	}
	invoke := g.observed.Wrap(func(ctx context.Context, _ observe.RequestMeta) (json.RawMessage, error) {
		return g.invoker.Invoke(ctx, req)
	})

	var result json.RawMessage
	err := g.executor.Submit(ctx, p, timeout, func(ctx context.Context) error {
		start := time.Now()
		v, err := invoke(ctx, meta)
		g.sampler.Latency().Observe(time.Since(start))
		if err != nil {
			return err
		}
		result = v
		return nil
	})

	if errors.Is(err, resilience.ErrRateLimitExceeded) {
		g.logger.WithRequest(meta).Warn(ctx, "request rejected by admission control",
			observe.Field{Key: "queue_depth", Value: g.executor.Depth()},
		)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Cache returns the tiered cache for direct Get and Put.
func (g *Governor) Cache() *cache.Tiered {
	return g.cache
}

// Admission returns the admission controller.
func (g *Governor) Admission() *resilience.Admission {
	return g.admission
}

// Sampler returns the health sampler.
func (g *Governor) Sampler() *health.Sampler {
	return g.sampler
}
