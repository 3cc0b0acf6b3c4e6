package cache

import (
	"context"
	"encoding/json"

	"github.com/jonwraymond/toolgate/observe"
)

// ExecutorFunc produces the result of a request on a cache miss. key is the
// request fingerprint, or "" when the request bypasses the cache.
type ExecutorFunc func(ctx context.Context, key string) (json.RawMessage, error)

// MiddlewareConfig configures a Middleware.
type MiddlewareConfig struct {
	// Keyer derives cache keys.
	// Default: DefaultKeyer
	Keyer Keyer

	// Policy decides which requests are cached and where.
	// Default: DefaultPolicy()
	Policy *Policy

	// Metrics receives one lookup per cacheable request, labelled with the
	// answering tier or "none".
	// Default: no-op metrics
	Metrics observe.Metrics

	// Logger reports results that could not be stored.
	// Default: no-op logger
	Logger observe.Logger
}

// Middleware wraps request execution with a tiered cache lookup and fill.
type Middleware struct {
	cache   *Tiered
	keyer   Keyer
	policy  Policy
	metrics observe.Metrics
	logger  observe.Logger
}

// NewMiddleware creates a cache middleware in front of c.
func NewMiddleware(c *Tiered, cfg MiddlewareConfig) *Middleware {
	if cfg.Keyer == nil {
		cfg.Keyer = defaultKeyer
	}
	policy := DefaultPolicy()
	if cfg.Policy != nil {
		policy = *cfg.Policy
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.NewNoopMetrics()
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNoopLogger()
	}
	return &Middleware{
		cache:   c,
		keyer:   cfg.Keyer,
		policy:  policy,
		metrics: cfg.Metrics,
		logger:  cfg.Logger,
	}
}

// Execute answers from the cache when possible, otherwise runs exec and
// stores a successful result in the policy's tiers. The returned Level is
// the tier that answered, or LevelNone when exec ran.
// Errors are NOT cached.
func (m *Middleware) Execute(
	ctx context.Context,
	method string,
	params any,
	tags []string,
	exec ExecutorFunc,
) (json.RawMessage, Level, error) {
	if m.cache == nil || !m.policy.ShouldCache(method, tags) {
		result, err := exec(ctx, "")
		return result, LevelNone, err
	}

	key, err := m.keyer.Key(method, params)
	if err != nil {
		// Unkeyable requests still run, uncached
		result, err := exec(ctx, "")
		return result, LevelNone, err
	}

	if cached, level := m.cache.Get(ctx, key); level != LevelNone {
		m.metrics.RecordCacheLookup(ctx, level.String())
		return cached, level, nil
	}
	m.metrics.RecordCacheLookup(ctx, LevelNone.String())

	result, err := exec(ctx, key)
	if err != nil {
		return result, LevelNone, err
	}

	// Non-JSON results are returned but not cached
	if err := m.cache.Put(ctx, key, result, m.policy.Levels); err != nil {
		m.logger.Warn(ctx, "cache fill failed",
			observe.Field{Key: "method", Value: method},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	return result, LevelNone, nil
}

// Cache returns the underlying tiered cache.
func (m *Middleware) Cache() *Tiered {
	return m.cache
}
