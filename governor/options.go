package governor

import (
	"github.com/jonwraymond/toolgate/cache"
	"github.com/jonwraymond/toolgate/health"
	"github.com/jonwraymond/toolgate/observe"
)

// Option configures a Governor.
type Option func(*options)

type options struct {
	logger   observe.Logger
	metrics  observe.Metrics
	tracer   observe.Tracer
	observer observe.Observer
	probe    health.Probe
	policy   *cache.Policy
}

// WithLogger sets the logger. By default the governor logs JSON to stderr
// at Config.LogLevel.
func WithLogger(l observe.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observe.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer sets the tracer used for downstream spans.
func WithTracer(t observe.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithObserver derives metrics, tracer and logger from an existing
// Observer. The caller keeps ownership and shuts it down.
func WithObserver(obs observe.Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// WithProbe replaces the host utilization probe.
func WithProbe(p health.Probe) Option {
	return func(o *options) {
		o.probe = p
	}
}

// WithCachePolicy replaces the default cache policy.
func WithCachePolicy(p cache.Policy) Option {
	return func(o *options) {
		o.policy = &p
	}
}
