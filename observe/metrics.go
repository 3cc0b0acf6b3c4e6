package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics records request governance metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordCacheLookup records a cache lookup answered by tier ("l1",
	// "l2") or missed everywhere (tier "none").
	RecordCacheLookup(ctx context.Context, tier string)

	// RecordAdmission records an admission decision for a priority.
	RecordAdmission(ctx context.Context, priority string, admitted bool)

	// RecordExecution records a downstream invocation with duration and error status.
	RecordExecution(ctx context.Context, meta RequestMeta, duration time.Duration, err error)

	// RecordLimiter records the limiter state after a health tick.
	RecordLimiter(ctx context.Context, currentRPS float64, queueDepth int, status string)
}

type metricsImpl struct {
	cacheLookups metric.Int64Counter
	admissions   metric.Int64Counter
	totalCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	rpsGauge     metric.Float64Gauge
	depthGauge   metric.Int64Gauge
}

// NewMetrics creates a Metrics instance backed by the given meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	cacheLookups, err := meter.Int64Counter(
		"toolgate.cache.lookups",
		metric.WithDescription("Cache lookups by answering tier"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	admissions, err := meter.Int64Counter(
		"toolgate.admission.decisions",
		metric.WithDescription("Admission decisions by priority and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, err
	}

	totalCount, err := meter.Int64Counter(
		"toolgate.exec.total",
		metric.WithDescription("Total number of downstream invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"toolgate.exec.errors",
		metric.WithDescription("Total number of downstream invocation errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"toolgate.exec.duration_ms",
		metric.WithDescription("Downstream invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	rpsGauge, err := meter.Float64Gauge(
		"toolgate.limiter.rps",
		metric.WithDescription("Current admission ceiling in requests per second"),
		metric.WithUnit("{request}/s"),
	)
	if err != nil {
		return nil, err
	}

	depthGauge, err := meter.Int64Gauge(
		"toolgate.queue.depth",
		metric.WithDescription("Aggregate depth of the priority queues"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		cacheLookups: cacheLookups,
		admissions:   admissions,
		totalCount:   totalCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		rpsGauge:     rpsGauge,
		depthGauge:   depthGauge,
	}, nil
}

func (m *metricsImpl) RecordCacheLookup(ctx context.Context, tier string) {
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("cache.tier", tier)))
}

func (m *metricsImpl) RecordAdmission(ctx context.Context, priority string, admitted bool) {
	m.admissions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("request.priority", priority),
		attribute.Bool("admission.allowed", admitted),
	))
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta RequestMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(meta.attributes()...)

	m.totalCount.Add(ctx, 1, opt)
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (m *metricsImpl) RecordLimiter(ctx context.Context, currentRPS float64, queueDepth int, status string) {
	opt := metric.WithAttributes(attribute.String("health.status", status))
	m.rpsGauge.Record(ctx, currentRPS, opt)
	m.depthGauge.Record(ctx, int64(queueDepth), opt)
}

// NewNoopMetrics returns a Metrics that records nothing.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordCacheLookup(context.Context, string)                          {}
func (noopMetrics) RecordAdmission(context.Context, string, bool)                      {}
func (noopMetrics) RecordExecution(context.Context, RequestMeta, time.Duration, error) {}
func (noopMetrics) RecordLimiter(context.Context, float64, int, string)                {}
