package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// RequestMeta describes a governed request for telemetry purposes.
// Parameters are deliberately absent: they never reach telemetry sinks.
type RequestMeta struct {
	Method      string   // Downstream method name (required)
	Priority    string   // Scheduling priority (optional)
	Fingerprint string   // Cache key of the request (optional)
	Tags        []string // Request tags (optional)
}

// SpanName returns the deterministic span name for this request.
// Format: toolgate.invoke.<method>
func (m RequestMeta) SpanName() string {
	return "toolgate.invoke." + m.Method
}

func (m RequestMeta) fields() []Field {
	fields := []Field{{Key: "request.method", Value: m.Method}}
	if m.Priority != "" {
		fields = append(fields, Field{Key: "request.priority", Value: m.Priority})
	}
	if m.Fingerprint != "" {
		fields = append(fields, Field{Key: "request.fingerprint", Value: m.Fingerprint})
	}
	return fields
}

func (m RequestMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("request.method", m.Method),
	}
	if m.Priority != "" {
		attrs = append(attrs, attribute.String("request.priority", m.Priority))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with request-specific span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a downstream invocation.
	StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with request metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("request.error", false))
	if meta.Fingerprint != "" {
		attrs = append(attrs, attribute.String("request.fingerprint", meta.Fingerprint))
	}
	if len(meta.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("request.tags", meta.Tags))
	}

	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("request.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NewNoopTracer creates a tracer whose spans are discarded.
func NewNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta RequestMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
