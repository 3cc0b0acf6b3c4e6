package observe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	return m, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

func sumInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	found := findMetric(rm, name)
	if found == nil {
		t.Fatalf("%s metric not found", name)
	}
	sum, ok := found.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("%s: expected Sum[int64], got %T", name, found.Data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetrics_ExecutionCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()
	meta := RequestMeta{Method: "search", Priority: "normal"}

	m.RecordExecution(ctx, meta, 100*time.Millisecond, nil)
	m.RecordExecution(ctx, meta, 50*time.Millisecond, errors.New("boom"))

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "toolgate.exec.total"); got != 2 {
		t.Errorf("toolgate.exec.total = %d, want 2", got)
	}
	if got := sumInt64(t, rm, "toolgate.exec.errors"); got != 1 {
		t.Errorf("toolgate.exec.errors = %d, want 1", got)
	}

	hist := findMetric(rm, "toolgate.exec.duration_ms")
	if hist == nil {
		t.Fatal("toolgate.exec.duration_ms metric not found")
	}
	data, ok := hist.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("expected Histogram[float64], got %T", hist.Data)
	}
	if len(data.DataPoints) != 1 || data.DataPoints[0].Count != 2 {
		t.Errorf("unexpected histogram data points: %+v", data.DataPoints)
	}
}

func TestMetrics_ExecutionAttributes(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordExecution(context.Background(), RequestMeta{Method: "search", Priority: "high"}, time.Millisecond, nil)

	rm := collect(t, reader)
	sum := findMetric(rm, "toolgate.exec.total").Data.(metricdata.Sum[int64])
	attrs := sum.DataPoints[0].Attributes

	if v, ok := attrs.Value(attribute.Key("request.method")); !ok || v.AsString() != "search" {
		t.Errorf("request.method = %v, want search", v)
	}
	if v, ok := attrs.Value(attribute.Key("request.priority")); !ok || v.AsString() != "high" {
		t.Errorf("request.priority = %v, want high", v)
	}
}

func TestMetrics_CacheAndAdmission(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCacheLookup(ctx, "l1")
	m.RecordCacheLookup(ctx, "l2")
	m.RecordCacheLookup(ctx, "none")
	m.RecordAdmission(ctx, "low", false)
	m.RecordAdmission(ctx, "critical", true)

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "toolgate.cache.lookups"); got != 3 {
		t.Errorf("toolgate.cache.lookups = %d, want 3", got)
	}
	if got := sumInt64(t, rm, "toolgate.admission.decisions"); got != 2 {
		t.Errorf("toolgate.admission.decisions = %d, want 2", got)
	}
}

func TestMetrics_LimiterGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	m.RecordLimiter(context.Background(), 42.5, 7, "normal")

	rm := collect(t, reader)
	rps := findMetric(rm, "toolgate.limiter.rps")
	if rps == nil {
		t.Fatal("toolgate.limiter.rps not found")
	}
	gauge, ok := rps.Data.(metricdata.Gauge[float64])
	if !ok {
		t.Fatalf("expected Gauge[float64], got %T", rps.Data)
	}
	if gauge.DataPoints[0].Value != 42.5 {
		t.Errorf("rps = %v, want 42.5", gauge.DataPoints[0].Value)
	}

	depth := findMetric(rm, "toolgate.queue.depth").Data.(metricdata.Gauge[int64])
	if depth.DataPoints[0].Value != 7 {
		t.Errorf("queue depth = %v, want 7", depth.DataPoints[0].Value)
	}
}

func TestMetrics_ConcurrentRecording(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	const goroutines = 20
	const perGoroutine = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				m.RecordExecution(ctx, RequestMeta{Method: "m"}, time.Millisecond, nil)
			}
		}()
	}
	wg.Wait()

	rm := collect(t, reader)
	if got := sumInt64(t, rm, "toolgate.exec.total"); got != goroutines*perGoroutine {
		t.Errorf("toolgate.exec.total = %d, want %d", got, goroutines*perGoroutine)
	}
}

func TestNoopMetrics_NoPanic(t *testing.T) {
	m := NewNoopMetrics()
	ctx := context.Background()
	m.RecordCacheLookup(ctx, "l1")
	m.RecordAdmission(ctx, "low", false)
	m.RecordExecution(ctx, RequestMeta{}, 0, errors.New("x"))
	m.RecordLimiter(ctx, 1, 1, "healthy")
}
