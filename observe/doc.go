// Package observe provides observability primitives for governed requests.
//
// It is a pure instrumentation library: a JSON structured Logger (with a zap
// adapter), OpenTelemetry Metrics and Tracer for cache, admission and
// downstream invocation events, and an Observer that wires exporters.
// Request parameters never reach a sink; RequestMeta carries only the
// method, priority, fingerprint and tags.
package observe
