// Package observe provides observability primitives for model inference.
//
// It is a pure instrumentation library: no inference, no transport, no I/O
// beyond exporter setup. The prediction facade wraps model invocations with
// Middleware and mirrors its cache counters through Metrics.RecordEvent.
package observe
