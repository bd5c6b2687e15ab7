package observe

import (
	"context"
	"time"

	"github.com/jonwraymond/inferq/fingerprint"
)

// InferFunc is the signature for model invocations that Middleware wraps.
type InferFunc func(ctx context.Context, meta ModelMeta, input fingerprint.Input) (map[string]any, error)

// Middleware wraps model invocations with observability (tracing, metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe InferFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from wrapped function are recorded and propagated unchanged.
//   - Ownership: Input/output values are passed through without modification.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// NewNoopMiddleware returns a Middleware that records nothing.
func NewNoopMiddleware() *Middleware {
	return NewMiddleware(NewNoopTracer(), NewNoopMetrics(), NewNoopLogger())
}

// Wrap wraps an InferFunc with tracing, metrics, and logging.
func (m *Middleware) Wrap(fn InferFunc) InferFunc {
	return func(ctx context.Context, meta ModelMeta, input fingerprint.Input) (map[string]any, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)

		start := time.Now()
		out, err := fn(ctx, meta, input)
		duration := time.Since(start)

		m.tracer.EndSpan(span, err)
		m.metrics.RecordInference(ctx, meta, duration, err)

		logger := m.logger.WithModel(meta)
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			logger.Error(ctx, "model inference failed", fields...)
		} else {
			logger.Debug(ctx, "model inference completed", fields...)
		}

		return out, err
	}
}

// Metrics returns the metrics sink.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the logger.
func (m *Middleware) Logger() Logger { return m.logger }

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
