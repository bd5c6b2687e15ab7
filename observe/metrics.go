package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Cache and coalescing events recorded through Metrics.RecordEvent.
const (
	EventHit       = "hit"
	EventMiss      = "miss"
	EventCoalesced = "coalesced"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// Metrics records inference and prediction metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordInference records one model invocation.
	RecordInference(ctx context.Context, meta ModelMeta, duration time.Duration, err error)

	// RecordPrediction records one predict call end to end. source is
	// where the result came from (cache, computed, coalesced).
	RecordPrediction(ctx context.Context, meta ModelMeta, source string, duration time.Duration, err error)

	// RecordEvent counts one cache or coalescing event (see Event*).
	RecordEvent(ctx context.Context, event string)
}

// metricsImpl is the concrete implementation of Metrics.
type metricsImpl struct {
	meter          metric.Meter
	inferenceCount metric.Int64Counter
	inferenceErrs  metric.Int64Counter
	inferenceHist  metric.Float64Histogram
	predictHist    metric.Float64Histogram
	events         metric.Int64Counter
}

// NewMetrics creates the inference instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	return newMetrics(meter)
}

func newMetrics(meter metric.Meter) (*metricsImpl, error) {
	inferenceCount, err := meter.Int64Counter(
		"model.inference.total",
		metric.WithDescription("Total number of model invocations"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	inferenceErrs, err := meter.Int64Counter(
		"model.inference.errors",
		metric.WithDescription("Total number of failed model invocations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	inferenceHist, err := meter.Float64Histogram(
		"model.inference.duration_ms",
		metric.WithDescription("Model invocation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	predictHist, err := meter.Float64Histogram(
		"predict.duration_ms",
		metric.WithDescription("Predict call duration in milliseconds, by result source"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	events, err := meter.Int64Counter(
		"predict.events",
		metric.WithDescription("Cache and coalescing events"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		meter:          meter,
		inferenceCount: inferenceCount,
		inferenceErrs:  inferenceErrs,
		inferenceHist:  inferenceHist,
		predictHist:    predictHist,
		events:         events,
	}, nil
}

func modelAttrs(meta ModelMeta) []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("model.name", meta.Name)}
	if meta.Version != "" {
		attrs = append(attrs, attribute.String("model.version", meta.Version))
	}
	return attrs
}

// RecordInference records metrics for a model invocation.
func (m *metricsImpl) RecordInference(ctx context.Context, meta ModelMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(modelAttrs(meta)...)

	m.inferenceCount.Add(ctx, 1, opt)
	if err != nil {
		m.inferenceErrs.Add(ctx, 1, opt)
	}
	m.inferenceHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

// RecordPrediction records metrics for a predict call.
func (m *metricsImpl) RecordPrediction(ctx context.Context, meta ModelMeta, source string, duration time.Duration, err error) {
	attrs := append(modelAttrs(meta),
		attribute.String("source", source),
		attribute.Bool("error", err != nil),
	)
	m.predictHist.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(attrs...))
}

// RecordEvent counts a cache or coalescing event.
func (m *metricsImpl) RecordEvent(ctx context.Context, event string) {
	m.events.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

// Gauge reports a current value each time metrics are collected.
type Gauge struct {
	Name        string
	Description string
	Unit        string
	Value       func() int64
}

// RegisterGauges registers asynchronous gauges on meter.
func RegisterGauges(meter metric.Meter, gauges ...Gauge) error {
	for _, g := range gauges {
		value := g.Value
		_, err := meter.Int64ObservableGauge(g.Name,
			metric.WithDescription(g.Description),
			metric.WithUnit(g.Unit),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value())
				return nil
			}),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// noopMetrics is a metrics implementation that does nothing.
type noopMetrics struct{}

// NewNoopMetrics returns a Metrics that records nothing.
func NewNoopMetrics() Metrics { return &noopMetrics{} }

func (m *noopMetrics) RecordInference(ctx context.Context, meta ModelMeta, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordPrediction(ctx context.Context, meta ModelMeta, source string, duration time.Duration, err error) {
}

func (m *noopMetrics) RecordEvent(ctx context.Context, event string) {}
