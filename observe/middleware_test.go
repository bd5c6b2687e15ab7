package observe

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonwraymond/inferq/fingerprint"
)

type mwFixture struct {
	mw     *Middleware
	spans  *tracetest.SpanRecorder
	reader *sdkmetric.ManualReader
	logs   *bytes.Buffer
}

func newMiddlewareFixture(t *testing.T) mwFixture {
	t.Helper()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := newMetrics(mp.Meter("test"))
	if err != nil {
		t.Fatal(err)
	}

	var logs bytes.Buffer
	mw := NewMiddleware(NewTracer(tp.Tracer("test")), metrics, NewLoggerWithWriter("debug", &logs))
	return mwFixture{mw: mw, spans: spans, reader: reader, logs: &logs}
}

func TestMiddleware_SuccessPath(t *testing.T) {
	f := newMiddlewareFixture(t)
	meta := ModelMeta{Name: "stroke", Version: "1.2.0"}
	input := fingerprint.Input{"age": 61.0, "smoker": "no"}

	wrapped := f.mw.Wrap(func(ctx context.Context, m ModelMeta, in fingerprint.Input) (map[string]any, error) {
		return map[string]any{"risk": "moderate"}, nil
	})
	out, err := wrapped(context.Background(), meta, input)
	if err != nil {
		t.Fatalf("wrapped() error = %v", err)
	}
	if out["risk"] != "moderate" {
		t.Errorf("out = %v", out)
	}

	if spans := f.spans.Ended(); len(spans) != 1 || spans[0].Name() != "model.predict.stroke" {
		t.Errorf("spans = %v", spans)
	}
	rm := collect(t, f.reader)
	if got := sumValue(t, rm, "model.inference.total", attribute.String("model.name", "stroke")); got != 1 {
		t.Errorf("model.inference.total = %d, want 1", got)
	}
	entries := decodeLines(t, f.logs)
	if len(entries) != 1 || entries[0]["msg"] != "model inference completed" || entries[0]["level"] != "debug" {
		t.Errorf("log entries = %v", entries)
	}
}

func TestMiddleware_ErrorPath(t *testing.T) {
	f := newMiddlewareFixture(t)
	wantErr := errors.New("weights missing")

	wrapped := f.mw.Wrap(func(context.Context, ModelMeta, fingerprint.Input) (map[string]any, error) {
		return nil, wantErr
	})
	_, err := wrapped(context.Background(), ModelMeta{Name: "stroke"}, fingerprint.Input{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}

	rm := collect(t, f.reader)
	if got := sumValue(t, rm, "model.inference.errors", attribute.String("model.name", "stroke")); got != 1 {
		t.Errorf("model.inference.errors = %d, want 1", got)
	}
	entries := decodeLines(t, f.logs)
	if len(entries) != 1 || entries[0]["level"] != "error" || entries[0]["error"] != "weights missing" {
		t.Errorf("log entries = %v", entries)
	}
}

func TestMiddleware_DoesNotMutateInput(t *testing.T) {
	f := newMiddlewareFixture(t)
	input := fingerprint.Input{"age": 61.0, "bmi": 27.4}
	snapshot := input.Clone()

	wrapped := f.mw.Wrap(func(_ context.Context, _ ModelMeta, in fingerprint.Input) (map[string]any, error) {
		return map[string]any{"n": len(in)}, nil
	})
	_, _ = wrapped(context.Background(), ModelMeta{Name: "stroke"}, input)

	if !reflect.DeepEqual(input, snapshot) {
		t.Errorf("input mutated: %v", input)
	}
}

func TestMiddleware_PropagatesSpanContext(t *testing.T) {
	f := newMiddlewareFixture(t)

	wrapped := f.mw.Wrap(func(ctx context.Context, _ ModelMeta, _ fingerprint.Input) (map[string]any, error) {
		if !spanFromContextValid(ctx) {
			return nil, errors.New("span context missing")
		}
		return nil, nil
	})
	if _, err := wrapped(context.Background(), ModelMeta{Name: "stroke"}, nil); err != nil {
		t.Error(err)
	}
}

func TestMiddleware_MeasuresDuration(t *testing.T) {
	f := newMiddlewareFixture(t)

	wrapped := f.mw.Wrap(func(context.Context, ModelMeta, fingerprint.Input) (map[string]any, error) {
		time.Sleep(20 * time.Millisecond)
		return nil, nil
	})
	_, _ = wrapped(context.Background(), ModelMeta{Name: "stroke"}, nil)

	entries := decodeLines(t, f.logs)
	if d, ok := entries[0]["duration_ms"].(float64); !ok || d < 20 {
		t.Errorf("duration_ms = %v, want >= 20", entries[0]["duration_ms"])
	}
}

func TestNoopMiddleware(t *testing.T) {
	mw := NewNoopMiddleware()
	wrapped := mw.Wrap(func(context.Context, ModelMeta, fingerprint.Input) (map[string]any, error) {
		return map[string]any{"ok": true}, nil
	})
	out, err := wrapped(context.Background(), ModelMeta{Name: "noop"}, nil)
	if err != nil || out["ok"] != true {
		t.Errorf("wrapped() = (%v, %v)", out, err)
	}
	if mw.Metrics() == nil || mw.Logger() == nil {
		t.Error("accessors should return non-nil sinks")
	}
}

func spanFromContextValid(ctx context.Context) bool {
	return trace.SpanContextFromContext(ctx).IsValid()
}
