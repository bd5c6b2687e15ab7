package provider

import (
	"context"
	"math"
	"time"

	"github.com/jonwraymond/inferq/fingerprint"
	"github.com/jonwraymond/inferq/registry"
)

// StrokeSchema describes the inputs accepted by the stroke scorers.
func StrokeSchema() fingerprint.Schema {
	return fingerprint.Schema{Fields: map[string]fingerprint.Field{
		"age":           {Kind: fingerprint.KindNumber, Required: true, Min: fingerprint.Bound(0), Max: fingerprint.Bound(130)},
		"bmi":           {Kind: fingerprint.KindNumber, Min: fingerprint.Bound(10), Max: fingerprint.Bound(80)},
		"glucose":       {Kind: fingerprint.KindNumber, Min: fingerprint.Bound(40), Max: fingerprint.Bound(400)},
		"smoker":        {Kind: fingerprint.KindString, Allowed: []string{"yes", "no", "former"}},
		"hypertension":  {Kind: fingerprint.KindBool},
		"heart_disease": {Kind: fingerprint.KindBool},
	}}
}

// StrokeV1 scores age, BMI, smoking and hypertension with a logistic model.
func StrokeV1() registry.Model {
	return registry.ModelFunc(func(ctx context.Context, in fingerprint.Input) (map[string]any, error) {
		return strokeScore(in, false), ctx.Err()
	})
}

// StrokeV2 adds glucose and heart disease to StrokeV1.
func StrokeV2() registry.Model {
	return registry.ModelFunc(func(ctx context.Context, in fingerprint.Input) (map[string]any, error) {
		return strokeScore(in, true), ctx.Err()
	})
}

func strokeScore(in fingerprint.Input, extended bool) map[string]any {
	num := func(k string, def float64) float64 {
		if v, ok := in[k].(float64); ok {
			return v
		}
		return def
	}
	flag := func(k string) float64 {
		if v, ok := in[k].(bool); ok && v {
			return 1
		}
		return 0
	}

	z := -7.5 + 0.075*num("age", 0) + 0.03*(num("bmi", 25)-25) + 0.9*flag("hypertension")
	switch in["smoker"] {
	case "yes":
		z += 0.6
	case "former":
		z += 0.25
	}
	if extended {
		z += 0.006*(num("glucose", 100)-100) + 0.8*flag("heart_disease")
	}

	p := 1 / (1 + math.Exp(-z))
	p = math.Round(p*10000) / 10000
	return map[string]any{"score": p, "risk": riskBand(p)}
}

func riskBand(p float64) string {
	switch {
	case p >= 0.2:
		return "high"
	case p >= 0.05:
		return "moderate"
	default:
		return "low"
	}
}

// WithLatency delays every prediction of m by d, honoring cancellation.
// It stands in for a remote model server in demos and load tests.
func WithLatency(m registry.Model, d time.Duration) registry.Model {
	if d <= 0 {
		return m
	}
	return registry.ModelFunc(func(ctx context.Context, in fingerprint.Input) (map[string]any, error) {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return m.Predict(ctx, in)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

// Builtin returns a provider serving "stroke" at v1 and v2 (latest), each
// delayed by latency.
func Builtin(latency time.Duration) *Static {
	return NewStatic().
		Register("stroke", "v1", WithLatency(StrokeV1(), latency)).
		Register("stroke", "v2", WithLatency(StrokeV2(), latency))
}
