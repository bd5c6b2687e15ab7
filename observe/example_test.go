package observe_test

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jonwraymond/inferq/fingerprint"
	"github.com/jonwraymond/inferq/observe"
)

func ExampleNewObserver() {
	obs, err := observe.NewObserver(context.Background(), observe.Config{
		ServiceName: "inferqd",
		Version:     "1.0.0",
		Tracing:     observe.TracingConfig{Enabled: true, Exporter: "none", SamplePct: 0.1},
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "none"},
	})
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	defer obs.Shutdown(context.Background())

	fmt.Println(obs.Tracer() != nil, obs.Meter() != nil)
	// Output: true true
}

func ExampleConfig_Validate() {
	cfg := observe.Config{
		ServiceName: "inferqd",
		Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "statsd"},
	}
	err := cfg.Validate()
	fmt.Println(errors.Is(err, observe.ErrInvalidMetricsExporter))
	// Output: true
}

func ExampleModelMeta_SpanName() {
	meta := observe.ModelMeta{Name: "stroke", Version: "1.2.0"}
	fmt.Println(meta.SpanName())
	fmt.Println(meta.ModelID())
	// Output:
	// model.predict.stroke
	// stroke@1.2.0
}

func ExampleMiddleware_Wrap() {
	mw := observe.NewNoopMiddleware()

	predict := mw.Wrap(func(ctx context.Context, meta observe.ModelMeta, in fingerprint.Input) (map[string]any, error) {
		return map[string]any{"risk": "moderate"}, nil
	})

	out, err := predict(context.Background(), observe.ModelMeta{Name: "stroke"}, fingerprint.Input{"age": 61})
	fmt.Println(out["risk"], err)
	// Output: moderate <nil>
}

func ExampleParseLogLevel() {
	fmt.Println(observe.ParseLogLevel("warn"))
	fmt.Println(observe.ParseLogLevel("unknown"))
	// Output:
	// warn
	// info
}

func ExampleNewLoggerWithWriter() {
	logger := observe.NewLoggerWithWriter("error", os.Stdout)
	// Below the configured level: nothing is written.
	logger.Info(context.Background(), "cache warmed")
	fmt.Println("done")
	// Output: done
}
