package observe

import (
	"fmt"
	"io"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
)

// Config configures an Observer. Subsystems that are not Enabled get
// no-op implementations and their settings are not validated.
type Config struct {
	ServiceName string
	Version     string
	Tracing     TracingConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled bool

	// Exporter is one of otlp, jaeger, stdout or none.
	Exporter string

	// SamplePct is the fraction of root spans sampled, in [0, 1]. Child
	// spans follow their parent's decision.
	SamplePct float64
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled bool

	// Exporter is one of otlp, prometheus, stdout or none.
	Exporter string

	// Registerer receives the prometheus collector when Exporter is
	// "prometheus".
	// Default: prometheus.DefaultRegisterer
	Registerer prometheus.Registerer
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Enabled bool

	// Level is one of debug, info, warn or error.
	Level string

	// Writer receives log lines.
	// Default: os.Stderr
	Writer io.Writer
}

var (
	tracingExporters = []string{"otlp", "jaeger", "stdout", "none", ""}
	metricsExporters = []string{"otlp", "prometheus", "stdout", "none", ""}
	logLevels        = []string{"debug", "info", "warn", "error", ""}
)

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}
	if t := c.Tracing; t.Enabled {
		if !slices.Contains(tracingExporters, t.Exporter) {
			return fmt.Errorf("%w: %q", ErrInvalidTracingExporter, t.Exporter)
		}
		if t.SamplePct < 0 || t.SamplePct > 1 {
			return fmt.Errorf("%w: got %g", ErrInvalidSamplePct, t.SamplePct)
		}
	}
	if m := c.Metrics; m.Enabled && !slices.Contains(metricsExporters, m.Exporter) {
		return fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, m.Exporter)
	}
	if l := c.Logging; l.Enabled && !slices.Contains(logLevels, l.Level) {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, l.Level)
	}
	return nil
}
