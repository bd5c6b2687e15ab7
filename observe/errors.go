package observe

import "errors"

var (
	// ErrMissingServiceName is returned when Config.ServiceName is empty.
	ErrMissingServiceName = errors.New("observe: service name is required")

	// ErrInvalidSamplePct is returned when Tracing.SamplePct is outside [0, 1].
	ErrInvalidSamplePct = errors.New("observe: sample percentage must be between 0 and 1")

	// ErrInvalidTracingExporter is returned for an unknown tracing exporter.
	ErrInvalidTracingExporter = errors.New("observe: invalid tracing exporter")

	// ErrInvalidMetricsExporter is returned for an unknown metrics exporter.
	ErrInvalidMetricsExporter = errors.New("observe: invalid metrics exporter")

	// ErrInvalidLogLevel is returned for an unknown log level.
	ErrInvalidLogLevel = errors.New("observe: invalid log level")

	// ErrNilObserver is returned when a nil Observer is passed.
	ErrNilObserver = errors.New("observe: observer is nil")
)

// RedactedFields lists field keys whose values loggers replace with
// "[REDACTED]". Prediction inputs carry health attributes.
var RedactedFields = []string{
	"input",
	"inputs",
	"features",
	"password",
	"secret",
	"token",
	"api_key",
	"apiKey",
	"authorization",
	"credential",
}
