package predict

import (
	"time"

	"github.com/jonwraymond/inferq/fingerprint"
)

// Request asks a model for a prediction. The facade never modifies it.
type Request struct {
	Model   string            `json:"model"`
	Version string            `json:"version,omitempty"` // empty means latest
	Input   fingerprint.Input `json:"input"`
}

// Source tells where a result came from.
type Source string

const (
	// SourceCache means the result was read from the cache.
	SourceCache Source = "cache"
	// SourceComputed means this call ran the model.
	SourceComputed Source = "computed"
	// SourceCoalesced means this call shared another call's computation.
	SourceCoalesced Source = "coalesced"
)

// Result is a prediction. Output is owned by the caller.
type Result struct {
	Output      map[string]any          `json:"output"`
	Model       string                  `json:"model"`
	Version     string                  `json:"version"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	Source      Source                  `json:"source"`
	ComputedAt  time.Time               `json:"computed_at"`
}

// Option adjusts a single Predict call.
type Option func(*options)

type options struct {
	forceRefresh bool
	version      string
}

// WithForceRefresh skips the cache read and runs the model again. The new
// result still replaces the cached one, and concurrent forced refreshes of
// the same request still share one computation.
func WithForceRefresh() Option {
	return func(o *options) { o.forceRefresh = true }
}

// WithVersion selects a model version, overriding Request.Version.
func WithVersion(v string) Option {
	return func(o *options) { o.version = v }
}

// record is the cached form of a result.
type record struct {
	Output     map[string]any `json:"output"`
	ComputedAt time.Time      `json:"computed_at"`
}
