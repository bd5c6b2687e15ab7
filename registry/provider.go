package registry

import (
	"context"

	"github.com/jonwraymond/inferq/fingerprint"
)

// Model is a loaded, callable prediction model.
//
// Contract:
// - Concurrency: Predict must be safe for concurrent use.
// - Determinism: equal inputs should produce equal outputs; results are
// cached by input fingerprint.
// - Ownership: Predict must not retain or mutate input, and the returned
// map belongs to the caller.
type Model interface {
	Predict(ctx context.Context, input fingerprint.Input) (map[string]any, error)
}

// Provider resolves and constructs models.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: unknown names or versions should wrap ErrUnknownModel or
// ErrUnknownVersion; the registry wraps every provider error in a
// *ModelError.
// - Load may be slow; the registry never holds a lock while calling it.
type Provider interface {
	// Latest returns the current version of the named model.
	Latest(ctx context.Context, name string) (string, error)

	// Load constructs the named model at version.
	Load(ctx context.Context, name, version string) (Model, error)
}

// ModelFunc adapts a function to the Model interface.
type ModelFunc func(ctx context.Context, input fingerprint.Input) (map[string]any, error)

// Predict calls f.
func (f ModelFunc) Predict(ctx context.Context, input fingerprint.Input) (map[string]any, error) {
	return f(ctx, input)
}
