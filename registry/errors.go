package registry

import (
	"errors"
	"fmt"
)

// ErrModelUnavailable is returned when a model is unknown, its version
// cannot be resolved, or its provider fails to construct it.
var ErrModelUnavailable = errors.New("registry: model unavailable")

// ModelError records the model and cause of a failed resolution or load.
type ModelError struct {
	Name    string
	Version string
	Cause   error
}

func (e *ModelError) Error() string {
	ref := e.Name
	if e.Version != "" {
		ref += "@" + e.Version
	}
	if e.Cause == nil {
		return fmt.Sprintf("registry: model %s unavailable", ref)
	}
	return fmt.Sprintf("registry: model %s unavailable: %v", ref, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ModelError) Unwrap() error { return e.Cause }

// Is reports ErrModelUnavailable for every ModelError.
func (e *ModelError) Is(target error) bool { return target == ErrModelUnavailable }

// ErrUnknownModel is a convenience cause for providers that do not serve a
// model name.
var ErrUnknownModel = errors.New("registry: unknown model")

// ErrUnknownVersion is a convenience cause for providers that do not serve
// a version of a known model.
var ErrUnknownVersion = errors.New("registry: unknown version")
