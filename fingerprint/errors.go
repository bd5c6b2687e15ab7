package fingerprint

import (
	"errors"
	"fmt"
)

// ErrInvalidInput indicates a request failed normalization or schema validation.
var ErrInvalidInput = errors.New("fingerprint: invalid input")

// ErrInvalidModel indicates the model name cannot be used in a fingerprint.
var ErrInvalidModel = errors.New("fingerprint: invalid model name")

// InputError describes why a single input field was rejected.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: field %q: %s", e.Field, e.Reason)
}

// Is reports whether target is ErrInvalidInput.
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}
