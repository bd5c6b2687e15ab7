package secret

import "errors"

var (
	// ErrMissingEnv indicates a ${VAR} reference to an unset variable.
	ErrMissingEnv = errors.New("secret: missing environment variable")

	// ErrUnknownProvider indicates a reference to an unregistered provider.
	ErrUnknownProvider = errors.New("secret: unknown provider")

	// ErrNotFound indicates a provider has no value for a reference.
	ErrNotFound = errors.New("secret: not found")

	// ErrEmpty indicates a strict resolver received an empty value.
	ErrEmpty = errors.New("secret: empty value")
)
