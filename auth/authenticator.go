package auth

import (
	"context"
	"errors"
	"net/http"
)

// Authenticator turns request credentials into an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: a request without this authenticator's credentials returns an
// error wrapping ErrMissingCredentials; rejected credentials wrap
// ErrInvalidCredentials, ErrTokenExpired or ErrTokenMalformed. Any other
// error is an internal fault.
type Authenticator interface {
	Name() string
	Authenticate(ctx context.Context, header http.Header) (*Identity, error)
}

// Chain tries each authenticator in order and returns the first identity.
// Authenticators whose credentials are absent are skipped; the first
// rejection is returned if none succeeds.
type Chain []Authenticator

// Name returns "chain".
func (c Chain) Name() string { return "chain" }

// Authenticate implements Authenticator.
func (c Chain) Authenticate(ctx context.Context, header http.Header) (*Identity, error) {
	var rejected error
	for _, a := range c {
		id, err := a.Authenticate(ctx, header)
		if err == nil {
			return id, nil
		}
		if errors.Is(err, ErrMissingCredentials) {
			continue
		}
		if rejected == nil {
			rejected = err
		}
	}
	if rejected != nil {
		return nil, rejected
	}
	return nil, ErrMissingCredentials
}

// IsRejection reports whether err means the caller failed authentication,
// as opposed to an internal fault.
func IsRejection(err error) bool {
	return errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrInvalidCredentials) ||
		errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrTokenMalformed)
}

var _ Authenticator = Chain(nil)
