package auth

import (
	"errors"
	"fmt"
)

// Sentinel errors for authentication and authorization.
var (
	ErrMissingCredentials = errors.New("auth: missing credentials")
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
	ErrTokenExpired       = errors.New("auth: token expired")
	ErrTokenMalformed     = errors.New("auth: token malformed")

	ErrForbidden = errors.New("auth: access denied")
)

// AuthzError describes a denied admin operation.
type AuthzError struct {
	Principal string
	Resource  Resource
	Action    Action
	Reason    string
}

func (e *AuthzError) Error() string {
	return fmt.Sprintf("auth: %s may not %s %s: %s", e.Principal, e.Action, e.Resource, e.Reason)
}

// Is reports ErrForbidden for every AuthzError.
func (e *AuthzError) Is(target error) bool { return target == ErrForbidden }
