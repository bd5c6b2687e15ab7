// Package auth guards the administrative surface of the inference service.
//
// Predictions are served to trusted in-process callers; only operations that
// change shared state (clearing the cache, preloading or unloading models,
// resetting statistics) go through an Authenticator and a Policy.
//
// Two authenticators are provided: APIKeyAuthenticator looks up SHA-256
// hashed keys from the X-API-Key header, and JWTAuthenticator validates
// HMAC-signed bearer tokens with github.com/golang-jwt/jwt/v5. Chain tries
// them in order.
//
// A Policy maps roles to "resource:action" permissions:
//
//	policy := auth.DefaultPolicy()
//	err := policy.Authorize(id, auth.ResourceCache, auth.ActionClear)
//	if errors.Is(err, auth.ErrForbidden) { ... }
package auth
