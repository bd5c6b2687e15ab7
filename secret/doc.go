// Package secret resolves credentials referenced from configuration files
// so API keys and signing secrets never have to be written into them.
//
// Values are first expanded with ExpandEnvStrict, then any reference of the
// form secretref:<provider>:<ref> is replaced by the provider's value:
//
//	secretref:env:INFERQ_JWT_SECRET
//	secretref:file:/run/secrets/admin-key
//
// A reference may be the whole value or appear inline.
package secret
