// Package fingerprint derives stable cache keys from prediction requests.
//
// Input values are normalized before hashing so that requests differing only
// in superficial formatting (field order, trailing zeros, letter case, extra
// whitespace) collapse onto the same Fingerprint, while any change in model,
// resolved version or a field value produces a different one.
package fingerprint
