// Package registry loads and holds versioned prediction models.
//
// A Registry sits in front of a Provider. It resolves an empty version to
// the provider's latest, keeps at most one resident model per
// (name, version), and merges concurrent loads of the same model so the
// provider constructs it once. Preload warms a set of models concurrently
// and reports a per-model outcome; one failure never aborts the others.
//
// A model that cannot be obtained is reported as ErrModelUnavailable. The
// registry never substitutes a different model or version.
package registry
