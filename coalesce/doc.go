// Package coalesce merges concurrent computations that share a key.
//
// A Group runs at most one computation per key at a time. The first caller
// for a key becomes the leader and starts the computation; callers that
// arrive while it is running attach to it and receive the same value or the
// same error. Once the computation finishes the key is forgotten, so the
// next caller starts a new generation.
//
// Unlike golang.org/x/sync/singleflight, a Group:
//
//   - runs the computation on its own goroutine with a context detached from
//     the leader's cancellation, so a caller that gives up never aborts work
//     other callers are waiting on;
//   - publishes a successful value through Config.Commit while the key is
//     still held, so a result store can be populated before the key becomes
//     free again;
//   - fails computations that outlive Config.MaxDuration with
//     ErrStaleInFlight and discards their late results.
//
// # Usage
//
//	g := coalesce.New(coalesce.Config[*Result]{
//	    MaxDuration: 30 * time.Second,
//	    Commit: func(key string, r *Result) { store.Put(key, r) },
//	})
//
//	res, outcome, err := g.Do(ctx, key, func(ctx context.Context) (*Result, error) {
//	    return compute(ctx)
//	})
package coalesce
