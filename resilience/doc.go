// Package resilience protects model providers and storage backends.
//
// It implements the small set of patterns the prediction path needs:
//
//   - CircuitBreaker / BreakerSet: stop invoking a model that keeps failing
//     and try it again after a cool-down.
//   - Bulkhead: cap the number of model invocations running at once.
//   - Retry: retry transient storage faults with backoff.
//   - RateLimiter: token bucket for administrative operations.
//   - Guard: composes a Bulkhead with a per-resource BreakerSet.
//
// # Usage
//
//	guard := resilience.NewGuard(
//	    resilience.NewBulkhead(resilience.BulkheadConfig{MaxConcurrent: 16, MaxWait: time.Second}),
//	    resilience.NewBreakerSet(resilience.CircuitBreakerConfig{MaxFailures: 5}),
//	)
//
//	err := guard.Execute(ctx, "stroke@1.2.0", func(ctx context.Context) error {
//	    out, err = model.Predict(ctx, input)
//	    return err
//	})
package resilience
