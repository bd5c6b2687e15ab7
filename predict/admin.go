package predict

import (
	"context"
	"fmt"

	"github.com/jonwraymond/inferq/coalesce"
	"github.com/jonwraymond/inferq/health"
	"github.com/jonwraymond/inferq/observe"
	"github.com/jonwraymond/inferq/registry"
	"github.com/jonwraymond/inferq/resilience"
	"github.com/jonwraymond/inferq/stats"
)

// PreloadModels loads each named model ahead of traffic. Names take the
// form "name" (latest) or "name@version". A failure for one model does not
// stop the others; the report maps each name to its error, or nil.
func (s *Service) PreloadModels(ctx context.Context, names []string) registry.Report {
	refs := make([]registry.Ref, 0, len(names))
	for _, n := range names {
		refs = append(refs, registry.ParseRef(n))
	}
	report := s.registry.Preload(ctx, refs)
	if failed := report.Failed(); len(failed) > 0 {
		s.logger.Warn(ctx, "preload incomplete",
			observe.Field{Key: "failed", Value: failed},
			observe.Field{Key: "requested", Value: len(names)},
		)
	}
	return report
}

// Stats returns a snapshot of the counters and the current cache size.
func (s *Service) Stats() stats.Snapshot {
	return s.stats.Snapshot()
}

// ResetStats zeroes the counters. Cached results and in-flight work are
// not affected.
func (s *Service) ResetStats() {
	s.stats.Reset()
}

// ClearCache drops every cached result and returns how many were removed.
// Computations in flight are not cancelled and commit their result when
// they finish.
func (s *Service) ClearCache(ctx context.Context) (int, error) {
	n, err := s.cfg.Cache.Clear(ctx)
	if err != nil {
		return n, fmt.Errorf("predict: clear cache: %w", err)
	}
	s.logger.Info(ctx, "cache cleared", observe.Field{Key: "removed", Value: n})
	return n, nil
}

// UnloadModel evicts a resident model and forgets its circuit breaker.
func (s *Service) UnloadModel(name, version string) bool {
	if s.cfg.Guard != nil && s.cfg.Guard.Breakers() != nil {
		s.cfg.Guard.Breakers().Remove(registry.Ref{Name: name, Version: version}.String())
	}
	return s.registry.Unload(name, version)
}

// Models lists the resident models.
func (s *Service) Models() []registry.LoadedModel {
	return s.registry.Models()
}

// InFlight lists the computations currently running.
func (s *Service) InFlight() []coalesce.InFlight {
	return s.group.InFlight()
}

// Breakers returns a snapshot of every model circuit breaker, or nil when
// no breakers are configured.
func (s *Service) Breakers() []resilience.CircuitBreakerMetrics {
	if s.cfg.Guard == nil || s.cfg.Guard.Breakers() == nil {
		return nil
	}
	return s.cfg.Guard.Breakers().Metrics()
}

// HealthChecker reports the service unhealthy when the cache cannot be
// reached and degraded while any model circuit is open.
func (s *Service) HealthChecker() health.Checker {
	return health.NewCheckerFunc("predict", func(ctx context.Context) health.Result {
		if p, ok := s.cfg.Cache.(health.Pinger); ok {
			if err := p.Ping(ctx); err != nil {
				return health.Unhealthy("cache unreachable", err)
			}
		}

		snap := s.stats.Snapshot()
		details := map[string]any{
			"cache_size": snap.CacheSize,
			"in_flight":  snap.InFlight,
			"models":     len(s.registry.Models()),
		}

		var open []string
		for _, m := range s.Breakers() {
			if m.State == resilience.StateOpen {
				open = append(open, m.Name)
			}
		}
		if len(open) > 0 {
			details["open_circuits"] = open
			return health.Degraded(fmt.Sprintf("%d model circuit(s) open", len(open))).WithDetails(details)
		}
		return health.Healthy("serving").WithDetails(details)
	})
}
