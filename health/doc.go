// Package health reports whether the inference service can serve traffic.
//
// A Checker reports one component: the prediction path, the result cache
// backend, process memory, or a load gauge such as in-flight computations.
// An Aggregator runs every registered checker with a shared timeout and
// folds the results into one Status:
//
//	agg := health.NewAggregator()
//	agg.Register(svc.HealthChecker())
//	agg.Register(health.NewPingChecker("cache", store))
//	agg.Register(health.NewThresholdChecker(health.ThresholdConfig{
//	    Name:     "in_flight",
//	    Value:    func() float64 { return float64(svc.Stats().InFlight) },
//	    Warning:  64,
//	    Critical: 128,
//	}))
//
// Degraded components keep the service ready; an unhealthy one takes it out
// of rotation. RegisterHandlers mounts the check endpoints:
//
//	/healthz          liveness, always 200 while the process serves HTTP
//	/readyz           200 unless a check is unhealthy
//	/health           JSON report of every check
//	/health/{name}    JSON report of one check
package health
