// Package server exposes a predict.Service over HTTP.
//
// Routes:
//
//	POST   /v1/models/{model}/predict          run or fetch a prediction
//	GET    /admin/stats                        counters and cache size
//	POST   /admin/stats/reset                  zero the counters
//	POST   /admin/cache/clear                  drop every cached result
//	GET    /admin/models                       resident models and breakers
//	POST   /admin/models/preload               load models ahead of traffic
//	DELETE /admin/models/{name}/{version}      evict a resident model
//	GET    /healthz, /readyz, /health          health checks (package health)
//	GET    /metrics                            Prometheus scrape endpoint
//
// Admin routes are rate limited, authenticated and authorized against an
// auth.Policy. Every response carries an X-Request-ID.
package server
