package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/inferq/auth"
	"github.com/jonwraymond/inferq/health"
	"github.com/jonwraymond/inferq/observe"
	"github.com/jonwraymond/inferq/predict"
	"github.com/jonwraymond/inferq/resilience"
)

// Options configures a Server.
type Options struct {
	// Service answers predictions. Required.
	Service *predict.Service

	// Health backs the health check endpoints.
	// Default: an aggregator holding Service.HealthChecker()
	Health *health.Aggregator

	// Authenticator guards admin routes. Nil leaves them open, which is
	// only suitable for local development.
	Authenticator auth.Authenticator

	// Policy authorizes admin routes.
	// Default: auth.DefaultPolicy() (used when it names no roles)
	Policy auth.Policy

	// AdminLimiter throttles admin routes.
	// Default: none
	AdminLimiter *resilience.RateLimiter

	// Gatherer is served on /metrics.
	// Default: prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer

	// Logger records requests.
	// Default: observe.NewNoopLogger()
	Logger observe.Logger

	// MaxBodyBytes bounds request bodies.
	// Default: 1 MiB
	MaxBodyBytes int64
}

// Server is the HTTP surface of the inference cache.
type Server struct {
	opts    Options
	handler http.Handler
}

// New creates a Server.
func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("server: service is required")
	}
	if opts.Health == nil {
		opts.Health = health.NewAggregator()
		opts.Health.Register(opts.Service.HealthChecker())
	}
	if len(opts.Policy.Roles) == 0 {
		opts.Policy = auth.DefaultPolicy()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	if opts.Logger == nil {
		opts.Logger = observe.NewNoopLogger()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}

	s := &Server{opts: opts}
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/models/{model}/predict", s.handlePredict)

	mux.Handle("GET /admin/stats", s.admin(auth.ResourceStats, auth.ActionRead, s.handleStats))
	mux.Handle("POST /admin/stats/reset", s.admin(auth.ResourceStats, auth.ActionReset, s.handleResetStats))
	mux.Handle("POST /admin/cache/clear", s.admin(auth.ResourceCache, auth.ActionClear, s.handleClearCache))
	mux.Handle("GET /admin/models", s.admin(auth.ResourceModels, auth.ActionRead, s.handleModels))
	mux.Handle("POST /admin/models/preload", s.admin(auth.ResourceModels, auth.ActionPreload, s.handlePreload))
	mux.Handle("DELETE /admin/models/{name}/{version}", s.admin(auth.ResourceModels, auth.ActionUnload, s.handleUnload))

	health.RegisterHandlers(mux, opts.Health)
	mux.Handle("GET /metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	s.handler = s.withRequestID(s.withAccessLog(mux))
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ServeConfig configures ListenAndServe.
type ServeConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, cfg ServeConfig) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.opts.Logger.Info(ctx, "listening", observe.Field{Key: "addr", Value: cfg.Addr})

	select {
	case err := <-errc:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, name := classify(err)
	if code >= http.StatusInternalServerError {
		s.opts.Logger.Error(r.Context(), "request failed",
			observe.Field{Key: "path", Value: r.URL.Path},
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
	writeJSON(w, code, errorBody{
		Error:     err.Error(),
		Code:      name,
		RequestID: observe.RequestID(r.Context()),
	})
}
