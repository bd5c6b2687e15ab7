package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/inferq/auth"
	"github.com/jonwraymond/inferq/cache"
	"github.com/jonwraymond/inferq/cache/sqlite"
	"github.com/jonwraymond/inferq/config"
	"github.com/jonwraymond/inferq/fingerprint"
	"github.com/jonwraymond/inferq/health"
	"github.com/jonwraymond/inferq/observe"
	"github.com/jonwraymond/inferq/predict"
	"github.com/jonwraymond/inferq/provider"
	"github.com/jonwraymond/inferq/registry"
	"github.com/jonwraymond/inferq/resilience"
	"github.com/jonwraymond/inferq/server"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg := config.Default()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(ctx, configPath); err != nil {
					return err
				}
			}
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to config file (defaults apply when empty)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) (err error) {
	obs, err := observe.NewObserver(ctx, cfg.ObserveConfig())
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		timeout := cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err = errors.Join(err, obs.Shutdown(shutdownCtx))
	}()
	logger := obs.Logger()

	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	store, closeStore, err := openCache(cfg)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeStore()) }()

	models := provider.Builtin(cfg.Models.Latency)
	reg := registry.New(models, registry.Config{
		PreloadConcurrency: cfg.Models.PreloadConcurrency,
		IdleTTL:            cfg.Models.IdleTTL,
		OnLoad: func(name, version string, took time.Duration) {
			logger.Info(ctx, "model loaded",
				observe.Field{Key: "model", Value: name},
				observe.Field{Key: "version", Value: version},
				observe.Field{Key: "took_ms", Value: took.Milliseconds()},
			)
		},
	})
	if cfg.Models.IdleTTL > 0 {
		reg.Start(ctx, cfg.Models.SweepInterval)
	}

	bulkhead := resilience.NewBulkhead(resilience.BulkheadConfig{
		MaxConcurrent: cfg.Resilience.Bulkhead.MaxConcurrent,
		MaxWait:       cfg.Resilience.Bulkhead.MaxWait,
	})
	breakers := resilience.NewBreakerSet(resilience.CircuitBreakerConfig{
		MaxFailures:  cfg.Resilience.Breaker.MaxFailures,
		ResetTimeout: cfg.Resilience.Breaker.ResetTimeout,
		IsFailure:    predict.IsModelFault,
		OnStateChange: func(name string, from, to resilience.State) {
			logger.Warn(ctx, "circuit state changed",
				observe.Field{Key: "model", Value: name},
				observe.Field{Key: "from", Value: from.String()},
				observe.Field{Key: "to", Value: to.String()},
			)
		},
	})

	var schemas map[string]fingerprint.Schema
	if cfg.Models.ValidateInputs {
		schemas = map[string]fingerprint.Schema{"stroke": provider.StrokeSchema()}
	}

	svc := predict.New(reg, predict.Config{
		Cache:            store,
		Policy:           cfg.CachePolicy(),
		MaxInFlight:      cfg.Predict.MaxInFlight,
		InferenceTimeout: cfg.Predict.InferenceTimeout,
		Precision:        precision(cfg),
		Schemas:          schemas,
		Guard:            resilience.NewGuard(bulkhead, breakers),
		Middleware:       mw,
	})

	if err := observe.RegisterGauges(obs.Meter(),
		observe.Gauge{
			Name:        "inferq.cache.size",
			Description: "Live entries in the result cache",
			Value:       func() int64 { return int64(store.Len(context.Background())) },
		},
		observe.Gauge{
			Name:        "inferq.predictions.in_flight",
			Description: "Model computations currently running",
			Value:       func() int64 { return svc.Stats().InFlight },
		},
	); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}

	if len(cfg.Models.Preload) > 0 {
		report := svc.PreloadModels(ctx, cfg.Models.Preload)
		if failed := report.Failed(); len(failed) > 0 {
			logger.Warn(ctx, "some models failed to preload", observe.Field{Key: "models", Value: failed})
		}
	}

	agg := health.NewAggregator()
	agg.Register(svc.HealthChecker())
	if p, ok := store.(health.Pinger); ok {
		agg.Register(health.NewPingChecker("cache", p))
	}
	agg.Register(health.NewThresholdChecker(health.ThresholdConfig{
		Name:     "bulkhead",
		Value:    func() float64 { return float64(bulkhead.Metrics().Active) },
		Warning:  0.75 * float64(cfg.Resilience.Bulkhead.MaxConcurrent),
		Critical: float64(cfg.Resilience.Bulkhead.MaxConcurrent),
		Unit:     "calls",
	}))

	srv, err := server.New(server.Options{
		Service:       svc,
		Health:        agg,
		Authenticator: authenticator(cfg),
		Policy:        cfg.AuthPolicy(),
		AdminLimiter:  adminLimiter(cfg),
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "inferqd listening",
		observe.Field{Key: "addr", Value: cfg.Server.Addr},
		observe.Field{Key: "cache", Value: cfg.Cache.Backend},
		observe.Field{Key: "version", Value: version},
	)
	return srv.ListenAndServe(ctx, server.ServeConfig{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
}

// precision maps the config's explicit 0 (whole numbers) onto predict's
// sentinel, where 0 selects the default.
func precision(cfg config.Config) int {
	if cfg.Predict.Precision == 0 {
		return predict.PrecisionIntegers
	}
	return cfg.Predict.Precision
}

func openCache(cfg config.Config) (cache.Cache, func() error, error) {
	switch cfg.Cache.Backend {
	case "sqlite":
		c, err := sqlite.Open(cfg.Cache.Path, cfg.CachePolicy())
		if err != nil {
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
		return c, c.Close, nil
	default:
		var opts []cache.MemoryOption
		if cfg.Cache.MaxEntries > 0 {
			opts = append(opts, cache.WithMaxEntries(cfg.Cache.MaxEntries))
		}
		if cfg.Cache.Shards > 0 {
			opts = append(opts, cache.WithShards(cfg.Cache.Shards))
		}
		return cache.NewMemoryCache(cfg.CachePolicy(), opts...), func() error { return nil }, nil
	}
}

// authenticator returns nil when auth is disabled, leaving admin routes open.
func authenticator(cfg config.Config) auth.Authenticator {
	if !cfg.Auth.Enabled {
		return nil
	}
	var chain auth.Chain
	if len(cfg.Auth.APIKeys) > 0 {
		store := auth.NewMemoryKeyStore()
		for _, k := range cfg.Auth.APIKeys {
			store.Add(auth.APIKey{
				ID:        k.ID,
				Hash:      auth.HashAPIKey(k.Key),
				Principal: k.Principal,
				Roles:     k.Roles,
			})
		}
		chain = append(chain, auth.NewAPIKeyAuthenticator(auth.DefaultAPIKeyHeader, store))
	}
	if cfg.Auth.JWT.Secret != "" {
		chain = append(chain, auth.NewJWTAuthenticator(auth.JWTConfig{
			Secret:   []byte(cfg.Auth.JWT.Secret),
			Issuer:   cfg.Auth.JWT.Issuer,
			Audience: cfg.Auth.JWT.Audience,
		}))
	}
	return chain
}

func adminLimiter(cfg config.Config) *resilience.RateLimiter {
	r := cfg.Resilience.AdminRate
	if r.Rate == 0 {
		return nil
	}
	return resilience.NewRateLimiter(resilience.RateLimiterConfig{Rate: r.Rate, Burst: r.Burst})
}
