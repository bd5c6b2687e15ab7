package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/inferq/auth"
	"github.com/jonwraymond/inferq/cache"
	"github.com/jonwraymond/inferq/fingerprint"
	"github.com/jonwraymond/inferq/observe"
	"github.com/jonwraymond/inferq/secret"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the complete daemon configuration.
type Config struct {
	Server     Server     `yaml:"server"`
	Cache      Cache      `yaml:"cache"`
	Predict    Predict    `yaml:"predict"`
	Models     Models     `yaml:"models"`
	Resilience Resilience `yaml:"resilience"`
	Auth       Auth       `yaml:"auth"`
	Telemetry  Telemetry  `yaml:"telemetry"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Cache selects and sizes the result cache.
type Cache struct {
	// Backend is "memory" or "sqlite".
	Backend    string        `yaml:"backend"`
	Path       string        `yaml:"path"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxTTL     time.Duration `yaml:"max_ttl"`
	MaxEntries int           `yaml:"max_entries"`
	Shards     int           `yaml:"shards"`
}

// Predict tunes the prediction path.
type Predict struct {
	MaxInFlight      time.Duration `yaml:"max_in_flight"`
	InferenceTimeout time.Duration `yaml:"inference_timeout"`
	Precision        int           `yaml:"precision"` // 0 rounds to whole numbers
}

// Models configures the model registry and the built-in provider.
type Models struct {
	Preload            []string      `yaml:"preload"`
	PreloadConcurrency int           `yaml:"preload_concurrency"`
	IdleTTL            time.Duration `yaml:"idle_ttl"`
	SweepInterval      time.Duration `yaml:"sweep_interval"`
	// Latency delays every built-in model call.
	Latency time.Duration `yaml:"latency"`
	// ValidateInputs rejects inputs outside the built-in schemas.
	ValidateInputs bool `yaml:"validate_inputs"`
}

// Resilience configures model protection and admin throttling.
type Resilience struct {
	Breaker struct {
		MaxFailures  int           `yaml:"max_failures"`
		ResetTimeout time.Duration `yaml:"reset_timeout"`
	} `yaml:"breaker"`
	Bulkhead struct {
		MaxConcurrent int           `yaml:"max_concurrent"`
		MaxWait       time.Duration `yaml:"max_wait"`
	} `yaml:"bulkhead"`
	AdminRate struct {
		Rate  float64 `yaml:"rate"`
		Burst int     `yaml:"burst"`
	} `yaml:"admin_rate"`
}

// APIKey is an admin key. Key may be a secret reference.
type APIKey struct {
	ID        string   `yaml:"id"`
	Key       string   `yaml:"key"`
	Principal string   `yaml:"principal"`
	Roles     []string `yaml:"roles"`
}

// Auth configures admin authentication.
type Auth struct {
	Enabled bool     `yaml:"enabled"`
	APIKeys []APIKey `yaml:"api_keys"`
	JWT     struct {
		Secret   string `yaml:"secret"`
		Issuer   string `yaml:"issuer"`
		Audience string `yaml:"audience"`
	} `yaml:"jwt"`
	// Policy overrides auth.DefaultPolicy when it names any role.
	Policy auth.Policy `yaml:"policy"`
}

// Telemetry configures logging, tracing and metrics.
type Telemetry struct {
	ServiceName     string  `yaml:"service_name"`
	LogLevel        string  `yaml:"log_level"`
	TracingExporter string  `yaml:"tracing_exporter"`
	SamplePct       float64 `yaml:"sample_pct"`
	MetricsExporter string  `yaml:"metrics_exporter"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.Server = Server{
		Addr:            ":8080",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    3 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
	}
	p := cache.DefaultPolicy()
	c.Cache = Cache{Backend: "memory", DefaultTTL: p.DefaultTTL, MaxTTL: p.MaxTTL}
	c.Predict = Predict{MaxInFlight: 2 * time.Minute, Precision: fingerprint.DefaultPrecision}
	c.Models = Models{PreloadConcurrency: 4, SweepInterval: time.Minute, ValidateInputs: true}
	c.Resilience.Breaker.MaxFailures = 5
	c.Resilience.Breaker.ResetTimeout = 30 * time.Second
	c.Resilience.Bulkhead.MaxConcurrent = 64
	c.Resilience.AdminRate.Rate = 5
	c.Resilience.AdminRate.Burst = 10
	c.Telemetry = Telemetry{
		ServiceName:     "inferqd",
		LogLevel:        "info",
		MetricsExporter: "prometheus",
		SamplePct:       0.1,
	}
	return c
}

// Load reads the file at path over Default, resolves secret references
// (relative file references are read next to the config file) and
// validates the result.
func Load(ctx context.Context, path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	if err := cfg.ResolveSecrets(ctx, secret.DefaultResolver(filepath.Dir(path))); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over Default. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	return cfg, nil
}

// ResolveSecrets expands environment variables and secret references in
// paths and credentials.
func (c *Config) ResolveSecrets(ctx context.Context, r *secret.Resolver) error {
	fields := []struct {
		name string
		val  *string
	}{
		{"server.addr", &c.Server.Addr},
		{"cache.path", &c.Cache.Path},
		{"auth.jwt.secret", &c.Auth.JWT.Secret},
	}
	for i := range c.Auth.APIKeys {
		fields = append(fields, struct {
			name string
			val  *string
		}{fmt.Sprintf("auth.api_keys[%d].key", i), &c.Auth.APIKeys[i].Key})
	}

	for _, f := range fields {
		if *f.val == "" {
			continue
		}
		v, err := r.ResolveValue(ctx, *f.val)
		if err != nil {
			return fmt.Errorf("config: resolve %s: %w", f.name, err)
		}
		*f.val = v
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
	}

	if c.Server.Addr == "" {
		return invalid("server.addr is required")
	}
	switch c.Cache.Backend {
	case "memory":
	case "sqlite":
		if c.Cache.Path == "" {
			return invalid("cache.path is required for the sqlite backend")
		}
	default:
		return invalid("cache.backend %q is not memory or sqlite", c.Cache.Backend)
	}
	if c.Cache.DefaultTTL <= 0 {
		return invalid("cache.default_ttl must be positive")
	}
	if c.Cache.MaxTTL > 0 && c.Cache.MaxTTL < c.Cache.DefaultTTL {
		return invalid("cache.max_ttl is below cache.default_ttl")
	}
	if c.Cache.MaxEntries < 0 {
		return invalid("cache.max_entries must not be negative")
	}
	if c.Predict.Precision < 0 || c.Predict.Precision > 12 {
		return invalid("predict.precision must be between 0 and 12")
	}
	if c.Resilience.AdminRate.Rate < 0 {
		return invalid("resilience.admin_rate.rate must not be negative")
	}
	if c.Auth.Enabled {
		if len(c.Auth.APIKeys) == 0 && c.Auth.JWT.Secret == "" {
			return invalid("auth is enabled but no api_keys or jwt.secret are configured")
		}
		for i, k := range c.Auth.APIKeys {
			if k.Key == "" || k.Principal == "" {
				return invalid("auth.api_keys[%d] needs key and principal", i)
			}
		}
		if s := c.Auth.JWT.Secret; s != "" && len(s) < 32 {
			return invalid("auth.jwt.secret must be at least 32 bytes")
		}
	}

	obs := c.ObserveConfig()
	if err := obs.Validate(); err != nil {
		return fmt.Errorf("%w: telemetry: %w", ErrInvalid, err)
	}
	return nil
}

// CachePolicy returns the TTL policy for the result cache.
func (c *Config) CachePolicy() cache.Policy {
	return cache.Policy{DefaultTTL: c.Cache.DefaultTTL, MaxTTL: c.Cache.MaxTTL}
}

// AuthPolicy returns the configured policy, or auth.DefaultPolicy.
func (c *Config) AuthPolicy() auth.Policy {
	if len(c.Auth.Policy.Roles) == 0 {
		return auth.DefaultPolicy()
	}
	return c.Auth.Policy
}

// ObserveConfig maps telemetry settings onto observe.Config.
func (c *Config) ObserveConfig() observe.Config {
	t := c.Telemetry
	return observe.Config{
		ServiceName: t.ServiceName,
		Tracing: observe.TracingConfig{
			Enabled:   t.TracingExporter != "" && t.TracingExporter != "none",
			Exporter:  t.TracingExporter,
			SamplePct: t.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  t.MetricsExporter != "" && t.MetricsExporter != "none",
			Exporter: t.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: t.LogLevel != "",
			Level:   t.LogLevel,
		},
	}
}
