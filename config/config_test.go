package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonwraymond/inferq/secret"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.CachePolicy().DefaultTTL != 10*time.Minute {
		t.Errorf("DefaultTTL = %v", cfg.CachePolicy().DefaultTTL)
	}
	if len(cfg.AuthPolicy().Roles) == 0 {
		t.Error("AuthPolicy() has no roles")
	}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
server:
  addr: ":9090"
cache:
  backend: sqlite
  path: /tmp/cache.db
  default_ttl: 5m
  max_entries: 1000
models:
  preload: [stroke, stroke@v1]
  latency: 50ms
resilience:
  breaker:
    max_failures: 3
auth:
  policy:
    roles:
      ops:
        permissions: ["cache:*"]
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 10*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Cache.Backend != "sqlite" || cfg.Cache.DefaultTTL != 5*time.Minute || cfg.Cache.MaxTTL != 24*time.Hour {
		t.Errorf("Cache = %+v", cfg.Cache)
	}
	if len(cfg.Models.Preload) != 2 || cfg.Models.Latency != 50*time.Millisecond {
		t.Errorf("Models = %+v", cfg.Models)
	}
	if cfg.Resilience.Breaker.MaxFailures != 3 || cfg.Resilience.Breaker.ResetTimeout != 30*time.Second {
		t.Errorf("Breaker = %+v", cfg.Resilience.Breaker)
	}
	if _, ok := cfg.AuthPolicy().Roles["ops"]; !ok || len(cfg.AuthPolicy().Roles) != 1 {
		t.Errorf("AuthPolicy() = %+v", cfg.AuthPolicy())
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != Default().Server.Addr {
		t.Errorf("empty file changed defaults: %+v", cfg.Server)
	}
}

func TestParse_Precision(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Predict.Precision != 6 {
		t.Errorf("default precision = %d, want 6", cfg.Predict.Precision)
	}

	cfg, err = Parse([]byte("predict:\n  precision: 0\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Predict.Precision != 0 {
		t.Errorf("explicit precision = %d, want 0", cfg.Predict.Precision)
	}
}

func TestParse_UnknownField(t *testing.T) {
	if _, err := Parse([]byte("cache:\n  backnd: memory\n")); err == nil {
		t.Error("Parse() accepted an unknown field")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"no addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"bad backend", func(c *Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"sqlite without path", func(c *Config) { c.Cache.Backend = "sqlite" }, "cache.path"},
		{"zero ttl", func(c *Config) { c.Cache.DefaultTTL = 0 }, "default_ttl"},
		{"max below default", func(c *Config) { c.Cache.MaxTTL = time.Second }, "max_ttl"},
		{"precision", func(c *Config) { c.Predict.Precision = 20 }, "precision"},
		{"auth without credentials", func(c *Config) { c.Auth.Enabled = true }, "no api_keys"},
		{"short jwt secret", func(c *Config) { c.Auth.Enabled = true; c.Auth.JWT.Secret = "short" }, "32 bytes"},
		{"key without principal", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.APIKeys = []APIKey{{Key: "k"}}
		}, "api_keys[0]"},
		{"bad exporter", func(c *Config) { c.Telemetry.MetricsExporter = "graphite" }, "telemetry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("Validate() = %v, want ErrInvalid", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %q, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoad_ResolvesSecrets(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "jwt.key"), []byte(strings.Repeat("k", 40)+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("INFERQ_TEST_ONCALL", "oncall-key")
	t.Setenv("INFERQ_TEST_DATA", dir)

	path := filepath.Join(dir, "inferq.yaml")
	body := `
cache:
  backend: sqlite
  path: ${INFERQ_TEST_DATA}/cache.db
auth:
  enabled: true
  api_keys:
    - id: oncall
      key: secretref:env:INFERQ_TEST_ONCALL
      principal: oncall
      roles: [operator]
  jwt:
    secret: secretref:file:jwt.key
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Cache.Path != filepath.Join(dir, "cache.db") {
		t.Errorf("Cache.Path = %q", cfg.Cache.Path)
	}
	if cfg.Auth.APIKeys[0].Key != "oncall-key" {
		t.Errorf("api key = %q", cfg.Auth.APIKeys[0].Key)
	}
	if cfg.Auth.JWT.Secret != strings.Repeat("k", 40) {
		t.Errorf("jwt secret = %q", cfg.Auth.JWT.Secret)
	}
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(context.Background(), filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Load(missing) succeeded")
	}

	path := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(path, []byte("auth:\n  jwt:\n    secret: secretref:env:INFERQ_TEST_UNSET_SECRET\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(context.Background(), path); !errors.Is(err, secret.ErrNotFound) {
		t.Errorf("Load() error = %v, want secret.ErrNotFound", err)
	}
}

func TestObserveConfig(t *testing.T) {
	cfg := Default()
	obs := cfg.ObserveConfig()
	if obs.ServiceName != "inferqd" || !obs.Metrics.Enabled || obs.Tracing.Enabled || !obs.Logging.Enabled {
		t.Errorf("ObserveConfig() = %+v", obs)
	}
	cfg.Telemetry.TracingExporter = "stdout"
	if !cfg.ObserveConfig().Tracing.Enabled {
		t.Error("tracing not enabled for stdout exporter")
	}
}
