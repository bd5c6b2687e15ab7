package predict

import (
	"time"

	"github.com/jonwraymond/inferq/cache"
	"github.com/jonwraymond/inferq/fingerprint"
	"github.com/jonwraymond/inferq/observe"
	"github.com/jonwraymond/inferq/resilience"
)

// Config configures a Service.
type Config struct {
	// Cache stores encoded results.
	// Default: cache.NewMemoryCache(Policy)
	Cache cache.Cache

	// Policy sets the TTL of cached results.
	// Default: cache.DefaultPolicy() (used when zero)
	Policy cache.Policy

	// NoCache disables result caching. Concurrent identical requests are
	// still coalesced but nothing is committed, so Policy is ignored.
	NoCache bool

	// MaxInFlight fails computations that have not finished in time with
	// coalesce.ErrStaleInFlight and lets new requests start over.
	// Default: 2 minutes. Negative disables the bound.
	MaxInFlight time.Duration

	// InferenceTimeout bounds each model invocation.
	// Default: 0 (no bound)
	InferenceTimeout time.Duration

	// Precision is the number of decimals numeric inputs are rounded to.
	// PrecisionIntegers rounds to whole numbers.
	// Default: fingerprint.DefaultPrecision (used when zero)
	Precision int

	// Schemas validates inputs per model name.
	Schemas map[string]fingerprint.Schema

	// Guard protects model invocations. The resource name is "name@version".
	// Default: none
	Guard *resilience.Guard

	// Middleware instruments model invocations.
	// Default: observe.NewNoopMiddleware()
	Middleware *observe.Middleware

	// Shards is the number of coalescer lock shards.
	// Default: 32
	Shards int
}

// DefaultMaxInFlight is the default stale in-flight bound.
const DefaultMaxInFlight = 2 * time.Minute

// PrecisionIntegers selects rounding numeric inputs to whole numbers, since a
// zero Precision means the default.
const PrecisionIntegers = -1

func (c Config) withDefaults() Config {
	switch {
	case c.NoCache:
		c.Policy = cache.NoCachePolicy()
	case c.Policy == (cache.Policy{}):
		c.Policy = cache.DefaultPolicy()
	}
	if c.Cache == nil {
		c.Cache = cache.NewMemoryCache(c.Policy)
	}
	switch {
	case c.MaxInFlight == 0:
		c.MaxInFlight = DefaultMaxInFlight
	case c.MaxInFlight < 0:
		c.MaxInFlight = 0
	}
	switch {
	case c.Precision == 0:
		c.Precision = fingerprint.DefaultPrecision
	case c.Precision < 0:
		c.Precision = 0
	}
	if c.Middleware == nil {
		c.Middleware = observe.NewNoopMiddleware()
	}
	return c
}
