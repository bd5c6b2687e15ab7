package health

import (
	"context"
	"fmt"
	"runtime"
)

// ThresholdConfig configures a ThresholdChecker.
type ThresholdConfig struct {
	// Name identifies the checker.
	Name string

	// Value samples the gauge.
	Value func() float64

	// Warning is the value at which the component becomes degraded.
	// Default: 0 (never degraded)
	Warning float64

	// Critical is the value at which the component becomes unhealthy.
	// Default: 0 (never unhealthy)
	Critical float64

	// Unit is reported alongside the value.
	Unit string
}

// ThresholdChecker grades a sampled gauge, such as the number of in-flight
// computations or resident cache entries, against two limits.
type ThresholdChecker struct {
	config ThresholdConfig
}

// NewThresholdChecker creates a threshold checker. A Critical limit below
// Warning is raised to Warning.
func NewThresholdChecker(config ThresholdConfig) *ThresholdChecker {
	if config.Critical > 0 && config.Critical < config.Warning {
		config.Critical = config.Warning
	}
	return &ThresholdChecker{config: config}
}

// Name returns the configured name.
func (c *ThresholdChecker) Name() string { return c.config.Name }

// Check samples the gauge once.
func (c *ThresholdChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	v := c.config.Value()
	details := map[string]any{"value": v}
	if c.config.Unit != "" {
		details["unit"] = c.config.Unit
	}
	if c.config.Warning > 0 {
		details["warning"] = c.config.Warning
	}
	if c.config.Critical > 0 {
		details["critical"] = c.config.Critical
	}

	switch {
	case c.config.Critical > 0 && v >= c.config.Critical:
		return Unhealthy(fmt.Sprintf("%s critical: %g", c.config.Name, v), ErrCheckFailed).WithDetails(details)
	case c.config.Warning > 0 && v >= c.config.Warning:
		return Degraded(fmt.Sprintf("%s high: %g", c.config.Name, v)).WithDetails(details)
	default:
		return Healthy(fmt.Sprintf("%s normal: %g", c.config.Name, v)).WithDetails(details)
	}
}

// NewHeapChecker grades live heap bytes against fractions of limit.
// Cached results and resident models both live on the heap.
func NewHeapChecker(limit uint64, warning, critical float64) *ThresholdChecker {
	if warning <= 0 || warning >= 1 {
		warning = 0.8
	}
	if critical <= 0 || critical >= 1 {
		critical = 0.95
	}
	return NewThresholdChecker(ThresholdConfig{
		Name: "heap",
		Value: func() float64 {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return float64(ms.HeapAlloc)
		},
		Warning:  warning * float64(limit),
		Critical: critical * float64(limit),
		Unit:     "bytes",
	})
}
