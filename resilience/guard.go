package resilience

import "context"

// Guard runs operations against named resources through an optional
// BreakerSet (one breaker per resource) wrapped around an optional
// Bulkhead shared by all resources. An open circuit rejects a call
// before it takes a bulkhead slot.
type Guard struct {
	bulkhead *Bulkhead
	breakers *BreakerSet
}

// NewGuard creates a guard. Either argument may be nil.
func NewGuard(bulkhead *Bulkhead, breakers *BreakerSet) *Guard {
	return &Guard{bulkhead: bulkhead, breakers: breakers}
}

// Execute runs op for the named resource.
func (g *Guard) Execute(ctx context.Context, name string, op func(context.Context) error) error {
	run := op
	if g.bulkhead != nil {
		run = func(ctx context.Context) error { return g.bulkhead.Execute(ctx, op) }
	}
	if g.breakers != nil {
		return g.breakers.Get(name).Execute(ctx, run)
	}
	return run(ctx)
}

// Breakers returns the breaker set, or nil.
func (g *Guard) Breakers() *BreakerSet { return g.breakers }

// Bulkhead returns the bulkhead, or nil.
func (g *Guard) Bulkhead() *Bulkhead { return g.bulkhead }
