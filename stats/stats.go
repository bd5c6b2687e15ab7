// Package stats counts cache and coalescing outcomes of the prediction path.
//
// Counters are lock-free and may be incremented from any goroutine.
// Snapshot is a point-in-time read and never mutates state.
package stats

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/inferq/observe"
)

// Snapshot is a read-only view of the counters.
type Snapshot struct {
	Hits      int64     `json:"hits"`
	Misses    int64     `json:"misses"`
	Coalesced int64     `json:"coalesced"`
	Completed int64     `json:"completed"`
	Failed    int64     `json:"failed"`
	CacheSize int       `json:"cache_size"`
	InFlight  int64     `json:"in_flight"`
	Since     time.Time `json:"since"`
}

// HitRatio returns hits / (hits + misses + coalesced), or 0 with no lookups.
func (s Snapshot) HitRatio() float64 {
	total := s.Hits + s.Misses + s.Coalesced
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// SizeFunc reports the current number of cached entries.
type SizeFunc func() int

// Tracker holds the prediction counters.
type Tracker struct {
	hits      atomic.Int64
	misses    atomic.Int64
	coalesced atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	inFlight  atomic.Int64

	mu      sync.Mutex
	since   time.Time
	size    SizeFunc
	metrics observe.Metrics
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithSize sets the function Snapshot uses for CacheSize.
func WithSize(fn SizeFunc) Option {
	return func(t *Tracker) { t.size = fn }
}

// WithMetrics mirrors every increment to m.
func WithMetrics(m observe.Metrics) Option {
	return func(t *Tracker) { t.metrics = m }
}

// New creates a Tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{since: time.Now()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) emit(event string) {
	if t.metrics != nil {
		t.metrics.RecordEvent(context.Background(), event)
	}
}

// Hit records a cache hit.
func (t *Tracker) Hit() { t.hits.Add(1); t.emit(observe.EventHit) }

// Miss records a cache miss that started a computation.
func (t *Tracker) Miss() { t.misses.Add(1); t.emit(observe.EventMiss) }

// Coalesced records a caller that attached to a running computation.
func (t *Tracker) Coalesced() { t.coalesced.Add(1); t.emit(observe.EventCoalesced) }

// Completed records a computation that succeeded and was cached.
func (t *Tracker) Completed() { t.completed.Add(1); t.emit(observe.EventCompleted) }

// Failed records a failed prediction.
func (t *Tracker) Failed() { t.failed.Add(1); t.emit(observe.EventFailed) }

// Begin marks a computation as started. Pair with End.
func (t *Tracker) Begin() { t.inFlight.Add(1) }

// End marks a computation as finished.
func (t *Tracker) End() { t.inFlight.Add(-1) }

// InFlight returns the number of running computations.
func (t *Tracker) InFlight() int64 { return t.inFlight.Load() }

// Snapshot returns the current counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	since, size := t.since, t.size
	t.mu.Unlock()

	s := Snapshot{
		Hits:      t.hits.Load(),
		Misses:    t.misses.Load(),
		Coalesced: t.coalesced.Load(),
		Completed: t.completed.Load(),
		Failed:    t.failed.Load(),
		InFlight:  t.inFlight.Load(),
		Since:     since,
	}
	if size != nil {
		s.CacheSize = size()
	}
	return s
}

// Reset zeroes the counters. The in-flight gauge and the cache are untouched.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hits.Store(0)
	t.misses.Store(0)
	t.coalesced.Store(0)
	t.completed.Store(0)
	t.failed.Store(0)
	t.since = time.Now()
}
