package coalesce

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jonwraymond/inferq/internal/shard"
)

// ErrStaleInFlight is returned to every caller attached to a computation
// that exceeded Config.MaxDuration.
var ErrStaleInFlight = errors.New("coalesce: in-flight computation exceeded max duration")

// Outcome describes how a caller obtained its value.
type Outcome int

const (
	// Leader means the caller started the computation.
	Leader Outcome = iota
	// Follower means the caller attached to a running computation.
	Follower
	// Cached means Config.Lookup produced the value and nothing ran.
	Cached
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Leader:
		return "leader"
	case Follower:
		return "follower"
	case Cached:
		return "cached"
	default:
		return "unknown"
	}
}

// Func computes the value for a key.
type Func[V any] func(ctx context.Context) (V, error)

// Config configures a Group.
type Config[V any] struct {
	// MaxDuration bounds how long a computation may run before attached
	// callers are failed with ErrStaleInFlight.
	// Default: 0 (no bound)
	MaxDuration time.Duration

	// Shards is the number of lock shards. Rounded up to a power of two.
	// Default: 32
	Shards int

	// Lookup is consulted under the key's lock before a new computation
	// starts. A hit is returned with Outcome Cached. Refresh skips it.
	Lookup func(key string) (V, bool)

	// Commit receives every successful value under the key's lock, before
	// the key is released. It must not call back into the Group.
	Commit func(key string, v V)

	// OnAttach is called once per caller that leads or joins a computation.
	OnAttach func(key string, leader bool)

	// OnDone is called exactly once per computation with its final error:
	// nil, the error from fn, or ErrStaleInFlight. It runs under the key's
	// lock after Commit and before waiters are released, and must not call
	// back into the Group.
	OnDone func(key string, err error)
}

// InFlight describes a running computation.
type InFlight struct {
	Key       string
	StartedAt time.Time
	Waiters   int
}

type call[V any] struct {
	done    chan struct{}
	val     V
	err     error
	started time.Time
	waiters int
	timer   *time.Timer
}

type group[V any] struct {
	mu    sync.Mutex
	calls map[string]*call[V]
}

// Group coalesces computations by key. The zero value is not usable; use New.
type Group[V any] struct {
	cfg    Config[V]
	shards []*group[V]
}

// New creates a Group.
func New[V any](cfg Config[V]) *Group[V] {
	if cfg.Shards <= 0 {
		cfg.Shards = shard.DefaultCount
	}
	n := shard.Normalize(cfg.Shards)
	g := &Group[V]{cfg: cfg, shards: make([]*group[V], n)}
	for i := range g.shards {
		g.shards[i] = &group[V]{calls: make(map[string]*call[V])}
	}
	return g
}

func (g *Group[V]) shardFor(key string) *group[V] {
	return g.shards[shard.Index(key, len(g.shards))]
}

// Do returns the value for key, consulting Config.Lookup, then joining a
// running computation, then starting fn. If ctx ends first, Do returns
// ctx.Err() to this caller only; the computation keeps running.
func (g *Group[V]) Do(ctx context.Context, key string, fn Func[V]) (V, Outcome, error) {
	return g.do(ctx, key, fn, true)
}

// Refresh is like Do but never consults Config.Lookup. It still joins a
// running computation for key.
func (g *Group[V]) Refresh(ctx context.Context, key string, fn Func[V]) (V, Outcome, error) {
	return g.do(ctx, key, fn, false)
}

func (g *Group[V]) do(ctx context.Context, key string, fn Func[V], lookup bool) (V, Outcome, error) {
	s := g.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	if c, ok := s.calls[key]; ok {
		if g.cfg.MaxDuration <= 0 || now.Sub(c.started) < g.cfg.MaxDuration {
			c.waiters++
			s.mu.Unlock()
			g.attached(key, false)
			return wait(ctx, c, Follower)
		}
		g.expireLocked(s, key, c)
	}
	if lookup && g.cfg.Lookup != nil {
		if v, ok := g.cfg.Lookup(key); ok {
			s.mu.Unlock()
			return v, Cached, nil
		}
	}

	c := &call[V]{done: make(chan struct{}), started: now, waiters: 1}
	s.calls[key] = c
	if g.cfg.MaxDuration > 0 {
		c.timer = time.AfterFunc(g.cfg.MaxDuration, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			g.expireLocked(s, key, c)
		})
	}
	s.mu.Unlock()

	g.attached(key, true)
	go g.run(context.WithoutCancel(ctx), s, key, c, fn)
	return wait(ctx, c, Leader)
}

func (g *Group[V]) attached(key string, leader bool) {
	if g.cfg.OnAttach != nil {
		g.cfg.OnAttach(key, leader)
	}
}

func (g *Group[V]) run(ctx context.Context, s *group[V], key string, c *call[V], fn Func[V]) {
	v, err := invoke(ctx, fn)
	if c.timer != nil {
		c.timer.Stop()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A stale generation has already been failed and replaced.
	if s.calls[key] != c {
		return
	}
	if err == nil && g.cfg.Commit != nil {
		g.cfg.Commit(key, v)
	}
	g.finishLocked(s, key, c, v, err)
}

func invoke[V any](ctx context.Context, fn Func[V]) (v V, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("coalesce: computation panicked: %v", r)
		}
	}()
	return fn(ctx)
}

func (g *Group[V]) expireLocked(s *group[V], key string, c *call[V]) {
	if s.calls[key] != c {
		return
	}
	var zero V
	g.finishLocked(s, key, c, zero, ErrStaleInFlight)
}

func (g *Group[V]) finishLocked(s *group[V], key string, c *call[V], v V, err error) {
	if g.cfg.OnDone != nil {
		g.cfg.OnDone(key, err)
	}
	delete(s.calls, key)
	c.val, c.err = v, err
	close(c.done)
}

func wait[V any](ctx context.Context, c *call[V], o Outcome) (V, Outcome, error) {
	select {
	case <-c.done:
		return c.val, o, c.err
	case <-ctx.Done():
		var zero V
		return zero, o, ctx.Err()
	}
}

// InFlight returns a snapshot of running computations sorted by key.
func (g *Group[V]) InFlight() []InFlight {
	var out []InFlight
	for _, s := range g.shards {
		s.mu.Lock()
		for key, c := range s.calls {
			out = append(out, InFlight{Key: key, StartedAt: c.started, Waiters: c.waiters})
		}
		s.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of running computations.
func (g *Group[V]) Len() int {
	n := 0
	for _, s := range g.shards {
		s.mu.Lock()
		n += len(s.calls)
		s.mu.Unlock()
	}
	return n
}
