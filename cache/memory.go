package cache

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/jonwraymond/inferq/internal/shard"
)

// MemoryOption configures a MemoryCache.
type MemoryOption func(*memoryConfig)

type memoryConfig struct {
	shards     int
	maxEntries int
}

// WithShards sets the number of lock shards. Rounded up to a power of two.
// Default: 32
func WithShards(n int) MemoryOption {
	return func(c *memoryConfig) { c.shards = n }
}

// WithMaxEntries bounds the cache size. Each shard holds at most
// ceil(n/shards) entries and evicts its least recently used entry when full,
// so the global bound is approximate unless a single shard is used.
// Default: 0 (unbounded, time-based expiry only)
func WithMaxEntries(n int) MemoryOption {
	return func(c *memoryConfig) { c.maxEntries = n }
}

// MemoryCache is a sharded in-memory Cache. Each shard has its own lock so
// unrelated keys never contend.
type MemoryCache struct {
	shards    []*memShard
	policy    Policy
	evictions atomic.Int64
}

type memShard struct {
	mu      sync.Mutex
	entries *simplelru.LRU[string, *Entry]
}

// NewMemoryCache creates a new in-memory cache with the given policy.
func NewMemoryCache(policy Policy, opts ...MemoryOption) *MemoryCache {
	cfg := memoryConfig{shards: shard.DefaultCount}
	for _, opt := range opts {
		opt(&cfg)
	}
	n := shard.Normalize(cfg.shards)

	perShard := math.MaxInt
	if cfg.maxEntries > 0 {
		perShard = (cfg.maxEntries + n - 1) / n
	}

	c := &MemoryCache{
		shards: make([]*memShard, n),
		policy: policy,
	}
	for i := range c.shards {
		// NewLRU only fails for a non-positive size.
		lru, _ := simplelru.NewLRU[string, *Entry](perShard, nil)
		c.shards[i] = &memShard{entries: lru}
	}
	return c
}

func (c *MemoryCache) shardFor(key string) *memShard {
	return c.shards[shard.Index(key, len(c.shards))]
}

// Get retrieves an entry from the cache. Returns (Entry{}, false) on miss or expiry.
func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool) {
	s := c.shardFor(key)
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries.Get(key)
	if !ok {
		return Entry{}, false
	}
	if e.Expired(now) {
		// Expired - clean up lazily
		s.entries.Remove(key)
		return Entry{}, false
	}

	out := *e
	out.Value = cloneBytes(e.Value)
	return out, true
}

// Set stores a value with the given TTL. TTL<=0 means no caching.
// TTLs above Policy.MaxTTL are clamped.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	if c.policy.MaxTTL > 0 && ttl > c.policy.MaxTTL {
		ttl = c.policy.MaxTTL
	}

	now := time.Now()
	e := &Entry{
		Key:       key,
		Value:     cloneBytes(value),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	s := c.shardFor(key)
	s.mu.Lock()
	evicted := s.entries.Add(key, e)
	s.mu.Unlock()

	if evicted {
		c.evictions.Add(1)
	}
	return nil
}

// Delete removes a value from the cache. Idempotent - no error on miss.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	s := c.shardFor(key)
	s.mu.Lock()
	s.entries.Remove(key)
	s.mu.Unlock()
	return nil
}

// Clear removes all entries and returns the number of live entries removed.
// Shards are cleared one at a time; writes racing with Clear may survive it.
func (c *MemoryCache) Clear(_ context.Context) (int, error) {
	now := time.Now()
	removed := 0
	for _, s := range c.shards {
		s.mu.Lock()
		removed += s.liveLocked(now)
		s.entries.Purge()
		s.mu.Unlock()
	}
	return removed, nil
}

// Len returns the number of non-expired entries, purging expired ones.
func (c *MemoryCache) Len(_ context.Context) int {
	now := time.Now()
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		s.purgeExpiredLocked(now)
		total += s.entries.Len()
		s.mu.Unlock()
	}
	return total
}

// Evictions returns the number of entries evicted to honor the size bound.
func (c *MemoryCache) Evictions() int64 {
	return c.evictions.Load()
}

func (s *memShard) liveLocked(now time.Time) int {
	live := 0
	for _, key := range s.entries.Keys() {
		if e, ok := s.entries.Peek(key); ok && !e.Expired(now) {
			live++
		}
	}
	return live
}

func (s *memShard) purgeExpiredLocked(now time.Time) {
	for _, key := range s.entries.Keys() {
		if e, ok := s.entries.Peek(key); ok && e.Expired(now) {
			s.entries.Remove(key)
		}
	}
}

// Ensure MemoryCache implements Cache
var _ Cache = (*MemoryCache)(nil)
