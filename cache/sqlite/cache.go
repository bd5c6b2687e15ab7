// Package sqlite provides a persistent cache.Cache backed by SQLite.
//
// Entries survive restarts of the process. Values are stored as opaque
// blobs; expiry timestamps are unix nanoseconds so comparisons happen in SQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jonwraymond/inferq/cache"
	"github.com/jonwraymond/inferq/resilience"
)

const createTable = `
CREATE TABLE IF NOT EXISTS prediction_cache (
	key TEXT PRIMARY KEY,
	value BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	expires_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS prediction_cache_expires ON prediction_cache (expires_at);
`

// Option configures a Cache.
type Option func(*Cache)

// WithRetry overrides the retry used for writes that hit a busy database.
// Default: 5 attempts, 5ms initial delay, jittered.
func WithRetry(r *resilience.Retry) Option {
	return func(c *Cache) { c.retry = r }
}

// Cache is a cache.Cache stored in a SQLite database file.
type Cache struct {
	db     *sql.DB
	policy cache.Policy
	retry  *resilience.Retry
}

// Open opens (creating if needed) the database at path.
// Use ":memory:" for a throwaway database.
func Open(path string, policy cache.Policy, opts ...Option) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", path, err)
	}
	// A single connection serializes writers and keeps ":memory:" coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}

	c := &Cache{
		db:     db,
		policy: policy,
		retry: resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: 5 * time.Millisecond,
			Jitter:       true,
			RetryIf:      IsBusy,
		}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// IsBusy reports whether err is a transient lock conflict.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// Get retrieves an entry. Read failures are reported as a miss.
func (c *Cache) Get(ctx context.Context, key string) (cache.Entry, bool) {
	var (
		value     []byte
		createdAt int64
		expiresAt int64
	)
	err := c.db.QueryRowContext(ctx,
		`SELECT value, created_at, expires_at FROM prediction_cache WHERE key = ? AND expires_at > ?`,
		key, time.Now().UnixNano(),
	).Scan(&value, &createdAt, &expiresAt)
	if err != nil {
		return cache.Entry{}, false
	}
	return cache.Entry{
		Key:       key,
		Value:     value,
		CreatedAt: time.Unix(0, createdAt),
		ExpiresAt: time.Unix(0, expiresAt),
	}, true
}

// Set stores value under key. TTL<=0 means no caching; TTLs above
// Policy.MaxTTL are clamped.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := cache.ValidateKey(key); err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	if c.policy.MaxTTL > 0 && ttl > c.policy.MaxTTL {
		ttl = c.policy.MaxTTL
	}

	now := time.Now()
	return c.retry.Execute(ctx, func(ctx context.Context) error {
		_, err := c.db.ExecContext(ctx,
			`INSERT OR REPLACE INTO prediction_cache (key, value, created_at, expires_at) VALUES (?, ?, ?, ?)`,
			key, value, now.UnixNano(), now.Add(ttl).UnixNano(),
		)
		if err != nil {
			return fmt.Errorf("sqlite: set: %w", err)
		}
		return nil
	})
}

// Delete removes key. Idempotent.
func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.retry.Execute(ctx, func(ctx context.Context) error {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM prediction_cache WHERE key = ?`, key); err != nil {
			return fmt.Errorf("sqlite: delete: %w", err)
		}
		return nil
	})
}

// Clear removes every row and returns how many unexpired rows were removed.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	var removed int
	err := c.retry.Execute(ctx, func(ctx context.Context) (err error) {
		tx, err := c.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("sqlite: clear: %w", err)
		}
		defer func() {
			if err != nil {
				_ = tx.Rollback()
			}
		}()

		if err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM prediction_cache WHERE expires_at > ?`, time.Now().UnixNano(),
		).Scan(&removed); err != nil {
			return fmt.Errorf("sqlite: clear: %w", err)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM prediction_cache`); err != nil {
			return fmt.Errorf("sqlite: clear: %w", err)
		}
		if err = tx.Commit(); err != nil {
			return fmt.Errorf("sqlite: clear: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Len returns the number of unexpired rows, deleting expired ones first.
// It returns 0 if the database cannot be read.
func (c *Cache) Len(ctx context.Context) int {
	now := time.Now().UnixNano()
	_, _ = c.db.ExecContext(ctx, `DELETE FROM prediction_cache WHERE expires_at <= ?`, now)

	var n int
	if err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM prediction_cache WHERE expires_at > ?`, now,
	).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Ping checks that the database is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return errors.Join(errors.New("sqlite: ping failed"), err)
	}
	return nil
}

// Close releases the database.
func (c *Cache) Close() error {
	return c.db.Close()
}

var _ cache.Cache = (*Cache)(nil)
