package sqlite

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonwraymond/inferq/cache"
)

func openTest(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), cache.DefaultPolicy())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_GetSetDelete(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	if _, ok := c.Get(ctx, "fp:stroke:1:abc"); ok {
		t.Fatal("Get() on empty cache should miss")
	}

	if err := c.Set(ctx, "fp:stroke:1:abc", []byte(`{"risk":0.42}`), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	e, ok := c.Get(ctx, "fp:stroke:1:abc")
	if !ok {
		t.Fatal("Get() should hit after Set")
	}
	if string(e.Value) != `{"risk":0.42}` {
		t.Errorf("Value = %s", e.Value)
	}
	if !e.ExpiresAt.After(e.CreatedAt) {
		t.Errorf("ExpiresAt %v not after CreatedAt %v", e.ExpiresAt, e.CreatedAt)
	}

	if err := c.Delete(ctx, "fp:stroke:1:abc"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := c.Get(ctx, "fp:stroke:1:abc"); ok {
		t.Error("Get() should miss after Delete")
	}
	if err := c.Delete(ctx, "fp:stroke:1:abc"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestCache_Expiry(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	_ = c.Set(ctx, "short", []byte("v"), 20*time.Millisecond)
	time.Sleep(40 * time.Millisecond)

	if _, ok := c.Get(ctx, "short"); ok {
		t.Error("expired entry should not be returned")
	}
	if n := c.Len(ctx); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

func TestCache_ZeroTTLNotStored(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if n := c.Len(ctx); n != 0 {
		t.Errorf("Len() = %d, want 0", n)
	}
}

func TestCache_InvalidKey(t *testing.T) {
	c := openTest(t)
	if err := c.Set(context.Background(), " ", []byte("v"), time.Minute); !errors.Is(err, cache.ErrInvalidKey) {
		t.Errorf("Set() error = %v, want ErrInvalidKey", err)
	}
}

func TestCache_ClearReturnsCount(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := c.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
	}

	removed, err := c.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if removed != 10 {
		t.Errorf("Clear() = %d, want 10", removed)
	}
	if n := c.Len(ctx); n != 0 {
		t.Errorf("Len() after Clear = %d, want 0", n)
	}
}

func TestCache_Persistent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	ctx := context.Background()

	c, err := Open(path, cache.DefaultPolicy())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	_ = c.Set(ctx, "k", []byte("v"), time.Hour)
	_ = c.Close()

	c, err = Open(path, cache.DefaultPolicy())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer c.Close()

	if _, ok := c.Get(ctx, "k"); !ok {
		t.Error("entry should survive reopen")
	}
}

func TestCache_MaxTTLClamp(t *testing.T) {
	c, err := Open(":memory:", cache.Policy{DefaultTTL: time.Second, MaxTTL: time.Minute})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	_ = c.Set(ctx, "k", []byte("v"), 24*time.Hour)
	e, ok := c.Get(ctx, "k")
	if !ok {
		t.Fatal("Get() should hit")
	}
	if ttl := e.ExpiresAt.Sub(e.CreatedAt); ttl > time.Minute {
		t.Errorf("ttl = %v, want <= 1m", ttl)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("database is locked (5) (SQLITE_BUSY)"), true},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCache_Ping(t *testing.T) {
	c := openTest(t)
	if err := c.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
