package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultAPIKeyHeader carries API keys.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKey is a registered key. Only its SHA-256 hash is kept.
type APIKey struct {
	ID        string
	Hash      string
	Principal string
	Roles     []string
	ExpiresAt time.Time
}

// KeyStore looks up API keys by hash.
type KeyStore interface {
	// Lookup returns nil, nil when no key has the hash.
	Lookup(ctx context.Context, hash string) (*APIKey, error)
}

// APIKeyAuthenticator validates API keys from a request header.
type APIKeyAuthenticator struct {
	header string
	store  KeyStore
	now    func() time.Time
}

// NewAPIKeyAuthenticator reads keys from header (DefaultAPIKeyHeader if empty).
func NewAPIKeyAuthenticator(header string, store KeyStore) *APIKeyAuthenticator {
	if header == "" {
		header = DefaultAPIKeyHeader
	}
	return &APIKeyAuthenticator{header: header, store: store, now: time.Now}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string { return "api_key" }

// Authenticate implements Authenticator.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, header http.Header) (*Identity, error) {
	raw := strings.TrimSpace(header.Get(a.header))
	if raw == "" {
		return nil, ErrMissingCredentials
	}

	key, err := a.store.Lookup(ctx, HashAPIKey(raw))
	if err != nil {
		return nil, err
	}
	if key == nil {
		return nil, ErrInvalidCredentials
	}

	id := &Identity{
		Principal: key.Principal,
		Roles:     append([]string(nil), key.Roles...),
		Method:    MethodAPIKey,
		ExpiresAt: key.ExpiresAt,
	}
	if id.Expired(a.now()) {
		return nil, ErrTokenExpired
	}
	return id, nil
}

// HashAPIKey returns the hex SHA-256 of key, the form stored in a KeyStore.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// MemoryKeyStore is an in-memory KeyStore.
type MemoryKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKey
}

// NewMemoryKeyStore creates a store holding keys.
func NewMemoryKeyStore(keys ...APIKey) *MemoryKeyStore {
	s := &MemoryKeyStore{keys: make(map[string]*APIKey, len(keys))}
	for _, k := range keys {
		s.Add(k)
	}
	return s
}

// Lookup implements KeyStore.
func (s *MemoryKeyStore) Lookup(_ context.Context, hash string) (*APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[hash]
	if !ok {
		return nil, nil
	}
	out := *k
	return &out, nil
}

// Add registers a key, replacing any key with the same hash.
func (s *MemoryKeyStore) Add(k APIKey) {
	s.mu.Lock()
	s.keys[k.Hash] = &k
	s.mu.Unlock()
}

// Remove forgets the key with the given hash.
func (s *MemoryKeyStore) Remove(hash string) {
	s.mu.Lock()
	delete(s.keys, hash)
	s.mu.Unlock()
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ KeyStore      = (*MemoryKeyStore)(nil)
)
