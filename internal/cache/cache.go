// Package cache maps conversation fingerprints to upstream continuation
// tokens. Continuity is a best-effort convenience: every failure of the
// backing store degrades to a cache miss or a dropped write, never to a
// failed request. Concurrent requests with identical histories race on Store
// and the last write wins; callers that need strict continuity must supply
// their own token.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultTTL bounds how long a fingerprint mapping is retained. The upstream
// decides token validity on its own; the TTL is storage hygiene, not a
// correctness guarantee.
const DefaultTTL = 24 * time.Hour

// ErrNotFound is returned by Store implementations when a key is absent.
var ErrNotFound = errors.New("cache: key not found")

// Store is the key-value collaborator. Keys are fingerprint hex strings,
// values are opaque token strings.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string, ttl time.Duration) error
}

// TokenCache wraps a Store with the continuity-cache failure policy.
type TokenCache struct {
	store Store
	ttl   time.Duration
}

// New creates a TokenCache over the given store. A non-positive ttl falls
// back to DefaultTTL.
func New(store Store, ttl time.Duration) *TokenCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &TokenCache{store: store, ttl: ttl}
}

// Lookup returns the token stored under the fingerprint, if any. Backend
// errors are logged and reported as a miss.
func (c *TokenCache) Lookup(ctx context.Context, fp string) (string, bool) {
	token, err := c.store.Get(ctx, fp)
	if errors.Is(err, ErrNotFound) {
		return "", false
	}
	if err != nil {
		slog.Warn("cache.lookup.failed", "error", err)
		return "", false
	}
	if token == "" {
		return "", false
	}
	return token, true
}

// Save upserts the fingerprint to token mapping with the cache TTL. Write
// failures are logged and swallowed: losing continuity only degrades the
// next turn, it never breaks this one.
func (c *TokenCache) Save(ctx context.Context, fp, token string) {
	if fp == "" || token == "" {
		return
	}
	if err := c.store.Put(ctx, fp, token, c.ttl); err != nil {
		slog.Warn("cache.save.failed", "error", err)
	}
}
