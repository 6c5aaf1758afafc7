// Package cache is an encrypted cache-aside layer over a store.Store.
//
// Values are JSON encoded and sealed with AES-256-GCM under a key derived
// from the shared cache secret. Any failure reading or decrypting an entry
// is treated as a miss; write failures are logged and otherwise ignored, so
// the cache never changes the outcome of a request.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
	"github.com/iliyamo/tenant-auth-gateway/internal/cryptox"
	"github.com/iliyamo/tenant-auth-gateway/internal/store"
)

// DefaultTimeout bounds every store call made by the cache.
const DefaultTimeout = 5 * time.Second

// Cache encrypts values on the way into a store and decrypts them on the
// way out. A nil *Cache is valid and always misses.
type Cache struct {
	st      store.Store
	key     []byte
	log     zerolog.Logger
	timeout time.Duration
}

// New wraps st. The encryption key is derived from secret once.
func New(st store.Store, secret string, log zerolog.Logger) (*Cache, error) {
	if secret == "" {
		return nil, autherr.Configuration("cacheSecret is required")
	}
	if st == nil {
		return nil, autherr.Configuration("cache store is required")
	}
	return &Cache{st: st, key: cryptox.DeriveKey(secret), log: log, timeout: DefaultTimeout}, nil
}

// Get looks key up in c and decodes the entry into a T. The boolean is
// false on a miss, including every kind of read or decrypt failure.
func Get[T any](ctx context.Context, c *Cache, key string) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	raw, err := c.st.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Warn().Err(err).Str("entry", redact(key)).Msg("cache get failed")
		}
		return zero, false
	}
	var v T
	if err := cryptox.Decrypt(string(raw), c.key, &v); err != nil {
		c.log.Warn().Err(err).Str("entry", redact(key)).Msg("cache entry could not be decrypted")
		return zero, false
	}
	return v, true
}

// Set encrypts v and stores it under key for ttl. Errors are logged only.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	enc, err := cryptox.Encrypt(v, c.key)
	if err != nil {
		c.log.Warn().Err(err).Str("entry", redact(key)).Msg("cache entry could not be encrypted")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.st.Set(ctx, key, []byte(enc), ttl); err != nil {
		c.log.Warn().Err(err).Str("entry", redact(key)).Msg("cache set failed")
	}
}

// Close closes the underlying store.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.st.Close()
}

// redact drops the token digest from a cache key, leaving "id:kind".
func redact(key string) string {
	if i := strings.IndexByte(key, ':'); i >= 0 {
		return key[i+1:]
	}
	return key
}
