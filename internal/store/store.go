// Package store defines the key/value backing store used by the encrypted
// cache, with a Redis adapter and an in-process fallback.
//
// Stores hold opaque bytes. They know nothing about encryption or record
// types; that belongs to package cache.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key is absent or expired.
var ErrNotFound = errors.New("store: not found")

// ErrUnavailable is returned when the backing store cannot be reached and
// the adapter has given up connecting for now.
var ErrUnavailable = errors.New("store: unavailable")

// Store is a key/value store with per-entry expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Close() error
}
