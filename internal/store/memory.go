package store

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMemorySize is the entry cap of a Memory store.
const DefaultMemorySize = 10_000

type memEntry struct {
	value   []byte
	expires time.Time
}

// Memory is a bounded in-process Store. Least recently used entries are
// evicted once the cap is reached; expired entries are dropped on read.
type Memory struct {
	entries *lru.Cache[string, memEntry]
	now     func() time.Time
}

// NewMemory returns a Memory store holding at most size entries.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = DefaultMemorySize
	}
	c, err := lru.New[string, memEntry](size)
	if err != nil {
		return nil, fmt.Errorf("create memory store: %w", err)
	}
	return &Memory{entries: c, now: time.Now}, nil
}

// Get returns the value under key unless it is missing or expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	if !m.now().Before(e.expires) {
		m.entries.Remove(key)
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

// Set stores a copy of value under key for ttl.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	v := make([]byte, len(value))
	copy(v, value)
	m.entries.Add(key, memEntry{value: v, expires: m.now().Add(ttl)})
	return nil
}

// Len reports the number of entries, including not yet collected expired
// ones.
func (m *Memory) Len() int { return m.entries.Len() }

// Close drops every entry.
func (m *Memory) Close() error {
	m.entries.Purge()
	return nil
}
