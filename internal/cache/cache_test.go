package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
	"github.com/iliyamo/tenant-auth-gateway/internal/model"
	"github.com/iliyamo/tenant-auth-gateway/internal/store"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}
func (f failingStore) Close() error { return nil }

// stallingStore blocks every call until the caller's ctx ends.
type stallingStore struct{}

func (stallingStore) Get(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (stallingStore) Set(ctx context.Context, _ string, _ []byte, _ time.Duration) error {
	<-ctx.Done()
	return ctx.Err()
}

func (stallingStore) Close() error { return nil }

func newMemory(t *testing.T) *store.Memory {
	t.Helper()
	m, err := store.NewMemory(16)
	require.NoError(t, err)
	return m
}

func TestNew_RequiresSecret(t *testing.T) {
	_, err := New(newMemory(t), "", zerolog.Nop())
	require.Error(t, err)
	assert.True(t, autherr.Is(err, autherr.KindConfiguration))
	assert.Contains(t, err.Error(), "cacheSecret is required")
}

func TestCache_SetThenGet(t *testing.T) {
	mem := newMemory(t)
	c, err := New(mem, "secret", zerolog.Nop())
	require.NoError(t, err)
	ctx := context.Background()

	acct := &model.Account{ID: "99", Lineage: "1-99", Status: "active", Name: "Acme"}
	c.Set(ctx, "abcd:99:account", acct, time.Minute)

	raw, err := mem.Get(ctx, "abcd:99:account")
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "Acme", "entries must be stored encrypted")

	got, ok := Get[*model.Account](ctx, c, "abcd:99:account")
	require.True(t, ok)
	assert.Equal(t, acct, got)
}

func TestCache_MissCases(t *testing.T) {
	ctx := context.Background()

	t.Run("absent", func(t *testing.T) {
		c, err := New(newMemory(t), "secret", zerolog.Nop())
		require.NoError(t, err)
		_, ok := Get[*model.Account](ctx, c, "x:1:account")
		assert.False(t, ok)
	})

	t.Run("corrupted entry", func(t *testing.T) {
		mem := newMemory(t)
		require.NoError(t, mem.Set(ctx, "x:1:account", []byte("garbage"), time.Minute))
		var logs bytes.Buffer
		c, err := New(mem, "secret", zerolog.New(&logs))
		require.NoError(t, err)

		_, ok := Get[*model.Account](ctx, c, "x:1:account")
		assert.False(t, ok)
		assert.Contains(t, logs.String(), "could not be decrypted")
		assert.Contains(t, logs.String(), `"entry":"1:account"`)
		assert.NotContains(t, logs.String(), "x:1:account")
	})

	t.Run("written under another secret", func(t *testing.T) {
		mem := newMemory(t)
		writer, err := New(mem, "secret-a", zerolog.Nop())
		require.NoError(t, err)
		reader, err := New(mem, "secret-b", zerolog.Nop())
		require.NoError(t, err)

		writer.Set(ctx, "x:1:user", &model.User{ID: "1"}, time.Minute)
		_, ok := Get[*model.User](ctx, reader, "x:1:user")
		assert.False(t, ok)
	})

	t.Run("store failure", func(t *testing.T) {
		var logs bytes.Buffer
		c, err := New(failingStore{err: errors.New("connection refused")}, "secret", zerolog.New(&logs))
		require.NoError(t, err)

		_, ok := Get[*model.User](ctx, c, "x:1:user")
		assert.False(t, ok)
		c.Set(ctx, "x:1:user", &model.User{ID: "1"}, time.Minute)
		assert.Contains(t, logs.String(), "cache get failed")
		assert.Contains(t, logs.String(), "cache set failed")
	})

	t.Run("nil cache", func(t *testing.T) {
		var c *Cache
		c.Set(ctx, "x:1:user", &model.User{ID: "1"}, time.Minute)
		_, ok := Get[*model.User](ctx, c, "x:1:user")
		assert.False(t, ok)
		assert.NoError(t, c.Close())
	})
}

func TestCache_StalledStoreIsBounded(t *testing.T) {
	c, err := New(stallingStore{}, "secret", zerolog.Nop())
	require.NoError(t, err)
	c.timeout = 50 * time.Millisecond

	start := time.Now()
	_, ok := Get[model.User](context.Background(), c, "abc:7:user")
	assert.False(t, ok)
	c.Set(context.Background(), "abc:7:user", model.User{ID: "7"}, time.Minute)
	assert.Less(t, time.Since(start), time.Second)
}
