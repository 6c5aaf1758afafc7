package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"
)

// Redis connection policy defaults.
const (
	DefaultPrefix         = "ngapi:"
	DefaultMaxRetries     = 3
	DefaultBackoffBase    = 200 * time.Millisecond
	DefaultBackoffCap     = time.Second
	DefaultCooldown       = 30 * time.Second
	DefaultPingTimeout    = 2 * time.Second
	DefaultConnectTimeout = 5 * time.Second
	DefaultCallTimeout    = 5 * time.Second
)

// Redis is a Store backed by a go-redis client. The connection is
// established lazily on first use and retried with a bounded backoff; when
// every attempt fails the adapter reports ErrUnavailable until the cool-down
// elapses, then tries again.
//
// The client should be built with ContextTimeoutEnabled so that command
// deadlines reach the socket.
type Redis struct {
	client   *redis.Client
	prefix   string
	log      zerolog.Logger
	retries  uint64
	base     time.Duration
	maxDelay time.Duration
	cooldown time.Duration
	ping     time.Duration
	connect  time.Duration
	call     time.Duration
	now      func() time.Time

	flight    singleflight.Group
	mu        sync.Mutex
	connected bool
	downUntil time.Time
}

// RedisOption configures a Redis store.
type RedisOption func(*Redis)

// WithPrefix sets the key prefix applied to every key.
func WithPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithRedisLogger sets the logger used for connection warnings.
func WithRedisLogger(l zerolog.Logger) RedisOption {
	return func(r *Redis) { r.log = l }
}

// WithBackoff overrides the connect retry policy.
func WithBackoff(retries uint64, base, maxDelay, cooldown time.Duration) RedisOption {
	return func(r *Redis) {
		r.retries = retries
		if base > 0 {
			r.base = base
		}
		if maxDelay > 0 {
			r.maxDelay = maxDelay
		}
		if cooldown >= 0 {
			r.cooldown = cooldown
		}
	}
}

// WithTimeouts bounds a whole connect sequence and each command. Zero keeps
// the default.
func WithTimeouts(connect, call time.Duration) RedisOption {
	return func(r *Redis) {
		if connect > 0 {
			r.connect = connect
		}
		if call > 0 {
			r.call = call
		}
	}
}

// NewRedis wraps client. The client is not contacted until the first Get or
// Set.
func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		client:   client,
		prefix:   DefaultPrefix,
		log:      zerolog.Nop(),
		retries:  DefaultMaxRetries,
		base:     DefaultBackoffBase,
		maxDelay: DefaultBackoffCap,
		cooldown: DefaultCooldown,
		ping:     DefaultPingTimeout,
		connect:  DefaultConnectTimeout,
		call:     DefaultCallTimeout,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get returns the value stored under key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	if err := r.ensure(ctx); err != nil {
		return nil, err
	}
	cctx, cancel := context.WithTimeout(ctx, r.call)
	defer cancel()

	b, err := r.client.Get(cctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		r.markDown(ctx, err)
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return b, nil
}

// Set stores value under key with the given expiry (SETEX).
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, r.call)
	defer cancel()

	if err := r.client.SetEx(cctx, r.prefix+key, value, ttl).Err(); err != nil {
		r.markDown(ctx, err)
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Close shuts the client down.
func (r *Redis) Close() error {
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
	return r.client.Close()
}

// ensure connects on first use. Concurrent callers share one connect
// attempt, and each gives up waiting when its own ctx ends.
func (r *Redis) ensure(ctx context.Context) error {
	if err := r.state(); err != errNotConnected {
		return err
	}
	ch := r.flight.DoChan("connect", func() (any, error) {
		return nil, r.dial()
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

var errNotConnected = errors.New("store: not connected")

// state reports nil when connected, ErrUnavailable during the cool-down and
// errNotConnected when a connect attempt is due.
func (r *Redis) state() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch {
	case r.connected:
		return nil
	case r.now().Before(r.downUntil):
		return ErrUnavailable
	default:
		return errNotConnected
	}
}

// dial runs the retry sequence on its own deadline, detached from any
// single caller.
func (r *Redis) dial() error {
	if err := r.state(); err != errNotConnected {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), r.connect)
	defer cancel()

	attempt := 0
	b := retry.WithMaxRetries(r.retries, retry.WithCappedDuration(r.maxDelay, retry.NewExponential(r.base)))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		pctx, cancel := context.WithTimeout(ctx, r.ping)
		defer cancel()
		if err := r.client.Ping(pctx).Err(); err != nil {
			r.log.Debug().Err(err).Int("attempt", attempt).Msg("redis connect attempt failed")
			return retry.RetryableError(err)
		}
		return nil
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.downUntil = r.now().Add(r.cooldown)
		r.log.Warn().Err(err).Int("attempts", attempt).Msg("redis: maximum retry attempts reached, giving up connection")
		return ErrUnavailable
	}
	r.connected = true
	return nil
}

// markDown forgets the connection after a command failed, unless the
// failure was the caller's own ctx ending, so the next call reconnects.
func (r *Redis) markDown(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	r.mu.Lock()
	r.connected = false
	r.mu.Unlock()
	r.log.Warn().Err(err).Msg("redis command failed")
}
