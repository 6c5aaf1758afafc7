// Package resolver decides which account a request acts on and loads the
// caller's profile, reading through the encrypted cache.
package resolver

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/tenant-auth-gateway/internal/cache"
	"github.com/iliyamo/tenant-auth-gateway/internal/cachekey"
	"github.com/iliyamo/tenant-auth-gateway/internal/model"
)

// Gateway is the subset of the identity client the resolver needs.
type Gateway interface {
	GetAccount(ctx context.Context, id int64, token string) (*model.Account, error)
	GetUserSelf(ctx context.Context, token string) (*model.User, error)
}

// Resolver resolves target accounts and user profiles.
type Resolver struct {
	gw     Gateway
	cache  *cache.Cache
	secret string
	now    func() time.Time
	log    zerolog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the clock used to compute cache lifetimes.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Resolver) { r.log = l }
}

// New returns a Resolver. c may be nil, in which case every lookup goes to
// the gateway. secret keys the token digest in cache keys.
func New(gw Gateway, c *cache.Cache, secret string, opts ...Option) *Resolver {
	r := &Resolver{gw: gw, cache: c, secret: secret, now: time.Now, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveAccount returns the account the request acts on. Without a target,
// or when the target is the caller's own account, the minimal account built
// from claims is returned with no cache or network access. Any other target
// is fetched from the gateway, which decides whether the caller may
// impersonate it.
func (r *Resolver) ResolveAccount(ctx context.Context, claims *model.Claims, token string, target int64, hasTarget bool) (*model.Account, error) {
	if !hasTarget || target == claims.AccountID {
		return model.MinimalAccount(claims), nil
	}

	key := cachekey.Key(r.secret, token, target, cachekey.KindAccount)
	if acct, ok := cache.Get[*model.Account](ctx, r.cache, key); ok && acct != nil {
		r.log.Debug().Str("entry", cachekey.Suffix(target, cachekey.KindAccount)).Msg("cache hit")
		return acct, nil
	}

	acct, err := r.gw.GetAccount(ctx, target, token)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, key, acct, cachekey.TTL(token, r.now()))
	return acct, nil
}

// LoadUser returns the caller's profile.
func (r *Resolver) LoadUser(ctx context.Context, claims *model.Claims, token string) (*model.User, error) {
	key := cachekey.Key(r.secret, token, claims.UserID, cachekey.KindUser)
	if u, ok := cache.Get[*model.User](ctx, r.cache, key); ok && u != nil {
		r.log.Debug().Str("entry", cachekey.Suffix(claims.UserID, cachekey.KindUser)).Msg("cache hit")
		return u, nil
	}

	u, err := r.gw.GetUserSelf(ctx, token)
	if err != nil {
		return nil, err
	}
	r.cache.Set(ctx, key, u, cachekey.TTL(token, r.now()))
	return u, nil
}
