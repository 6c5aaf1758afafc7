// Package pipeline runs the per-request authentication flow: extract the
// bearer token, verify it, resolve the target account, load the caller's
// profile and assemble the resolved identity.
//
// The package is framework neutral; package middleware adapts it to echo
// and net/http.
package pipeline

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
	"github.com/iliyamo/tenant-auth-gateway/internal/cache"
	"github.com/iliyamo/tenant-auth-gateway/internal/config"
	"github.com/iliyamo/tenant-auth-gateway/internal/identity"
	"github.com/iliyamo/tenant-auth-gateway/internal/model"
	"github.com/iliyamo/tenant-auth-gateway/internal/pubkey"
	"github.com/iliyamo/tenant-auth-gateway/internal/resolver"
	"github.com/iliyamo/tenant-auth-gateway/internal/store"
	"github.com/iliyamo/tenant-auth-gateway/internal/token"
	"github.com/iliyamo/tenant-auth-gateway/internal/verifier"
)

// State names a step of the flow, for tracing.
type State string

const (
	StateStart            State = "start"
	StateKeyReady         State = "key-ready"
	StateVerified         State = "verified"
	StateAccountResolved  State = "account-resolved"
	StateUserLoaded       State = "user-loaded"
	StateContextPopulated State = "context-populated"
	StateFailed           State = "failed"
)

// Authenticator resolves the identity of a request. It is safe for
// concurrent use and meant to be built once per process.
type Authenticator struct {
	keys     *verifier.Keyed
	resolver *resolver.Resolver
	cache    *cache.Cache
	params   []string
	log      zerolog.Logger
}

type deps struct {
	store   store.Store
	keys    pubkey.Source
	gateway resolver.Gateway
	client  *http.Client
	now     func() time.Time
	log     zerolog.Logger
}

// Option supplies a dependency to New.
type Option func(*deps)

// WithStore sets the backing store of the record cache. Without one an
// in-process store is used.
func WithStore(s store.Store) Option {
	return func(d *deps) { d.store = s }
}

// WithKeySource overrides where the verification key comes from.
func WithKeySource(src pubkey.Source) Option {
	return func(d *deps) { d.keys = src }
}

// WithGateway overrides the identity gateway client.
func WithGateway(gw resolver.Gateway) Option {
	return func(d *deps) { d.gateway = gw }
}

// WithHTTPClient sets the HTTP client for gateway calls.
func WithHTTPClient(c *http.Client) Option {
	return func(d *deps) { d.client = c }
}

// WithClock overrides the clock used for cache lifetimes.
func WithClock(now func() time.Time) Option {
	return func(d *deps) { d.now = now }
}

// WithLogger sets the logger for the pipeline and its components.
func WithLogger(l zerolog.Logger) Option {
	return func(d *deps) { d.log = l }
}

// New wires an Authenticator from cfg. It fails with a ConfigurationError
// when the cache secret is missing.
func New(cfg config.Auth, opts ...Option) (*Authenticator, error) {
	if cfg.CacheSecret == "" {
		return nil, autherr.Configuration("cacheSecret is required")
	}

	d := deps{log: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(&d)
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = identity.DefaultBaseURL
	}

	src := d.keys
	switch {
	case src != nil:
	case cfg.PublicKey != "":
		src = pubkey.Static(cfg.PublicKey)
	default:
		src = pubkey.New(cfg.APIBaseURL,
			pubkey.WithHTTPClient(d.client),
			pubkey.WithTimeout(cfg.RequestTimeout),
			pubkey.WithLogger(d.log.With().Str("component", "pubkey").Logger()),
		)
	}

	gw := d.gateway
	if gw == nil {
		idOpts := []identity.Option{
			identity.WithHTTPClient(d.client),
			identity.WithTimeout(cfg.RequestTimeout),
			identity.WithLogger(d.log.With().Str("component", "identity").Logger()),
		}
		if cfg.ForbiddenCodes != nil {
			idOpts = append(idOpts, identity.WithForbiddenCodes(cfg.ForbiddenCodes...))
		}
		gw = identity.New(cfg.APIBaseURL, idOpts...)
	}

	var c *cache.Cache
	if !cfg.DisableCaching {
		st := d.store
		if st == nil {
			mem, err := store.NewMemory(cfg.MemoryCacheSize)
			if err != nil {
				return nil, err
			}
			st = mem
		}
		var err error
		c, err = cache.New(st, cfg.CacheSecret, d.log.With().Str("component", "cache").Logger())
		if err != nil {
			return nil, err
		}
	}

	return &Authenticator{
		keys: verifier.NewKeyed(src, verifier.Options{
			Algorithms:     cfg.JWT.Algorithms,
			Issuer:         cfg.JWT.Issuer,
			ClockTolerance: cfg.JWT.ClockTolerance,
		}),
		resolver: resolver.New(gw, c, cfg.CacheSecret,
			resolver.WithClock(d.now),
			resolver.WithLogger(d.log.With().Str("component", "resolver").Logger()),
		),
		cache:  c,
		params: cfg.AccountIDParams,
		log:    d.log,
	}, nil
}

// Authenticate resolves the identity behind an Authorization header value
// and the request's query parameters. The returned identity is complete;
// on error nothing is returned.
func (a *Authenticator) Authenticate(ctx context.Context, header string, query url.Values) (*model.Identity, error) {
	state := StateStart
	a.trace(state)
	fail := func(err error) (*model.Identity, error) {
		a.log.Debug().Str("state", string(StateFailed)).Str("after", string(state)).Err(err).Msg("auth pipeline")
		return nil, err
	}

	raw, err := token.ExtractBearer(header)
	if err != nil {
		return fail(err)
	}

	v, err := a.keys.Ready(ctx)
	if err != nil {
		return fail(err)
	}
	state = StateKeyReady
	a.trace(state)

	claims, err := v.Verify(raw)
	if err != nil {
		return fail(err)
	}
	state = StateVerified
	a.trace(state)

	target, hasTarget := token.ExtractAccountID(query, a.params)
	acct, err := a.resolver.ResolveAccount(ctx, claims, raw, target, hasTarget)
	if err != nil {
		return fail(err)
	}
	state = StateAccountResolved
	a.trace(state)

	u, err := a.resolver.LoadUser(ctx, claims, raw)
	if err != nil {
		return fail(err)
	}
	state = StateUserLoaded
	a.trace(state)

	id := &model.Identity{
		Token:   raw,
		User:    model.NewAuthenticatedUser(claims, u, model.MinimalAccount(claims)),
		Account: acct,
	}
	a.log.Debug().
		Str("state", string(StateContextPopulated)).
		Int64("user_id", claims.UserID).
		Str("account_id", acct.ID).
		Bool("impersonating", id.IsImpersonating()).
		Msg("auth pipeline")
	return id, nil
}

// Close releases the cache store.
func (a *Authenticator) Close() error {
	return a.cache.Close()
}

func (a *Authenticator) trace(s State) {
	a.log.Debug().Str("state", string(s)).Msg("auth pipeline")
}
