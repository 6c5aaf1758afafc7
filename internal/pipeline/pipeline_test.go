package pipeline

import (
	"context"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
	"github.com/iliyamo/tenant-auth-gateway/internal/config"
	"github.com/iliyamo/tenant-auth-gateway/internal/gatewaytest"
	"github.com/iliyamo/tenant-auth-gateway/internal/tokentest"
)

type env struct {
	gw    *gatewaytest.Gateway
	auth  *Authenticator
	kp    tokentest.KeyPair
	token string
}

func authConfig(baseURL string) config.Auth {
	return config.Auth{
		APIBaseURL:      baseURL,
		CacheSecret:     "cache-secret",
		AccountIDParams: config.DefaultAccountIDParams,
		JWT: config.JWT{
			Algorithms:     config.DefaultAlgorithms,
			Issuer:         config.DefaultIssuer,
			ClockTolerance: config.DefaultClockTolerance,
		},
		RequestTimeout: time.Second,
		ForbiddenCodes: config.DefaultForbiddenCodes,
	}
}

func newEnv(t *testing.T, mutate func(*config.Auth)) *env {
	t.Helper()
	kp := tokentest.NewKeyPair(t)
	gw := gatewaytest.New(t, kp.PublicPEM, 99)
	cfg := authConfig(gw.URL)
	if mutate != nil {
		mutate(&cfg)
	}
	auth, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = auth.Close() })
	return &env{gw: gw, auth: auth, kp: kp, token: kp.Sign(t, tokentest.DefaultPayload())}
}

func query(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func TestAuthenticate_SelfAccess(t *testing.T) {
	e := newEnv(t, nil)

	id, err := e.auth.Authenticate(context.Background(), "Bearer "+e.token, nil)
	require.NoError(t, err)

	assert.Equal(t, e.token, id.Token)
	assert.Equal(t, "42", id.Account.ID)
	assert.Equal(t, "1-42", id.Account.Lineage)
	assert.Equal(t, "active", id.Account.Status)
	assert.False(t, id.IsImpersonating())

	assert.Equal(t, "user@example.com", id.User.Email)
	assert.Equal(t, "42", id.User.Account.ID)
	assert.Equal(t, []string{"user"}, id.User.Scopes)
	assert.Equal(t, "user-key-7", id.User.UserKey)

	assert.EqualValues(t, 1, e.gw.PubkeyCalls.Load())
	assert.EqualValues(t, 1, e.gw.UserCalls.Load())
	assert.Zero(t, e.gw.AccountCalls.Load())
}

func TestAuthenticate_ExplicitOwnAccountIsSelfAccess(t *testing.T) {
	e := newEnv(t, nil)

	id, err := e.auth.Authenticate(context.Background(), "Bearer "+e.token, query("account_id", "42"))
	require.NoError(t, err)
	assert.Equal(t, "42", id.Account.ID)
	assert.Zero(t, e.gw.AccountCalls.Load())
}

func TestAuthenticate_ImpersonationIsCached(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	first, err := e.auth.Authenticate(ctx, "Bearer "+e.token, query("accountId", "99"))
	require.NoError(t, err)
	assert.Equal(t, "99", first.Account.ID)
	assert.Equal(t, "Account 99", first.Account.Name)
	assert.Equal(t, "42", first.User.Account.ID, "own account derived from claims, not the target")
	assert.True(t, first.IsImpersonating())

	second, err := e.auth.Authenticate(ctx, "Bearer "+e.token, query("accountId", "99"))
	require.NoError(t, err)
	assert.Equal(t, first.Account, second.Account)

	assert.EqualValues(t, 1, e.gw.AccountCalls.Load())
	assert.EqualValues(t, 1, e.gw.UserCalls.Load())
	assert.EqualValues(t, 1, e.gw.PubkeyCalls.Load())
}

func TestAuthenticate_ForbiddenTarget(t *testing.T) {
	e := newEnv(t, nil)

	_, err := e.auth.Authenticate(context.Background(), "Bearer "+e.token, query("accountId", "500"))
	ae, ok := autherr.As(err)
	require.True(t, ok)
	assert.Equal(t, autherr.KindAuthorization, ae.Kind)
	assert.Equal(t, "Access denied to account 500", ae.Message)
	assert.Zero(t, e.gw.UserCalls.Load(), "user is not loaded once authorization failed")
}

func TestAuthenticate_InvalidTargetFallsBackToSelf(t *testing.T) {
	e := newEnv(t, nil)

	id, err := e.auth.Authenticate(context.Background(), "Bearer "+e.token, query("accountId", "abc", "account_id", "-3"))
	require.NoError(t, err)
	assert.Equal(t, "42", id.Account.ID)
}

func TestAuthenticate_MissingHeaderMakesNoCalls(t *testing.T) {
	e := newEnv(t, nil)

	for _, header := range []string{"", "Basic abc", "Bearer", "Bearer a b"} {
		_, err := e.auth.Authenticate(context.Background(), header, nil)
		assert.True(t, autherr.Is(err, autherr.KindAuthentication), "header %q", header)
	}
	assert.Zero(t, e.gw.Calls())
}

func TestAuthenticate_TokenFailures(t *testing.T) {
	e := newEnv(t, nil)
	other := tokentest.NewKeyPair(t)

	expired := tokentest.DefaultPayload()
	expired.TTL = -time.Hour
	wrongIssuer := tokentest.DefaultPayload()
	wrongIssuer.Issuer = "urn:someone-else"

	tests := []struct {
		name    string
		token   string
		message string
	}{
		{"expired", e.kp.Sign(t, expired), "Token has expired"},
		{"foreign key", other.Sign(t, tokentest.DefaultPayload()), "Invalid token"},
		{"wrong issuer", e.kp.Sign(t, wrongIssuer), "Invalid token"},
		{"hs256", tokentest.SignHS256(t, tokentest.DefaultPayload(), []byte("k")), "Invalid token"},
		{"garbage", "not.a.jwt", "Invalid token"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.auth.Authenticate(context.Background(), "Bearer "+tt.token, nil)
			ae, ok := autherr.As(err)
			require.True(t, ok)
			assert.Equal(t, autherr.KindAuthentication, ae.Kind)
			assert.Equal(t, tt.message, ae.Message)
		})
	}
	assert.Zero(t, e.gw.UserCalls.Load())
}

func TestAuthenticate_CachingDisabled(t *testing.T) {
	e := newEnv(t, func(c *config.Auth) { c.DisableCaching = true })

	for i := 0; i < 2; i++ {
		_, err := e.auth.Authenticate(context.Background(), "Bearer "+e.token, query("accountId", "99"))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 2, e.gw.AccountCalls.Load())
	assert.EqualValues(t, 2, e.gw.UserCalls.Load())
}

func TestNew_ZeroConfigCaches(t *testing.T) {
	kp := tokentest.NewKeyPair(t)
	gw := gatewaytest.New(t, kp.PublicPEM, 99)

	auth, err := New(config.Auth{APIBaseURL: gw.URL, CacheSecret: "cache-secret"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = auth.Close() })

	token := kp.Sign(t, tokentest.DefaultPayload())
	for i := 0; i < 2; i++ {
		_, err := auth.Authenticate(context.Background(), "Bearer "+token, query("accountId", "99"))
		require.NoError(t, err)
	}
	assert.EqualValues(t, 1, gw.AccountCalls.Load())
	assert.EqualValues(t, 1, gw.UserCalls.Load())
}

func TestAuthenticate_StaticPublicKey(t *testing.T) {
	kp := tokentest.NewKeyPair(t)
	gw := gatewaytest.New(t, "unused")
	cfg := authConfig(gw.URL)
	cfg.PublicKey = kp.PublicPEM

	auth, err := New(cfg)
	require.NoError(t, err)

	_, err = auth.Authenticate(context.Background(), "Bearer "+kp.Sign(t, tokentest.DefaultPayload()), nil)
	require.NoError(t, err)
	assert.Zero(t, gw.PubkeyCalls.Load())
}

func TestAuthenticate_ConcurrentFirstRequestsShareKeyFetch(t *testing.T) {
	e := newEnv(t, nil)

	var wg sync.WaitGroup
	errs := make([]error, 20)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = e.auth.Authenticate(context.Background(), "Bearer "+e.token, nil)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.EqualValues(t, 1, e.gw.PubkeyCalls.Load())
}

func TestAuthenticate_KeyFetchFailureIsConfiguration(t *testing.T) {
	cfg := authConfig("http://127.0.0.1:1")
	cfg.RequestTimeout = 200 * time.Millisecond
	auth, err := New(cfg)
	require.NoError(t, err)

	kp := tokentest.NewKeyPair(t)
	_, err = auth.Authenticate(context.Background(), "Bearer "+kp.Sign(t, tokentest.DefaultPayload()), nil)
	assert.True(t, autherr.Is(err, autherr.KindConfiguration))
}

func TestNew_RequiresCacheSecret(t *testing.T) {
	cfg := authConfig("http://gw.local")
	cfg.CacheSecret = ""
	_, err := New(cfg)
	require.Error(t, err)
	assert.True(t, autherr.Is(err, autherr.KindConfiguration))
}

func TestContextRoundTrip(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	e := newEnv(t, nil)
	id, err := e.auth.Authenticate(context.Background(), "Bearer "+e.token, nil)
	require.NoError(t, err)

	got, ok := FromContext(WithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Same(t, id, got)
}
