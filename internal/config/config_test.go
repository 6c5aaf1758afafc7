package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
)

func clearAuthEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"IDENTITY_API_BASE_URL", "AUTH_PUBLIC_KEY", "AUTH_PUBLIC_KEY_FILE", "AUTH_CACHE_ENABLED",
		"AUTH_ACCOUNT_ID_PARAMS", "AUTH_JWT_ALGORITHMS", "AUTH_JWT_ISSUER", "AUTH_JWT_CLOCK_TOLERANCE",
		"AUTH_REQUEST_TIMEOUT", "AUTH_FORBIDDEN_CODES", "AUTH_CACHE_SECRET",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadAuth_Defaults(t *testing.T) {
	clearAuthEnv(t)
	t.Setenv("AUTH_CACHE_SECRET", "s3cret")

	a, err := LoadAuth()
	require.NoError(t, err)

	assert.Equal(t, "https://api.cakemail.dev", a.APIBaseURL)
	assert.Equal(t, "s3cret", a.CacheSecret)
	assert.False(t, a.DisableCaching)
	assert.Equal(t, []string{"accountId", "account_id"}, a.AccountIDParams)
	assert.Equal(t, []string{"RS256"}, a.JWT.Algorithms)
	assert.Equal(t, "urn:cakemail", a.JWT.Issuer)
	assert.Equal(t, 10*time.Second, a.JWT.ClockTolerance)
	assert.Equal(t, 5*time.Second, a.RequestTimeout)
	assert.Equal(t, []int{8004}, a.ForbiddenCodes)
	assert.NoError(t, a.Validate())
}

func TestLoadAuth_Overrides(t *testing.T) {
	t.Setenv("IDENTITY_API_BASE_URL", "http://gw.local")
	t.Setenv("AUTH_CACHE_SECRET", "s3cret")
	t.Setenv("AUTH_CACHE_ENABLED", "false")
	t.Setenv("AUTH_ACCOUNT_ID_PARAMS", " tenant , ,acct")
	t.Setenv("AUTH_JWT_ALGORITHMS", "RS256,ES256")
	t.Setenv("AUTH_JWT_CLOCK_TOLERANCE", "30")
	t.Setenv("AUTH_REQUEST_TIMEOUT", "750ms")
	t.Setenv("AUTH_FORBIDDEN_CODES", "8004, 8005")

	a, err := LoadAuth()
	require.NoError(t, err)

	assert.Equal(t, "http://gw.local", a.APIBaseURL)
	assert.True(t, a.DisableCaching)
	assert.Equal(t, []string{"tenant", "acct"}, a.AccountIDParams)
	assert.Equal(t, []string{"RS256", "ES256"}, a.JWT.Algorithms)
	assert.Equal(t, 30*time.Second, a.JWT.ClockTolerance)
	assert.Equal(t, 750*time.Millisecond, a.RequestTimeout)
	assert.Equal(t, []int{8004, 8005}, a.ForbiddenCodes)
}

func TestLoadAuth_PublicKeyFile(t *testing.T) {
	clearAuthEnv(t)
	path := filepath.Join(t.TempDir(), "pub.pem")
	require.NoError(t, os.WriteFile(path, []byte("-----BEGIN PUBLIC KEY-----"), 0o600))
	t.Setenv("AUTH_PUBLIC_KEY_FILE", path)

	a, err := LoadAuth()
	require.NoError(t, err)
	assert.Equal(t, "-----BEGIN PUBLIC KEY-----", a.PublicKey)

	t.Setenv("AUTH_PUBLIC_KEY", "inline")
	a, err = LoadAuth()
	require.NoError(t, err)
	assert.Equal(t, "inline", a.PublicKey)

	t.Setenv("AUTH_PUBLIC_KEY", "")
	t.Setenv("AUTH_PUBLIC_KEY_FILE", filepath.Join(t.TempDir(), "missing.pem"))
	_, err = LoadAuth()
	assert.Error(t, err)
}

func TestLoadAuth_BadForbiddenCodes(t *testing.T) {
	t.Setenv("AUTH_FORBIDDEN_CODES", "8004,abc")
	_, err := LoadAuth()
	assert.ErrorContains(t, err, "AUTH_FORBIDDEN_CODES")
}

func TestAuthValidate_RequiresSecret(t *testing.T) {
	err := Auth{APIBaseURL: DefaultAPIBaseURL, JWT: JWT{Algorithms: DefaultAlgorithms}}.Validate()
	require.Error(t, err)
	assert.True(t, autherr.Is(err, autherr.KindConfiguration))
	assert.Contains(t, err.Error(), "cacheSecret is required")
}

func TestLoadRedis(t *testing.T) {
	for _, k := range []string{"REDIS_ADDR", "REDIS_HOST", "REDIS_PORT", "REDIS_ENABLED"} {
		t.Setenv(k, "")
	}
	r := LoadRedis()
	assert.False(t, r.Enabled, "no address configured")
	assert.Nil(t, NewRedisClient(r))

	t.Setenv("REDIS_HOST", "cache.local")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "1")
	t.Setenv("REDIS_KEY_PREFIX", "myapp:auth:")

	r = LoadRedis()
	assert.True(t, r.Enabled)
	assert.Equal(t, "cache.local:6380", r.Addr)
	assert.Equal(t, "myapp:auth:", r.KeyPrefix)

	opts := r.Options()
	assert.Equal(t, 2, opts.DB)
	assert.True(t, opts.ContextTimeoutEnabled)
	assert.NotNil(t, opts.TLSConfig)

	client := NewRedisClient(r)
	require.NotNil(t, client)
	assert.NoError(t, client.Close())
}

func TestLoadRateLimitConfig_Normalises(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 1, c.RefillTokens)
	assert.Equal(t, 2*time.Second, c.RefillInterval)
	assert.Equal(t, 10*time.Second, c.TTL)
	assert.Equal(t, "account_user", c.KeyStrategy)
}

func TestConfigValidate(t *testing.T) {
	clearAuthEnv(t)
	t.Setenv("AUTH_EVENTS_ENABLED", "true")
	t.Setenv("AUTH_EVENTS_QUEUE", "")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "auth.failures", c.Queue.Name)
	assert.True(t, c.Queue.Enabled)

	err = c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cacheSecret is required")

	c.Auth.CacheSecret = "s3cret"
	assert.NoError(t, c.Validate())
}
