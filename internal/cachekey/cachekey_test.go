package cachekey

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/tenant-auth-gateway/internal/tokentest"
)

const secret = "test-secret-key-for-hmac"

func TestKey_Format(t *testing.T) {
	key := Key(secret, "some.jwt.token", 42, KindAccount)

	parts := strings.Split(key, ":")
	assert.Len(t, parts, 3)
	assert.Len(t, parts[0], 16)
	assert.Equal(t, "42", parts[1])
	assert.Equal(t, "account", parts[2])
}

func TestKey_Deterministic(t *testing.T) {
	assert.Equal(t, Key(secret, "tok", 1, KindUser), Key(secret, "tok", 1, KindUser))
}

func TestKey_DistinctInputs(t *testing.T) {
	base := Key(secret, "tok-a", 42, KindAccount)

	assert.NotEqual(t, base, Key(secret, "tok-b", 42, KindAccount), "different tokens")
	assert.NotEqual(t, base, Key(secret, "tok-a", 43, KindAccount), "different ids")
	assert.NotEqual(t, base, Key(secret, "tok-a", 42, KindUser), "different kinds")
	assert.NotEqual(t, base, Key("other-secret", "tok-a", 42, KindAccount), "different secrets")
}

func TestKey_DoesNotContainToken(t *testing.T) {
	kp := tokentest.NewKeyPair(t)
	tok := kp.Sign(t, tokentest.DefaultPayload())
	key := Key(secret, tok, 42, KindAccount)

	assert.NotContains(t, key, tok)
	for _, segment := range strings.Split(tok, ".") {
		assert.NotContains(t, key, segment)
	}
}

func TestTTL(t *testing.T) {
	kp := tokentest.NewKeyPair(t)
	now := time.Now()

	withTTL := func(d time.Duration) string {
		p := tokentest.DefaultPayload()
		p.TTL = d
		return kp.Sign(t, p)
	}
	noExp := tokentest.DefaultPayload()
	noExp.NoExpiry = true

	tests := []struct {
		name  string
		token string
		min   time.Duration
		max   time.Duration
	}{
		{"short-lived token clamps to minimum", withTTL(30 * time.Second), MinTTL, MinTTL},
		{"expired token clamps to minimum", withTTL(-time.Hour), MinTTL, MinTTL},
		{"long-lived token clamps to maximum", withTTL(200000 * time.Second), MaxTTL, MaxTTL},
		{"no exp gets default", kp.Sign(t, noExp), DefaultTTL, DefaultTTL},
		{"garbage gets default", "not-a-jwt", DefaultTTL, DefaultTTL},
		{"remaining lifetime in range", withTTL(2 * time.Hour), 2*time.Hour - 5*time.Second, 2*time.Hour + time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TTL(tt.token, now)
			assert.GreaterOrEqual(t, got, tt.min)
			assert.LessOrEqual(t, got, tt.max)
		})
	}
}

func TestSuffix(t *testing.T) {
	assert.Equal(t, "99:account", Suffix(99, KindAccount))
	assert.True(t, strings.HasSuffix(Key(secret, "tok", 99, KindAccount), ":"+Suffix(99, KindAccount)))
}
