// Package cachekey derives token-scoped cache keys and cache lifetimes.
//
// The bearer token never appears in a key: only the first 16 hex chars of
// HMAC-SHA256(secret, token). Keys are therefore safe to log and differ per
// caller even for the same record.
package cachekey

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind is the record type a key refers to.
type Kind string

const (
	KindAccount Kind = "account"
	KindUser    Kind = "user"
)

// TTL bounds.
const (
	MinTTL     = 60 * time.Second
	MaxTTL     = 24 * time.Hour
	DefaultTTL = time.Hour
)

const digestLen = 16

// Key returns "<hmac16>:<id>:<kind>".
func Key(secret, token string, id int64, kind Kind) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(token))
	digest := hex.EncodeToString(mac.Sum(nil))[:digestLen]
	return digest + ":" + strconv.FormatInt(id, 10) + ":" + string(kind)
}

// Suffix returns the non-secret "<id>:<kind>" part of a key, for logs.
func Suffix(id int64, kind Kind) string {
	return strconv.FormatInt(id, 10) + ":" + string(kind)
}

// TTL returns how long records fetched with token may be cached: the
// token's remaining lifetime clamped to [MinTTL, MaxTTL]. Tokens without
// exp, or that cannot be decoded, get DefaultTTL. The signature is not
// checked here; the token has already been verified by the time this runs.
func TTL(token string, now time.Time) time.Duration {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return DefaultTTL
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return DefaultTTL
	}
	ttl := exp.Sub(now).Truncate(time.Second)
	if ttl < MinTTL {
		return MinTTL
	}
	if ttl > MaxTTL {
		return MaxTTL
	}
	return ttl
}
