// Package tokentest issues RS256 access tokens shaped like the Identity
// Gateway's, for tests. The pipeline itself never issues tokens.
package tokentest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is the issuer claim used by default.
const Issuer = "urn:cakemail"

// KeyPair is an RSA signing key and its PEM encoded public half.
type KeyPair struct {
	Private   *rsa.PrivateKey
	PublicPEM string
}

// NewKeyPair generates a 2048-bit RSA key pair or fails the test.
func NewKeyPair(t testing.TB) KeyPair {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}
	der, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		t.Fatalf("marshal public key: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return KeyPair{Private: priv, PublicPEM: string(pemBytes)}
}

// Payload describes the claims of a test token. Zero values are filled
// with sensible defaults by Sign.
type Payload struct {
	UserID    int64
	AccountID int64
	Lineage   string
	Email     string
	Scopes    []string
	UserKey   string
	Issuer    string
	TTL       time.Duration // relative to now; negative yields an expired token
	NoExpiry  bool
}

// DefaultPayload is the caller used throughout the tests: user 7 of
// account 42.
func DefaultPayload() Payload {
	return Payload{
		UserID:    7,
		AccountID: 42,
		Lineage:   "1-42",
		Email:     "user@example.com",
		Scopes:    []string{"user"},
		UserKey:   "user-key-7",
		TTL:       time.Hour,
	}
}

// Claims renders p into jwt.MapClaims.
func (p Payload) Claims() jwt.MapClaims {
	now := time.Now().UTC()
	iss := p.Issuer
	if iss == "" {
		iss = Issuer
	}
	claims := jwt.MapClaims{
		"id":         p.UserID,
		"account_id": p.AccountID,
		"accounts":   "",
		"lineage":    p.Lineage,
		"email":      p.Email,
		"iss":        iss,
		"iat":        now.Unix(),
		"scopes":     p.Scopes,
		"tz":         "UTC",
		"user_key":   p.UserKey,
	}
	if !p.NoExpiry {
		ttl := p.TTL
		if ttl == 0 {
			ttl = time.Hour
		}
		claims["exp"] = now.Add(ttl).Unix()
	}
	return claims
}

// Sign builds and signs an RS256 token for p using kp.
func (kp KeyPair) Sign(t testing.TB, p Payload) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, p.Claims()).SignedString(kp.Private)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

// SignHS256 returns a token with an HS256 signature over p using secret,
// for exercising algorithm rejection and decode-only code paths.
func SignHS256(t testing.TB, p Payload, secret []byte) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, p.Claims()).SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
