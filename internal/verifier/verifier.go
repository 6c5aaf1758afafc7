// Package verifier validates gateway access tokens: signature, algorithm,
// issuer and expiry (with clock tolerance). Failures are reported as
// AuthenticationError with a caller-safe message.
package verifier

import (
	"context"
	"crypto"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
	"github.com/iliyamo/tenant-auth-gateway/internal/model"
	"github.com/iliyamo/tenant-auth-gateway/internal/pubkey"
)

// Defaults applied when Options leaves a field empty.
const (
	DefaultIssuer         = "urn:cakemail"
	DefaultClockTolerance = 10 * time.Second
)

// DefaultAlgorithms is the accepted signing algorithm set.
var DefaultAlgorithms = []string{"RS256"}

// Caller-facing messages.
const (
	MsgExpired = "Token has expired"
	MsgInvalid = "Invalid token"
	MsgFailed  = "Token verification failed"
)

// Options tune verification.
type Options struct {
	Algorithms     []string
	Issuer         string
	ClockTolerance time.Duration
}

func (o Options) withDefaults() Options {
	if len(o.Algorithms) == 0 {
		o.Algorithms = DefaultAlgorithms
	}
	if o.Issuer == "" {
		o.Issuer = DefaultIssuer
	}
	if o.ClockTolerance <= 0 {
		o.ClockTolerance = DefaultClockTolerance
	}
	return o
}

// Verifier checks tokens against one public key.
type Verifier struct {
	key    crypto.PublicKey
	parser *jwt.Parser
}

// New parses a PEM encoded public key (RSA, ECDSA or Ed25519) and returns a
// Verifier for it.
func New(pemKey string, opts Options) (*Verifier, error) {
	key, err := parsePublicKey([]byte(pemKey))
	if err != nil {
		return nil, autherr.Wrap(autherr.KindConfiguration, "invalid public key", err)
	}
	opts = opts.withDefaults()
	return &Verifier{
		key: key,
		parser: jwt.NewParser(
			jwt.WithValidMethods(opts.Algorithms),
			jwt.WithIssuer(opts.Issuer),
			jwt.WithLeeway(opts.ClockTolerance),
		),
	}, nil
}

// Verify validates tokenString and returns its claims.
func (v *Verifier) Verify(tokenString string) (*model.Claims, error) {
	claims := &model.Claims{}
	tok, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.key, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !tok.Valid {
		return nil, autherr.Authentication(MsgInvalid)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return autherr.Wrap(autherr.KindAuthentication, MsgExpired, err)
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrTokenInvalidIssuer),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidClaims),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return autherr.Wrap(autherr.KindAuthentication, MsgInvalid, err)
	default:
		return autherr.Wrap(autherr.KindAuthentication, MsgFailed, err)
	}
}

func parsePublicKey(pemKey []byte) (crypto.PublicKey, error) {
	if rsaKey, err := jwt.ParseRSAPublicKeyFromPEM(pemKey); err == nil {
		return rsaKey, nil
	}
	if ecKey, err := jwt.ParseECPublicKeyFromPEM(pemKey); err == nil {
		return ecKey, nil
	}
	if edKey, err := jwt.ParseEdPublicKeyFromPEM(pemKey); err == nil {
		return edKey, nil
	}
	return nil, fmt.Errorf("unsupported or malformed PEM public key")
}

// Keyed verifies tokens with whatever key its Source currently returns,
// building a Verifier once per distinct key.
type Keyed struct {
	src  pubkey.Source
	opts Options

	mu   sync.Mutex
	pem  string
	curr *Verifier
}

// NewKeyed returns a Keyed verifier reading keys from src.
func NewKeyed(src pubkey.Source, opts Options) *Keyed {
	return &Keyed{src: src, opts: opts}
}

// Ready acquires the key (fetching it if needed) and returns the Verifier
// for it.
func (k *Keyed) Ready(ctx context.Context) (*Verifier, error) {
	pemKey, err := k.src.Key(ctx)
	if err != nil {
		if _, ok := autherr.As(err); ok {
			return nil, err
		}
		return nil, autherr.Wrap(autherr.KindConfiguration, "JWT service initialization failed", err)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if k.curr != nil && k.pem == pemKey {
		return k.curr, nil
	}
	v, err := New(strings.TrimSpace(pemKey), k.opts)
	if err != nil {
		return nil, err
	}
	k.pem, k.curr = pemKey, v
	return v, nil
}
