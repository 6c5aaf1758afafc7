package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
)

// JWT holds token verification settings.
type JWT struct {
	Algorithms     []string
	Issuer         string
	ClockTolerance time.Duration
}

// Auth configures the authentication pipeline.
//
// PublicKey, when set, is used as is and the gateway key endpoint is never
// called. CacheSecret is required even when caching is disabled: it also
// keys the token digest in cache keys. Caching is on unless DisableCaching
// is set, so a zero Auth caches.
type Auth struct {
	APIBaseURL      string
	PublicKey       string
	CacheSecret     string
	DisableCaching  bool
	AccountIDParams []string
	JWT             JWT
	RequestTimeout  time.Duration
	ForbiddenCodes  []int
	MemoryCacheSize int // entries held in-process when Redis is not configured
}

// Auth defaults.
var (
	DefaultAPIBaseURL      = "https://api.cakemail.dev"
	DefaultIssuer          = "urn:cakemail"
	DefaultAlgorithms      = []string{"RS256"}
	DefaultClockTolerance  = 10 * time.Second
	DefaultRequestTimeout  = 5 * time.Second
	DefaultAccountIDParams = []string{"accountId", "account_id"}
	DefaultForbiddenCodes  = []int{8004}
)

// LoadAuth reads Auth from the environment:
//
//	IDENTITY_API_BASE_URL     gateway base URL
//	AUTH_PUBLIC_KEY           PEM public key (takes precedence)
//	AUTH_PUBLIC_KEY_FILE      path to a PEM public key
//	AUTH_CACHE_SECRET         cache encryption secret (required)
//	AUTH_CACHE_ENABLED        default true
//	AUTH_CACHE_MEMORY_SIZE    in-process cache entries, default 10000
//	AUTH_ACCOUNT_ID_PARAMS    comma separated, default accountId,account_id
//	AUTH_JWT_ALGORITHMS       comma separated, default RS256
//	AUTH_JWT_ISSUER           default urn:cakemail
//	AUTH_JWT_CLOCK_TOLERANCE  duration or seconds, default 10s
//	AUTH_REQUEST_TIMEOUT      default 5s
//	AUTH_FORBIDDEN_CODES      comma separated, default 8004
func LoadAuth() (Auth, error) {
	a := Auth{
		APIBaseURL:      getenv("IDENTITY_API_BASE_URL", DefaultAPIBaseURL),
		PublicKey:       os.Getenv("AUTH_PUBLIC_KEY"),
		CacheSecret:     os.Getenv("AUTH_CACHE_SECRET"),
		DisableCaching:  !envBool("AUTH_CACHE_ENABLED", true),
		MemoryCacheSize: envInt("AUTH_CACHE_MEMORY_SIZE", 10_000),
		AccountIDParams: envList("AUTH_ACCOUNT_ID_PARAMS", DefaultAccountIDParams),
		JWT: JWT{
			Algorithms:     envList("AUTH_JWT_ALGORITHMS", DefaultAlgorithms),
			Issuer:         getenv("AUTH_JWT_ISSUER", DefaultIssuer),
			ClockTolerance: envDur("AUTH_JWT_CLOCK_TOLERANCE", DefaultClockTolerance),
		},
		RequestTimeout: envDur("AUTH_REQUEST_TIMEOUT", DefaultRequestTimeout),
	}

	codes, err := envInts("AUTH_FORBIDDEN_CODES", DefaultForbiddenCodes)
	if err != nil {
		return Auth{}, err
	}
	a.ForbiddenCodes = codes

	if a.PublicKey == "" {
		if path := os.Getenv("AUTH_PUBLIC_KEY_FILE"); path != "" {
			b, err := os.ReadFile(path)
			if err != nil {
				return Auth{}, fmt.Errorf("read AUTH_PUBLIC_KEY_FILE: %w", err)
			}
			a.PublicKey = string(b)
		}
	}
	return a, nil
}

// Validate checks the settings the pipeline cannot run without.
func (a Auth) Validate() error {
	if a.CacheSecret == "" {
		return autherr.Configuration("cacheSecret is required")
	}
	if a.PublicKey == "" && strings.TrimSpace(a.APIBaseURL) == "" {
		return autherr.Configuration("either a public key or an API base URL is required")
	}
	if len(a.JWT.Algorithms) == 0 {
		return autherr.Configuration("at least one JWT algorithm is required")
	}
	return nil
}
