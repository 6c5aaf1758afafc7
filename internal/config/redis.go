package config

import (
	"crypto/tls"
	"os"

	"github.com/redis/go-redis/v9"
)

// Redis configures the shared key/value store. Redis is used for the
// encrypted record cache and for per-tenant rate limiting.
type Redis struct {
	Enabled   bool
	Addr      string
	Password  string
	DB        int
	TLS       bool
	KeyPrefix string
}

// LoadRedis reads Redis settings. Supported variables are:
//
//	REDIS_ADDR            host:port shorthand
//	REDIS_HOST/REDIS_PORT hostname and port (take precedence over REDIS_ADDR)
//	REDIS_PASSWORD        optional password
//	REDIS_DB              database number (default 0)
//	REDIS_TLS             enable TLS when "true" or "1"
//	REDIS_KEY_PREFIX      key prefix (default "ngapi:")
//	REDIS_ENABLED         defaults to true when an address is configured
func LoadRedis() Redis {
	addr := os.Getenv("REDIS_ADDR")
	host, port := os.Getenv("REDIS_HOST"), os.Getenv("REDIS_PORT")
	if host != "" && port != "" {
		addr = host + ":" + port
	}
	return Redis{
		Enabled:   envBool("REDIS_ENABLED", addr != ""),
		Addr:      orDefault(addr, "localhost:6379"),
		Password:  os.Getenv("REDIS_PASSWORD"),
		DB:        envInt("REDIS_DB", 0),
		TLS:       envBool("REDIS_TLS", false),
		KeyPrefix: getenv("REDIS_KEY_PREFIX", "ngapi:"),
	}
}

// Options converts r into go-redis options.
func (r Redis) Options() *redis.Options {
	opts := &redis.Options{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,

		// request deadlines bound socket reads and writes
		ContextTimeoutEnabled: true,
	}
	if r.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedisClient builds a client from r, or returns nil when Redis is
// disabled. The client does not connect until first used; callers degrade
// to in-process caching and no rate limiting when it is nil.
func NewRedisClient(r Redis) *redis.Client {
	if !r.Enabled {
		return nil
	}
	return redis.NewClient(r.Options())
}

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}
