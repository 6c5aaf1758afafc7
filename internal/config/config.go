// Package config loads gateway configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration. Each field group has its own
// loader so components can be configured independently.
type Config struct {
	Env       string // application environment (dev, prod, ...)
	Port      string // HTTP port of the demo server
	LogLevel  string // zerolog level name
	LogFormat string // "console" or "json"

	Auth      Auth
	Redis     Redis
	RateLimit RateLimitConfig
	Queue     Queue
}

// Load reads the full configuration. It returns an error when a value is
// present but unusable, e.g. an unreadable public key file; required
// values are checked by Validate.
func Load() (Config, error) {
	auth, err := LoadAuth()
	if err != nil {
		return Config{}, err
	}
	return Config{
		Env:       getenv("APP_ENV", "dev"),
		Port:      getenv("APP_PORT", "8080"),
		LogLevel:  getenv("LOG_LEVEL", "info"),
		LogFormat: getenv("LOG_FORMAT", "console"),
		Auth:      auth,
		Redis:     LoadRedis(),
		RateLimit: LoadRateLimitConfig(),
		Queue:     LoadQueue(),
	}, nil
}

// Validate reports every missing or inconsistent setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port == "" {
		errs = append(errs, errors.New("APP_PORT is required"))
	}
	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Queue.Enabled && c.Queue.Name == "" {
		errs = append(errs, errors.New("AUTH_EVENTS_QUEUE must not be empty"))
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envBool(k string, d bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(k))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return n
	}
	return d
}

// envDur accepts a Go duration ("750ms", "10s") or a bare number of seconds.
func envDur(k string, d time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return d
}

// envList splits a comma separated value, dropping blanks.
func envList(k string, d []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return d
	}
	return out
}

func envInts(k string, d []int) ([]int, error) {
	parts := envList(k, nil)
	if parts == nil {
		return d, nil
	}
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid int in %s: %q", k, p)
		}
		out = append(out, n)
	}
	return out, nil
}
