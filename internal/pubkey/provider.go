// Package pubkey acquires the token verification key from the Identity
// Gateway and memoizes it for the life of the Provider.
//
// Concurrent first callers share one fetch: N goroutines asking for the key
// before it is cached produce exactly one request to {baseURL}/token/pubkey,
// and all of them observe the same key or the same error. A failed fetch
// releases the in-flight marker so the next caller retries.
package pubkey

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
)

// DefaultTimeout bounds a single key fetch.
const DefaultTimeout = 5 * time.Second

const flightKey = "pubkey"

// Source supplies a verification key.
type Source interface {
	Key(ctx context.Context) (string, error)
}

// Static is a Source for an out-of-band key. It never touches the network.
type Static string

// Key returns the configured key.
func (s Static) Key(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", autherr.Configuration("public key is empty")
	}
	return string(s), nil
}

// Provider fetches and caches the gateway's public key.
type Provider struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	log     zerolog.Logger

	mu    sync.Mutex
	key   string
	group singleflight.Group
	// gen is bumped by Reset so a fetch started before the reset cannot
	// repopulate the cache afterwards.
	gen uint64
}

// Option configures a Provider.
type Option func(*Provider)

// WithHTTPClient overrides the HTTP client used for fetching.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithTimeout overrides the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// New returns a Provider for the gateway at baseURL.
func New(baseURL string, opts ...Option) *Provider {
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Key returns the cached key, or joins (or starts) the single in-flight
// fetch. If ctx ends first the caller gets ctx.Err(); the fetch itself keeps
// running for the remaining waiters.
func (p *Provider) Key(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.key != "" {
		k := p.key
		p.mu.Unlock()
		return k, nil
	}
	gen := p.gen
	// DoChan is called under mu so a concurrent Reset cannot slip between
	// the cache check and joining the flight.
	ch := p.group.DoChan(flightKey, func() (any, error) {
		return p.fetch(gen)
	})
	p.mu.Unlock()

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Cached returns the cached key without fetching.
func (p *Provider) Cached() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.key, p.key != ""
}

// Reset clears the cached key and forgets any in-flight fetch, e.g. after a
// key rotation. Callers already waiting on the old fetch still receive its
// result, but it is not cached.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.key = ""
	p.gen++
	p.group.Forget(flightKey)
}

type keyResponse struct {
	Pubkey *string `json:"pubkey"`
}

func (p *Provider) fetch(gen uint64) (any, error) {
	// Detached from any caller: one waiter leaving must not cancel the
	// fetch the others are waiting on.
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	url := p.baseURL + "/token/pubkey"
	key, err := p.request(ctx, url)
	if err != nil {
		p.log.Warn().Err(err).Str("url", url).Msg("public key fetch failed")
		return nil, err
	}

	p.mu.Lock()
	if p.gen == gen {
		p.key = key
	}
	p.mu.Unlock()

	p.log.Debug().Str("url", url).Msg("public key fetched")
	return key, nil
}

func (p *Provider) request(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", autherr.Wrap(autherr.KindConfiguration, "Failed to fetch public key from API", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", autherr.Wrap(autherr.KindConfiguration,
			fmt.Sprintf("Failed to fetch public key from %s", url), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", autherr.Configuration(
			fmt.Sprintf("Failed to fetch public key from %s: status %d", url, resp.StatusCode))
	}

	var body keyResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return "", autherr.Wrap(autherr.KindConfiguration, "Invalid public key response from API", err)
	}
	if body.Pubkey == nil || strings.TrimSpace(*body.Pubkey) == "" {
		return "", autherr.Configuration("Invalid public key response from API")
	}
	return *body.Pubkey, nil
}
