// Package identity is the HTTP client for the Identity Gateway's account and
// user endpoints.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/tenant-auth-gateway/internal/autherr"
	"github.com/iliyamo/tenant-auth-gateway/internal/model"
)

// Defaults for a Client.
const (
	DefaultBaseURL = "https://api.cakemail.dev"
	DefaultTimeout = 5 * time.Second
)

// DefaultForbiddenCodes are the gateway error codes that, returned in a 400
// body, mean the caller may not access the requested account.
var DefaultForbiddenCodes = []int{8004}

const maxBody = 4 << 20

// Client talks to the Identity Gateway. It is safe for concurrent use.
type Client struct {
	baseURL   string
	http      *http.Client
	timeout   time.Duration
	forbidden map[string]struct{}
	log       zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(cl *Client) {
		if d > 0 {
			cl.timeout = d
		}
	}
}

// WithForbiddenCodes replaces the set of 400 body codes treated as an
// account access denial. An empty list disables the mapping.
func WithForbiddenCodes(codes ...int) Option {
	return func(cl *Client) {
		cl.forbidden = codeSet(codes)
	}
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(cl *Client) { cl.log = l }
}

// New returns a Client for the gateway at baseURL (DefaultBaseURL when
// empty).
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	cl := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{},
		timeout:   DefaultTimeout,
		forbidden: codeSet(DefaultForbiddenCodes),
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cl)
	}
	return cl
}

// GetAccount fetches account id on behalf of the bearer of token.
//
// 401 maps to an authentication error; 403, or a 400 carrying one of the
// forbidden codes, maps to an authorization error. Any other non-2xx status
// is returned as *HTTPError.
func (c *Client) GetAccount(ctx context.Context, id int64, token string) (*model.Account, error) {
	path := "/accounts/" + strconv.FormatInt(id, 10)
	status, body, err := c.get(ctx, path, token)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return nil, autherr.Authentication("Invalid token")
	case status == http.StatusForbidden,
		status == http.StatusBadRequest && c.isForbidden(body):
		return nil, autherr.Authorization(fmt.Sprintf("Access denied to account %d", id))
	case status < 200 || status > 299:
		return nil, &HTTPError{Method: http.MethodGet, Path: path, Status: status, Body: snippet(body)}
	}

	var acct model.Account
	if err := decodeRecord(accountSchema, body, &acct); err != nil {
		c.log.Warn().Err(err).Int64("account_id", id).Msg("gateway returned an invalid account record")
		return nil, autherr.Wrap(autherr.KindConfiguration, "invalid data received", err)
	}
	return &acct, nil
}

// GetUserSelf fetches the profile of the bearer of token.
//
// 401 and 403 both map to an authorization error: the token already
// verified, so the gateway refusing it here is an access problem.
func (c *Client) GetUserSelf(ctx context.Context, token string) (*model.User, error) {
	const path = "/users/self"
	status, body, err := c.get(ctx, path, token)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return nil, autherr.Authorization("Failed to retrieve user data")
	case status < 200 || status > 299:
		return nil, &HTTPError{Method: http.MethodGet, Path: path, Status: status, Body: snippet(body)}
	}

	var u model.User
	if err := decodeRecord(userSchema, body, &u); err != nil {
		c.log.Warn().Err(err).Msg("gateway returned an invalid user record")
		return nil, autherr.Wrap(autherr.KindConfiguration, "invalid data received", err)
	}
	return &u, nil
}

func (c *Client) get(ctx context.Context, path, token string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", path, err)
	}
	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("identity gateway request")
	return resp.StatusCode, body, nil
}

type errorBody struct {
	Detail []struct {
		Code any `json:"code"`
	} `json:"detail"`
}

func (c *Client) isForbidden(body []byte) bool {
	if len(c.forbidden) == 0 {
		return false
	}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return false
	}
	for _, d := range eb.Detail {
		if _, ok := c.forbidden[fmt.Sprint(d.Code)]; ok {
			return true
		}
	}
	return false
}

func codeSet(codes []int) map[string]struct{} {
	m := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		m[strconv.Itoa(code)] = struct{}{}
	}
	return m
}

func snippet(body []byte) string {
	const n = 256
	body = bytes.TrimSpace(body)
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
