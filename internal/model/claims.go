package model

import "github.com/golang-jwt/jwt/v5"

// Claims is the verified payload of a gateway access token. The registered
// claims (iss, exp, iat) are validated by the verifier; the rest are copied
// through untouched.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64    `json:"id"`
	AccountID int64    `json:"account_id"`
	Accounts  string   `json:"accounts"`
	Lineage   string   `json:"lineage"`
	Email     string   `json:"email"`
	Scopes    []string `json:"scopes"`
	TZ        string   `json:"tz"`
	UserKey   string   `json:"user_key"`
}

// HasScope reports whether the claims grant scope.
func (c *Claims) HasScope(scope string) bool {
	for _, s := range c.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
