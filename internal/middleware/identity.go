package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-auth-gateway/internal/model"
	"github.com/iliyamo/tenant-auth-gateway/internal/pipeline"
)

// IdentityFrom returns the identity stored by Echo.
func IdentityFrom(c echo.Context) (*model.Identity, bool) {
	if id, ok := c.Get(IdentityKey).(*model.Identity); ok && id != nil {
		return id, true
	}
	return pipeline.FromContext(c.Request().Context())
}

// userID returns the authenticated user id, or "anon" before
// authentication.
func userID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok && id.User != nil && id.User.ID != "" {
		return id.User.ID
	}
	return "anon"
}

// accountID returns the id of the account the request acts on, or "anon".
func accountID(c echo.Context) string {
	if id, ok := IdentityFrom(c); ok && id.Account != nil && id.Account.ID != "" {
		return id.Account.ID
	}
	return "anon"
}
