package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-auth-gateway/internal/middleware"
	"github.com/iliyamo/tenant-auth-gateway/internal/model"
)

// whoAmIResponse is the body of GET /v1/whoami.
type whoAmIResponse struct {
	User          *model.AuthenticatedUser `json:"user"`
	Account       *model.Account           `json:"account"`
	Impersonating bool                     `json:"impersonating"`
}

// WhoAmI returns the resolved identity of the caller: the user (with their
// own account) and the account the request acts on. The raw token is never
// echoed back.
func WhoAmI(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, middleware.ErrorBody{
			Error:   "Authentication failed",
			Message: "Missing Authorization header",
		})
	}
	return c.JSON(http.StatusOK, whoAmIResponse{
		User:          id.User,
		Account:       id.Account,
		Impersonating: id.IsImpersonating(),
	})
}

// CurrentAccount returns the account the request acts on.
func CurrentAccount(c echo.Context) error {
	id, ok := middleware.IdentityFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, middleware.ErrorBody{
			Error:   "Authentication failed",
			Message: "Missing Authorization header",
		})
	}
	return c.JSON(http.StatusOK, id.Account)
}
