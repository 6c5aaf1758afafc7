package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireScope rejects requests whose authenticated user holds none of
// scopes. It must run after Echo.
func RequireScope(scopes ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok || id.User == nil {
				return c.JSON(http.StatusUnauthorized, ErrorBody{
					Error:   "Authentication failed",
					Message: "Missing Authorization header",
				})
			}
			if !id.User.HasAnyScope(scopes...) {
				return c.JSON(http.StatusForbidden, ErrorBody{
					Error:   "Authorization failed",
					Message: "Missing required scope",
				})
			}
			return next(c)
		}
	}
}
