// Package middleware adapts the authentication pipeline to echo and
// net/http, and provides the gates that run after it: scope checks and
// per-tenant rate limiting.
package middleware

import (
	"context"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/tenant-auth-gateway/internal/model"
	"github.com/iliyamo/tenant-auth-gateway/internal/pipeline"
)

// IdentityKey is the echo context key holding the *model.Identity.
const IdentityKey = "identity"

// Authenticator resolves the identity of a request.
type Authenticator interface {
	Authenticate(ctx context.Context, header string, query url.Values) (*model.Identity, error)
}

// ErrorHook observes authentication failures before the error response is
// written. A panicking hook is recovered and logged; it never changes the
// response.
type ErrorHook func(err error, r *http.Request)

// Echo returns middleware that authenticates every request with auth. On
// success the identity is available through IdentityFrom and
// pipeline.FromContext; on failure the error response is written and the
// handler is not called.
func Echo(auth Authenticator, hook ErrorHook) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id, err := auth.Authenticate(req.Context(), req.Header.Get(echo.HeaderAuthorization), req.URL.Query())
			if err != nil {
				runHook(hook, err, req)
				status, body := Respond(err)
				return c.JSON(status, body)
			}
			c.SetRequest(req.WithContext(pipeline.WithIdentity(req.Context(), id)))
			c.Set(IdentityKey, id)
			return next(c)
		}
	}
}

// HTTP is the net/http flavour of Echo.
func HTTP(auth Authenticator, hook ErrorHook) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := auth.Authenticate(r.Context(), r.Header.Get("Authorization"), r.URL.Query())
			if err != nil {
				WriteError(w, r, err, hook)
				return
			}
			next.ServeHTTP(w, r.WithContext(pipeline.WithIdentity(r.Context(), id)))
		})
	}
}
