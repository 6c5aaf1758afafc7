// Package router registers the demo gateway's HTTP routes.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/tenant-auth-gateway/internal/config"
	"github.com/iliyamo/tenant-auth-gateway/internal/handler"
	"github.com/iliyamo/tenant-auth-gateway/internal/middleware"
)

// Deps are what the authenticated routes need.
type Deps struct {
	Auth      middleware.Authenticator
	OnError   middleware.ErrorHook
	RateLimit config.RateLimitConfig
	Redis     *redis.Client // nil disables rate limiting
}

// RegisterRoutes registers the routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuthenticated registers the /v1 group. Every request runs the
// auth pipeline first, then the per-tenant rate limiter, which keys on the
// identity the pipeline resolved.
func RegisterAuthenticated(e *echo.Echo, d Deps) *echo.Group {
	g := e.Group("/v1")
	g.Use(middleware.Echo(d.Auth, d.OnError))
	g.Use(middleware.NewTokenBucket(d.RateLimit, d.Redis))

	g.GET("/whoami", handler.WhoAmI)
	g.GET("/accounts/current", handler.CurrentAccount, middleware.RequireScope("user", "admin"))
	return g
}
