// Package handler holds the HTTP handlers of the demo gateway server.
package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a liveness check for load balancers and monitoring. It never
// touches the Identity Gateway or Redis.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
