package handler // handler contains the HTTP handlers of the floor API

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Health is a simple health-check endpoint used by load balancers and
// monitoring systems.  It returns "ok" with 200.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
