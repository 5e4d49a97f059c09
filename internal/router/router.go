package router // package router registers the HTTP routes of the floor API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/floor-allocation/internal/handler"
	"github.com/iliyamo/floor-allocation/internal/middleware"
	"github.com/iliyamo/floor-allocation/internal/utils"
)

// RegisterRoutes registers routes that need no authentication.  Currently
// that is the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the read-only floor display endpoints.  cache
// wraps each of them; pass a pass-through middleware to disable caching.
func RegisterPublic(e *echo.Echo, f *handler.FloorHandler, cache echo.MiddlewareFunc) {
	g := e.Group("/v1/floor", cache)
	g.GET("", f.GetFloor)
	g.GET("/stats", f.GetStats)
	g.GET("/packages", f.GetPackages)
}

// RegisterAdmin registers the mutating endpoints.  Every route requires an
// ADMIN token and is subject to the rate limiter.
func RegisterAdmin(e *echo.Echo, f *handler.FloorHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(utils.RoleAdmin))
	g.Use(limiter)

	g.POST("/allocations", f.Allocate)
	g.DELETE("/allocations/:kind/:ref", f.Deallocate)
	g.POST("/pledges/:ref/paid", f.MarkPaid)
	g.GET("/orphans", f.GetOrphans)
	g.POST("/orphans/release", f.ReleaseOrphans)
	g.PUT("/cells/:id/blocked", f.SetBlocked)
}

// RegisterMetrics exposes the Prometheus handler at /metrics.
func RegisterMetrics(e *echo.Echo, h http.Handler) {
	e.GET("/metrics", echo.WrapHandler(h))
}
