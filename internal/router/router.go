// Package router registers the HTTP routes of the deposit release service.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/carshare-deposits/internal/config"
	"github.com/iliyamo/carshare-deposits/internal/handler"
	"github.com/iliyamo/carshare-deposits/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterCron registers the scheduled-job trigger.  Both GET and POST are
// accepted because cron providers differ in what they send.
func RegisterCron(e *echo.Echo, h *handler.DepositReleaseHandler, auth middleware.CronAuthConfig, rl config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1/cron")
	g.Use(middleware.CronAuth(auth))
	g.Use(middleware.NewTokenBucket(rl, rdb))
	g.GET("/release-deposits", h.Trigger)
	g.POST("/release-deposits", h.Trigger)
}

// RegisterAdmin registers the run history endpoints.  They require an admin
// token; the shared cron secret is not enough.
func RegisterAdmin(e *echo.Echo, h *handler.RunsHandler, auth middleware.CronAuthConfig) {
	g := e.Group("/v1/admin/deposit-releases")
	g.Use(middleware.CronAuth(auth))
	g.Use(middleware.RequireRole(middleware.RoleAdmin))
	g.GET("/runs", h.List)
	g.GET("/runs/:id", h.Get)
}
