// Package router wires HTTP routes to their handlers and middleware.
// Read-only list routes are public and cacheable; every mutation sits
// behind JWT auth and the rate limiter.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/ticket-rush/internal/config"
	"github.com/iliyamo/ticket-rush/internal/handler"
	"github.com/iliyamo/ticket-rush/internal/middleware"
)

// RegisterRoutes registers routes that need no authentication or
// shared state.  Currently that is only the health check.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the register/login endpoints under /v1/auth
// and the authenticated /v1/me endpoint.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterShop registers the item catalogue and purchase routes.  The
// item list is public and served through the Redis response cache; the
// purchase endpoint requires auth and is rate limited.
func RegisterShop(e *echo.Echo, s *handler.ShopHandler, jwtSecret string, rdb *redis.Client, cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig) {
	cache := middleware.NewRedisCache(cacheCfg, rdb)
	limit := middleware.NewTokenBucket(rlCfg, rdb)

	e.GET("/v1/items", s.ListItems, cache)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.POST("/items/:id/purchase", s.Purchase, limit)
	auth.GET("/my-purchases", s.MyPurchases)
}

// RegisterSeats registers the seat map and reserve/cancel routes,
// mirroring the shop wiring: public cached list, authenticated and
// rate-limited mutations.
func RegisterSeats(e *echo.Echo, s *handler.SeatsHandler, jwtSecret string, rdb *redis.Client, cacheCfg config.CacheConfig, rlCfg config.RateLimitConfig) {
	cache := middleware.NewRedisCache(cacheCfg, rdb)
	limit := middleware.NewTokenBucket(rlCfg, rdb)

	e.GET("/v1/seats", s.ListSeats, cache)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.GET("/my-seat", s.MySeat)
	auth.POST("/seats/:id/reserve", s.Reserve, limit)
	auth.POST("/seats/:id/cancel", s.Cancel, limit)
}

// RegisterWS registers the WebSocket endpoint.  Authentication happens
// inside the handler via the token query parameter, so no JWT
// middleware is applied here.
func RegisterWS(e *echo.Echo, w *handler.WSHandler) {
	e.GET("/v1/ws/seats", w.Serve)
}
