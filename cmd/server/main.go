package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-rush/internal/config"
	"github.com/iliyamo/ticket-rush/internal/database"
	"github.com/iliyamo/ticket-rush/internal/handler"
	"github.com/iliyamo/ticket-rush/internal/hub"
	"github.com/iliyamo/ticket-rush/internal/queue"
	"github.com/iliyamo/ticket-rush/internal/repository"
	"github.com/iliyamo/ticket-rush/internal/router"
	"github.com/iliyamo/ticket-rush/internal/service"
)

func main() {
	// .env is optional; in containers everything comes from the real env.
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database connect failed: %v", err)
	}
	defer db.Close()

	seedCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Seed(seedCtx, db); err != nil {
		cancel()
		log.Fatalf("database seed failed: %v", err)
	}
	cancel()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; response cache and rate limiting disabled")
	}
	cacheCfg := config.LoadCacheConfig()
	rlCfg := config.LoadRateLimitConfig()

	lockWait := time.Duration(cfg.LockWaitSec) * time.Second
	shopStore := repository.NewItemRepo(db)
	seatStore := repository.NewSeatRepo(db)
	users := repository.NewUserRepo(db)

	shop := service.NewShop(shopStore, lockWait)
	seats := service.NewSeats(seatStore, lockWait)
	broadcast := hub.New()

	authH := handler.NewAuthHandler(cfg, users)
	shopH := handler.NewShopHandler(shop, broadcast, rdb, cacheCfg)
	seatsH := handler.NewSeatsHandler(seats, broadcast, rdb, cacheCfg)
	wsH := handler.NewWSHandler(cfg.JWTSecret, shop, seatsH, broadcast)

	// Audit consumer reconnects on its own; a dead broker never blocks
	// the API.
	go func() {
		if err := queue.StartAllocationConsumer(); err != nil {
			log.Printf("allocation consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterAuth(e, authH, cfg.JWTSecret)
	router.RegisterShop(e, shopH, cfg.JWTSecret, rdb, cacheCfg, rlCfg)
	router.RegisterSeats(e, seatsH, cfg.JWTSecret, rdb, cacheCfg, rlCfg)
	router.RegisterWS(e, wsH)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
