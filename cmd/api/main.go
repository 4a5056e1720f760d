package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-repair-billing/internal/handler"
	"go-repair-billing/internal/logger"
	"go-repair-billing/internal/middleware"
	"go-repair-billing/internal/repository"
	"go-repair-billing/internal/repository/memory"
	"go-repair-billing/internal/service"
	"go-repair-billing/internal/ws"
	"go-repair-billing/pkg/config"
	"go-repair-billing/pkg/database"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog/log"
	"github.com/ulule/limiter/v3"
)

func main() {
	// 1. Config & logging
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	baseLog, err := logger.Setup(logger.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stdout})
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("Invalid log level")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// 2. Ledger store
	var store repository.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		baseLog.Warn().Msg("Using in-memory store, data is lost on restart")
		store = memory.New()
	default:
		if cfg.AutoMigrate {
			runMigrations(cfg.DatabaseURL)
		}
		db, err := database.Connect(cfg.DatabaseURL, logger.WithComponent("database"))
		if err != nil {
			baseLog.Fatal().Err(err).Msg("Failed to connect to database")
		}
		store = repository.NewStore(db)
	}

	// 3. WebSocket hub, optionally relayed through Redis
	hub := ws.NewHub(ws.HubConfig{
		PingInterval: cfg.WSPingInterval,
		SendBuffer:   cfg.WSSendBuffer,
	}, logger.WithComponent("ws"))

	opts := service.Options{
		DefaultTaxRate:  cfg.DefaultTaxRate,
		DefaultCurrency: cfg.DefaultCurrency,
		Numberer:        service.CountingNumberer{Prefix: cfg.InvoiceNumberPrefix},
	}
	if cfg.RedisAddr != "" {
		rdb, locker, err := database.ConnectRedis(ctx, cfg.RedisAddr, logger.WithComponent("redis"))
		if err != nil {
			baseLog.Warn().Err(err).Msg("Redis unavailable, continuing without relay and shared counter")
		} else {
			defer rdb.Close()
			hub.UseRelay(ws.NewRedisRelay(rdb, logger.WithComponent("relay")))
			opts.Numberer = service.NewRedisInvoiceNumberer(rdb, cfg.InvoiceNumberPrefix, logger.WithComponent("numbering"))
			opts.Locker = locker
		}
	}
	go hub.Run(ctx)

	// 4. Services & rate limits
	settlement := service.NewSettlementService(store, hub, opts, logger.WithComponent("settlement"))

	var paymentLimits *limiter.Limiter
	if cfg.PaymentRateLimit != "" {
		paymentLimits, err = middleware.NewLimiter(cfg.PaymentRateLimit)
		if err != nil {
			baseLog.Fatal().Err(err).Str("rate", cfg.PaymentRateLimit).Msg("Invalid PAYMENT_RATE_LIMIT")
		}
	}

	// 5. Fiber
	app := fiber.New(fiber.Config{
		AppName: cfg.AppName,
	})
	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(middleware.RequestLogger(logger.WithComponent("http")))

	handler.SetupRoutes(app, handler.Deps{
		Service:       settlement,
		Hub:           hub,
		PaymentLimits: paymentLimits,
		Logger:        logger.WithComponent("handler"),
	})

	// 6. Graceful shutdown
	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			baseLog.Panic().Err(err).Msg("Server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	baseLog.Info().Msg("Shutting down server...")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		baseLog.Error().Err(err).Msg("Server forced to shutdown")
	}
	stop()

	baseLog.Info().Msg("Server exited")
}

func runMigrations(dsn string) {
	migLog := logger.WithComponent("migrate")
	m, err := database.NewMigrator(dsn, migLog)
	if err != nil {
		migLog.Fatal().Err(err).Msg("Could not prepare migrations")
	}
	defer func() {
		if err := m.Close(); err != nil {
			migLog.Error().Err(err).Msg("Error closing migrator")
		}
	}()
	if err := m.Up(); err != nil {
		migLog.Fatal().Err(err).Msg("Failed to apply migrations")
	}
}
