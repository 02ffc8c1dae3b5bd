package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"agripulse-api/internal/config"
	"agripulse-api/internal/forecast"
	"agripulse-api/internal/handlers"
	"agripulse-api/internal/scheduler"
	"agripulse-api/internal/services"
	"agripulse-api/internal/store"
)

func main() {
	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Error("config load failed", "err", err)
		os.Exit(1)
	}
	if cfg.Provider.APIKey == "" {
		log.Warn("FORECAST_API_KEY not set; serving stored snapshots only")
	}

	st, err := newStore(cfg, log)
	if err != nil {
		log.Error("store init failed", "err", err)
		os.Exit(1)
	}
	defer st.Close()

	provider := forecast.New(cfg.Provider.URL, cfg.Provider.APIKey,
		forecast.WithTimeout(cfg.ProviderTimeout()),
		forecast.WithCommodity(cfg.Provider.Commodity, cfg.Provider.Unit),
	)
	snapshots := services.NewSnapshot(st, provider, cfg.FreshnessWindow(), log)

	marketHandler := handlers.NewMarketHandler(snapshots)
	healthHandler := handlers.NewHealthHandler()

	app := fiber.New(fiber.Config{
		StrictRouting: true,
		CaseSensitive: true,
		ServerHeader:  "AgriPulse-API",
		AppName:       "AgriPulse v1.0",
		ReadTimeout:   time.Second * 10,
		WriteTimeout:  time.Second * 30,
		ErrorHandler:  handlers.CustomErrorHandler,
	})

	// Middleware stack
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "Rate limit exceeded. Please try again later.",
			})
		},
	}))

	// Routes
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "AgriPulse API",
			"status":  "running",
		})
	})
	app.Get("/health", healthHandler.Health)
	app.Get("/health/ready", healthHandler.Ready)

	v1 := app.Group("/v1")
	v1.Get("/market/latest", marketHandler.GetLatest)
	v1.Get("/market/history", marketHandler.GetHistory)

	// Optional warm refresh on a cron schedule
	var sched *scheduler.Scheduler
	if spec := cfg.Schedule.RefreshCron; spec != "" {
		sched = scheduler.New(snapshots, log)
		if err := sched.Register(spec); err != nil {
			log.Error("scheduler init failed", "err", err)
			os.Exit(1)
		}
		sched.Start()
		log.Info("warm refresh scheduled", "cron", spec)
	}

	go func() {
		if err := app.Listen(":" + cfg.Server.Port); err != nil {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()
	log.Info("agripulse api started", "port", cfg.Server.Port, "store", cfg.Store.Backend)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	if sched != nil {
		sched.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func newStore(cfg *config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Store.Backend {
	case "firestore":
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return store.NewFirestore(ctx, cfg.Store.FirestoreProject)
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "memory":
		log.Warn("memory store selected; records will not survive restarts")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
