package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/rs/zerolog"

	"github.com/redpotato/backend/internal/app"
	"github.com/redpotato/backend/internal/config"
	"github.com/redpotato/backend/internal/handlers"
	"github.com/redpotato/backend/internal/logger"
	"github.com/redpotato/backend/internal/metrics"
	"github.com/redpotato/backend/internal/middleware"
)

func main() {
	// Load configuration
	cfg := config.Load()
	log := logger.New(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize")
	}
	defer svc.Close()

	if cfg.CronEnabled {
		if err := svc.Scheduler.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start scheduler")
		}
		status := svc.Scheduler.Status()
		log.Info().
			Str("timezone", status.Timezone).
			Str("reminder", status.ReminderSpec).
			Str("cleanup", status.CleanupSpec).
			Msg("scheduler started")
	} else {
		log.Info().Msg("CRON_ENABLED=false, scheduled reminders disabled")
	}

	server := newServer(svc, log)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.APIPort)
		log.Info().Str("addr", addr).Msg("starting ITP reminder API server")
		if err := server.Listen(addr); err != nil {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down server")

	// Force exit if graceful shutdown hangs
	forced := time.AfterFunc(cfg.ShutdownTimeout+time.Second, func() {
		log.Error().Msg("graceful shutdown timed out, forcing exit")
		os.Exit(1)
	})
	defer forced.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown failed")
	}
	if err := svc.Scheduler.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown failed")
	}
	log.Info().Msg("shutdown complete")
}

func newServer(svc *app.App, log zerolog.Logger) *fiber.App {
	cfg := svc.Config

	server := fiber.New(fiber.Config{
		AppName:               "ITP Reminder API",
		DisableStartupMessage: !cfg.IsDevelopment(),
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"success": false,
				"message": err.Error(),
			})
		},
	})

	// Global middleware
	server.Use(middleware.Recovery(log))
	server.Use(compress.New())
	server.Use(middleware.Logger(log))
	server.Use(middleware.CORS(cfg.CORSOrigin))
	server.Use(metrics.HTTPMiddleware())

	// Health check
	server.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := svc.DB.Ping(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status":  "unhealthy",
				"service": "itp-reminder-api",
				"error":   err.Error(),
			})
		}
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"service":   "itp-reminder-api",
			"scheduler": svc.Scheduler.Status(),
		})
	})
	server.Get("/metrics", metrics.Handler())

	authHandler := handlers.NewAuthHandler(svc.Users, cfg.JWTSecret, time.Duration(cfg.JWTExpireHours)*time.Hour, log)
	clientHandler := handlers.NewClientHandler(svc.Clients, svc.Notifications, svc.Location, cfg.ITPReminderDays, log)
	notificationHandler := handlers.NewNotificationHandler(svc.Manager, svc.Scheduler, cfg.CronEnabled, log)
	dashboardHandler := handlers.NewDashboardHandler(svc.Clients, svc.Notifications, svc.Cache, svc.Location, cfg.ITPReminderDays, log)

	// Everything except login requires an operator token
	api := server.Group("/api", middleware.RateLimiter(cfg.RateLimit, time.Minute))
	auth := middleware.AuthRequired(cfg.JWTSecret)
	authHandler.Register(api.Group("/auth"), auth)
	clientHandler.Register(api.Group("/clients", auth))
	notificationHandler.Register(api.Group("/notifications", auth))
	notificationHandler.RegisterScheduler(api.Group("/scheduler", auth))
	dashboardHandler.Register(api.Group("/dashboard", auth))

	return server
}
