package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dreamstream/internal/api/handlers"
	"dreamstream/internal/config"
	fxmodules "dreamstream/internal/fx"
	"dreamstream/internal/jobs"
	"dreamstream/internal/middleware"
	"dreamstream/internal/service"
	"dreamstream/internal/websocket"
	"dreamstream/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	fiberws "github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fx.New(
		fxmodules.Module,
		fx.NopLogger,
		fx.Invoke(runServer),
	).Run()
}

func runServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	handler *handlers.GamificationHandler,
	svc *service.GamificationService,
	hub *websocket.Hub,
	pool *worker.WorkerPool,
	scheduler *jobs.ChallengeScheduler,
	logger zerolog.Logger,
) {
	app := fiber.New(fiber.Config{
		AppName:               "DreamStream Gamification",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(middleware.RequestID(logger))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept, X-Request-ID",
	}))

	// Routes
	api := app.Group("/api/v1")
	handler.Register(api)

	api.Get("/metrics", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"worker_pool":    pool.GetMetrics(),
			"scheduler":      scheduler.GetMetrics(),
			"ws_subscribers": hub.SubscriberCount(),
		})
	})

	// WebSocket route with upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if fiberws.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", fiberws.New(func(c *fiberws.Conn) {
		websocket.ServeWS(hub, c)
	}))

	// Root route
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "DreamStream Gamification API",
			"version": "1.0.0",
			"endpoints": []string{
				"POST /api/v1/points",
				"POST /api/v1/badges",
				"POST /api/v1/checkins",
				"GET /api/v1/users/:userId",
				"GET /api/v1/users/:userId/events",
				"GET /api/v1/leaderboard",
				"GET /api/v1/leaderboard/rank/:userId",
				"GET /api/v1/leaderboards",
				"POST /api/v1/challenges",
				"GET /api/v1/challenges/:id",
				"POST /api/v1/challenges/:id/progress",
				"GET /api/v1/health",
				"GET /api/v1/metrics",
				"WS /ws (WebSocket)",
			},
			"websocket_subscribers": hub.SubscriberCount(),
		})
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Redis may have been flushed while we were down
			if err := svc.SyncCacheFromStore(ctx); err != nil {
				logger.Warn().Err(err).Msg("initial leaderboard sync failed, serving from store")
			}

			go func() {
				logger.Info().Str("addr", addr).Msg("server starting")
				if err := app.Listen(addr); err != nil {
					logger.Fatal().Err(err).Msg("server failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("server shutdown failed")
				return err
			}
			logger.Info().Msg("server stopped gracefully")
			return nil
		},
	})
}

// customErrorHandler handles errors globally
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   "Request failed",
		"message": err.Error(),
	})
}
