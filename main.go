package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/RipinDensumite/thinwatcher/config"
	"github.com/RipinDensumite/thinwatcher/db"
	"github.com/RipinDensumite/thinwatcher/handlers"
	"github.com/RipinDensumite/thinwatcher/services"
	"github.com/RipinDensumite/thinwatcher/utils"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	// Initialize logger
	logger := utils.NewLogger()

	missing, err := cfg.Validate()
	if err != nil {
		logger.Fatal("Invalid configuration", "error", err)
	}
	if len(missing) > 0 {
		logger.Warn("Running with missing environment variables", "missing", missing)
	}

	// Connect to database
	database, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to database", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize services
	users := services.NewUserService(database, logger)
	if _, err := users.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.Fatal("Failed to create bootstrap admin", "error", err)
	}

	registry := services.NewRegistry()
	hub := services.NewHub(logger)
	presence := services.NewPresenceService(registry, hub, logger)

	var (
		redisClient *redis.Client
		backplane   *services.Backplane
	)
	if cfg.RedisURL != "" {
		redisClient, err = services.NewRedisClient(cfg)
		if err != nil {
			logger.Fatal("Failed to initialize Redis", "error", err)
		}
		backplane = services.NewBackplane(redisClient, logger)

		entries, err := backplane.Load(ctx)
		if err != nil {
			logger.Error("Failed to restore mirrored clients", "error", err)
		} else {
			logger.Info("Restored clients from Redis", "count", presence.Restore(entries))
		}

		if err := backplane.Start(ctx, presence.ApplyRemote); err != nil {
			logger.Fatal("Failed to start backplane", "error", err)
		}
		presence.SetRelay(backplane)
	}

	// Start staleness sweeper
	sweeper := services.NewSweeper(presence, cfg.SweepInterval, cfg.OfflineTimeout, logger)
	sweeper.Start(ctx)

	router := handlers.NewRouter(cfg, presence, users, logger)

	// Create HTTP server. WriteTimeout stays zero so WebSocket streams are
	// not cut off; the stream handler sets its own write deadlines.
	srv := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     router.Engine(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Starting ThinWatcher", "port", cfg.Port, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown with timeout. Hijacked WebSocket streams are not
	// tracked by Shutdown; hub.Close ends them afterwards.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	sweeper.Stop()
	if backplane != nil {
		backplane.Stop()
	}
	hub.Close()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error("Failed to close Redis connection", "error", err)
		}
	}
	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}

	logger.Info("Server exited")
}
