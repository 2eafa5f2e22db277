package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"course-platform-backend/internal/app"
	"course-platform-backend/internal/config"
	"course-platform-backend/pkg/logger"
	"course-platform-backend/pkg/validator"
)

func main() {
	// The .env file is read before the logger so LOG_LEVEL and LOG_FORMAT apply.
	envErr := godotenv.Load()

	cfg := config.New()
	logger.Init(logger.WithLevel(cfg.LogLevel), logger.WithFormat(cfg.LogFormat))
	if envErr != nil {
		logger.Info("No .env file found, using environment variables", nil)
	}
	logger.Info("Starting course platform API", nil)

	validator.Init()

	application, err := app.New(cfg, app.Options{})
	if err != nil {
		logger.Error(err, "Failed to initialize application", nil)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		if err := application.Run(); err != nil {
			logger.Error(err, "Failed to start server", nil)
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server...", nil)
	case err := <-serverErr:
		logger.Error(err, "Server error occurred, initiating shutdown", nil)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := application.Shutdown(shutdownCtx); err != nil {
		logger.Error(err, "Server forced to shutdown", nil)
		os.Exit(1)
	}

	logger.Info("Server exited gracefully", nil)
}
