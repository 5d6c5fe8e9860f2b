package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/payflow/payflow/internal/config"
	"github.com/payflow/payflow/internal/container"
	"github.com/payflow/payflow/internal/pkg/logger"
)

func main() {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("configuration error: %v", err)
	}

	appLogger := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.New(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("startup failed", "error", err)
		stop()
		log.Fatal(err)
	}
	defer c.Close()

	c.StartFundingSweep()

	appLogger.Info("starting",
		"app", cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"gateway_default", cfg.Gateway.Default,
	)

	if err := c.Server.Run(ctx); err != nil {
		appLogger.Error("server exited with error", "error", err)
		stop()
		log.Fatal(err)
	}
	appLogger.Info("shutdown complete")
}
