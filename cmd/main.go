package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/celestiaorg/docconv/config"
	"github.com/celestiaorg/docconv/internal/app"
	"github.com/celestiaorg/docconv/internal/constants"
	"github.com/celestiaorg/docconv/internal/logger"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv(constants.EnvConfigFile))
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}
	logger.InitializeAndConfigure(config.GetEnv(constants.EnvLogLevel, cfg.Log.Level))

	a, err := app.New(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("Starting docconv in %s mode", cfg.Conversion.Mode)
	if err := a.Run(ctx); err != nil {
		logger.Fatalf("Server stopped: %v", err)
	}
}
