package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aispam/internal/api"
	"aispam/internal/config"
	"aispam/internal/service"
)

func main() {
	cfg, err := config.Load(config.Path())
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := cfg.Log.Logger(os.Stderr)

	svc, err := service.NewFromConfig(cfg, nil, logger)
	if err != nil {
		log.Fatalf("failed to build strategies: %v", err)
	}

	server := api.NewServer(svc, logger)

	go func() {
		logger.Info("server starting", "addr", cfg.Server.Port)
		if err := server.Start(cfg.Server.Port); err != nil {
			logger.Info("server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	server.Shutdown(ctx) //nolint:errcheck
}
