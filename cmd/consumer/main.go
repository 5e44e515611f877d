package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"aispam/internal/config"
	"aispam/internal/queue"
	"aispam/internal/service"
	"aispam/internal/worker"
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

	consumer, err := queue.NewKafkaConsumer(cfg.Queue.Brokers, cfg.Queue.GroupID, cfg.Queue.Topic, logger)
	if err != nil {
		log.Fatalf("failed to create consumer: %v", err)
	}
	defer consumer.Close()

	w := worker.NewConsumer(consumer, svc, nil, logger)
	if cfg.Queue.ResultsTopic != "" {
		publisher, err := queue.NewKafkaPublisher(cfg.Queue.Brokers, cfg.Queue.ResultsTopic)
		if err != nil {
			log.Fatalf("failed to create publisher: %v", err)
		}
		defer publisher.Close()
		w.WithPublisher(publisher)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := w.Start(ctx); err != nil {
			logger.Error("consumer error", "error", err)
		}
	}()

	logger.Info("consumer started", "topic", cfg.Queue.Topic, "strategies", svc.Strategies())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()
}
