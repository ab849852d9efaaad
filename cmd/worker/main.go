package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/loggo/v2"

	"amalnama/internal/app"
	"amalnama/internal/config"
	"amalnama/internal/mail"
	"amalnama/internal/queue"
	"amalnama/internal/store"
)

var logger = loggo.GetLogger("amalnama.worker")

// Worker drains the shared email outbox and delivers with retry.
func main() {
	cfg := config.Load()
	if err := app.ConfigureLogging(cfg.LogLevel); err != nil {
		logger.Warningf("%v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Infof("shutdown signal received")
		cancel()
	}()

	if cfg.QueueBackend != "redis" {
		logger.Criticalf("queue backend %q is drained by the api process; the worker needs QUEUE_BACKEND=redis", cfg.QueueBackend)
		os.Exit(1)
	}
	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Client.Close()
	if !redisClient.Healthy(ctx) {
		logger.Warningf("redis at %s not reachable yet, consumer will keep retrying", cfg.RedisAddr)
	}

	q, err := queue.New(cfg.QueueBackend, redisClient.Client, cfg.QueueKey)
	if err != nil {
		logger.Criticalf("queue init failed: %v", err)
		os.Exit(1)
	}

	provider := mail.NewProvider(cfg.EmailProvider, cfg.EmailFrom,
		cfg.ResendAPIKey, cfg.ResendURL, cfg.SendGridAPIKey, cfg.SendGridHost)
	if cfg.RelayURL != "" {
		logger.Infof("delivering through relay %s", cfg.RelayURL)
	} else {
		logger.Infof("delivering through %s provider", provider.Name())
	}
	d := mail.NewDispatcher(mail.NewDeliverer(cfg.RelayURL, provider), mail.RetryPolicy{
		Attempts: cfg.EmailAttempts,
		Delay:    cfg.EmailDelay,
		MaxDelay: cfg.EmailMaxDelay,
	}, clock.WallClock)

	if err := d.Run(ctx, q); err != nil {
		logger.Criticalf("dispatcher failed: %v", err)
		os.Exit(1)
	}
	logger.Infof("worker stopped")
}
