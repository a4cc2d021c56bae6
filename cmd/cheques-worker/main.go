package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cheques/internal/cache"
	"cheques/internal/cli"
	"cheques/internal/log"
	"cheques/internal/worker"
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	if envErr != nil {
		logger.Warn("Could not load .env", log.FieldError, envErr.Error())
	}
	logger.Info("Starting cheques-worker")

	cfg := cli.LoadAndValidateConfig(logger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), cfg.HTTPTimeout)
	defer cancelStart()

	be, err := cli.OpenBackend(startCtx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize backend", log.FieldError, err.Error(), log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}
	defer be.Close()

	cacheManager := cache.NewManager(logger)
	snapshot, err := cli.OpenSnapshot(startCtx, cfg, be.Backend, cacheManager, logger)
	if err != nil {
		logger.Error("Failed to initialize snapshot cache", log.FieldError, err.Error())
		os.Exit(1)
	}
	defer snapshot.Close()
	cacheManager.StartCleanup(5 * time.Minute)
	defer cacheManager.Stop()

	broker, err := cli.OpenAMQP(cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err.Error())
		os.Exit(1)
	}

	opts := worker.Options{
		Invalidator: snapshot,
		WindowDays:  cfg.ReminderWindowDays,
		Clock:       func() time.Time { return time.Now().In(cfg.Location()) },
		Logger:      logger,
	}
	if broker != nil {
		defer broker.Close()
		opts.Publisher = broker
	} else {
		logger.Info("AMQP disabled - digests are only logged")
	}
	reminders := worker.NewReminderWorker(snapshot.Source, opts)

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, nil)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reminders.RunEvery(gctx, cfg.ReminderInterval)
	})
	if broker != nil {
		g.Go(func() error {
			return broker.ConsumeEvents(gctx, reminders.HandleEvent)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker failed", log.FieldError, err.Error())
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
