package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"cheques/internal/cache"
	"cheques/internal/cli"
	"cheques/internal/dashboard"
	"cheques/internal/gateway"
	apphttp "cheques/internal/http"
	"cheques/internal/log"
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	if envErr != nil {
		logger.Warn("Could not load .env", log.FieldError, envErr.Error())
	}
	cfg := cli.LoadAndValidateConfig(logger)
	loc := cfg.Location()

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

	broker, err := cli.OpenAMQP(cfg, logger)
	if err != nil {
		logger.Warn("AMQP unavailable, check events will not be published", log.FieldError, err.Error())
	}
	var publisher gateway.Publisher
	if broker != nil {
		defer broker.Close()
		publisher = broker
	}

	store := dashboard.NewStore(dashboard.Options{Location: loc, Logger: logger})
	cacheManager.Register(store.Previews())
	cacheManager.StartCleanup(5 * time.Minute)
	defer cacheManager.Stop()

	gw := gateway.New(store, snapshot.Source, be.Backend, gateway.Options{
		Publisher:   publisher,
		Invalidator: snapshot,
		Location:    loc,
		Logger:      logger,
	})
	if _, err := gw.Load(startCtx); err != nil {
		logger.Error("Initial load failed", log.FieldError, err.Error(), log.FieldBackend, cfg.DataBackend)
		os.Exit(1)
	}

	srv, err := apphttp.NewServer(":"+cfg.Port, gw, apphttp.Options{
		Location:       loc,
		RateLimitRPM:   cfg.RateLimitRPM,
		TrustedProxies: cfg.TrustedProxies,
		Timeout:        cfg.HTTPTimeout,
		Logger:         logger,
		Ready: func(ctx context.Context) error {
			_, err := snapshot.Source.Fetch(ctx)
			return err
		},
	})
	if err != nil {
		logger.Error("Failed to configure server", log.FieldError, err.Error())
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting cheques server", "port", cfg.Port, log.FieldBackend, cfg.DataBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Dashboard state at shutdown", log.NewFields().WithSnapshot(store.Len(), store.Revision()).ToSlice()...)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		_ = srv.Shutdown(context.Background())
		os.Exit(1)
	}
	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
