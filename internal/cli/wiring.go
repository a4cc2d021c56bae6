package cli

import (
	"context"
	"fmt"

	"cheques/internal/amqp"
	"cheques/internal/backend"
	"cheques/internal/cache"
	"cheques/internal/config"
	"cheques/internal/log"
	"cheques/internal/sheets"
)

// OpenBackend builds the backend selected by DATA_BACKEND.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	return backend.NewFactory(logger).CreateBackend(ctx, bcfg)
}

// Snapshot is the read path of a backend, cached when SNAPSHOT_TTL is set.
type Snapshot struct {
	Source sheets.Source
	// Cached is nil when snapshots are not cached.
	Cached *cache.CachedSource
	close  func() error
}

// Invalidate drops the cached snapshot, if any.
func (s *Snapshot) Invalidate(ctx context.Context) error {
	if s.Cached == nil {
		return nil
	}
	return s.Cached.Invalidate(ctx)
}

func (s *Snapshot) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenSnapshot puts a snapshot cache in front of src: Redis when REDIS_URL
// is set, otherwise an in-process LRU registered with mgr for cleanup.
func OpenSnapshot(ctx context.Context, cfg *config.Config, src sheets.Source, mgr *cache.Manager, logger *log.Logger) (*Snapshot, error) {
	if cfg.SnapshotTTL <= 0 {
		return &Snapshot{Source: src}, nil
	}

	var store cache.SnapshotStore
	var closer func() error
	if cfg.RedisURL != "" {
		rs, err := cache.NewRedisSnapshotStore(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("snapshot cache: %w", err)
		}
		store, closer = rs, rs.Close
		logger.Info("Snapshot cache on redis", "ttl", cfg.SnapshotTTL.String())
	} else {
		ms := cache.NewMemorySnapshotStore(cfg.SnapshotTTL)
		if mgr != nil {
			mgr.Register(ms)
		}
		store = ms
		logger.Info("Snapshot cache in memory", "ttl", cfg.SnapshotTTL.String())
	}

	cached := cache.NewCachedSource(src, store, cfg.SnapshotTTL, logger)
	return &Snapshot{Source: cached, Cached: cached, close: closer}, nil
}

// OpenAMQP connects to the broker. It returns nil without error when
// AMQP_URL is empty.
func OpenAMQP(cfg *config.Config, logger *log.Logger) (*amqp.Client, error) {
	if cfg.AMQPURL == "" {
		return nil, nil
	}
	c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return nil, fmt.Errorf("amqp: %w", err)
	}
	return c, nil
}
