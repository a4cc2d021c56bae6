package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"cheques/internal/core"
	"cheques/internal/log"
	"cheques/internal/sheets"
)

// SnapshotKey is the key under which the full check list is stored.
const SnapshotKey = "cheques:snapshot"

// SnapshotStore keeps encoded check lists.
type SnapshotStore interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Drop(ctx context.Context, key string) error
}

// MemorySnapshotStore keeps snapshots in an in-process LRU. The LRU's own
// ttl applies; the ttl passed to Save is ignored.
type MemorySnapshotStore struct {
	lru *LRUCache[[]byte]
}

func NewMemorySnapshotStore(ttl time.Duration) *MemorySnapshotStore {
	return &MemorySnapshotStore{lru: NewLRUCache[[]byte](4, ttl)}
}

func (m *MemorySnapshotStore) Load(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := m.lru.Get(key)
	return b, ok, nil
}

func (m *MemorySnapshotStore) Save(_ context.Context, key string, data []byte, _ time.Duration) error {
	m.lru.Set(key, data)
	return nil
}

func (m *MemorySnapshotStore) Drop(_ context.Context, key string) error {
	m.lru.Delete(key)
	return nil
}

// CleanExpired lets the Manager sweep the LRU.
func (m *MemorySnapshotStore) CleanExpired() int { return m.lru.CleanExpired() }

// RedisSnapshotStore shares snapshots between processes.
type RedisSnapshotStore struct {
	client *redis.Client
}

// NewRedisSnapshotStore connects and pings. addr may be a redis:// URL or a
// bare host:port.
func NewRedisSnapshotStore(ctx context.Context, addr string) (*RedisSnapshotStore, error) {
	if !strings.Contains(addr, "://") {
		addr = "redis://" + addr
	}
	opt, err := redis.ParseURL(addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisSnapshotStore{client: client}, nil
}

func (r *RedisSnapshotStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (r *RedisSnapshotStore) Save(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return r.client.SetEx(ctx, key, data, ttl).Err()
}

func (r *RedisSnapshotStore) Drop(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisSnapshotStore) Close() error { return r.client.Close() }

// CachedSource is a read-through cache in front of a slow source.
// Concurrent misses share one fetch. A fetch that began before the last
// Invalidate is returned to its callers but never stored.
type CachedSource struct {
	src    sheets.Source
	store  SnapshotStore
	ttl    time.Duration
	group  singleflight.Group
	gen    atomic.Uint64
	logger *log.Logger
}

var _ sheets.Source = (*CachedSource)(nil)

func NewCachedSource(src sheets.Source, store SnapshotStore, ttl time.Duration, logger *log.Logger) *CachedSource {
	if logger == nil {
		logger = log.Discard()
	}
	return &CachedSource{src: src, store: store, ttl: ttl, logger: logger.WithComponent(log.ComponentCache)}
}

// Fetch serves the stored snapshot when there is one. Store failures are
// logged and fall through to the source.
func (c *CachedSource) Fetch(ctx context.Context) ([]core.Check, error) {
	if b, ok, err := c.store.Load(ctx, SnapshotKey); err != nil {
		c.logger.WarnContext(ctx, "snapshot load failed", log.FieldError, err.Error())
	} else if ok {
		var rows []core.Check
		if err := json.Unmarshal(b, &rows); err == nil {
			return rows, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt snapshot")
	}

	v, err, _ := c.group.Do(SnapshotKey, func() (any, error) {
		gen := c.gen.Load()
		rows, err := c.src.Fetch(ctx)
		if err != nil {
			return nil, err
		}
		if c.gen.Load() != gen {
			c.logger.DebugContext(ctx, "snapshot invalidated during fetch, not stored")
			return rows, nil
		}
		if b, err := json.Marshal(rows); err == nil {
			if err := c.store.Save(ctx, SnapshotKey, b, c.ttl); err != nil {
				c.logger.WarnContext(ctx, "snapshot save failed", log.FieldError, err.Error())
			}
		}
		return rows, nil
	})
	if err != nil {
		return nil, err
	}
	rows := v.([]core.Check)
	out := make([]core.Check, len(rows))
	copy(out, rows)
	return out, nil
}

// Invalidate drops the stored snapshot and detaches any fetch in flight,
// so the next Fetch reaches the source.
func (c *CachedSource) Invalidate(ctx context.Context) error {
	c.gen.Add(1)
	c.group.Forget(SnapshotKey)
	return c.store.Drop(ctx, SnapshotKey)
}
