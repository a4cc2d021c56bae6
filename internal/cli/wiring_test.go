package cli

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cheques/internal/cache"
	"cheques/internal/config"
	"cheques/internal/log"
	"cheques/internal/sheets/memory"
)

func TestOpenSnapshotDisabled(t *testing.T) {
	src := memory.New(nil, time.UTC)
	snap, err := OpenSnapshot(context.Background(), &config.Config{}, src, nil, log.Discard())
	require.NoError(t, err)
	assert.Nil(t, snap.Cached)
	assert.Same(t, src, snap.Source)
	assert.NoError(t, snap.Invalidate(context.Background()))
	assert.NoError(t, snap.Close())
}

func TestOpenSnapshotInMemory(t *testing.T) {
	mgr := cache.NewManager(nil)
	cfg := &config.Config{SnapshotTTL: time.Minute}
	snap, err := OpenSnapshot(context.Background(), cfg, memory.New(nil, time.UTC), mgr, log.Discard())
	require.NoError(t, err)
	require.NotNil(t, snap.Cached)

	_, err = snap.Source.Fetch(context.Background())
	require.NoError(t, err)
	assert.NoError(t, snap.Invalidate(context.Background()))
	assert.Equal(t, 0, mgr.CleanNow())
}

func TestOpenSnapshotRedisUnreachable(t *testing.T) {
	cfg := &config.Config{SnapshotTTL: time.Minute, RedisURL: "127.0.0.1:1"}
	_, err := OpenSnapshot(context.Background(), cfg, memory.New(nil, time.UTC), nil, log.Discard())
	assert.Error(t, err)
}

func TestOpenAMQPDisabled(t *testing.T) {
	c, err := OpenAMQP(&config.Config{}, log.Discard())
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestOpenBackendMemory(t *testing.T) {
	cfg := &config.Config{DataBackend: "memory", Timezone: "UTC"}
	res, err := OpenBackend(context.Background(), cfg, log.Discard())
	require.NoError(t, err)
	defer res.Close()
	rows, err := res.Backend.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rows)
}
