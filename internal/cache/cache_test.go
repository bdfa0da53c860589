package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attacklens/attacklens/internal/artifact"
	"github.com/attacklens/attacklens/internal/config"
	"github.com/attacklens/attacklens/internal/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LoggerConfig{Level: "error", Format: "json"})
	require.NoError(t, err)
	return log
}

type countingLoader struct {
	calls int
	ds    *artifact.Dataset
	err   error
}

func (c *countingLoader) Load(ctx context.Context, app string) (*artifact.Dataset, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.ds, nil
}

func TestMemoryStore_SetGet(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	_, ok := store.Get(ctx, "demo")
	assert.False(t, ok)

	ds := &artifact.Dataset{Application: "demo", Shape: artifact.ShapeAttackPaths}
	store.Set(ctx, "demo", ds)

	got, ok := store.Get(ctx, "demo")
	require.True(t, ok)
	assert.Equal(t, "demo", got.Application)
}

func TestMemoryStore_EntriesExpire(t *testing.T) {
	store := NewMemoryStore(10 * time.Millisecond)
	defer store.Close()
	ctx := context.Background()

	store.Set(ctx, "demo", &artifact.Dataset{Application: "demo"})
	time.Sleep(25 * time.Millisecond)

	_, ok := store.Get(ctx, "demo")
	assert.False(t, ok)
}

func TestCachingLoader_SecondLoadHitsCache(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	inner := &countingLoader{ds: &artifact.Dataset{Application: "demo"}}
	loader := WrapLoader(inner, store, testLogger(t))
	ctx := context.Background()

	first, err := loader.Load(ctx, "demo")
	require.NoError(t, err)
	second, err := loader.Load(ctx, "demo")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, first, second)
}

func TestCachingLoader_FailuresAreNotCached(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	defer store.Close()
	inner := &countingLoader{err: &artifact.DataUnavailableError{Application: "ghost"}}
	loader := WrapLoader(inner, store, testLogger(t))
	ctx := context.Background()

	_, err := loader.Load(ctx, "ghost")
	require.Error(t, err)
	_, err = loader.Load(ctx, "ghost")
	require.Error(t, err)

	// Unavailable applications are re-probed every time.
	assert.Equal(t, 2, inner.calls)
}

func TestNewStore_DefaultsToMemory(t *testing.T) {
	store, err := NewStore(config.CacheConfig{TTL: time.Minute}, testLogger(t))
	require.NoError(t, err)
	defer store.Close()

	_, isMemory := store.(*MemoryStore)
	assert.True(t, isMemory)
}
