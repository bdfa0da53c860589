// Package cache adds optional dataset caching in front of the artifact
// loader. The loader itself never caches; callers opt in by wrapping it.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/attacklens/attacklens/internal/artifact"
	"github.com/attacklens/attacklens/internal/config"
	"github.com/attacklens/attacklens/internal/logger"
)

// Store holds normalized datasets keyed by application name.
type Store interface {
	Get(ctx context.Context, app string) (*artifact.Dataset, bool)
	Set(ctx context.Context, app string, ds *artifact.Dataset)
	Close() error
}

// Loader matches the artifact loader surface the cache wraps.
type Loader interface {
	Load(ctx context.Context, app string) (*artifact.Dataset, error)
}

// CachingLoader consults the store before deferring to the underlying
// loader. Only successful loads are cached; unavailable applications are
// re-probed every time so newly published artifacts show up.
type CachingLoader struct {
	inner Loader
	store Store
	log   *logger.Logger
}

func WrapLoader(inner Loader, store Store, log *logger.Logger) *CachingLoader {
	return &CachingLoader{
		inner: inner,
		store: store,
		log:   log.WithComponent("dataset-cache"),
	}
}

func (c *CachingLoader) Load(ctx context.Context, app string) (*artifact.Dataset, error) {
	if ds, ok := c.store.Get(ctx, app); ok {
		c.log.Debugw("Dataset cache hit", "application", app)
		return ds, nil
	}
	ds, err := c.inner.Load(ctx, app)
	if err != nil {
		return nil, err
	}
	c.store.Set(ctx, app, ds)
	return ds, nil
}

// NewStore builds the configured store: Redis when an address is set,
// otherwise the in-process TTL map.
func NewStore(cfg config.CacheConfig, log *logger.Logger) (Store, error) {
	if cfg.Redis.Addr != "" {
		return NewRedisStore(cfg.Redis, cfg.TTL, log)
	}
	return NewMemoryStore(cfg.TTL), nil
}

type memoryEntry struct {
	dataset   *artifact.Dataset
	expiresAt time.Time
}

// MemoryStore is a TTL map with a background sweep.
type MemoryStore struct {
	mu       sync.RWMutex
	entries  map[string]memoryEntry
	ttl      time.Duration
	stop     chan struct{}
	stopOnce sync.Once
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}
	go s.sweep()
	return s
}

func (s *MemoryStore) Get(ctx context.Context, app string) (*artifact.Dataset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[app]
	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.dataset, true
}

func (s *MemoryStore) Set(ctx context.Context, app string, ds *artifact.Dataset) {
	s.mu.Lock()
	s.entries[app] = memoryEntry{dataset: ds, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()
}

func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return nil
}

func (s *MemoryStore) sweep() {
	ticker := time.NewTicker(s.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for app, entry := range s.entries {
				if now.After(entry.expiresAt) {
					delete(s.entries, app)
				}
			}
			s.mu.Unlock()
		}
	}
}
