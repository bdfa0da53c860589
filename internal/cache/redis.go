package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/attacklens/attacklens/internal/artifact"
	"github.com/attacklens/attacklens/internal/config"
	"github.com/attacklens/attacklens/internal/logger"
)

const datasetKeyPrefix = "attacklens:dataset:"

// RedisStore shares cached datasets across viewer instances. Cache failures
// degrade to misses; the artifact host remains the source of truth.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	log    *logger.Logger
}

func NewRedisStore(cfg config.RedisConfig, ttl time.Duration, log *logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
		log:    log.WithComponent("redis-cache"),
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, app string) (*artifact.Dataset, bool) {
	data, err := s.client.Get(ctx, datasetKeyPrefix+app).Bytes()
	if err != nil {
		if err != redis.Nil {
			s.log.Warnw("Redis get failed", "application", app, "error", err.Error())
		}
		return nil, false
	}

	var ds artifact.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		s.log.Warnw("Cached dataset is corrupt, evicting",
			"application", app,
			"error", err.Error(),
		)
		s.client.Del(ctx, datasetKeyPrefix+app)
		return nil, false
	}
	return &ds, true
}

func (s *RedisStore) Set(ctx context.Context, app string, ds *artifact.Dataset) {
	data, err := json.Marshal(ds)
	if err != nil {
		s.log.Warnw("Failed to marshal dataset for cache", "application", app, "error", err.Error())
		return
	}
	if err := s.client.Set(ctx, datasetKeyPrefix+app, data, s.ttl).Err(); err != nil {
		s.log.Warnw("Redis set failed", "application", app, "error", err.Error())
	}
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
