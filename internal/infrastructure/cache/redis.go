package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crosslight/internal/config"
	"crosslight/pkg/logger"
)

// RedisStore is a write-through cache backend for deployments where
// multiple hosts share translation and query caches. TTL handling is
// delegated to redis.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *logger.Logger
}

func NewRedisStore(cfg config.RedisConfig, name string, log *logger.Logger) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "crosslight"
	}
	return &RedisStore{
		client: client,
		prefix: prefix + ":" + name + ":",
		logger: log.WithComponent("cache"),
	}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, s.prefix+key, value, ttl).Err()
}

// Flush is a no-op: redis writes are immediate.
func (s *RedisStore) Flush(context.Context) error {
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
