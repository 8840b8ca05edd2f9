package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"crosslight/internal/config"
	"crosslight/pkg/logger"
)

// Store is the shared contract for the pipeline's lookup caches (translated
// strings, daily query suggestions). Keys are content hashes; values are
// opaque strings with a TTL.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Flush persists buffered writes. The file backend writes its whole
	// map once; the redis backend is write-through and flushes nothing.
	Flush(ctx context.Context) error
	Close() error
}

// New builds a store for the configured backend. The name scopes the cache
// (file name or redis key prefix) so the translation and query caches do
// not collide.
func New(cfg config.CacheConfig, name string, log *logger.Logger) (Store, error) {
	switch cfg.Backend {
	case "", config.CacheBackendFile:
		return NewFileStore(cfg.Dir, name, log)
	case config.CacheBackendRedis:
		return NewRedisStore(cfg.Redis, name, log)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Hash returns the content-hash cache key for a string.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:16])
}
