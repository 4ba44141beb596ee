package cache

import (
	"context"
	"errors"
	"time"

	"github.com/four20hq/clanhub/cache/local"
	cacheredis "github.com/four20hq/clanhub/cache/redis"
)

// Cache is the KV / Hash surface shared by the local and Redis backends.
// Sessions and throttle windows live in the KV space; the cached guild
// member snapshot lives in a hash keyed by Discord ID.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error

	HSet(ctx context.Context, key, field, value string) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HDel(ctx context.Context, key string, fields ...string) error
}

// Config selects the cache backend. An empty RedisAddr means the in-process
// LocalCache, which is best-effort only: throttle windows reset on restart
// and are not shared across instances.
type Config struct {
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	LocalGCInterval time.Duration
}

// New returns a Redis-backed cache when RedisAddr is set, otherwise a
// LocalCache.
func New(cfg Config) (Cache, error) {
	if cfg.RedisAddr != "" {
		return cacheredis.NewCache(cacheredis.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	}
	return local.NewCache(local.Config{GCInterval: cfg.LocalGCInterval})
}

// IsNotFound reports whether err is either backend's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, local.ErrNotFound) || errors.Is(err, cacheredis.ErrNotFound)
}
