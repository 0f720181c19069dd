package port

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent. It never crosses
// the cache-service boundary.
var ErrCacheMiss = errors.New("cache miss")

// CacheStore is the raw key/value surface of a Redis-like store. The
// fail-open policy lives above it, in the cache service; implementations
// report errors honestly.
type CacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error

	// Scan returns one incremental page of keys matching pattern plus the
	// next cursor; a returned cursor of 0 ends the iteration.
	Scan(ctx context.Context, cursor uint64, pattern string, count int64) ([]string, uint64, error)
}
