package service

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ecomstack/inventory-core/internal/core/domain"
	"github.com/ecomstack/inventory-core/internal/port"
)

const (
	productKeyPrefix = "product:"
	listKeyPrefix    = "products:list:"
	listKeyPattern   = listKeyPrefix + "*"
)

func productKey(id string) string {
	return productKeyPrefix + id
}

// listKey derives a deterministic key from the full filter parameter set,
// so distinct queries never share an entry.
func listKey(f domain.ProductFilter) string {
	data, err := json.Marshal(f)
	if err != nil {
		return ""
	}
	return listKeyPrefix + fmt.Sprintf("%x", md5.Sum(data))
}

// CacheService is the fail-open cache-aside layer. The durable store is
// always the source of truth; any store error here degrades to a miss or a
// no-op and is only logged.
type CacheService struct {
	store  port.CacheStore
	logger *zap.Logger

	scanBatch int64
}

func NewCacheService(store port.CacheStore, scanBatch int64, logger *zap.Logger) *CacheService {
	if scanBatch < 1 {
		scanBatch = 100
	}
	return &CacheService{
		store:     store,
		logger:    logger,
		scanBatch: scanBatch,
	}
}

// Get decodes the entry at key into dest. A store error is treated exactly
// like a miss.
func (c *CacheService) Get(ctx context.Context, key string, dest any) bool {
	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, port.ErrCacheMiss) {
			c.logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		c.logger.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, string(data), ttl); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *CacheService) Delete(ctx context.Context, keys ...string) {
	if len(keys) == 0 {
		return
	}
	if err := c.store.Del(ctx, keys...); err != nil {
		c.logger.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// InvalidatePattern walks the keyspace incrementally and deletes matches in
// batches, so a large purge never stalls the shared store.
func (c *CacheService) InvalidatePattern(ctx context.Context, pattern string) {
	var cursor uint64
	for {
		keys, next, err := c.store.Scan(ctx, cursor, pattern, c.scanBatch)
		if err != nil {
			c.logger.Warn("cache scan failed", zap.String("pattern", pattern), zap.Error(err))
			return
		}
		c.Delete(ctx, keys...)
		if next == 0 {
			return
		}
		cursor = next
	}
}

// InvalidateProduct drops the single-entity entry and every list-query
// entry. List entries are purged coarsely by pattern: tracking which live
// queries a product affects is not worth it against a short list TTL.
func (c *CacheService) InvalidateProduct(ctx context.Context, productID string) {
	c.Delete(ctx, productKey(productID))
	c.InvalidatePattern(ctx, listKeyPattern)
}
