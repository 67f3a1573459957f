package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "pricewatch:search:q:"

// Cache is a Redis read-through cache for search results. Many models in one
// run produce identical queries; serving repeats from cache keeps the search
// quota for queries that matter. A nil Redis client disables caching.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

func cacheKey(query string, count int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d:%s", count, query)))
	return cacheKeyPrefix + hex.EncodeToString(sum[:16])
}

func (c *Cache) Get(ctx context.Context, query string, count int) ([]Result, bool) {
	if c.rdb == nil {
		return nil, false
	}
	data, err := c.rdb.Get(ctx, cacheKey(query, count)).Bytes()
	if err != nil {
		return nil, false
	}
	var results []Result
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, false
	}
	return results, true
}

func (c *Cache) Put(ctx context.Context, query string, count int, results []Result) {
	if c.rdb == nil {
		return
	}
	data, err := json.Marshal(results)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, cacheKey(query, count), data, c.ttl)
}
