package embed

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// Cache maps content hashes to vectors so identical text never
// re-invokes the embedding provider. Same text always yields the same
// vector, so entries never expire on correctness grounds; the in-memory
// tier is size-bounded LRU, and an optional Redis tier survives
// restarts.
type Cache struct {
	local *lru.Cache[string, []float64]
	rdb   *redis.Client
}

const redisKeyPrefix = "embed:"

// NewCache creates a cache with the given LRU capacity. rdb may be nil.
func NewCache(size int, rdb *redis.Client) (*Cache, error) {
	if size <= 0 {
		size = 4096
	}
	local, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, fmt.Errorf("create lru cache: %w", err)
	}
	return &Cache{local: local, rdb: rdb}, nil
}

// ContentHash is the cache key: sha256 of whitespace-normalized text.
func ContentHash(text string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum)
}

func (c *Cache) Get(ctx context.Context, text string) ([]float64, bool) {
	key := ContentHash(text)
	if vec, ok := c.local.Get(key); ok {
		return vec, true
	}
	if c.rdb == nil {
		return nil, false
	}

	payload, err := c.rdb.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("redis embedding cache read failed", "error", err)
		}
		return nil, false
	}

	var vec []float64
	if err := json.Unmarshal(payload, &vec); err != nil {
		return nil, false
	}
	c.local.Add(key, vec)
	return vec, true
}

func (c *Cache) Put(ctx context.Context, text string, vec []float64) {
	key := ContentHash(text)
	c.local.Add(key, vec)
	if c.rdb == nil {
		return
	}

	payload, err := json.Marshal(vec)
	if err != nil {
		return
	}
	// Redis tier is capacity-bounded by TTL rather than LRU.
	if err := c.rdb.Set(ctx, redisKeyPrefix+key, payload, 7*24*time.Hour).Err(); err != nil {
		slog.Warn("redis embedding cache write failed", "error", err)
	}
}

// Len reports the in-memory tier size for /stats.
func (c *Cache) Len() int {
	return c.local.Len()
}
