package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/llm"
	"github.com/Divas-Gupta30/oceanus-agent/internal/metrics"
)

// EmbeddingCache memoises an Embedder in Redis.
type EmbeddingCache struct {
	next   llm.Embedder
	rdb    redis.Cmdable
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

func NewEmbeddingCache(next llm.Embedder, rdb redis.Cmdable, model string, ttl time.Duration, logger *zap.Logger) *EmbeddingCache {
	return &EmbeddingCache{next: next, rdb: rdb, model: model, ttl: ttl, logger: logger}
}

// Key is the Redis key for text under the cache's model.
func (c *EmbeddingCache) Key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("embedding:%s:%s", c.model, hex.EncodeToString(sum[:]))
}

func (c *EmbeddingCache) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.Key(text)

	if vec, err := c.get(ctx, key); err == nil {
		metrics.CacheHitsTotal.Inc()
		return vec, nil
	} else if err != redis.Nil {
		c.logger.Warn("embedding cache read failed", zap.Error(err))
	}
	metrics.CacheMissesTotal.Inc()

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.set(ctx, key, vec); err != nil {
		c.logger.Warn("failed to cache embedding", zap.Error(err))
	}
	return vec, nil
}

func (c *EmbeddingCache) get(ctx context.Context, key string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var vec []float32
	if err := json.Unmarshal(data, &vec); err != nil {
		return nil, fmt.Errorf("decode cached embedding: %w", err)
	}
	return vec, nil
}

func (c *EmbeddingCache) set(ctx context.Context, key string, vec []float32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := json.Marshal(vec)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, data, c.ttl).Err()
}
