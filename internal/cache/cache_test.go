package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
)

type countingEmbedder struct {
	calls int
	err   error
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{float32(len(text)), 0.5}, nil
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestEmbeddingCacheHitsAfterFirstCall(t *testing.T) {
	mr, rdb := newRedis(t)
	inner := &countingEmbedder{}
	c := NewEmbeddingCache(inner, rdb, "text-embedding-3-small", time.Hour, zaptest.NewLogger(t))

	first, err := c.Embed(context.Background(), "checkpoint expired")
	require.NoError(t, err)
	second, err := c.Embed(context.Background(), "checkpoint expired")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	key := c.Key("checkpoint expired")
	assert.Regexp(t, `^embedding:text-embedding-3-small:[0-9a-f]{64}$`, key)
	assert.True(t, mr.Exists(key))
	assert.Equal(t, time.Hour, mr.TTL(key))
}

func TestEmbeddingCacheKeysByModel(t *testing.T) {
	_, rdb := newRedis(t)
	a := NewEmbeddingCache(&countingEmbedder{}, rdb, "model-a", time.Hour, zaptest.NewLogger(t))
	b := NewEmbeddingCache(&countingEmbedder{}, rdb, "model-b", time.Hour, zaptest.NewLogger(t))
	assert.NotEqual(t, a.Key("same"), b.Key("same"))
}

func TestEmbeddingCacheDegradesWhenRedisIsDown(t *testing.T) {
	mr, rdb := newRedis(t)
	mr.Close()
	inner := &countingEmbedder{}
	c := NewEmbeddingCache(inner, rdb, "m", time.Hour, zaptest.NewLogger(t))

	vec, err := c.Embed(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 0.5}, vec)
	assert.Equal(t, 1, inner.calls)
}

func TestEmbeddingCacheDoesNotStoreErrors(t *testing.T) {
	mr, rdb := newRedis(t)
	inner := &countingEmbedder{err: errors.New("rate limited")}
	c := NewEmbeddingCache(inner, rdb, "m", time.Hour, zaptest.NewLogger(t))

	_, err := c.Embed(context.Background(), "abc")
	require.Error(t, err)
	assert.False(t, mr.Exists(c.Key("abc")))
}

func TestBatchLockIsExclusive(t *testing.T) {
	_, rdb := newRedis(t)
	ctx := context.Background()
	lock := NewBatchLock(rdb, "oceanus:batch", time.Minute)

	release, err := lock.Acquire(ctx)
	require.NoError(t, err)

	_, err = lock.Acquire(ctx)
	require.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))
	release2, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release2(ctx))
}

func TestBatchLockReleaseKeepsNewHoldersLock(t *testing.T) {
	mr, rdb := newRedis(t)
	ctx := context.Background()
	lock := NewBatchLock(rdb, "oceanus:batch", time.Minute)

	staleRelease, err := lock.Acquire(ctx)
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	require.False(t, mr.Exists("oceanus:batch"))

	_, err = lock.Acquire(ctx)
	require.NoError(t, err)

	// The expired holder must not delete the new holder's lock.
	require.NoError(t, staleRelease(ctx))
	assert.True(t, mr.Exists("oceanus:batch"))
}

func TestOptionsAcceptsAddrAndURL(t *testing.T) {
	opts, err := Options(config.RedisConfig{Addr: "localhost:6379", DB: 2})
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 2, opts.DB)

	opts, err = Options(config.RedisConfig{Addr: "redis://:secret@cache.internal:6380/3"})
	require.NoError(t, err)
	assert.Equal(t, "cache.internal:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 3, opts.DB)

	opts, err = Options(config.RedisConfig{Addr: "redis://cache.internal:6380/3", Password: "override"})
	require.NoError(t, err)
	assert.Equal(t, "override", opts.Password)

	_, err = Options(config.RedisConfig{Addr: "http://cache.internal"})
	assert.Error(t, err)
}

func TestOpenPingsURL(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb, err := Open(context.Background(), config.RedisConfig{Addr: "redis://" + mr.Addr() + "/0"}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Set(context.Background(), "k", "v", 0).Err())
	assert.True(t, mr.Exists("k"))
}
