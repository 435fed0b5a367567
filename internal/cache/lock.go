package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockHeld is returned when another holder owns the lock.
var ErrLockHeld = errors.New("lock held by another holder")

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// BatchLock is a single-holder lock stored under one Redis key.
type BatchLock struct {
	rdb redis.Cmdable
	key string
	ttl time.Duration
}

func NewBatchLock(rdb redis.Cmdable, key string, ttl time.Duration) *BatchLock {
	return &BatchLock{rdb: rdb, key: key, ttl: ttl}
}

// Acquire takes the lock and returns a release func. The lock expires after
// the TTL if the holder dies without releasing it.
func (l *BatchLock) Acquire(ctx context.Context) (func(context.Context) error, error) {
	token := uuid.NewString()

	ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLockHeld
	}

	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.rdb, []string{l.key}, token).Err()
	}
	return release, nil
}
