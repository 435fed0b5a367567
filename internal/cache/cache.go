// Package cache keeps embeddings and batch locks in Redis.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
)

const opTimeout = 2 * time.Second

// Options turns cfg into client options. Addr may be a bare host:port or a
// redis:// (rediss://) URL; Password and DB override values from the URL when set.
func Options(cfg config.RedisConfig) (*redis.Options, error) {
	if !strings.Contains(cfg.Addr, "://") {
		return &redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}, nil
	}
	opts, err := redis.ParseURL(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return opts, nil
}

// Open connects to Redis. A failed ping is logged and the client is still
// returned; callers fall back to uncached behaviour on each error.
func Open(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	opts, err := Options(cfg)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("failed to connect to redis, continuing without cache", zap.String("addr", opts.Addr), zap.Error(err))
	} else {
		logger.Info("connected to redis", zap.String("addr", opts.Addr))
	}
	return rdb, nil
}
