package main

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/agent"
	"github.com/Divas-Gupta30/oceanus-agent/internal/cache"
	"github.com/Divas-Gupta30/oceanus-agent/internal/graph"
	"github.com/Divas-Gupta30/oceanus-agent/internal/llm"
	"github.com/Divas-Gupta30/oceanus-agent/internal/storage"
)

const batchLockKey = "oceanus:batch_lock"

// app holds the long-lived clients a command needs.
type app struct {
	pool     *pgxpool.Pool
	store    *storage.Store
	rdb      *redis.Client
	llm      llm.Client
	embedder llm.Embedder
}

// openStore connects only to PostgreSQL.
func openStore(ctx context.Context) (*app, error) {
	pool, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to postgres", zap.Int32("max_conns", cfg.Database.MaxConns))
	return &app{pool: pool, store: storage.New(pool, cfg.Vector)}, nil
}

// openApp connects to PostgreSQL, the model provider and, when configured, Redis.
func openApp(ctx context.Context) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	a, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	client, err := llm.New(cfg.LLM, cfg.Vector.Dim, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.llm, a.embedder = client, client

	if cfg.RedisEnabled() {
		rdb, err := cache.Open(ctx, cfg.Redis, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.rdb = rdb
		a.embedder = cache.NewEmbeddingCache(client, a.rdb, llm.EmbeddingModel(cfg.LLM), cfg.Redis.EmbeddingTTL, logger)
	}
	return a, nil
}

func (a *app) newAgent() (*agent.Agent, error) {
	wf, err := graph.NewWorkflow(graph.Deps{
		Exceptions: a.store,
		Knowledge:  a.store,
		Embedder:   a.embedder,
		LLM:        a.llm,
	}, cfg.Knowledge, cfg.Scheduler.MaxDiagnoseRetries, graph.NewMemoryCheckpointer(0), logger)
	if err != nil {
		return nil, err
	}

	var lock agent.Locker
	if a.rdb != nil {
		lock = cache.NewBatchLock(a.rdb, batchLockKey, cfg.Redis.LockTTL)
	}
	return agent.New(wf, a.store, lock, cfg.Scheduler, cfg.App.Env, logger), nil
}

func (a *app) close() {
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	a.pool.Close()
}
