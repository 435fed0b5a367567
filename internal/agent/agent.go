// Package agent schedules diagnosis batches.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Divas-Gupta30/oceanus-agent/internal/cache"
	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
	"github.com/Divas-Gupta30/oceanus-agent/internal/graph"
	"github.com/Divas-Gupta30/oceanus-agent/internal/metrics"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

// Runner executes one workflow run.
type Runner interface {
	Run(ctx context.Context, threadID string) (*graph.State, error)
}

// QueueStore is the part of storage the scheduler maintains.
type QueueStore interface {
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error)
	PendingCount(ctx context.Context) (int64, error)
}

// Locker guards a batch across replicas.
type Locker interface {
	Acquire(ctx context.Context) (func(context.Context) error, error)
}

// BatchSummary reports the outcome of one batch.
type BatchSummary struct {
	BatchID    string `json:"batch_id"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	Skipped    bool   `json:"skipped,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

type Agent struct {
	runner Runner
	store  QueueStore
	lock   Locker
	cfg    config.SchedulerConfig
	env    string
	logger *zap.Logger

	batches atomic.Int64
	running sync.Mutex
}

// New builds an agent. lock may be nil when only one replica runs.
func New(runner Runner, store QueueStore, lock Locker, cfg config.SchedulerConfig, env string, logger *zap.Logger) *Agent {
	return &Agent{runner: runner, store: store, lock: lock, cfg: cfg, env: env, logger: logger}
}

// RunBatch diagnoses up to BatchSize pending exceptions.
func (a *Agent) RunBatch(ctx context.Context) (summary BatchSummary) {
	start := time.Now()
	n := a.batches.Add(1)
	summary = BatchSummary{BatchID: fmt.Sprintf("batch_%d_%s", n, start.Format("20060102_150405"))}
	defer func() { summary.DurationMS = time.Since(start).Milliseconds() }()

	log := a.logger.With(zap.String("batch_id", summary.BatchID))

	if !a.running.TryLock() {
		log.Info("previous batch still running, skipping")
		summary.Skipped = true
		return summary
	}
	defer a.running.Unlock()

	if a.lock != nil {
		release, err := a.lock.Acquire(ctx)
		if errors.Is(err, cache.ErrLockHeld) {
			log.Info("batch lock held by another replica, skipping")
			summary.Skipped = true
			return summary
		}
		if err != nil {
			log.Warn("batch lock unavailable, running unlocked", zap.Error(err))
		} else {
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					log.Warn("failed to release batch lock", zap.Error(err))
				}
			}()
		}
	}

	if requeued, err := a.store.RequeueStale(ctx, a.cfg.StaleAfter); err != nil {
		log.Warn("failed to requeue stale exceptions", zap.Error(err))
	} else if requeued > 0 {
		log.Info("requeued stale exceptions", zap.Int64("count", requeued))
	}

	log.Info("starting diagnosis batch", zap.Int("batch_size", a.cfg.BatchSize))
	processed, failed := a.runWorkers(ctx, summary.BatchID, log)
	summary.Processed, summary.Failed = processed, failed

	log.Info("diagnosis batch completed", zap.Int("processed", processed), zap.Int("failed", failed))
	return summary
}

func (a *Agent) runWorkers(ctx context.Context, batchID string, log *zap.Logger) (processed, failed int) {
	var (
		mu      sync.Mutex
		next    atomic.Int64
		drained atomic.Bool
	)
	workers := a.cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for !drained.Load() && gctx.Err() == nil {
				i := next.Add(1) - 1
				if i >= int64(a.cfg.BatchSize) {
					return nil
				}
				threadID := fmt.Sprintf("%s_%d", batchID, i)
				s, err := a.runner.Run(gctx, threadID)

				mu.Lock()
				switch {
				case err != nil:
					failed++
					metrics.DiagnosesTotal.WithLabelValues("error").Inc()
					log.Error("error in diagnosis batch", zap.String("thread_id", threadID), zap.Error(err))
				case s.JobInfo == nil:
					drained.Store(true)
					log.Info("no more pending exceptions")
				case s.Status == models.StatusCompleted:
					processed++
					metrics.DiagnosesTotal.WithLabelValues(string(s.Status)).Inc()
					log.Info("diagnosis completed",
						zap.String("job_id", s.JobInfo.JobID),
						zap.Float64("confidence", confidence(s)),
						zap.Duration("duration", s.Duration()))
				default:
					failed++
					metrics.DiagnosesTotal.WithLabelValues(string(models.StatusFailed)).Inc()
					log.Warn("diagnosis failed",
						zap.String("job_id", s.JobInfo.JobID),
						zap.String("error", s.Error))
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return processed, failed
}

func confidence(s *graph.State) float64 {
	if s.DiagnosisResult == nil {
		return 0
	}
	return s.DiagnosisResult.Confidence
}

// Start runs a batch immediately and then every Interval until ctx is done.
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("starting oceanus diagnosis agent",
		zap.String("env", a.env),
		zap.Duration("interval", a.cfg.Interval),
		zap.Int("batch_size", a.cfg.BatchSize),
		zap.Int("concurrency", a.cfg.Concurrency))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.RunBatch(ctx)
		ticker := time.NewTicker(a.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				a.RunBatch(ctx)
			}
		}
	})
	if a.cfg.MetricsInterval > 0 {
		g.Go(func() error {
			a.RefreshPending(ctx)
			ticker := time.NewTicker(a.cfg.MetricsInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					a.RefreshPending(ctx)
				}
			}
		})
	}
	err := g.Wait()
	a.logger.Info("stopping oceanus diagnosis agent")
	return err
}

// RefreshPending updates the pending-exceptions gauge.
func (a *Agent) RefreshPending(ctx context.Context) {
	n, err := a.store.PendingCount(ctx)
	if err != nil {
		if ctx.Err() == nil {
			a.logger.Warn("failed to count pending exceptions", zap.Error(err))
		}
		return
	}
	metrics.PendingExceptions.Set(float64(n))
}
