package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Divas-Gupta30/oceanus-agent/internal/cache"
	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
	"github.com/Divas-Gupta30/oceanus-agent/internal/graph"
	"github.com/Divas-Gupta30/oceanus-agent/internal/metrics"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedRunner returns one outcome per call, then reports an empty queue.
type scriptedRunner struct {
	mu       sync.Mutex
	outcomes []outcome
	threads  []string
}

type outcome struct {
	status models.DiagnosisStatus
	err    error
}

func (r *scriptedRunner) Run(_ context.Context, threadID string) (*graph.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.threads = append(r.threads, threadID)
	s := graph.NewState(threadID)
	if len(r.outcomes) == 0 {
		s.Status = models.StatusCompleted
		return s, nil
	}
	o := r.outcomes[0]
	r.outcomes = r.outcomes[1:]
	if o.err != nil {
		return nil, o.err
	}
	s.JobInfo = &models.JobInfo{JobID: "job-" + threadID}
	s.Status = o.status
	if o.status == models.StatusFailed {
		s.Error = "Diagnosis failed after 3 retries: boom"
	}
	return s, nil
}

type fakeQueue struct {
	requeueCalls atomic.Int32
	pending      int64
}

func (q *fakeQueue) RequeueStale(context.Context, time.Duration) (int64, error) {
	q.requeueCalls.Add(1)
	return 0, nil
}

func (q *fakeQueue) PendingCount(context.Context) (int64, error) {
	return q.pending, nil
}

type heldLock struct{}

func (heldLock) Acquire(context.Context) (func(context.Context) error, error) {
	return nil, cache.ErrLockHeld
}

type countingLock struct {
	acquired, released atomic.Int32
}

func (l *countingLock) Acquire(context.Context) (func(context.Context) error, error) {
	l.acquired.Add(1)
	return func(context.Context) error {
		l.released.Add(1)
		return nil
	}, nil
}

func schedulerCfg(batchSize, concurrency int) config.SchedulerConfig {
	return config.SchedulerConfig{
		Interval:    time.Hour,
		BatchSize:   batchSize,
		Concurrency: concurrency,
		StaleAfter:  30 * time.Minute,
	}
}

func TestRunBatchCountsOutcomesAndStopsWhenDrained(t *testing.T) {
	runner := &scriptedRunner{outcomes: []outcome{
		{status: models.StatusCompleted},
		{status: models.StatusFailed},
		{err: errors.New("graph exceeded max steps")},
		{status: models.StatusCompleted},
	}}
	q := &fakeQueue{}
	lock := &countingLock{}
	a := New(runner, q, lock, schedulerCfg(10, 1), "test", zaptest.NewLogger(t))

	summary := a.RunBatch(context.Background())
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.Failed)
	assert.False(t, summary.Skipped)
	assert.Regexp(t, `^batch_1_\d{8}_\d{6}$`, summary.BatchID)

	require.Len(t, runner.threads, 5)
	assert.True(t, strings.HasSuffix(runner.threads[4], "_4"))
	assert.Equal(t, int32(1), q.requeueCalls.Load())
	assert.Equal(t, int32(1), lock.acquired.Load())
	assert.Equal(t, int32(1), lock.released.Load())
}

func TestRunBatchRespectsBatchSize(t *testing.T) {
	var outcomes []outcome
	for i := 0; i < 20; i++ {
		outcomes = append(outcomes, outcome{status: models.StatusCompleted})
	}
	runner := &scriptedRunner{outcomes: outcomes}
	a := New(runner, &fakeQueue{}, nil, schedulerCfg(5, 3), "test", zaptest.NewLogger(t))

	summary := a.RunBatch(context.Background())
	assert.Equal(t, 5, summary.Processed)
	assert.Len(t, runner.threads, 5)
}

func TestRunBatchSkipsWhenLockHeld(t *testing.T) {
	runner := &scriptedRunner{}
	q := &fakeQueue{}
	a := New(runner, q, heldLock{}, schedulerCfg(10, 1), "test", zaptest.NewLogger(t))

	summary := a.RunBatch(context.Background())
	assert.True(t, summary.Skipped)
	assert.Empty(t, runner.threads)
	assert.Zero(t, q.requeueCalls.Load())
}

func TestBatchIDsIncrement(t *testing.T) {
	a := New(&scriptedRunner{}, &fakeQueue{}, nil, schedulerCfg(1, 1), "test", zaptest.NewLogger(t))
	first := a.RunBatch(context.Background())
	second := a.RunBatch(context.Background())
	assert.True(t, strings.HasPrefix(first.BatchID, "batch_1_"))
	assert.True(t, strings.HasPrefix(second.BatchID, "batch_2_"))
}

func TestStartRunsImmediatelyAndStopsOnCancel(t *testing.T) {
	runner := &scriptedRunner{}
	q := &fakeQueue{pending: 7}
	cfg := schedulerCfg(1, 1)
	cfg.MetricsInterval = time.Hour
	a := New(runner, q, nil, cfg, "test", zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Start(ctx) }()

	require.Eventually(t, func() bool { return q.requeueCalls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return testutil.ToFloat64(metrics.PendingExceptions) == 7 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
