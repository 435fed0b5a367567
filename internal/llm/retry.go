package llm

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Divas-Gupta30/oceanus-agent/internal/metrics"
)

// retrier bounds concurrent provider calls and retries failed ones with
// exponential backoff.
type retrier struct {
	attempts int
	initial  time.Duration
	max      time.Duration
	sem      *semaphore.Weighted
	logger   *zap.Logger
}

func newRetrier(attempts, maxConcurrent int, logger *zap.Logger) *retrier {
	if attempts <= 0 {
		attempts = 1
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &retrier{
		attempts: attempts,
		initial:  2 * time.Second,
		max:      10 * time.Second,
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		logger:   logger,
	}
}

func (r *retrier) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initial
	b.MaxInterval = r.max
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.attempts-1)), ctx)
}

// do runs fn until it succeeds, returns a permanent error, or runs out of attempts.
func (r *retrier) do(ctx context.Context, operation string, fn func(context.Context) error) error {
	attempt := 0
	op := func() error {
		attempt++
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		if err := r.sem.Acquire(ctx, 1); err != nil {
			return backoff.Permanent(err)
		}
		err := fn(ctx)
		r.sem.Release(1)
		if err != nil && !retryable(ctx, err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("llm call failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	err := backoff.RetryNotify(op, r.backOff(ctx), notify)
	metrics.RecordLLMCall(operation, err)
	return err
}

// retryable treats cancellation, unusable output and 4xx responses as final.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidOutput) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	return true
}

func retryableStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	case code >= 400 && code < 500:
		return false
	}
	return true
}
