package graph

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/storage"
)

// collect claims the oldest pending exception.
func (n *nodes) collect(ctx context.Context, s *State) error {
	job, err := n.deps.Exceptions.ClaimPending(ctx)
	if errors.Is(err, storage.ErrNoPendingException) {
		n.logger.Info("no pending exceptions to process")
		s.JobInfo = nil
		s.finish(models.StatusCompleted)
		return nil
	}
	if err != nil {
		n.logger.Error("error collecting job exception", zap.Error(err))
		s.JobInfo = nil
		s.Error = fmt.Sprintf("Collection error: %v", err)
		s.finish(models.StatusFailed)
		return nil
	}

	n.logger.Info("collected job exception",
		zap.Int64("exception_id", job.ExceptionID),
		zap.String("job_id", job.JobID),
		zap.String("error_type", job.ErrorType))
	s.JobInfo = job
	s.Status = models.StatusInProgress
	return nil
}
