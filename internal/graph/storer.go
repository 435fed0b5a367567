package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

// store writes the diagnosis, or the failure that replaced it, back to the exception row.
func (n *nodes) store(ctx context.Context, s *State) error {
	job := s.JobInfo
	if job == nil {
		return nil
	}

	if d := s.DiagnosisResult; d != nil {
		if err := n.deps.Exceptions.UpdateDiagnosis(ctx, job.ExceptionID, d, models.StatusCompleted); err != nil {
			n.storeFailed(s, err)
			return nil
		}
		n.logger.Info("stored diagnosis result",
			zap.Int64("exception_id", job.ExceptionID),
			zap.String("job_id", job.JobID),
			zap.Float64("confidence", d.Confidence))
		s.finish(models.StatusCompleted)
		return nil
	}

	msg := s.Error
	if msg == "" {
		msg = "Unknown error"
	}
	if err := n.deps.Exceptions.MarkFailed(ctx, job.ExceptionID, msg); err != nil {
		n.storeFailed(s, err)
		return nil
	}
	n.logger.Warn("stored failure result",
		zap.Int64("exception_id", job.ExceptionID),
		zap.String("job_id", job.JobID),
		zap.String("error", msg))
	s.finish(models.StatusFailed)
	return nil
}

func (n *nodes) storeFailed(s *State, err error) {
	n.logger.Error("error storing result", zap.String("job_id", s.JobInfo.JobID), zap.Error(err))
	s.Error = fmt.Sprintf("Storage error: %v", err)
	s.finish(models.StatusFailed)
}
