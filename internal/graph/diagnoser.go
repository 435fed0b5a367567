package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

// diagnose classifies the error if needed and asks the model for a diagnosis.
// Each failure bumps RetryCount; the last allowed failure fails the run.
func (n *nodes) diagnose(ctx context.Context, s *State) error {
	if s.JobInfo == nil {
		return nil
	}

	job := s.JobInfo
	if job.ErrorType == "" {
		errorType, err := n.deps.LLM.ClassifyError(ctx, job.ErrorMessage)
		if err != nil {
			n.diagnoseFailed(s, err)
			return nil
		}
		classified := *job
		classified.ErrorType = errorType
		job = &classified
	}

	result, err := n.deps.LLM.Diagnose(ctx, job, s.RetrievedContext)
	if err != nil {
		n.diagnoseFailed(s, err)
		return nil
	}

	n.logger.Info("generated diagnosis",
		zap.String("job_id", job.JobID),
		zap.Float64("confidence", result.Confidence),
		zap.String("priority", string(result.Priority)))
	s.JobInfo = job
	s.DiagnosisResult = result
	s.Status = models.StatusInProgress
	s.Error = ""
	s.RetryCount = 0
	return nil
}

func (n *nodes) diagnoseFailed(s *State, err error) {
	s.RetryCount++
	n.logger.Warn("error generating diagnosis",
		zap.String("job_id", s.JobInfo.JobID),
		zap.Int("retry_count", s.RetryCount),
		zap.Error(err))

	if s.RetryCount >= n.maxRetries {
		s.Error = fmt.Sprintf("Diagnosis failed after %d retries: %v", s.RetryCount, err)
		s.finish(models.StatusFailed)
		return
	}
	s.Error = err.Error()
}
