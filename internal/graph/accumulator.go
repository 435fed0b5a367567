package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/metrics"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/processing"
)

// accumulate files high-confidence diagnoses into the knowledge base.
// It never changes the outcome of the run.
func (n *nodes) accumulate(ctx context.Context, s *State) error {
	job, d := s.JobInfo, s.DiagnosisResult
	if job == nil || d == nil {
		return nil
	}
	if d.Confidence < n.knowledge.ConfidenceThreshold {
		n.logger.Debug("skipping knowledge accumulation (low confidence)",
			zap.String("job_id", job.JobID),
			zap.Float64("confidence", d.Confidence),
			zap.Float64("threshold", n.knowledge.ConfidenceThreshold))
		return nil
	}

	errorType := job.ErrorType
	if errorType == "" {
		errorType = models.ErrorTypeOther
	}
	sourceID := job.ExceptionID
	c := &models.KnowledgeCase{
		CaseID:            models.NewCaseID(),
		ErrorType:         errorType,
		ErrorPattern:      processing.ExtractErrorPattern(job.ErrorMessage),
		RootCause:         d.RootCause,
		Solution:          d.SuggestedFix,
		SourceExceptionID: &sourceID,
		SourceType:        models.SourceAuto,
	}

	emb, err := n.deps.Embedder.Embed(ctx, processing.BuildCaseText(job, d))
	if err != nil {
		n.logger.Warn("error accumulating knowledge", zap.String("job_id", job.JobID), zap.Error(err))
		return nil
	}
	if err := n.deps.Knowledge.SaveCase(ctx, c, emb); err != nil {
		n.logger.Warn("error accumulating knowledge", zap.String("job_id", job.JobID), zap.Error(err))
		return nil
	}

	metrics.KnowledgeAccumulated.Inc()
	n.logger.Info("accumulated knowledge case",
		zap.String("case_id", c.CaseID),
		zap.String("job_id", job.JobID),
		zap.Float64("confidence", d.Confidence))
	return nil
}
