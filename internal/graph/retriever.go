package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/processing"
)

// retrieve looks up similar cases and documentation. Any failure leaves an
// empty context and the diagnosis goes ahead without it.
func (n *nodes) retrieve(ctx context.Context, s *State) error {
	job := s.JobInfo
	if job == nil {
		return nil
	}

	rc, err := n.search(ctx, job)
	if err != nil {
		n.logger.Warn("error retrieving knowledge, continuing without context",
			zap.String("job_id", job.JobID), zap.Error(err))
		s.RetrievedContext = &models.RetrievedContext{
			SimilarCases: []models.RetrievedCase{},
			DocSnippets:  []models.RetrievedDoc{},
		}
		return nil
	}

	n.logger.Info("retrieved knowledge context",
		zap.String("job_id", job.JobID),
		zap.Int("cases_found", len(rc.SimilarCases)),
		zap.Int("docs_found", len(rc.DocSnippets)))
	s.RetrievedContext = rc
	return nil
}

func (n *nodes) search(ctx context.Context, job *models.JobInfo) (*models.RetrievedContext, error) {
	qemb, err := n.deps.Embedder.Embed(ctx, processing.BuildQueryText(job))
	if err != nil {
		return nil, err
	}
	cases, err := n.deps.Knowledge.SearchCases(ctx, qemb, job.ErrorType, n.knowledge.MaxSimilarCases)
	if err != nil {
		return nil, err
	}
	docs, err := n.deps.Knowledge.SearchDocs(ctx, qemb, "", n.knowledge.MaxDocSnippets)
	if err != nil {
		return nil, err
	}
	if cases == nil {
		cases = []models.RetrievedCase{}
	}
	if docs == nil {
		docs = []models.RetrievedDoc{}
	}
	return &models.RetrievedContext{SimilarCases: cases, DocSnippets: docs}, nil
}
