package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
	"github.com/Divas-Gupta30/oceanus-agent/internal/llm"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

// Node names.
const (
	NodeCollect     = "collect"
	NodeRetrieve    = "retrieve"
	NodeDiagnose    = "diagnose"
	NodeStore       = "store"
	NodeAccumulate  = "accumulate"
	NodeHandleError = "handle_error"
)

// ExceptionStore is the relational side of the workflow.
type ExceptionStore interface {
	ClaimPending(ctx context.Context) (*models.JobInfo, error)
	UpdateDiagnosis(ctx context.Context, id int64, d *models.DiagnosisResult, status models.DiagnosisStatus) error
	MarkFailed(ctx context.Context, id int64, message string) error
}

// KnowledgeStore is the vector side of the workflow.
type KnowledgeStore interface {
	SearchCases(ctx context.Context, vec []float32, errorType string, limit int) ([]models.RetrievedCase, error)
	SearchDocs(ctx context.Context, vec []float32, category string, limit int) ([]models.RetrievedDoc, error)
	SaveCase(ctx context.Context, c *models.KnowledgeCase, embedding []float32) error
}

// Deps are the services the nodes call.
type Deps struct {
	Exceptions ExceptionStore
	Knowledge  KnowledgeStore
	// Embedder may wrap LLM with a cache.
	Embedder llm.Embedder
	LLM      llm.Client
}

// Workflow is the compiled diagnosis graph.
type Workflow struct {
	graph  *Graph
	logger *zap.Logger
}

type nodes struct {
	deps       Deps
	knowledge  config.KnowledgeConfig
	maxRetries int
	logger     *zap.Logger
}

// NewWorkflow wires collect -> retrieve -> diagnose -> store -> accumulate.
func NewWorkflow(deps Deps, kc config.KnowledgeConfig, maxRetries int, cp Checkpointer, logger *zap.Logger) (*Workflow, error) {
	if deps.Embedder == nil {
		deps.Embedder = deps.LLM
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	n := &nodes{deps: deps, knowledge: kc, maxRetries: maxRetries, logger: logger}

	// collect, retrieve, store and accumulate run once; diagnose up to maxRetries times.
	opts := []Option{WithMaxSteps(max(DefaultMaxSteps, maxRetries+5))}
	if cp != nil {
		opts = append(opts, WithCheckpointer(cp))
	}
	g := New(NodeCollect, opts...).
		AddNode(NodeCollect, n.collect).
		AddNode(NodeRetrieve, n.retrieve).
		AddNode(NodeDiagnose, n.diagnose).
		AddNode(NodeStore, n.store).
		AddNode(NodeAccumulate, n.accumulate).
		AddNode(NodeHandleError, n.handleError).
		AddConditionalEdges(NodeCollect, afterCollect, NodeRetrieve, NodeHandleError, End).
		AddEdge(NodeRetrieve, NodeDiagnose).
		AddConditionalEdges(NodeDiagnose, n.afterDiagnose, NodeDiagnose, NodeStore).
		AddEdge(NodeStore, NodeAccumulate).
		AddEdge(NodeAccumulate, End).
		AddEdge(NodeHandleError, End)

	if err := g.Validate(); err != nil {
		return nil, err
	}
	logger.Info("built diagnosis workflow")
	return &Workflow{graph: g, logger: logger}, nil
}

// Run diagnoses at most one pending exception. The returned state has a nil
// JobInfo when nothing was pending.
func (w *Workflow) Run(ctx context.Context, threadID string) (*State, error) {
	s := NewState(threadID)
	if err := w.graph.Run(ctx, s); err != nil {
		return s, err
	}
	return s, nil
}

func afterCollect(s *State) string {
	if s.Error != "" {
		return NodeHandleError
	}
	if s.JobInfo == nil {
		return End
	}
	return NodeRetrieve
}

// afterDiagnose retries until maxRetries, then hands the failure to store so
// the exception row is marked failed rather than left in_progress.
func (n *nodes) afterDiagnose(s *State) string {
	if s.Error != "" && s.RetryCount < n.maxRetries {
		return NodeDiagnose
	}
	return NodeStore
}

func (n *nodes) handleError(_ context.Context, s *State) error {
	jobID := "unknown"
	if s.JobInfo != nil {
		jobID = s.JobInfo.JobID
	}
	n.logger.Error("workflow error", zap.String("job_id", jobID), zap.String("error", s.Error))
	s.finish(models.StatusFailed)
	return nil
}
