package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Divas-Gupta30/oceanus-agent/internal/llm"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/processing"
)

// CaseStore writes a case to both the relational and vector stores.
type CaseStore interface {
	SaveCase(ctx context.Context, c *models.KnowledgeCase, embedding []float32) error
}

type seedFile struct {
	Cases []models.KnowledgeCase `yaml:"cases"`
}

// LoadSeedCases parses a YAML document of the form `cases: [...]`.
// Every case is marked manual and verified; a missing case_id is generated.
func LoadSeedCases(r io.Reader) ([]models.KnowledgeCase, error) {
	var f seedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode seed cases: %w", err)
	}

	var errs []error
	for i := range f.Cases {
		c := &f.Cases[i]
		c.SourceType = models.SourceManual
		c.Verified = true
		if c.CaseID == "" {
			c.CaseID = models.NewCaseID()
		}
		if c.ErrorType == "" {
			c.ErrorType = models.ErrorTypeOther
		}
		if strings.TrimSpace(c.RootCause) == "" || strings.TrimSpace(c.Solution) == "" {
			errs = append(errs, fmt.Errorf("case %d (%s): root_cause and solution are required", i, c.CaseID))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return f.Cases, nil
}

// SeedCases embeds and saves each case, stopping at the first failure.
func SeedCases(ctx context.Context, store CaseStore, embedder llm.Embedder, cases []models.KnowledgeCase, logger *zap.Logger) (int, error) {
	for i := range cases {
		c := &cases[i]
		emb, err := embedder.Embed(ctx, CaseText(c))
		if err != nil {
			return i, fmt.Errorf("embed case %s: %w", c.CaseID, err)
		}
		if err := store.SaveCase(ctx, c, emb); err != nil {
			return i, err
		}
		logger.Info("seeded knowledge case", zap.String("case_id", c.CaseID), zap.String("error_type", c.ErrorType))
	}
	return len(cases), nil
}

// CaseText is the text embedded for a hand-written case.
func CaseText(c *models.KnowledgeCase) string {
	return strings.TrimSpace(fmt.Sprintf("Error Type: %s\nError Pattern: %s\nRoot Cause: %s\nSolution: %s",
		c.ErrorType, processing.Truncate(c.ErrorPattern, 1000), c.RootCause, c.Solution))
}
