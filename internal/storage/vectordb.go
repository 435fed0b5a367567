package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/processing"
)

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// SaveCase writes the case vector and its relational metadata in one transaction.
func (s *Store) SaveCase(ctx context.Context, c *models.KnowledgeCase, embedding []float32) error {
	if err := s.checkDim(embedding); err != nil {
		return err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save case: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer tx.Rollback(ctx)

	if err := s.insertCase(ctx, tx, c, embedding); err != nil {
		return err
	}
	if err := insertKnowledgeCase(ctx, tx, c); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit save case %s: %w", c.CaseID, err)
	}
	return nil
}

// InsertKnowledgeCase stores case metadata. New cases always start unverified
// unless they were seeded by hand.
func (s *Store) InsertKnowledgeCase(ctx context.Context, c *models.KnowledgeCase) error {
	return insertKnowledgeCase(ctx, s.db, c)
}

func insertKnowledgeCase(ctx context.Context, ex execer, c *models.KnowledgeCase) error {
	sourceType := c.SourceType
	if sourceType == "" {
		sourceType = models.SourceAuto
	}
	verified := c.Verified && sourceType == models.SourceManual

	_, err := ex.Exec(ctx, `
		INSERT INTO knowledge_cases
			(case_id, error_type, error_pattern, root_cause, solution, source_exception_id, source_type, verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.CaseID, c.ErrorType, c.ErrorPattern, c.RootCause, c.Solution, c.SourceExceptionID, string(sourceType), verified)
	if err != nil {
		return fmt.Errorf("insert knowledge case %s: %w", c.CaseID, err)
	}
	return nil
}

// InsertCase adds a case vector, truncating fields to the column limits.
func (s *Store) InsertCase(ctx context.Context, c *models.KnowledgeCase, embedding []float32) error {
	if err := s.checkDim(embedding); err != nil {
		return err
	}
	return s.insertCase(ctx, s.db, c, embedding)
}

func (s *Store) insertCase(ctx context.Context, ex execer, c *models.KnowledgeCase, embedding []float32) error {
	_, err := ex.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (case_id, embedding, error_type, error_pattern, root_cause, solution)
		VALUES ($1, $2, $3, $4, $5, $6)`, s.casesTable),
		c.CaseID, pgvector.NewVector(embedding), c.ErrorType,
		processing.Truncate(c.ErrorPattern, 2000),
		processing.Truncate(c.RootCause, 2000),
		processing.Truncate(c.Solution, 4000))
	if err != nil {
		return fmt.Errorf("insert case vector %s: %w", c.CaseID, err)
	}
	return nil
}

// UpsertDoc adds or replaces a documentation snippet.
func (s *Store) UpsertDoc(ctx context.Context, d *models.FlinkDocument, embedding []float32) error {
	if err := s.checkDim(embedding); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (doc_id, embedding, title, content, doc_url, category)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doc_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			title = EXCLUDED.title,
			content = EXCLUDED.content,
			doc_url = EXCLUDED.doc_url,
			category = EXCLUDED.category`, s.docsTable),
		d.DocID, pgvector.NewVector(embedding),
		processing.Truncate(d.Title, 512),
		processing.Truncate(d.Content, 8000),
		d.DocURL, d.Category)
	if err != nil {
		return fmt.Errorf("upsert doc vector %s: %w", d.DocID, err)
	}
	return nil
}

// DeleteDoc removes one documentation snippet and reports whether it existed.
func (s *Store) DeleteDoc(ctx context.Context, docID string) (bool, error) {
	tag, err := s.db.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE doc_id = $1`, s.docsTable), docID)
	if err != nil {
		return false, fmt.Errorf("delete doc %s: %w", docID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// SearchCases returns the cases closest to vec by cosine similarity,
// restricted to errorType when it is not empty.
func (s *Store) SearchCases(ctx context.Context, vec []float32, errorType string, limit int) ([]models.RetrievedCase, error) {
	query := fmt.Sprintf(`
		SELECT case_id, error_type, error_pattern, root_cause, solution,
			1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE ($2 = '' OR error_type = $2)
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, s.casesTable)

	rows, err := s.db.Query(ctx, query, pgvector.NewVector(vec), errorType, limit)
	if err != nil {
		return nil, fmt.Errorf("search similar cases: %w", err)
	}
	defer rows.Close()

	var cases []models.RetrievedCase
	for rows.Next() {
		var c models.RetrievedCase
		if err := rows.Scan(&c.CaseID, &c.ErrorType, &c.ErrorPattern, &c.RootCause, &c.Solution, &c.SimilarityScore); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		cases = append(cases, c)
	}
	return cases, rows.Err()
}

// SearchDocs returns the documentation snippets closest to vec.
func (s *Store) SearchDocs(ctx context.Context, vec []float32, category string, limit int) ([]models.RetrievedDoc, error) {
	query := fmt.Sprintf(`
		SELECT doc_id, title, content, doc_url, category,
			1 - (embedding <=> $1::vector) AS similarity
		FROM %s
		WHERE ($2 = '' OR category = $2)
		ORDER BY embedding <=> $1::vector
		LIMIT $3`, s.docsTable)

	rows, err := s.db.Query(ctx, query, pgvector.NewVector(vec), category, limit)
	if err != nil {
		return nil, fmt.Errorf("search doc snippets: %w", err)
	}
	defer rows.Close()

	var docs []models.RetrievedDoc
	for rows.Next() {
		var d models.RetrievedDoc
		if err := rows.Scan(&d.DocID, &d.Title, &d.Content, &d.DocURL, &d.Category, &d.SimilarityScore); err != nil {
			return nil, fmt.Errorf("scan doc: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// CollectionStats describes one vector table.
type CollectionStats struct {
	Name        string `json:"name"`
	NumEntities int64  `json:"num_entities"`
}

// Stats counts the rows in each vector table.
func (s *Store) Stats(ctx context.Context) ([]CollectionStats, error) {
	var out []CollectionStats
	for _, table := range []string{s.casesTable, s.docsTable} {
		var n int64
		if err := s.db.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, table)).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out = append(out, CollectionStats{Name: table, NumEntities: n})
	}
	return out, nil
}

func (s *Store) checkDim(embedding []float32) error {
	if s.dim > 0 && len(embedding) != s.dim {
		return fmt.Errorf("expected embedding dim %d, got %d", s.dim, len(embedding))
	}
	return nil
}
