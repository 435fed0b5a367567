package storage

import (
	"context"
	"fmt"
)

const exceptionsSchema = `
CREATE TABLE IF NOT EXISTS flink_job_exceptions (
	id BIGSERIAL PRIMARY KEY,
	job_id VARCHAR(128) NOT NULL,
	job_name VARCHAR(255),
	job_type VARCHAR(64),
	job_config JSONB,
	error_message TEXT NOT NULL,
	error_type VARCHAR(64),
	status VARCHAR(20) NOT NULL DEFAULT 'pending',
	suggested_fix TEXT,
	diagnosis_confidence DOUBLE PRECISION,
	diagnosed_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_flink_job_exceptions_status_created
	ON flink_job_exceptions (status, created_at);
CREATE INDEX IF NOT EXISTS idx_flink_job_exceptions_job_id
	ON flink_job_exceptions (job_id);

CREATE TABLE IF NOT EXISTS knowledge_cases (
	id BIGSERIAL PRIMARY KEY,
	case_id VARCHAR(64) NOT NULL UNIQUE,
	error_type VARCHAR(64) NOT NULL,
	error_pattern TEXT NOT NULL,
	root_cause TEXT NOT NULL,
	solution TEXT NOT NULL,
	source_exception_id BIGINT REFERENCES flink_job_exceptions(id) ON DELETE SET NULL,
	source_type VARCHAR(16) NOT NULL DEFAULT 'manual',
	verified BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE OR REPLACE FUNCTION update_updated_at_column()
RETURNS TRIGGER AS $$
BEGIN
	NEW.updated_at = CURRENT_TIMESTAMP;
	RETURN NEW;
END;
$$ language 'plpgsql';

DROP TRIGGER IF EXISTS update_flink_job_exceptions_updated_at ON flink_job_exceptions;
CREATE TRIGGER update_flink_job_exceptions_updated_at
	BEFORE UPDATE ON flink_job_exceptions
	FOR EACH ROW
	EXECUTE FUNCTION update_updated_at_column();
`

const vectorSchema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS %[1]s (
	case_id VARCHAR(64) PRIMARY KEY,
	embedding vector(%[3]d) NOT NULL,
	error_type VARCHAR(64) NOT NULL,
	error_pattern VARCHAR(2000) NOT NULL,
	root_cause VARCHAR(2000) NOT NULL,
	solution VARCHAR(4000) NOT NULL
);
CREATE INDEX IF NOT EXISTS %[1]s_embedding_idx ON %[1]s USING hnsw (embedding vector_cosine_ops);
CREATE INDEX IF NOT EXISTS %[1]s_error_type_idx ON %[1]s (error_type);

CREATE TABLE IF NOT EXISTS %[2]s (
	doc_id VARCHAR(64) PRIMARY KEY,
	embedding vector(%[3]d) NOT NULL,
	title VARCHAR(512) NOT NULL,
	content VARCHAR(8000) NOT NULL,
	doc_url VARCHAR(512) NOT NULL DEFAULT '',
	category VARCHAR(64) NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS %[2]s_embedding_idx ON %[2]s USING hnsw (embedding vector_cosine_ops);
`

// Migrate creates every table the agent needs. It is safe to run repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, exceptionsSchema); err != nil {
		return fmt.Errorf("create exception tables: %w", err)
	}
	if _, err := s.db.Exec(ctx, fmt.Sprintf(vectorSchema, s.casesTable, s.docsTable, s.dim)); err != nil {
		return fmt.Errorf("create vector tables: %w", err)
	}
	return nil
}
