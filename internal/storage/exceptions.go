package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

const exceptionColumns = `id, job_id, job_name, job_type, job_config, error_message, error_type, created_at`

// ClaimPending marks the oldest pending exception in_progress and returns it.
// SKIP LOCKED lets several workers claim concurrently without blocking each other.
func (s *Store) ClaimPending(ctx context.Context) (*models.JobInfo, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE flink_job_exceptions
		SET status = 'in_progress'
		WHERE id = (
			SELECT id FROM flink_job_exceptions
			WHERE status = 'pending'
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+exceptionColumns)

	var (
		job                       models.JobInfo
		jobName, jobType, errType *string
		rawConfig                 []byte
	)
	err := row.Scan(&job.ExceptionID, &job.JobID, &jobName, &jobType, &rawConfig,
		&job.ErrorMessage, &errType, &job.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoPendingException
	}
	if err != nil {
		return nil, fmt.Errorf("claim pending exception: %w", err)
	}

	job.JobName = deref(jobName)
	job.JobType = deref(jobType)
	job.ErrorType = deref(errType)
	job.JobConfig = decodeJobConfig(rawConfig)
	return &job, nil
}

// UpdateDiagnosis stores a diagnosis and the final status of an exception.
func (s *Store) UpdateDiagnosis(ctx context.Context, id int64, d *models.DiagnosisResult, status models.DiagnosisStatus) error {
	fix, err := json.Marshal(models.StoredFix{
		RootCause:        d.RootCause,
		DetailedAnalysis: d.DetailedAnalysis,
		SuggestedFix:     d.SuggestedFix,
		Priority:         d.Priority,
		RelatedDocs:      d.RelatedDocs,
	})
	if err != nil {
		return fmt.Errorf("encode diagnosis: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE flink_job_exceptions
		SET status = $2,
			suggested_fix = $3,
			diagnosis_confidence = $4,
			diagnosed_at = $5
		WHERE id = $1`,
		id, string(status), string(fix), d.Confidence, time.Now())
	if err != nil {
		return fmt.Errorf("update diagnosis result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update diagnosis result for %d: %w", id, ErrNotFound)
	}
	return nil
}

// MarkFailed records a failed diagnosis with its error message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	payload, err := json.Marshal(models.StoredFailure{Error: message})
	if err != nil {
		return fmt.Errorf("encode failure: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE flink_job_exceptions
		SET status = 'failed',
			suggested_fix = $2,
			diagnosed_at = $3
		WHERE id = $1`,
		id, string(payload), time.Now())
	if err != nil {
		return fmt.Errorf("mark exception failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark exception %d failed: %w", id, ErrNotFound)
	}
	return nil
}

// PendingCount returns the number of exceptions waiting for diagnosis.
func (s *Store) PendingCount(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM flink_job_exceptions WHERE status = 'pending'`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending exceptions: %w", err)
	}
	return n, nil
}

// RequeueStale returns in_progress exceptions untouched for olderThan back to pending.
func (s *Store) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE flink_job_exceptions
		SET status = 'pending'
		WHERE status = 'in_progress' AND updated_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("requeue stale exceptions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CreateException inserts a pending exception and returns the stored row.
func (s *Store) CreateException(ctx context.Context, req *models.DiagnosisRequest) (*models.ExceptionRecord, error) {
	var rawConfig []byte
	if req.JobConfig != nil {
		b, err := json.Marshal(req.JobConfig)
		if err != nil {
			return nil, fmt.Errorf("encode job_config: %w", err)
		}
		rawConfig = b
	}

	row := s.db.QueryRow(ctx, `
		INSERT INTO flink_job_exceptions (job_id, job_name, job_type, job_config, error_message, error_type, status)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending')
		RETURNING `+recordColumns,
		req.JobID, nullable(req.JobName), nullable(req.JobType), rawConfig, req.ErrorMessage, nullable(req.ErrorType))

	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("insert exception: %w", err)
	}
	return rec, nil
}

// GetException loads one exception by id.
func (s *Store) GetException(ctx context.Context, id int64) (*models.ExceptionRecord, error) {
	row := s.db.QueryRow(ctx, `SELECT `+recordColumns+` FROM flink_job_exceptions WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get exception %d: %w", id, err)
	}
	return rec, nil
}

// ExceptionFilter narrows ListExceptions; zero values mean "any".
type ExceptionFilter struct {
	Status models.DiagnosisStatus
	JobID  string
	Limit  int
}

// ListExceptions returns the most recent exceptions first.
func (s *Store) ListExceptions(ctx context.Context, f ExceptionFilter) ([]*models.ExceptionRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.JobID != "" {
		args = append(args, f.JobID)
		where = append(where, fmt.Sprintf("job_id = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	args = append(args, limit)

	query := `SELECT ` + recordColumns + ` FROM flink_job_exceptions`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}
	defer rows.Close()

	var out []*models.ExceptionRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan exception: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

const recordColumns = `id, job_id, job_name, job_type, job_config, error_message, error_type, status,
	suggested_fix, diagnosis_confidence, diagnosed_at, created_at, updated_at`

func scanRecord(row pgx.Row) (*models.ExceptionRecord, error) {
	var (
		rec                                    models.ExceptionRecord
		jobName, jobType, errType, fix, status *string
		rawConfig                              []byte
	)
	err := row.Scan(&rec.ID, &rec.JobID, &jobName, &jobType, &rawConfig, &rec.ErrorMessage, &errType,
		&status, &fix, &rec.DiagnosisConfidence, &rec.DiagnosedAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	rec.JobName = deref(jobName)
	rec.JobType = deref(jobType)
	rec.ErrorType = deref(errType)
	rec.SuggestedFix = deref(fix)
	rec.Status = models.DiagnosisStatus(deref(status))
	if len(rawConfig) > 0 {
		rec.JobConfig = decodeJobConfig(rawConfig)
	}
	return &rec, nil
}

// decodeJobConfig tolerates NULL and malformed JSON, both of which yield an empty map.
func decodeJobConfig(raw []byte) map[string]any {
	cfg := map[string]any{}
	if len(raw) == 0 {
		return cfg
	}
	if err := json.Unmarshal(raw, &cfg); err != nil || cfg == nil {
		return map[string]any{}
	}
	return cfg
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
