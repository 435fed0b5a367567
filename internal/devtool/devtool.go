// Package devtool inserts test exceptions and inspects diagnosis results
// directly in the database, bypassing the agent.
package devtool

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const undefinedTable = "42P01"

var ErrUnknownTemplate = errors.New("unknown template")

type Tool struct {
	db  *sql.DB
	out io.Writer
}

// Open connects to PostgreSQL through lib/pq.
func Open(ctx context.Context, dbURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func New(db *sql.DB, out io.Writer) *Tool {
	return &Tool{db: db, out: out}
}

// InsertOptions selects a template or a custom message.
type InsertOptions struct {
	Template  string
	Message   string
	ErrorType string
	JobID     string
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan, color.Bold).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

// Insert adds a pending exception and returns its job id.
func (t *Tool) Insert(ctx context.Context, opts InsertOptions) (string, error) {
	jobID := opts.JobID
	if jobID == "" {
		jobID = "test-job-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	}

	var msg, errorType, jobName string
	if opts.Message != "" {
		msg, errorType, jobName = opts.Message, opts.ErrorType, "Custom Debug Job"
		if errorType == "" {
			errorType = "unknown"
		}
	} else {
		name := opts.Template
		if name == "" {
			name = "checkpoint"
		}
		tmpl, ok := Templates[name]
		if !ok {
			return "", fmt.Errorf("%w %q (choose from %s)", ErrUnknownTemplate, name, templateHelp())
		}
		msg, errorType, jobName = tmpl.Message, tmpl.ErrorType, tmpl.JobName
	}

	fmt.Fprintf(t.out, "Inserting job: %s\n", jobID)
	fmt.Fprintf(t.out, "Error Type: %s\n", errorType)
	fmt.Fprintf(t.out, "Message: %s...\n", preview(msg, 100))

	_, err := t.db.ExecContext(ctx, `
		INSERT INTO flink_job_exceptions (job_id, job_name, job_type, error_message, error_type, status)
		VALUES ($1, $2, 'streaming', $3, $4, 'pending')`,
		jobID, jobName, msg, errorType)
	if err != nil {
		fmt.Fprintf(t.out, "\n%s Error inserting record: %v\n", red("✗"), explain(err))
		return "", err
	}
	fmt.Fprintf(t.out, "\n%s Successfully inserted test record. Job ID: %s\n", green("✓"), jobID)
	return jobID, nil
}

// Status prints the latest exception recorded for jobID.
func (t *Tool) Status(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New("--job-id is required")
	}
	var (
		status       string
		confidence   sql.NullFloat64
		suggestedFix sql.NullString
		created      time.Time
		updated      time.Time
	)
	err := t.db.QueryRowContext(ctx, `
		SELECT job_id, status, diagnosis_confidence, suggested_fix, created_at, updated_at
		FROM flink_job_exceptions
		WHERE job_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, jobID).Scan(&jobID, &status, &confidence, &suggestedFix, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		fmt.Fprintf(t.out, "\n%s No record found for Job ID: %s\n", red("✗"), jobID)
		return err
	}
	if err != nil {
		fmt.Fprintf(t.out, "\n%s Error checking status: %v\n", red("✗"), explain(err))
		return err
	}

	fmt.Fprintf(t.out, "\n%s\n", cyan("Job Details: "+jobID))
	fmt.Fprintf(t.out, "Status:     %s\n", statusColor(status)(status))
	if confidence.Valid {
		fmt.Fprintf(t.out, "Confidence: %.2f\n", confidence.Float64)
	} else {
		fmt.Fprintf(t.out, "Confidence: %s\n", gray("n/a"))
	}
	fmt.Fprintf(t.out, "Created:    %s\n", created.Format(time.DateTime))
	fmt.Fprintf(t.out, "Updated:    %s\n", updated.Format(time.DateTime))

	if suggestedFix.Valid && suggestedFix.String != "" {
		fmt.Fprintf(t.out, "\n%s\n", yellow("Suggested Fix:"))
		fmt.Fprintln(t.out, prettyJSON(suggestedFix.String))
	}
	return nil
}

// List prints the most recent exceptions.
func (t *Tool) List(ctx context.Context, limit int) error {
	if limit <= 0 {
		limit = 10
	}
	rows, err := t.db.QueryContext(ctx, `
		SELECT job_id, status, COALESCE(error_type, ''), created_at
		FROM flink_job_exceptions
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		fmt.Fprintf(t.out, "\n%s Error listing records: %v\n", red("✗"), explain(err))
		return err
	}
	defer rows.Close()

	type row struct {
		jobID, status, errorType string
		created                  time.Time
	}
	var out []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.jobID, &r.status, &r.errorType, &r.created); err != nil {
			return err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	fmt.Fprintf(t.out, "\nRecent %d records:\n", len(out))
	fmt.Fprintf(t.out, "%-25s %-12s %-20s %s\n", "Job ID", "Status", "Type", "Created At")
	fmt.Fprintln(t.out, strings.Repeat("-", 80))
	for _, r := range out {
		fmt.Fprintf(t.out, "%-25s %s %-20s %s\n",
			r.jobID, statusColor(r.status)(fmt.Sprintf("%-12s", r.status)), preview(r.errorType, 20), r.created.Format(time.DateTime))
	}
	return nil
}

func statusColor(status string) func(a ...any) string {
	switch status {
	case "completed":
		return green
	case "failed":
		return red
	case "in_progress":
		return yellow
	default:
		return gray
	}
}

func prettyJSON(raw string) string {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return raw
	}
	return string(b)
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// explain adds a hint for the common case of an unmigrated database.
func explain(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == undefinedTable {
		return fmt.Errorf("%w (run `oceanus-agent migrate` first)", err)
	}
	return err
}
