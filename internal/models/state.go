package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DiagnosisStatus is the lifecycle state of an exception record and of a workflow run.
type DiagnosisStatus string

const (
	StatusPending    DiagnosisStatus = "pending"
	StatusInProgress DiagnosisStatus = "in_progress"
	StatusCompleted  DiagnosisStatus = "completed"
	StatusFailed     DiagnosisStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s DiagnosisStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ParsePriority normalises case and surrounding whitespace.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return p, nil
	}
	return "", fmt.Errorf("invalid priority %q", s)
}

// Error types the classifier may produce.
const (
	ErrorTypeCheckpointFailure    = "checkpoint_failure"
	ErrorTypeBackpressure         = "backpressure"
	ErrorTypeDeserializationError = "deserialization_error"
	ErrorTypeOOM                  = "oom"
	ErrorTypeNetwork              = "network"
	ErrorTypeOther                = "other"
)

// ErrorTypes lists the valid classifier outputs in prompt order.
var ErrorTypes = []string{
	ErrorTypeCheckpointFailure,
	ErrorTypeBackpressure,
	ErrorTypeDeserializationError,
	ErrorTypeOOM,
	ErrorTypeNetwork,
	ErrorTypeOther,
}

// NormalizeErrorType maps raw classifier output onto ErrorTypes, falling back to "other".
func NormalizeErrorType(s string) string {
	t := strings.ToLower(strings.TrimSpace(s))
	t = strings.Trim(t, "`'\".")
	for _, v := range ErrorTypes {
		if t == v {
			return v
		}
	}
	return ErrorTypeOther
}

// JobInfo is a claimed Flink job exception.
type JobInfo struct {
	ExceptionID  int64          `json:"exception_id"`
	JobID        string         `json:"job_id"`
	JobName      string         `json:"job_name,omitempty"`
	JobType      string         `json:"job_type,omitempty"`
	JobConfig    map[string]any `json:"job_config,omitempty"`
	ErrorMessage string         `json:"error_message"`
	ErrorType    string         `json:"error_type,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type RetrievedCase struct {
	CaseID          string  `json:"case_id"`
	ErrorType       string  `json:"error_type"`
	ErrorPattern    string  `json:"error_pattern"`
	RootCause       string  `json:"root_cause"`
	Solution        string  `json:"solution"`
	SimilarityScore float64 `json:"similarity_score"`
}

type RetrievedDoc struct {
	DocID           string  `json:"doc_id"`
	Title           string  `json:"title"`
	Content         string  `json:"content"`
	DocURL          string  `json:"doc_url,omitempty"`
	Category        string  `json:"category,omitempty"`
	SimilarityScore float64 `json:"similarity_score"`
}

// RetrievedContext is the knowledge handed to the diagnoser.
type RetrievedContext struct {
	SimilarCases []RetrievedCase `json:"similar_cases"`
	DocSnippets  []RetrievedDoc  `json:"doc_snippets"`
}

// Empty reports whether nothing was retrieved.
func (c *RetrievedContext) Empty() bool {
	return c == nil || (len(c.SimilarCases) == 0 && len(c.DocSnippets) == 0)
}

// DiagnosisResult is the structured LLM output.
type DiagnosisResult struct {
	RootCause        string   `json:"root_cause"`
	DetailedAnalysis string   `json:"detailed_analysis"`
	SuggestedFix     string   `json:"suggested_fix"`
	Priority         Priority `json:"priority"`
	Confidence       float64  `json:"confidence"`
	RelatedDocs      []string `json:"related_docs"`
}

// Validate checks the constraints the LLM is asked to honour.
func (d *DiagnosisResult) Validate() error {
	var errs []error
	if strings.TrimSpace(d.RootCause) == "" {
		errs = append(errs, errors.New("root_cause is empty"))
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		errs = append(errs, fmt.Errorf("confidence %v out of range [0,1]", d.Confidence))
	}
	p, err := ParsePriority(string(d.Priority))
	if err != nil {
		errs = append(errs, err)
	} else {
		d.Priority = p
	}
	if d.RelatedDocs == nil {
		d.RelatedDocs = []string{}
	}
	return errors.Join(errs...)
}
