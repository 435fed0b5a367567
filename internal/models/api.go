package models

import (
	"encoding/json"
	"time"
)

// DiagnosisRequest submits a new exception for diagnosis.
type DiagnosisRequest struct {
	JobID        string         `json:"job_id"`
	JobName      string         `json:"job_name,omitempty"`
	JobType      string         `json:"job_type,omitempty"`
	JobConfig    map[string]any `json:"job_config,omitempty"`
	ErrorMessage string         `json:"error_message"`
	ErrorType    string         `json:"error_type,omitempty"`
}

type DiagnosisResponse struct {
	ExceptionID      int64            `json:"exception_id"`
	JobID            string           `json:"job_id"`
	Status           DiagnosisStatus  `json:"status"`
	Diagnosis        *DiagnosisResult `json:"diagnosis,omitempty"`
	Error            string           `json:"error,omitempty"`
	ProcessingTimeMS *int64           `json:"processing_time_ms,omitempty"`
}

// ExceptionRecord is a full row of flink_job_exceptions.
type ExceptionRecord struct {
	ID                  int64           `json:"id"`
	JobID               string          `json:"job_id"`
	JobName             string          `json:"job_name,omitempty"`
	JobType             string          `json:"job_type,omitempty"`
	JobConfig           map[string]any  `json:"job_config,omitempty"`
	ErrorMessage        string          `json:"error_message"`
	ErrorType           string          `json:"error_type,omitempty"`
	Status              DiagnosisStatus `json:"status"`
	SuggestedFix        string          `json:"suggested_fix,omitempty"`
	DiagnosisConfidence *float64        `json:"diagnosis_confidence,omitempty"`
	DiagnosedAt         *time.Time      `json:"diagnosed_at,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// StoredFix is the JSON document persisted in suggested_fix for completed diagnoses.
type StoredFix struct {
	RootCause        string   `json:"root_cause"`
	DetailedAnalysis string   `json:"detailed_analysis"`
	SuggestedFix     string   `json:"suggested_fix"`
	Priority         Priority `json:"priority"`
	RelatedDocs      []string `json:"related_docs"`
}

// StoredFailure is the JSON document persisted in suggested_fix for failed diagnoses.
type StoredFailure struct {
	Error string `json:"error"`
}

// Response converts a stored row to its API representation.
func (r *ExceptionRecord) Response() DiagnosisResponse {
	resp := DiagnosisResponse{
		ExceptionID: r.ID,
		JobID:       r.JobID,
		Status:      r.Status,
	}
	if r.DiagnosedAt != nil {
		ms := r.DiagnosedAt.Sub(r.CreatedAt).Milliseconds()
		resp.ProcessingTimeMS = &ms
	}
	if r.SuggestedFix == "" {
		return resp
	}

	switch r.Status {
	case StatusCompleted:
		var fix StoredFix
		if err := json.Unmarshal([]byte(r.SuggestedFix), &fix); err != nil {
			resp.Error = "unreadable diagnosis: " + err.Error()
			return resp
		}
		d := &DiagnosisResult{
			RootCause:        fix.RootCause,
			DetailedAnalysis: fix.DetailedAnalysis,
			SuggestedFix:     fix.SuggestedFix,
			Priority:         fix.Priority,
			RelatedDocs:      fix.RelatedDocs,
		}
		if r.DiagnosisConfidence != nil {
			d.Confidence = *r.DiagnosisConfidence
		}
		resp.Diagnosis = d
	case StatusFailed:
		var f StoredFailure
		if err := json.Unmarshal([]byte(r.SuggestedFix), &f); err != nil || f.Error == "" {
			resp.Error = r.SuggestedFix
			return resp
		}
		resp.Error = f.Error
	}
	return resp
}
