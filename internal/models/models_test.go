package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeErrorType(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"checkpoint_failure", ErrorTypeCheckpointFailure},
		{"  OOM\n", ErrorTypeOOM},
		{"`network`", ErrorTypeNetwork},
		{"backpressure.", ErrorTypeBackpressure},
		{"disk_full", ErrorTypeOther},
		{"", ErrorTypeOther},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeErrorType(tt.in))
		})
	}
}

func TestDiagnosisResultValidate(t *testing.T) {
	d := &DiagnosisResult{RootCause: "state too large", Priority: "HIGH", Confidence: 0.9}
	require.NoError(t, d.Validate())
	assert.Equal(t, PriorityHigh, d.Priority)
	assert.NotNil(t, d.RelatedDocs)

	bad := &DiagnosisResult{Priority: "urgent", Confidence: 1.5}
	err := bad.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root_cause is empty")
	assert.Contains(t, err.Error(), "out of range")
	assert.Contains(t, err.Error(), "invalid priority")
}

func TestExceptionRecordResponse(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	diagnosed := created.Add(1500 * time.Millisecond)
	conf := 0.85

	completed := &ExceptionRecord{
		ID:                  7,
		JobID:               "job-1",
		Status:              StatusCompleted,
		SuggestedFix:        `{"root_cause":"rc","detailed_analysis":"da","suggested_fix":"sf","priority":"medium","related_docs":["u"]}`,
		DiagnosisConfidence: &conf,
		CreatedAt:           created,
		DiagnosedAt:         &diagnosed,
	}
	resp := completed.Response()
	require.NotNil(t, resp.Diagnosis)
	assert.Equal(t, "rc", resp.Diagnosis.RootCause)
	assert.Equal(t, PriorityMedium, resp.Diagnosis.Priority)
	assert.Equal(t, 0.85, resp.Diagnosis.Confidence)
	require.NotNil(t, resp.ProcessingTimeMS)
	assert.Equal(t, int64(1500), *resp.ProcessingTimeMS)

	failed := &ExceptionRecord{ID: 8, Status: StatusFailed, SuggestedFix: `{"error":"llm down"}`}
	assert.Equal(t, "llm down", failed.Response().Error)

	pending := &ExceptionRecord{ID: 9, Status: StatusPending}
	r := pending.Response()
	assert.Nil(t, r.Diagnosis)
	assert.Empty(t, r.Error)
	assert.Nil(t, r.ProcessingTimeMS)
}

func TestNewCaseID(t *testing.T) {
	a, b := NewCaseID(), NewCaseID()
	assert.Len(t, a, len("case_")+12)
	assert.Regexp(t, `^case_[0-9a-f]{12}$`, a)
	assert.NotEqual(t, a, b)
}
