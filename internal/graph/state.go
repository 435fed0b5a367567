package graph

import (
	"time"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

// State flows through every node of one diagnosis run.
type State struct {
	ThreadID         string
	JobInfo          *models.JobInfo
	Status           models.DiagnosisStatus
	RetrievedContext *models.RetrievedContext
	DiagnosisResult  *models.DiagnosisResult
	StartTime        time.Time
	EndTime          time.Time
	Error            string
	RetryCount       int
}

// NewState is the initial state of a run.
func NewState(threadID string) *State {
	return &State{
		ThreadID:  threadID,
		Status:    models.StatusPending,
		StartTime: time.Now(),
	}
}

func (s *State) finish(status models.DiagnosisStatus) {
	s.Status = status
	s.EndTime = time.Now()
}

// Duration is the run time so far, or the total once the run has ended.
func (s *State) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// snapshot copies s deep enough that later node writes do not leak into it.
func (s *State) snapshot() State {
	c := *s
	if s.JobInfo != nil {
		job := *s.JobInfo
		c.JobInfo = &job
	}
	if s.DiagnosisResult != nil {
		d := *s.DiagnosisResult
		c.DiagnosisResult = &d
	}
	if s.RetrievedContext != nil {
		rc := *s.RetrievedContext
		c.RetrievedContext = &rc
	}
	return c
}
