package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type SourceType string

const (
	SourceManual SourceType = "manual"
	SourceAuto   SourceType = "auto"
)

// KnowledgeCase is the relational record of a case stored in the vector store.
type KnowledgeCase struct {
	CaseID            string     `json:"case_id" yaml:"case_id"`
	ErrorType         string     `json:"error_type" yaml:"error_type"`
	ErrorPattern      string     `json:"error_pattern" yaml:"error_pattern"`
	RootCause         string     `json:"root_cause" yaml:"root_cause"`
	Solution          string     `json:"solution" yaml:"solution"`
	SourceExceptionID *int64     `json:"source_exception_id,omitempty" yaml:"-"`
	SourceType        SourceType `json:"source_type" yaml:"-"`
	Verified          bool       `json:"verified" yaml:"verified"`
	CreatedAt         time.Time  `json:"created_at,omitempty" yaml:"-"`
}

// FlinkDocument is a documentation snippet stored in the docs collection.
type FlinkDocument struct {
	DocID     string    `json:"doc_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	DocURL    string    `json:"doc_url,omitempty"`
	Category  string    `json:"category,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// NewCaseID returns "case_" followed by 12 random hex characters.
func NewCaseID() string {
	return "case_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
