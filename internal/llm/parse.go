package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

var (
	codeFenceRegex     = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*\\n?(.*?)\\n?\\s*```")
	trailingCommaRegex = regexp.MustCompile(`,(\s*[}\]])`)
	objectRegex        = regexp.MustCompile(`(?s)\{.*\}`)
)

// ErrInvalidOutput marks model output that could not be turned into a diagnosis.
var ErrInvalidOutput = errors.New("invalid model output")

// parseDiagnosis accepts raw JSON, fenced JSON, or JSON surrounded by prose.
func parseDiagnosis(text string) (*models.DiagnosisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidOutput)
	}

	var d models.DiagnosisResult
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		cleaned := removeCodeFences(text)
		if m := objectRegex.FindString(cleaned); m != "" {
			cleaned = m
		}
		cleaned = trailingCommaRegex.ReplaceAllString(cleaned, "$1")
		if err := json.Unmarshal([]byte(cleaned), &d); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
		}
	}

	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	return &d, nil
}

func removeCodeFences(text string) string {
	if m := codeFenceRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}
