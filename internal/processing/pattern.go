package processing

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

const maxPatternLen = 2000

// Placeholders are applied in order; the specific ones run before <NUM>
// so a UUID or timestamp is not shredded into digit placeholders first.
var patternRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`[a-fA-F0-9]{8}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{4}-[a-fA-F0-9]{12}`), "<UUID>"},
	{regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?`), "<TIMESTAMP>"},
	{regexp.MustCompile(`0x[a-fA-F0-9]+`), "<ADDR>"},
	{regexp.MustCompile(`/[\w/.-]+`), "<PATH>"},
	{regexp.MustCompile(`\d+`), "<NUM>"},
}

// ExtractErrorPattern generalises an error message so similar failures share a pattern.
func ExtractErrorPattern(msg string) string {
	pattern := msg
	for _, r := range patternRules {
		pattern = r.re.ReplaceAllString(pattern, r.repl)
	}
	return Truncate(pattern, maxPatternLen)
}

// BuildCaseText is the text embedded for an accumulated knowledge case.
func BuildCaseText(job *models.JobInfo, d *models.DiagnosisResult) string {
	errorType := job.ErrorType
	if errorType == "" {
		errorType = "unknown"
	}
	return strings.TrimSpace(fmt.Sprintf("Error Type: %s\nError Message: %s\nRoot Cause: %s\nSolution: %s",
		errorType, Truncate(job.ErrorMessage, 1000), d.RootCause, d.SuggestedFix))
}

// BuildQueryText is the text embedded when searching for similar knowledge.
func BuildQueryText(job *models.JobInfo) string {
	return job.ErrorType + " " + Truncate(job.ErrorMessage, 1000)
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
