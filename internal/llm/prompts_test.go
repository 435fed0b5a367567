package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

func TestContextStringFallbacks(t *testing.T) {
	assert.Equal(t, "No reference context available.", ContextString(nil))

	s := ContextString(&models.RetrievedContext{})
	assert.Contains(t, s, "## Similar Historical Cases\nNo similar historical cases found.")
	assert.Contains(t, s, "## Related Flink Documentation\nNo related documentation found.")
}

func TestContextStringLimitsAndTruncates(t *testing.T) {
	rc := &models.RetrievedContext{}
	for i := 0; i < 5; i++ {
		rc.SimilarCases = append(rc.SimilarCases, models.RetrievedCase{
			ErrorType:    "oom",
			ErrorPattern: strings.Repeat("p", 600),
			RootCause:    "heap too small",
			Solution:     strings.Repeat("s", 1200),
		})
		rc.DocSnippets = append(rc.DocSnippets, models.RetrievedDoc{
			Title:   "Memory tuning",
			Content: strings.Repeat("c", 1100),
		})
	}

	s := ContextString(rc)
	assert.Contains(t, s, "### Case 3: oom")
	assert.NotContains(t, s, "### Case 4")
	assert.Contains(t, s, "### Document 3: Memory tuning")
	assert.NotContains(t, s, "### Document 4")
	assert.Contains(t, s, "Error Pattern: "+strings.Repeat("p", 500)+"\n")
	assert.Contains(t, s, "Solution: "+strings.Repeat("s", 1000)+"\n")
	assert.Contains(t, s, strings.Repeat("c", 1000)+"\nSource: N/A")
	assert.NotContains(t, s, strings.Repeat("c", 1001))
}

func TestUserPromptDefaults(t *testing.T) {
	job := &models.JobInfo{
		JobID:        "job-42",
		ErrorMessage: strings.Repeat("e", 5000),
		JobConfig:    map[string]any{"parallelism": 4},
	}

	p := UserPrompt(job, nil)
	assert.True(t, strings.HasPrefix(p, "Please diagnose the following Flink job exception:"))
	assert.Contains(t, p, "- Job Name: Unknown\n- Job Type: Unknown\n- Error Type: Unknown")
	assert.Contains(t, p, "```\n"+strings.Repeat("e", 4000)+"\n```")
	assert.Contains(t, p, "```json\n{\n  \"parallelism\": 4\n}\n```")
	assert.Contains(t, p, "## Reference Context\nNo reference context available.")
	assert.True(t, strings.HasSuffix(p, "provide a structured diagnosis result."))
}

func TestClassificationPromptTruncates(t *testing.T) {
	p := ClassificationPrompt(strings.Repeat("x", 3000))
	assert.Contains(t, p, "```\n"+strings.Repeat("x", 2000)+"\n```")
	assert.True(t, strings.HasSuffix(p, "Please respond with only the type name, nothing else."))
}

func TestParseDiagnosis(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"raw", validDiagnosis},
		{"fenced", "```json\n" + validDiagnosis + "\n```"},
		{"prose", "Here is the diagnosis:\n" + validDiagnosis + "\nLet me know if you need more."},
		{"trailing comma", strings.TrimSuffix(validDiagnosis, "}") + ",}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := parseDiagnosis(tt.in)
			require.NoError(t, err)
			assert.Equal(t, "Checkpoint timed out", d.RootCause)
			assert.Equal(t, models.PriorityHigh, d.Priority)
		})
	}
}

func TestParseDiagnosisRejects(t *testing.T) {
	for _, in := range []string{"", "not json at all", `{"root_cause":"x","priority":"soon","confidence":0.5}`} {
		_, err := parseDiagnosis(in)
		assert.ErrorIs(t, err, ErrInvalidOutput, "input %q", in)
	}
}

func TestParseDiagnosisDefaultsRelatedDocs(t *testing.T) {
	d, err := parseDiagnosis(`{"root_cause":"x","priority":"low","confidence":0.2}`)
	require.NoError(t, err)
	assert.NotNil(t, d.RelatedDocs)
	assert.Empty(t, d.RelatedDocs)
}
