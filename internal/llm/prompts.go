package llm

import (
	"encoding/json"
	"strings"
	"text/template"

	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/processing"
)

const diagnosisSystemPrompt = `You are a professional Apache Flink job diagnosis expert. Your task is to analyze Flink job exceptions, identify root causes, and provide actionable repair suggestions.

## Your Areas of Expertise:
1. Checkpoint Failures - State backend issues, alignment timeouts, storage problems
2. Backpressure Analysis - Data skew, resource constraints, operator bottlenecks
3. Deserialization Errors - Schema evolution, type mismatches, serializer configuration
4. OOM Issues - Memory configuration, state management, data structure optimization
5. Network Issues - TaskManager communication, shuffle optimization

## Diagnosis Principles:
1. Analyze symptoms first, then infer causes
2. Consider job configuration and error information comprehensively
3. Reference historical similar cases for resolution experience
4. Provide specific, actionable repair steps
5. Assess severity and confidence of diagnosis

## Output Requirements:
- root_cause: Concise root cause description (1-2 sentences)
- detailed_analysis: Detailed analysis process and reasoning
- suggested_fix: Specific repair steps including configuration changes
- priority: Based on impact and urgency (high/medium/low)
- confidence: Diagnosis confidence (0-1) based on evidence sufficiency
- related_docs: List of relevant official documentation URLs

Please respond in the same language as the error message (Chinese if error is in Chinese, English if in English).`

// jsonOnlySuffix is appended for providers without schema-constrained output.
const jsonOnlySuffix = `

Respond with a single JSON object containing exactly the keys root_cause, detailed_analysis, suggested_fix, priority, confidence and related_docs.`

const (
	noContext = "No reference context available."
	noCases   = "No similar historical cases found."
	noDocs    = "No related documentation found."

	maxContextCases = 3
	maxContextDocs  = 3
)

var prompts = template.Must(template.New("prompts").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(`
{{- define "user" -}}
Please diagnose the following Flink job exception:

## Job Information
- Job ID: {{.JobID}}
- Job Name: {{.JobName}}
- Job Type: {{.JobType}}
- Error Type: {{.ErrorType}}

## Error Message
` + "```" + `
{{.ErrorMessage}}
` + "```" + `

## Job Configuration
` + "```json" + `
{{.JobConfig}}
` + "```" + `

## Reference Context
{{.Context}}

Please analyze the above information and provide a structured diagnosis result.
{{- end}}

{{- define "classify" -}}
Analyze the following Flink error message and determine its error type:

Error Message:
` + "```" + `
{{.}}
` + "```" + `

Available types:
1. checkpoint_failure - Checkpoint related failures
2. backpressure - Backpressure issues
3. deserialization_error - Deserialization errors
4. oom - Out of memory errors
5. network - Network related issues
6. other - Other types

Please respond with only the type name, nothing else.
{{- end}}

{{- define "context"}}
## Similar Historical Cases
{{.Cases}}

## Related Flink Documentation
{{.Docs}}
{{end}}

{{- define "case"}}
### Case {{inc .Index}}: {{.ErrorType}}
Error Pattern: {{.ErrorPattern}}
Root Cause: {{.RootCause}}
Solution: {{.Solution}}
{{end}}

{{- define "doc"}}
### Document {{inc .Index}}: {{.Title}}
{{.Content}}
Source: {{.DocURL}}
{{end}}
`))

type userPromptData struct {
	JobID        string
	JobName      string
	JobType      string
	ErrorType    string
	ErrorMessage string
	JobConfig    string
	Context      string
}

func render(name string, data any) string {
	var b strings.Builder
	// Template data is built here and always matches the template fields.
	if err := prompts.ExecuteTemplate(&b, name, data); err != nil {
		panic(err)
	}
	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// UserPrompt renders the diagnosis request for job with the retrieved knowledge.
func UserPrompt(job *models.JobInfo, rc *models.RetrievedContext) string {
	cfg := job.JobConfig
	if cfg == nil {
		cfg = map[string]any{}
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		raw = []byte("{}")
	}

	return render("user", userPromptData{
		JobID:        job.JobID,
		JobName:      orUnknown(job.JobName),
		JobType:      orUnknown(job.JobType),
		ErrorType:    orUnknown(job.ErrorType),
		ErrorMessage: processing.Truncate(job.ErrorMessage, 4000),
		JobConfig:    processing.Truncate(string(raw), 2000),
		Context:      ContextString(rc),
	})
}

// ClassificationPrompt asks for a bare error type name.
func ClassificationPrompt(message string) string {
	return render("classify", processing.Truncate(message, 2000))
}

// ContextString formats at most three cases and three docs for the prompt.
func ContextString(rc *models.RetrievedContext) string {
	if rc == nil {
		return noContext
	}

	cases := noCases
	if len(rc.SimilarCases) > 0 {
		parts := make([]string, 0, maxContextCases)
		for i, c := range rc.SimilarCases {
			if i == maxContextCases {
				break
			}
			parts = append(parts, render("case", map[string]any{
				"Index":        i,
				"ErrorType":    c.ErrorType,
				"ErrorPattern": processing.Truncate(c.ErrorPattern, 500),
				"RootCause":    c.RootCause,
				"Solution":     processing.Truncate(c.Solution, 1000),
			}))
		}
		cases = strings.Join(parts, "\n")
	}

	docs := noDocs
	if len(rc.DocSnippets) > 0 {
		parts := make([]string, 0, maxContextDocs)
		for i, d := range rc.DocSnippets {
			if i == maxContextDocs {
				break
			}
			url := d.DocURL
			if url == "" {
				url = "N/A"
			}
			parts = append(parts, render("doc", map[string]any{
				"Index":   i,
				"Title":   d.Title,
				"Content": processing.Truncate(d.Content, 1000),
				"DocURL":  url,
			}))
		}
		docs = strings.Join(parts, "\n")
	}

	return render("context", map[string]string{"Cases": cases, "Docs": docs})
}
