package llm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/processing"
)

// diagnosisOutput mirrors models.DiagnosisResult for schema generation.
type diagnosisOutput struct {
	RootCause        string   `json:"root_cause" description:"Concise root cause description (1-2 sentences)"`
	DetailedAnalysis string   `json:"detailed_analysis" description:"Detailed analysis process and reasoning"`
	SuggestedFix     string   `json:"suggested_fix" description:"Specific repair steps including configuration changes"`
	Priority         string   `json:"priority" description:"One of high, medium or low"`
	Confidence       float64  `json:"confidence" description:"Diagnosis confidence between 0 and 1"`
	RelatedDocs      []string `json:"related_docs" description:"Relevant official documentation URLs"`
}

var diagnosisSchema = mustSchema()

func mustSchema() *jsonschema.Definition {
	s, err := jsonschema.GenerateSchemaForType(diagnosisOutput{})
	if err != nil {
		panic(fmt.Sprintf("diagnosis schema: %v", err))
	}
	return s
}

// OpenAI is a Client for OpenAI and API-compatible servers.
type OpenAI struct {
	client         *openai.Client
	model          string
	embeddingModel string
	temperature    float32
	maxTokens      int
	retry          *retrier
	logger         *zap.Logger
}

func NewOpenAI(cfg config.LLMConfig, logger *zap.Logger) *OpenAI {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &OpenAI{
		client:         openai.NewClientWithConfig(oc),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		retry:          newRetrier(cfg.MaxAttempts, cfg.MaxConcurrent, logger),
		logger:         logger,
	}
}

func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := o.retry.do(ctx, "embed", func(ctx context.Context) error {
		resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{processing.Truncate(text, maxEmbedInput)},
			Model: openai.EmbeddingModel(o.embeddingModel),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return errors.New("embedding response has no data")
		}
		out = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	return out, nil
}

func (o *OpenAI) Diagnose(ctx context.Context, job *models.JobInfo, rc *models.RetrievedContext) (*models.DiagnosisResult, error) {
	req := openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: diagnosisSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(job, rc)},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "diagnosis_output",
				Schema: diagnosisSchema,
				Strict: true,
			},
		},
	}

	o.logger.Debug("generating diagnosis",
		zap.String("job_id", job.JobID),
		zap.Int("context_cases", contextCases(rc)),
		zap.Int("context_docs", contextDocs(rc)))

	var result *models.DiagnosisResult
	err := o.retry.do(ctx, "diagnose", func(ctx context.Context) error {
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices returned", ErrInvalidOutput)
		}
		result, err = parseDiagnosis(resp.Choices[0].Message.Content)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("generate diagnosis: %w", err)
	}

	o.logger.Info("generated diagnosis",
		zap.String("job_id", job.JobID),
		zap.Float64("confidence", result.Confidence),
		zap.String("priority", string(result.Priority)))
	return result, nil
}

func (o *OpenAI) ClassifyError(ctx context.Context, message string) (string, error) {
	var errorType string
	err := o.retry.do(ctx, "classify", func(ctx context.Context) error {
		resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: o.model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: ClassificationPrompt(message)},
			},
			// A zero temperature is dropped by omitempty.
			Temperature: math.SmallestNonzeroFloat32,
			MaxTokens:   50,
		})
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%w: no choices returned", ErrInvalidOutput)
		}
		errorType = models.NormalizeErrorType(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("classify error: %w", err)
	}
	o.logger.Debug("classified error", zap.String("error_type", errorType))
	return errorType, nil
}

func contextCases(rc *models.RetrievedContext) int {
	if rc == nil {
		return 0
	}
	return len(rc.SimilarCases)
}

func contextDocs(rc *models.RetrievedContext) int {
	if rc == nil {
		return 0
	}
	return len(rc.DocSnippets)
}
