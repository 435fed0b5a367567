package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
	"github.com/Divas-Gupta30/oceanus-agent/internal/processing"
)

// StatusError is a non-200 answer from the Ollama API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ollama error: HTTP %d: %s", e.StatusCode, e.Body)
}

type embeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type generateRequest struct {
	Model   string         `json:"model"`
	System  string         `json:"system,omitempty"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

// Streaming and non-streaming responses share this shape; only the last chunk has Done set.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Ollama is a Client backed by a local Ollama server.
type Ollama struct {
	baseURL        string
	model          string
	embeddingModel string
	dim            int
	temperature    float32
	httpClient     *http.Client
	retry          *retrier
	logger         *zap.Logger
}

func NewOllama(cfg config.LLMConfig, dim int, logger *zap.Logger) *Ollama {
	return &Ollama{
		baseURL:        strings.TrimRight(cfg.OllamaURL, "/"),
		model:          cfg.OllamaModel,
		embeddingModel: cfg.OllamaEmbed,
		dim:            dim,
		temperature:    cfg.Temperature,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		retry:          newRetrier(cfg.MaxAttempts, cfg.MaxConcurrent, logger),
		logger:         logger,
	}
}

func (o *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("empty text")
	}
	var out []float32
	err := o.retry.do(ctx, "embed", func(ctx context.Context) error {
		var resp embeddingResponse
		if err := o.post(ctx, "/api/embeddings", embeddingRequest{
			Model:  o.embeddingModel,
			Prompt: processing.Truncate(text, maxEmbedInput),
		}, &resp); err != nil {
			return err
		}
		if o.dim > 0 && len(resp.Embedding) != o.dim {
			return fmt.Errorf("%w: expected embedding dim %d, got %d", ErrInvalidOutput, o.dim, len(resp.Embedding))
		}
		out = resp.Embedding
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("generate embedding: %w", err)
	}
	return out, nil
}

func (o *Ollama) Diagnose(ctx context.Context, job *models.JobInfo, rc *models.RetrievedContext) (*models.DiagnosisResult, error) {
	req := generateRequest{
		Model:   o.model,
		System:  diagnosisSystemPrompt + jsonOnlySuffix,
		Prompt:  UserPrompt(job, rc),
		Format:  "json",
		Options: map[string]any{"temperature": o.temperature},
	}

	var result *models.DiagnosisResult
	err := o.retry.do(ctx, "diagnose", func(ctx context.Context) error {
		text, err := o.generate(ctx, req)
		if err != nil {
			return err
		}
		result, err = parseDiagnosis(text)
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

func (o *Ollama) ClassifyError(ctx context.Context, message string) (string, error) {
	req := generateRequest{
		Model:   o.model,
		Prompt:  ClassificationPrompt(message),
		Options: map[string]any{"temperature": 0, "num_predict": 50},
	}
	var errorType string
	err := o.retry.do(ctx, "classify", func(ctx context.Context) error {
		text, err := o.generate(ctx, req)
		if err != nil {
			return err
		}
		errorType = models.NormalizeErrorType(text)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("classify error: %w", err)
	}
	return errorType, nil
}

// generate concatenates response chunks until the server reports done.
func (o *Ollama) generate(ctx context.Context, req generateRequest) (string, error) {
	body, err := o.do(ctx, "/api/generate", req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var out strings.Builder
	decoder := json.NewDecoder(body)
	for {
		var chunk generateResponse
		if err := decoder.Decode(&chunk); err == io.EOF {
			break
		} else if err != nil {
			return "", fmt.Errorf("decoding ollama response: %w", err)
		}
		out.WriteString(chunk.Response)
		if chunk.Done {
			break
		}
	}
	return out.String(), nil
}

func (o *Ollama) post(ctx context.Context, path string, in, out any) error {
	body, err := o.do(ctx, path, in)
	if err != nil {
		return err
	}
	defer body.Close()
	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decoding ollama response: %w", err)
	}
	return nil
}

func (o *Ollama) do(ctx context.Context, path string, in any) (io.ReadCloser, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("encoding ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("creating ollama request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ollama: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	return resp.Body, nil
}
