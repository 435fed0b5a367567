// Package llm talks to the language model providers used for embedding,
// diagnosis and error classification.
package llm

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Divas-Gupta30/oceanus-agent/internal/config"
	"github.com/Divas-Gupta30/oceanus-agent/internal/models"
)

// maxEmbedInput is the character limit applied before embedding.
const maxEmbedInput = 8000

// Embedder turns text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Client is everything the workflow needs from a model provider.
type Client interface {
	Embedder
	Diagnose(ctx context.Context, job *models.JobInfo, rc *models.RetrievedContext) (*models.DiagnosisResult, error)
	ClassifyError(ctx context.Context, message string) (string, error)
}

// New builds the client for cfg.Provider. vectorDim is the expected embedding size.
func New(cfg config.LLMConfig, vectorDim int, logger *zap.Logger) (Client, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAI(cfg, logger), nil
	case "ollama":
		return NewOllama(cfg, vectorDim, logger), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
}

// EmbeddingModel returns the model name used for embeddings under cfg.
func EmbeddingModel(cfg config.LLMConfig) string {
	if cfg.Provider == "ollama" {
		return cfg.OllamaEmbed
	}
	return cfg.EmbeddingModel
}
