package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg := Load()
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "openai", cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 60*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.Equal(t, 0.8, cfg.Knowledge.ConfidenceThreshold)
	assert.Equal(t, 3, cfg.Knowledge.MaxSimilarCases)
	assert.Equal(t, 1536, cfg.Vector.Dim)
	assert.Equal(t, "flink_cases", cfg.Vector.CasesTable)
	assert.False(t, cfg.RedisEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "Ollama")
	t.Setenv("SCHEDULER_INTERVAL_SECONDS", "5")
	t.Setenv("SCHEDULER_STALE_AFTER", "120")
	t.Setenv("REDIS_EMBEDDING_TTL", "1h")
	t.Setenv("KNOWLEDGE_CONFIDENCE_THRESHOLD", "0.65")
	t.Setenv("REDIS_URL", "localhost:6379")
	t.Setenv("SCHEDULER_BATCH_SIZE", "not-a-number")

	cfg := Load()
	assert.Equal(t, "ollama", cfg.LLM.Provider)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Scheduler.StaleAfter)
	assert.Equal(t, time.Hour, cfg.Redis.EmbeddingTTL)
	assert.Equal(t, 0.65, cfg.Knowledge.ConfidenceThreshold)
	assert.Equal(t, 10, cfg.Scheduler.BatchSize)
	assert.True(t, cfg.RedisEnabled())
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg := Load()
	cfg.LLM.APIKey = ""
	cfg.Vector.CasesTable = "cases; drop table x"
	cfg.Knowledge.ConfidenceThreshold = 1.2
	cfg.Scheduler.BatchSize = 0

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "OPENAI_API_KEY")
	assert.Contains(t, msg, "plain SQL identifiers")
	assert.Contains(t, msg, "KNOWLEDGE_CONFIDENCE_THRESHOLD")
	assert.Contains(t, msg, "SCHEDULER_BATCH_SIZE")

	cfg = Load()
	cfg.LLM.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())
}
