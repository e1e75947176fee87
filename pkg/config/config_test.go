package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	// Create temporary config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configData := `
llm:
  api_key: "sk-test"
  model: "gpt-4o-mini"
  embedding_model: "text-embedding-3-small"
  max_tokens: 1000
  temperature: 0.5

database:
  url: "postgres://localhost:5432/test"
  table_name: "test_chunks"
  vector_dim: 1536
  batch_size: 25
  search_limit: 5
  score_threshold: 0.4

scraper:
  sitemap_url: "https://example.com/sitemap.xml"
  concurrency: 3
  rate_limit: 1.5
  ignore_patterns:
    - "/legal/"

processor:
  chunk_size: 400
  chunk_overlap: 40

server:
  port: "9000"
  streaming: false
`
	err := os.WriteFile(configPath, []byte(configData), 0644)
	require.NoError(t, err)

	config, err := LoadConfig(configPath)
	require.NoError(t, err)

	assert.Equal(t, "sk-test", config.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
	assert.Equal(t, 1000, config.LLM.MaxTokens)
	assert.Equal(t, 0.5, config.LLM.Temperature)
	assert.Equal(t, "postgres://localhost:5432/test", config.Database.URL)
	assert.Equal(t, float32(0.4), config.Database.ScoreThreshold)
	assert.Equal(t, "https://example.com/sitemap.xml", config.Scraper.SitemapURL)
	assert.Equal(t, 3, config.Scraper.Concurrency)
	assert.Equal(t, 400, config.Processor.ChunkSize)
	assert.Equal(t, "9000", config.Server.Port)
}

func TestDefaults(t *testing.T) {
	config := &Config{}
	applyDefaults(config)

	assert.Equal(t, "gpt-4o-mini", config.LLM.Model)
	assert.Equal(t, "text-embedding-3-small", config.LLM.EmbeddingModel)
	assert.Equal(t, 1536, config.Database.VectorDim)
	assert.Equal(t, 500, config.Processor.ChunkSize)
	assert.Equal(t, 50, config.Processor.ChunkOverlap)
	assert.Equal(t, 5, config.Scraper.Concurrency)
	assert.Equal(t, "primary", config.Calendar.CalendarID)
	assert.Equal(t, "token.json", config.Calendar.TokenPath)
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*Config)
		expectedErrs int
		errorFields  []string
	}{
		{
			name:         "valid config",
			mutate:       func(c *Config) { c.LLM.APIKey = "sk-test" },
			expectedErrs: 0,
		},
		{
			name: "invalid config",
			mutate: func(c *Config) {
				c.LLM.MaxTokens = 5000
				c.LLM.Temperature = 3.0
				c.Database.VectorDim = -1
				c.Processor.ChunkOverlap = 600
			},
			expectedErrs: 5,
			errorFields: []string{
				"llm.api_key",
				"llm.max_tokens",
				"llm.temperature",
				"database.vector_dim",
				"processor.chunk_overlap",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			applyDefaults(config)
			tt.mutate(config)

			errors := config.Validate()
			assert.Len(t, errors, tt.expectedErrs)

			for i, field := range tt.errorFields {
				assert.Contains(t, errors[i].Error(), field)
			}
		})
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "sk-env")
	os.Setenv("DATABASE_URL", "postgres://env-db:5432/test")
	os.Setenv("VAPI_API_KEY", "vapi-env")
	defer func() {
		os.Unsetenv("OPENAI_API_KEY")
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("VAPI_API_KEY")
	}()

	config := &Config{}
	mergeWithEnv(config)

	assert.Equal(t, "sk-env", config.LLM.APIKey)
	assert.Equal(t, "postgres://env-db:5432/test", config.Database.URL)
	assert.Equal(t, "vapi-env", config.Voice.VapiAPIKey)
}
