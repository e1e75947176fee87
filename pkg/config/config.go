package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		APIKey         string  `yaml:"api_key"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
	} `yaml:"llm"`

	Database struct {
		URL            string  `yaml:"url"`
		TableName      string  `yaml:"table_name"`
		VectorDim      int     `yaml:"vector_dim"`
		BatchSize      int     `yaml:"batch_size"`
		SearchLimit    int     `yaml:"search_limit"`
		ScoreThreshold float32 `yaml:"score_threshold"`
	} `yaml:"database"`

	Scraper struct {
		SitemapURL       string   `yaml:"sitemap_url"`
		Concurrency      int      `yaml:"concurrency"`
		RateLimit        float64  `yaml:"rate_limit"`
		IgnorePatterns   []string `yaml:"ignore_patterns"`
		MinContentLength int      `yaml:"min_content_length"`
	} `yaml:"scraper"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Search struct {
		SerperAPIKey string `yaml:"serper_api_key"`
	} `yaml:"search"`

	Voice struct {
		VapiAPIKey    string `yaml:"vapi_api_key"`
		AssistantName string `yaml:"assistant_name"`
		WebhookURL    string `yaml:"webhook_url"`
	} `yaml:"voice"`

	Calendar struct {
		CredentialsPath string `yaml:"credentials_path"`
		TokenPath       string `yaml:"token_path"`
		CalendarID      string `yaml:"calendar_id"`
	} `yaml:"calendar"`

	Agent struct {
		CompanyName string `yaml:"company_name"`
	} `yaml:"agent"`

	Server struct {
		Port      string `yaml:"port"`
		Streaming bool   `yaml:"streaming"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/sage/config.yaml"),
			"/etc/sage/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	mergeWithEnv(config)
	applyDefaults(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "gpt-4o-mini"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 2000
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.1
	}

	if config.Database.TableName == "" {
		config.Database.TableName = "chunks"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 50
	}
	if config.Database.SearchLimit == 0 {
		config.Database.SearchLimit = 3
	}
	if config.Database.ScoreThreshold == 0 {
		config.Database.ScoreThreshold = 0.35
	}

	if config.Scraper.Concurrency == 0 {
		config.Scraper.Concurrency = 5
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if config.Scraper.MinContentLength == 0 {
		config.Scraper.MinContentLength = 100
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 500
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 50
	}

	if config.Voice.AssistantName == "" {
		config.Voice.AssistantName = "Support AI"
	}
	if config.Voice.WebhookURL == "" {
		config.Voice.WebhookURL = "http://localhost:8080"
	}

	if config.Calendar.CredentialsPath == "" {
		config.Calendar.CredentialsPath = "credentials.json"
	}
	if config.Calendar.TokenPath == "" {
		config.Calendar.TokenPath = "token.json"
	}
	if config.Calendar.CalendarID == "" {
		config.Calendar.CalendarID = "primary"
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		config.LLM.EmbeddingModel = model
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if key := os.Getenv("SERPER_API_KEY"); key != "" {
		config.Search.SerperAPIKey = key
	}
	if key := os.Getenv("VAPI_API_KEY"); key != "" {
		config.Voice.VapiAPIKey = key
	}
	if url := os.Getenv("BACKEND_URL"); url != "" {
		config.Voice.WebhookURL = url
	}
	if path := os.Getenv("GOOGLE_CALENDAR_CREDENTIALS_PATH"); path != "" {
		config.Calendar.CredentialsPath = path
	}
	if sitemap := os.Getenv("SITEMAP_URL"); sitemap != "" {
		config.Scraper.SitemapURL = sitemap
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
	if name := os.Getenv("COMPANY_NAME"); name != "" {
		config.Agent.CompanyName = name
	}
}
