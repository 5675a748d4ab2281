// Package config provides configuration management for Converse.
// It loads settings from environment variables with the CONVERSE_ prefix
// and provides sensible defaults for all configuration options.
//
// An optional YAML file (CONVERSE_CONFIG) supplies base values; environment
// variables override the file.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration settings for the Converse application.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	LLM      LLMConfig      `yaml:"llm"`
	Memory   MemoryConfig   `yaml:"memory"`
	Security SecurityConfig `yaml:"security"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	Port int    `yaml:"port"` // Server port (default: 6464)
	Host string `yaml:"host"` // Server host (default: 127.0.0.1)
}

// StorageConfig contains database and storage configuration.
type StorageConfig struct {
	StorageEngine string `yaml:"engine"`       // Storage engine: sqlite, postgres, memory (default: sqlite)
	DataPath      string `yaml:"data_path"`    // Path to data directory (default: ./data)
	PostgresDSN   string `yaml:"postgres_dsn"` // Postgres connection string (engine=postgres only)
}

// LLMConfig contains LLM provider configuration.
type LLMConfig struct {
	Provider        string `yaml:"provider"`          // LLM provider: ollama, openai, anthropic (default: ollama)
	OllamaURL       string `yaml:"ollama_url"`        // Ollama API URL (default: http://localhost:11434)
	OllamaModel     string `yaml:"ollama_model"`      // Ollama model name (default: qwen2.5:7b)
	OpenAIAPIKey    string `yaml:"openai_api_key"`    // OpenAI API key
	OpenAIModel     string `yaml:"openai_model"`      // OpenAI model name (default: gpt-4o-mini)
	AnthropicAPIKey string `yaml:"anthropic_api_key"` // Anthropic API key
	AnthropicModel  string `yaml:"anthropic_model"`   // Anthropic model name (default: claude-haiku-4-5-20251001)
}

// MemoryConfig contains thresholds for the memory subsystem.
//
// The two summary thresholds are deliberately distinct: the per-turn rolling
// summary is attempted from 5 messages, while the persisted post-turn
// summary triggers from 8.
type MemoryConfig struct {
	RollingSummaryMinMessages   int `yaml:"rolling_summary_min_messages"`   // default: 5
	PersistedSummaryMinMessages int `yaml:"persisted_summary_min_messages"` // default: 8
	RelevantMemoryLimit         int `yaml:"relevant_memory_limit"`          // default: 3
	CandidateFetchLimit         int `yaml:"candidate_fetch_limit"`          // default: 20
}

// SecurityConfig contains security and authentication settings.
type SecurityConfig struct {
	SecurityMode string `yaml:"mode"`      // Security mode: development, production (default: development)
	APIToken     string `yaml:"api_token"` // API authentication token
}

// LoadConfig loads configuration from the optional YAML file named by
// CONVERSE_CONFIG, then applies environment variable overrides and defaults.
func LoadConfig() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONVERSE_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// defaultConfig returns a Config populated with defaults only.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 6464,
			Host: "127.0.0.1",
		},
		Storage: StorageConfig{
			StorageEngine: "sqlite",
			DataPath:      "./data",
		},
		LLM: LLMConfig{
			Provider:       "ollama",
			OllamaURL:      "http://localhost:11434",
			OllamaModel:    "qwen2.5:7b",
			OpenAIModel:    "gpt-4o-mini",
			AnthropicModel: "claude-haiku-4-5-20251001",
		},
		Memory: MemoryConfig{
			RollingSummaryMinMessages:   5,
			PersistedSummaryMinMessages: 8,
			RelevantMemoryLimit:         3,
			CandidateFetchLimit:         20,
		},
		Security: SecurityConfig{
			SecurityMode: "development",
		},
	}
}

// applyEnvOverrides overlays CONVERSE_* environment variables onto cfg.
func applyEnvOverrides(cfg *Config) {
	cfg.Server.Port = getEnvInt("CONVERSE_PORT", cfg.Server.Port)
	cfg.Server.Host = getEnv("CONVERSE_HOST", cfg.Server.Host)

	cfg.Storage.StorageEngine = getEnv("CONVERSE_STORAGE_ENGINE", cfg.Storage.StorageEngine)
	cfg.Storage.DataPath = getEnv("CONVERSE_DATA_PATH", cfg.Storage.DataPath)
	cfg.Storage.PostgresDSN = getEnv("CONVERSE_POSTGRES_DSN", cfg.Storage.PostgresDSN)

	cfg.LLM.Provider = getEnv("CONVERSE_LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.OllamaURL = getEnv("CONVERSE_OLLAMA_URL", cfg.LLM.OllamaURL)
	cfg.LLM.OllamaModel = getEnv("CONVERSE_OLLAMA_MODEL", cfg.LLM.OllamaModel)
	cfg.LLM.OpenAIAPIKey = getEnv("CONVERSE_OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OpenAIModel = getEnv("CONVERSE_OPENAI_MODEL", cfg.LLM.OpenAIModel)
	cfg.LLM.AnthropicAPIKey = getEnv("CONVERSE_ANTHROPIC_API_KEY", cfg.LLM.AnthropicAPIKey)
	cfg.LLM.AnthropicModel = getEnv("CONVERSE_ANTHROPIC_MODEL", cfg.LLM.AnthropicModel)

	cfg.Memory.RollingSummaryMinMessages = getEnvInt("CONVERSE_ROLLING_SUMMARY_MIN_MESSAGES", cfg.Memory.RollingSummaryMinMessages)
	cfg.Memory.PersistedSummaryMinMessages = getEnvInt("CONVERSE_PERSISTED_SUMMARY_MIN_MESSAGES", cfg.Memory.PersistedSummaryMinMessages)
	cfg.Memory.RelevantMemoryLimit = getEnvInt("CONVERSE_RELEVANT_MEMORY_LIMIT", cfg.Memory.RelevantMemoryLimit)
	cfg.Memory.CandidateFetchLimit = getEnvInt("CONVERSE_CANDIDATE_FETCH_LIMIT", cfg.Memory.CandidateFetchLimit)

	cfg.Security.SecurityMode = getEnv("CONVERSE_SECURITY_MODE", cfg.Security.SecurityMode)
	cfg.Security.APIToken = getEnv("CONVERSE_API_TOKEN", cfg.Security.APIToken)
}

// getEnv retrieves a string environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns a default value.
// If the environment variable exists but cannot be parsed as an integer,
// it returns the default value.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
