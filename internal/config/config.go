package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	AI struct {
		Provider   string `yaml:"provider"`
		Model      string `yaml:"model"`       // generation model
		EmbedModel string `yaml:"embed_model"` // embedding model
		APIKey     string `yaml:"api_key"`
		BaseURL    string `yaml:"base_url"`
		Dimension  int    `yaml:"dimension"`
	} `yaml:"ai"`
	Generation struct {
		TopK               int     `yaml:"top_k"`
		MaxAttempts        int     `yaml:"max_attempts"`
		MaxRepairAttempts  int     `yaml:"max_repair_attempts"`
		RetrievalThreshold float64 `yaml:"retrieval_threshold"`
		StrictSourcing     bool    `yaml:"strict_sourcing"`
		Concurrency        int     `yaml:"concurrency"`
		DailyCallLimit     int64   `yaml:"daily_call_limit"` // 0 = unlimited
	} `yaml:"generation"`
}

func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	var cfg Config

	// 2. Load YAML config when present
	if file, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, err
		}
	}

	// 3. Override with environment variables if present
	if apiKey := os.Getenv("NOTEGEN_API_KEY"); apiKey != "" {
		cfg.AI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GOOGLE_API_KEY"); apiKey != "" && cfg.AI.APIKey == "" {
		cfg.AI.APIKey = apiKey
	}
	if provider := os.Getenv("NOTEGEN_AI_PROVIDER"); provider != "" {
		cfg.AI.Provider = provider
	}
	if limit := os.Getenv("DAILY_CALL_LIMIT"); limit != "" {
		if n, err := strconv.ParseInt(limit, 10, 64); err == nil {
			cfg.Generation.DailyCallLimit = n
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Storage.DBPath == "" {
		c.Storage.DBPath = "notegen.db"
	}
	if c.AI.Provider == "" {
		c.AI.Provider = "gemini"
	}
	if c.AI.Model == "" {
		c.AI.Model = "gemini-1.5-flash"
	}
	if c.AI.EmbedModel == "" {
		c.AI.EmbedModel = "text-embedding-004"
	}
	if c.Generation.TopK <= 0 {
		c.Generation.TopK = 6
	}
	if c.Generation.MaxAttempts <= 0 {
		c.Generation.MaxAttempts = 3
	}
	if c.Generation.MaxRepairAttempts <= 0 {
		c.Generation.MaxRepairAttempts = 2
	}
	if c.Generation.RetrievalThreshold <= 0 {
		c.Generation.RetrievalThreshold = 0.35
	}
	if c.Generation.Concurrency <= 0 {
		c.Generation.Concurrency = 4
	}
}
