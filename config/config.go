package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderLocal     = "local"
	ProviderOpenAI    = "openai"
	ProviderOpenAISDK = "openai-sdk"

	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

type Config struct {
	LLM struct {
		Provider string `yaml:"provider" json:"provider"`
		APIKey   string `yaml:"api_key" json:"api_key"`
		BaseURL  string `yaml:"base_url" json:"base_url"`
		Model    string `yaml:"model" json:"model"`
	} `yaml:"llm" json:"llm"`
	Store struct {
		Driver string `yaml:"driver" json:"driver"`
		Path   string `yaml:"path" json:"path"`
		// MaxSessions bounds the memory store; the least recently used session is dropped.
		MaxSessions int `yaml:"max_sessions" json:"max_sessions"`
	} `yaml:"store" json:"store"`
	Library struct {
		Path string `yaml:"path" json:"path"` // SQLite reference library
	} `yaml:"library" json:"library"`
	Registry struct {
		Path string `yaml:"path" json:"path"` // extra document type definitions
	} `yaml:"registry" json:"registry"`
	Dialogue struct {
		Lang                string  `yaml:"lang" json:"lang"`
		MaxSteps            int     `yaml:"max_steps" json:"max_steps"`
		HistoryTurns        int     `yaml:"history_turns" json:"history_turns"`
		ConfidenceThreshold float64 `yaml:"confidence_threshold" json:"confidence_threshold"`
	} `yaml:"dialogue" json:"dialogue"`
	Log struct {
		Level string `yaml:"level" json:"level"`
	} `yaml:"log" json:"log"`
}

func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads .env (if any), then the YAML or JSON file at path (if path is set),
// then environment overrides.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if apiKey := os.Getenv("DRAFTAGENT_API_KEY"); apiKey != "" {
		cfg.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("DRAFTAGENT_BASE_URL"); baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
	if model := os.Getenv("DRAFTAGENT_MODEL"); model != "" {
		cfg.LLM.Model = model
	}
	if provider := os.Getenv("DRAFTAGENT_PROVIDER"); provider != "" {
		cfg.LLM.Provider = provider
	}
	if db := os.Getenv("DRAFTAGENT_DB"); db != "" {
		cfg.Store.Driver = StoreSQLite
		cfg.Store.Path = db
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	c.LLM.Provider = strings.ToLower(strings.TrimSpace(c.LLM.Provider))
	if c.LLM.Provider == "" {
		c.LLM.Provider = ProviderLocal
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com/v1"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o"
	}
	if c.Store.Driver == "" {
		c.Store.Driver = StoreMemory
	}
	if c.Store.Driver == StoreSQLite && c.Store.Path == "" {
		c.Store.Path = "draftagent.db"
	}
	if c.Dialogue.Lang == "" {
		c.Dialogue.Lang = "English"
	}
	if c.Dialogue.MaxSteps <= 0 {
		c.Dialogue.MaxSteps = 16
	}
	if c.Dialogue.HistoryTurns <= 0 {
		c.Dialogue.HistoryTurns = 20
	}
	if c.Dialogue.ConfidenceThreshold <= 0 {
		c.Dialogue.ConfidenceThreshold = 0.7
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case ProviderLocal:
	case ProviderOpenAI, ProviderOpenAISDK:
		if c.LLM.APIKey == "" {
			return fmt.Errorf("llm.api_key is required for provider %s", c.LLM.Provider)
		}
	default:
		return fmt.Errorf("unknown llm provider %q", c.LLM.Provider)
	}
	switch c.Store.Driver {
	case StoreMemory, StoreSQLite:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Store.MaxSessions < 0 {
		return fmt.Errorf("store.max_sessions must not be negative")
	}
	if c.Dialogue.ConfidenceThreshold > 1 {
		return fmt.Errorf("dialogue.confidence_threshold must be within (0, 1]")
	}
	return nil
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}
