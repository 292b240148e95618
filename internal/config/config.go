// Package config loads the process-wide Config once at startup from
// environment variables, optionally overlaid with a YAML file, and never
// mutates it afterward. It covers exactly the settings the service
// needs: STT credentials, LLM provider selection, the SQLite database
// path, and an optional cost-table override.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tanmaycode1/voiceagent/internal/agent"
)

// STTConfig configures the Session Orchestrator's connection to the
// external speech-to-text provider.
type STTConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// LLMConfig selects and authenticates the LLM Adapter's provider.
type LLMConfig struct {
	// Provider is "anthropic" or "openai".
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	// Model overrides the provider's default model, if set.
	Model string `yaml:"model"`
}

// DatabaseConfig locates the SQLite file backing both the Task Store and
// History Store gateways.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// Config is the single immutable configuration value threaded through
// main at startup. Loaded once by Load; never mutated afterward.
type Config struct {
	STT       STTConfig                  `yaml:"stt"`
	LLM       LLMConfig                  `yaml:"llm"`
	Database  DatabaseConfig             `yaml:"database"`
	CostTable map[string]agent.CostRates `yaml:"cost_table"`

	// ListenAddr is the address the client WebSocket server binds.
	ListenAddr string `yaml:"listen_addr"`
	// LogLevel is one of debug/info/warn/error.
	LogLevel string `yaml:"log_level"`
	// LogFormat is "json" or "text".
	LogFormat string `yaml:"log_format"`
}

// DefaultCostTable is the built-in per-model pricing used when a model has
// no entry in Config.CostTable. Cost accounting is never blocked by a
// missing rate; an unknown model just costs nothing (logged at warn by
// the caller).
func DefaultCostTable() map[string]agent.CostRates {
	return map[string]agent.CostRates{
		"claude-sonnet-4-20250514": {
			InputPerMTok:      3.0,
			CacheWritePerMTok: 3.75,
			CacheReadPerMTok:  0.3,
			OutputPerMTok:     15.0,
		},
		"gpt-4o": {
			InputPerMTok:  2.5,
			OutputPerMTok: 10.0,
		},
	}
}

// FatalConfigurationError is returned by Load/Validate when the process
// cannot start at all — checked in main before any goroutine starts.
type FatalConfigurationError struct {
	Field   string
	Message string
}

func (e *FatalConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Load builds a Config from environment variables, optionally overlaid by
// the YAML file at path (path may be empty, in which case only the
// environment is consulted). Environment variables always take precedence
// over the file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		LLM:        LLMConfig{Provider: "anthropic"},
		Database:   DatabaseConfig{Path: "voiceagent.db"},
		ListenAddr: ":8080",
		LogLevel:   "info",
		LogFormat:  "json",
	}

	if path != "" {
		if err := loadYAMLFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if cfg.CostTable == nil {
		cfg.CostTable = DefaultCostTable()
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadYAMLFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &FatalConfigurationError{Field: "file", Message: err.Error()}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &FatalConfigurationError{Field: "file", Message: fmt.Sprintf("invalid yaml: %v", err)}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("STT_API_KEY"); v != "" {
		cfg.STT.APIKey = v
	}
	if v := os.Getenv("STT_BASE_URL"); v != "" {
		cfg.STT.BaseURL = v
	}
	if v := os.Getenv("LLM_PROVIDER"); v != "" {
		cfg.LLM.Provider = v
	}
	if v := os.Getenv("LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

// Validate checks the settings main cannot safely proceed without.
func Validate(cfg *Config) error {
	if cfg.STT.APIKey == "" {
		return &FatalConfigurationError{Field: "stt.api_key", Message: "required (set STT_API_KEY)"}
	}
	if cfg.STT.BaseURL == "" {
		return &FatalConfigurationError{Field: "stt.base_url", Message: "required (set STT_BASE_URL)"}
	}
	switch strings.ToLower(cfg.LLM.Provider) {
	case "anthropic", "openai":
	default:
		return &FatalConfigurationError{Field: "llm.provider", Message: "must be \"anthropic\" or \"openai\""}
	}
	if cfg.LLM.APIKey == "" {
		return &FatalConfigurationError{Field: "llm.api_key", Message: "required (set LLM_API_KEY)"}
	}
	if cfg.Database.Path == "" {
		return &FatalConfigurationError{Field: "database.path", Message: "required"}
	}
	return nil
}
