package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ProviderConfig configures a single classification provider instance.
type ProviderConfig struct {
	Type              string        `yaml:"type"` // "gemini" or "openrouter"
	APIKey            string        `yaml:"api_key"`
	ModelName         string        `yaml:"model_name"`
	MaxRetries        int           `yaml:"max_retries"`
	RetryDelay        time.Duration `yaml:"retry_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// Config holds the application's configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Dev  bool   `yaml:"dev"`
	} `yaml:"server"`

	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`

	// Publishing platform the core emits effects to and fetches chapter
	// content from.
	Platform struct {
		URL            string `yaml:"url"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"platform"`

	Analysis struct {
		PolicyCategory string `yaml:"policy_category"`
		MaxAttempts    int    `yaml:"max_attempts"`
		MaxConcurrent  int64  `yaml:"max_concurrent"`
		TimeoutSeconds int64  `yaml:"timeout_seconds"`
	} `yaml:"analysis"`

	// Multiple providers configuration.
	Providers []ProviderConfig `yaml:"providers"`

	// Legacy single provider config (fallback).
	Gemini struct {
		APIKey     string `yaml:"api_key"`
		ModelName  string `yaml:"model_name"`
		MaxRetries int    `yaml:"max_retries"`
	} `yaml:"gemini"`

	MaxFailuresBeforeSwitch int `yaml:"max_failures_before_switch"`

	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`

	// Optional Telegram alerts for newly blocked chapters.
	Alerts struct {
		Enabled  bool   `yaml:"enabled"`
		BotToken string `yaml:"telegram_bot_token"`
		ChatID   int64  `yaml:"telegram_chat_id"`
	} `yaml:"alerts"`
}

// LoadConfig reads configuration from the specified YAML file.
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Set defaults
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}

	if config.Analysis.PolicyCategory == "" {
		config.Analysis.PolicyCategory = "posting-rules"
	}

	if config.Analysis.MaxAttempts == 0 {
		config.Analysis.MaxAttempts = 3
	}

	if config.Analysis.MaxConcurrent == 0 {
		config.Analysis.MaxConcurrent = 4
	}

	if config.Analysis.TimeoutSeconds == 0 {
		config.Analysis.TimeoutSeconds = 120
	}

	if config.Platform.TimeoutSeconds == 0 {
		config.Platform.TimeoutSeconds = 10
	}

	if config.Gemini.ModelName == "" {
		config.Gemini.ModelName = "gemini-2.0-flash-exp"
	}

	if config.Gemini.MaxRetries == 0 {
		config.Gemini.MaxRetries = 3
	}

	if config.MaxFailuresBeforeSwitch == 0 {
		config.MaxFailuresBeforeSwitch = 3
	}

	// Expand environment variables in secrets
	for i := range config.Providers {
		config.Providers[i].APIKey = os.ExpandEnv(config.Providers[i].APIKey)
	}
	config.Gemini.APIKey = os.ExpandEnv(config.Gemini.APIKey)
	config.Auth.JWTSecret = os.ExpandEnv(config.Auth.JWTSecret)
	config.Alerts.BotToken = os.ExpandEnv(config.Alerts.BotToken)
	config.Database.URL = os.ExpandEnv(config.Database.URL)

	return config, nil
}
