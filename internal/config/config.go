// Package config loads the korrektor configuration from an optional YAML
// file with environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP service.
type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" validate:"gt=0"`
}

// AuthorConfig is the identity comments are attributed to.
type AuthorConfig struct {
	Name     string `yaml:"name" validate:"required"`
	Initials string `yaml:"initials" validate:"required"`
}

// AnalyzerConfig configures the upstream suggestion producer.
type AnalyzerConfig struct {
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	APIKeyEnv      string  `yaml:"api_key_env"`
	TimeoutSeconds int     `yaml:"timeout_seconds" validate:"gte=0"`
	Temperature    float64 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxSuggestions int     `yaml:"max_suggestions" validate:"gte=0"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=trace debug info warn error off"`
	Format string `yaml:"format" validate:"oneof=console json"`
}

// BatchConfig configures the multi-document runner.
type BatchConfig struct {
	Concurrency int `yaml:"concurrency" validate:"gt=0"`
}

// Config is the full korrektor configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Author   AuthorConfig   `yaml:"author"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Log      LogConfig      `yaml:"log"`
	Batch    BatchConfig    `yaml:"batch"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:           ":8085",
			MaxUploadBytes: 32 << 20,
		},
		Author: AuthorConfig{
			Name:     "Korrektor",
			Initials: "KR",
		},
		Analyzer: AnalyzerConfig{
			BaseURL:        "https://api.openai.com/v1",
			Model:          "gpt-4.1-mini",
			APIKeyEnv:      "OPENAI_API_KEY",
			TimeoutSeconds: 60,
			Temperature:    0.2,
			MaxSuggestions: 25,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Batch: BatchConfig{
			Concurrency: 4,
		},
	}
}

// Load reads the configuration from path (if non-empty), applies
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides config fields from KORREKTOR_* variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("KORREKTOR_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("KORREKTOR_AUTHOR"); v != "" {
		cfg.Author.Name = v
	}
	if v := os.Getenv("KORREKTOR_INITIALS"); v != "" {
		cfg.Author.Initials = v
	}
	if v := os.Getenv("KORREKTOR_ANALYZER_BASE_URL"); v != "" {
		cfg.Analyzer.BaseURL = v
	}
	if v := os.Getenv("KORREKTOR_ANALYZER_MODEL"); v != "" {
		cfg.Analyzer.Model = v
	}
	if v := os.Getenv("KORREKTOR_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("KORREKTOR_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("KORREKTOR_BATCH_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Batch.Concurrency = n
		}
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
