// Package config loads siteobserver settings.
//
// Values are resolved in this order, later sources winning: built-in
// defaults, an optional YAML file, then environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// DefaultSafetyHints seeds the keyword proposal prompt
var DefaultSafetyHints = []string{
	"no helmet", "no gloves", "no safety vest", "no goggles",
	"improper harness", "exposed rebar", "trip hazard", "damaged cable",
	"blocked fire exit", "working at height without guardrails",
	"unstable ladder", "overloaded scaffold", "no ear protection",
	"improper footwear", "sparks near flammables", "poor housekeeping",
}

type Config struct {
	// Server
	Port           int      `yaml:"port" env:"PORT"`
	TempDir        string   `yaml:"temp_dir" env:"TEMP_DIR"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	MaxDimension   int      `yaml:"max_dimension" env:"MAX_IMAGE_DIMENSION"`
	MaxPixels      int64    `yaml:"max_pixels" env:"MAX_IMAGE_PIXELS"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`

	// Vision model
	Provider       string        `yaml:"provider" env:"VISION_PROVIDER"`
	Model          string        `yaml:"model" env:"VISION_MODEL"`
	Temperature    float64       `yaml:"temperature" env:"VISION_TEMPERATURE"`
	RequestTimeout time.Duration `yaml:"request_timeout" env:"VISION_TIMEOUT"`
	OpenAIAPIKey   string        `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	OpenAIBaseURL  string        `yaml:"openai_base_url" env:"OPENAI_BASE_URL"`
	OllamaURL      string        `yaml:"ollama_url" env:"OLLAMA_URL"`
	GeminiAPIKey   string        `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`

	// Prompting
	SafetyHints []string `yaml:"safety_hints" env:"SAFETY_HINTS" envSeparator:","`

	// Logging
	LogLevel  string `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat string `yaml:"log_format" env:"LOG_FORMAT"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		Port:           8000,
		TempDir:        "temp_images",
		MaxUploadBytes: 10 * 1024 * 1024,
		MaxPixels:      89_478_485,
		AllowedOrigins: []string{"http://localhost:3000"},
		Provider:       ProviderOpenAI,
		Temperature:    0.2,
		RequestTimeout: 90 * time.Second,
		OpenAIBaseURL:  "https://api.openai.com/v1",
		OllamaURL:      "http://localhost:11434",
		SafetyHints:    append([]string(nil), DefaultSafetyHints...),
		LogLevel:       "info",
		LogFormat:      "text",
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and the environment. Overrides, typically command-line
// flags, are applied last and before validation.
func Load(path string, overrides ...func(*Config)) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	for _, override := range overrides {
		override(cfg)
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel(cfg.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// Validate checks that the configuration can run the service
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for the openai provider"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY is required for the gemini provider"))
		}
	case ProviderOllama:
	default:
		errs = append(errs, fmt.Errorf("unsupported provider: %q", c.Provider))
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port: %d", c.Port))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("max_upload_bytes must be positive"))
	}
	if c.MaxDimension < 0 {
		errs = append(errs, errors.New("max_dimension cannot be negative"))
	}
	if c.MaxPixels <= 0 {
		errs = append(errs, errors.New("max_pixels must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request_timeout must be positive"))
	}
	if strings.TrimSpace(c.TempDir) == "" {
		errs = append(errs, errors.New("temp_dir cannot be empty"))
	}

	return errors.Join(errs...)
}

// DefaultModel returns the model used by a provider when none is configured
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o"
	case ProviderOllama:
		return "llava:13b"
	case ProviderGemini:
		return "gemini-1.5-flash"
	default:
		return ""
	}
}
