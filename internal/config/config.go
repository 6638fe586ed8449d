package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/davidgr87/whats-that-sound/internal/constants"
)

// Config holds all application configuration. It is loaded once at startup
// and treated as immutable afterwards.
type Config struct {
	// Oracle selection
	Provider     string // openai, gemini, llama
	Model        string
	InferenceURL string // OpenAI-compatible endpoint; mutually exclusive with Model

	// Directories
	SourceDir string
	TargetDir string

	// Pipeline
	DBPath  string
	Workers int

	// Control plane
	Port string

	// Oracle behavior
	StreamPrompts bool
	OpenAIKey     string
	GeminiKey     string
	LlamaBaseURL  string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load parses CLI flags and environment variables with defaults. args is
// os.Args[1:]; flag errors (including -h/--help) are returned to the caller.
func Load(args []string) (*Config, error) {
	fs := flag.NewFlagSet("whats-that-sound", flag.ContinueOnError)

	cfg := &Config{
		Provider:     getEnv("INFERENCE_PROVIDER", constants.ProviderLlama),
		DBPath:       getEnv("WTS_DB_PATH", constants.DefaultDBPath),
		OpenAIKey:    getEnv("OPENAI_API_KEY", ""),
		GeminiKey:    getEnv("GEMINI_API_KEY", ""),
		LlamaBaseURL: getEnv("LLAMA_BASE_URL", constants.DefaultLlamaBaseURL),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		LogFormat:    getEnv("LOG_FORMAT", "text"),
	}

	workers := constants.DefaultWorkers
	if v, ok := os.LookupEnv("WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			workers = n
		}
	}

	fs.StringVar(&cfg.Model, "model", defaultModelForProvider(cfg.Provider), "hosted model name (requires the provider's credential env var)")
	fs.StringVar(&cfg.InferenceURL, "inference-url", "", "OpenAI-compatible inference endpoint URL")
	fs.StringVar(&cfg.SourceDir, "source-dir", "", "directory holding unsorted music (required)")
	fs.StringVar(&cfg.TargetDir, "target-dir", "", "directory receiving the organized layout (required)")
	fs.StringVar(&cfg.Port, "port", getEnv("PORT", constants.DefaultPort), "control plane listen port")
	fs.IntVar(&cfg.Workers, "workers", workers, "worker pool size")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.StreamPrompts = truthy(getEnv("STREAM_PROMPTS", ""))
	return cfg, nil
}

func defaultModelForProvider(provider string) string {
	switch provider {
	case constants.ProviderOpenAI:
		return os.Getenv("OPENAI_MODEL")
	case constants.ProviderGemini:
		return os.Getenv("GEMINI_MODEL")
	default:
		return os.Getenv("LLAMA_MODEL")
	}
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	var errors []string

	switch c.Provider {
	case constants.ProviderOpenAI, constants.ProviderGemini, constants.ProviderLlama:
	default:
		errors = append(errors, fmt.Sprintf("INFERENCE_PROVIDER must be one of: openai, gemini, llama, got: %s", c.Provider))
	}

	if c.Model == "" && c.InferenceURL == "" {
		errors = append(errors, "one of --model or --inference-url is required")
	}
	if c.Model != "" && c.InferenceURL != "" {
		errors = append(errors, "--model and --inference-url are mutually exclusive")
	}

	if c.Model != "" {
		switch c.Provider {
		case constants.ProviderOpenAI:
			if c.OpenAIKey == "" {
				errors = append(errors, "OPENAI_API_KEY is required when --model is used with provider openai")
			}
		case constants.ProviderGemini:
			if c.GeminiKey == "" {
				errors = append(errors, "GEMINI_API_KEY is required when --model is used with provider gemini")
			}
		}
	}

	if c.SourceDir == "" {
		errors = append(errors, "--source-dir is required")
	} else if info, err := os.Stat(c.SourceDir); err != nil {
		errors = append(errors, fmt.Sprintf("--source-dir does not exist: %s", c.SourceDir))
	} else if !info.IsDir() {
		errors = append(errors, fmt.Sprintf("--source-dir is not a directory: %s", c.SourceDir))
	}

	if c.TargetDir == "" {
		errors = append(errors, "--target-dir is required")
	}

	if c.DBPath == "" {
		errors = append(errors, "WTS_DB_PATH cannot be empty")
	}

	if c.Workers < 1 {
		errors = append(errors, fmt.Sprintf("workers must be at least 1, got: %d", c.Workers))
	}

	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	validLogFormats := map[string]bool{"text": true, "json": true}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
