package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig(t *testing.T) *Config {
	t.Helper()
	return &Config{
		Provider:     "llama",
		InferenceURL: "http://localhost:8000/v1",
		SourceDir:    t.TempDir(),
		TargetDir:    "/tmp/library",
		DBPath:       "test.db",
		Workers:      4,
		Port:         "8080",
		LogLevel:     "info",
		LogFormat:    "text",
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	assert.NoError(t, validConfig(t).Validate())
}

func TestValidateRejectsBadProvider(t *testing.T) {
	cfg := validConfig(t)
	cfg.Provider = "skynet"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "INFERENCE_PROVIDER")
}

func TestValidateModelAndURLAreExclusive(t *testing.T) {
	cfg := validConfig(t)
	cfg.Model = "llama3"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	cfg.Model = ""
	cfg.InferenceURL = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one of --model or --inference-url")
}

func TestValidateRequiresCredentialsForHostedProviders(t *testing.T) {
	cfg := validConfig(t)
	cfg.Provider = "openai"
	cfg.InferenceURL = ""
	cfg.Model = "gpt-4o-mini"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")

	cfg.OpenAIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	cfg.Provider = "gemini"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestValidateDirectories(t *testing.T) {
	cfg := validConfig(t)
	cfg.SourceDir = "/does/not/exist"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--source-dir does not exist")

	cfg = validConfig(t)
	cfg.TargetDir = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--target-dir is required")
}

func TestValidateAggregatesErrors(t *testing.T) {
	cfg := validConfig(t)
	cfg.Workers = 0
	cfg.Port = "not-a-port"
	cfg.LogLevel = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workers must be at least 1")
	assert.Contains(t, err.Error(), "PORT must be a valid number")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestValidatePortRange(t *testing.T) {
	cfg := validConfig(t)
	cfg.Port = "70000"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 65535")
}

func TestLoadFlagsAndDefaults(t *testing.T) {
	src := t.TempDir()
	cfg, err := Load([]string{
		"--inference-url", "http://localhost:8000/v1",
		"--source-dir", src,
		"--target-dir", "/tmp/library",
		"--workers", "2",
	})
	require.NoError(t, err)
	assert.Equal(t, src, cfg.SourceDir)
	assert.Equal(t, 2, cfg.Workers)
	assert.NotEmpty(t, cfg.Port)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoadRejectsUnknownFlag(t *testing.T) {
	_, err := Load([]string{"--no-such-flag"})
	assert.Error(t, err)
}

func TestTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", "on"} {
		assert.True(t, truthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "off", "nope"} {
		assert.False(t, truthy(v), v)
	}
}
