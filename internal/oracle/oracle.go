// Package oracle wraps the external text-generation service behind a
// one-shot prompt→string capability.
package oracle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/davidgr87/whats-that-sound/internal/config"
	"github.com/davidgr87/whats-that-sound/internal/constants"
	"github.com/davidgr87/whats-that-sound/internal/logger"
)

// Oracle is the one-shot text-generation capability. Generate must be
// side-effect free from the caller's perspective; it may block for the
// duration of the transport timeout.
type Oracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LLM is the provider-backed Oracle. The concrete backend is selected by
// configuration; credential problems surface at construction, not per call.
type LLM struct {
	model   llms.Model
	stream  bool
	timeout time.Duration
	log     *logger.Logger
}

// New builds the configured oracle backend.
func New(cfg *config.Config, log *logger.Logger) (*LLM, error) {
	model, err := buildModel(cfg)
	if err != nil {
		return nil, err
	}

	timeout := constants.DefaultOracleTimeout
	if cfg.StreamPrompts {
		timeout = constants.StreamOracleTimeout
	}

	return &LLM{
		model:   model,
		stream:  cfg.StreamPrompts,
		timeout: timeout,
		log:     log.WithComponent("oracle"),
	}, nil
}

func buildModel(cfg *config.Config) (llms.Model, error) {
	// A user-supplied inference URL is always an OpenAI-compatible endpoint
	// (llama.cpp, vLLM, Ollama's /v1), whatever the provider setting says.
	if cfg.InferenceURL != "" {
		return openAICompatible(cfg.InferenceURL, cfg.Model, cfg.OpenAIKey)
	}

	switch cfg.Provider {
	case constants.ProviderOpenAI:
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("provider openai requires OPENAI_API_KEY")
		}
		model, err := openai.New(
			openai.WithToken(cfg.OpenAIKey),
			openai.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build openai client: %w", err)
		}
		return model, nil

	case constants.ProviderGemini:
		if cfg.GeminiKey == "" {
			return nil, fmt.Errorf("provider gemini requires GEMINI_API_KEY")
		}
		model, err := googleai.New(context.Background(),
			googleai.WithAPIKey(cfg.GeminiKey),
			googleai.WithDefaultModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build gemini client: %w", err)
		}
		return model, nil

	case constants.ProviderLlama:
		base := cfg.LlamaBaseURL
		if strings.HasSuffix(strings.TrimRight(base, "/"), "/v1") {
			return openAICompatible(base, cfg.Model, cfg.OpenAIKey)
		}
		model, err := ollama.New(
			ollama.WithServerURL(base),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to build ollama client: %w", err)
		}
		return model, nil
	}
	return nil, fmt.Errorf("unknown inference provider: %s", cfg.Provider)
}

func openAICompatible(baseURL, model, token string) (llms.Model, error) {
	if token == "" {
		// Local servers ignore the token but the client requires one.
		token = "not-needed"
	}
	if model == "" {
		model = "default"
	}
	m, err := openai.New(
		openai.WithBaseURL(baseURL),
		openai.WithToken(token),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build openai-compatible client for %s: %w", baseURL, err)
	}
	return m, nil
}

// Generate sends one prompt and returns the full completion text.
func (o *LLM) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	opts := []llms.CallOption{}
	if o.stream {
		opts = append(opts, llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
			// Streaming is transparent to callers; chunks only feed logs.
			o.log.Debug("stream chunk", "bytes", len(chunk))
			return nil
		}))
	}

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, o.model, prompt, opts...)
	if err != nil {
		return "", fmt.Errorf("oracle generate failed: %w", err)
	}
	o.log.Debug("oracle call complete", "duration", time.Since(start), "prompt_len", len(prompt), "response_len", len(out))
	return out, nil
}

// Func adapts a plain function to the Oracle interface (used by tests).
type Func func(ctx context.Context, prompt string) (string, error)

func (f Func) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}
