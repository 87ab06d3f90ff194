// Package llmservice produces chat completions for the support assistant.
package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"support-rag/internal/config"
	"support-rag/internal/models"
)

// Generator turns a prompt into model output.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// LangchainGenerator calls a langchaingo model with a single prompt.
type LangchainGenerator struct {
	llm         llms.Model
	temperature float64
	maxTokens   int
	timeout     time.Duration
}

func NewLangchainGenerator(llm llms.Model, cfg *config.LLMConfig) *LangchainGenerator {
	return &LangchainGenerator{
		llm:         llm,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     time.Duration(cfg.TimeoutSec) * time.Second,
	}
}

func (g *LangchainGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	var opts []llms.CallOption
	if g.temperature > 0 {
		opts = append(opts, llms.WithTemperature(g.temperature))
	}
	if g.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(g.maxTokens))
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, prompt, opts...)
	if err != nil {
		return "", Classify(err)
	}
	return out, nil
}

// New builds the generator selected by cfg.Provider. ollama and openai go
// through langchaingo, anthropic and openrouter through fantasy.
func New(ctx context.Context, cfg *config.LLMConfig) (Generator, error) {
	log.Debug().Str("provider", cfg.Provider).Str("model", cfg.Model).Msg("Creating generator")

	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("init ollama: %w", err)
		}
		return NewLangchainGenerator(llm, cfg), nil
	case "openai":
		opts := []openai.Option{
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		llm, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("init openai: %w", err)
		}
		return NewLangchainGenerator(llm, cfg), nil
	case "anthropic", "openrouter", "fantasy-openai":
		return NewFantasyGenerator(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported chat provider: %s", cfg.Provider)
	}
}

var (
	rateLimitMarkers = []string{"quota", "rate limit", "rate_limit", "429", "too many requests"}
	apiKeyMarkers    = []string{"api key", "api_key", "401", "unauthorized", "authentication"}
	networkMarkers   = []string{"connection refused", "connection reset", "no such host", "network", "timeout", "dial tcp"}
)

// Classify tags provider failures with models.ErrRateLimited,
// models.ErrInvalidAPIKey or models.ErrNetwork. Other errors are returned
// unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	if containsAny(msg, rateLimitMarkers) {
		return fmt.Errorf("%w: %w", models.ErrRateLimited, err)
	}
	if containsAny(msg, apiKeyMarkers) {
		return fmt.Errorf("%w: %w", models.ErrInvalidAPIKey, err)
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) || containsAny(msg, networkMarkers) {
		return fmt.Errorf("%w: %w", models.ErrNetwork, err)
	}
	return err
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
