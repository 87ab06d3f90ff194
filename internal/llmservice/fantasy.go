package llmservice

import (
	"context"
	"fmt"
	"time"

	"charm.land/fantasy"
	"charm.land/fantasy/providers/anthropic"
	"charm.land/fantasy/providers/openai"
	"charm.land/fantasy/providers/openrouter"

	"support-rag/internal/config"
)

// FantasyGenerator runs prompts through a fantasy agent.
type FantasyGenerator struct {
	model   fantasy.LanguageModel
	name    string
	timeout time.Duration
}

func NewFantasyGenerator(ctx context.Context, cfg *config.LLMConfig) (*FantasyGenerator, error) {
	var provider fantasy.Provider
	var err error

	switch cfg.Provider {
	case "fantasy-openai":
		opts := []openai.Option{openai.WithAPIKey(cfg.Key)}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		provider, err = openai.New(opts...)
	case "anthropic":
		opts := []anthropic.Option{anthropic.WithAPIKey(cfg.Key)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		provider, err = anthropic.New(opts...)
	case "openrouter":
		provider, err = openrouter.New(openrouter.WithAPIKey(cfg.Key))
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	model, err := provider.LanguageModel(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("get language model: %w", err)
	}
	return &FantasyGenerator{
		model:   model,
		name:    cfg.Provider,
		timeout: time.Duration(cfg.TimeoutSec) * time.Second,
	}, nil
}

func (g *FantasyGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	result, err := fantasy.NewAgent(g.model).Generate(ctx, fantasy.AgentCall{Prompt: prompt})
	if err != nil {
		return "", Classify(fmt.Errorf("%s generate: %w", g.name, err))
	}
	return result.Response.Content.Text(), nil
}
