package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"support-rag/internal/config"
)

// Embedder returns the raw payload of an embedding backend for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) (any, error)
}

// LangchainEmbedder adapts a langchaingo embedder.
type LangchainEmbedder struct {
	embedder embeddings.Embedder
	timeout  time.Duration
}

func NewLangchainEmbedder(e embeddings.Embedder, timeout time.Duration) *LangchainEmbedder {
	return &LangchainEmbedder{embedder: e, timeout: timeout}
}

func (e *LangchainEmbedder) Embed(ctx context.Context, text string) (any, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	vec, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

// New builds the embedder selected by cfg.Provider.
func New(cfg *config.LLMConfig) (Embedder, error) {
	log.Debug().Interface("config", map[string]string{
		"provider": cfg.Provider,
		"base_url": cfg.BaseURL,
		"model":    cfg.Model,
	}).Msg("Creating embedder")

	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	switch cfg.Provider {
	case "ollama":
		e, err := NewOllamaEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return NewLangchainEmbedder(e, timeout), nil
	case "openai":
		e, err := NewOpenAIEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return NewLangchainEmbedder(e, timeout), nil
	case "http":
		return NewHTTPEmbedder(cfg.BaseURL, cfg.Model, cfg.Key, timeout), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

func NewOllamaEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	llm, err := ollama.New(
		ollama.WithServerURL(cfg.BaseURL),
		ollama.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("init ollama: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}

func NewOpenAIEmbedder(cfg *config.LLMConfig) (*embeddings.EmbedderImpl, error) {
	opts := []openai.Option{
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("init openai: %w", err)
	}
	return embeddings.NewEmbedder(llm)
}
