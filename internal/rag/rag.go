package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"support-rag/internal/embedding"
	"support-rag/internal/models"
)

// Store persists sessions and their messages. GetSession returns
// models.ErrSessionNotFound for unknown ids. GetRecentMessages returns the
// newest limit messages in chronological order; limit <= 0 returns all.
type Store interface {
	GetSession(ctx context.Context, id string) (*models.Session, error)
	CreateSession(ctx context.Context, userID *string) (*models.Session, error)
	TouchSession(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, msg *models.Message) error
	GetRecentMessages(ctx context.Context, sessionID string, limit int) ([]models.Message, error)
	SetEscalated(ctx context.Context, id string) error
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever ranks the FAQ corpus against a query vector.
type Retriever interface {
	Search(query models.Vector, k int) ([]models.RetrievedFAQ, error)
}

type Options struct {
	TopK         int
	HistoryLimit int
	RelevantFAQs int
	Policy       EscalationPolicy
}

func (o *Options) applyDefaults() {
	if o.TopK <= 0 {
		o.TopK = models.DefaultTopK
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = models.DefaultHistoryLimit
	}
	if o.RelevantFAQs <= 0 {
		o.RelevantFAQs = models.DefaultRelevantFAQs
	}
	if o.Policy.Threshold == 0 && len(o.Policy.Keywords) == 0 {
		o.Policy = DefaultEscalationPolicy()
	}
}

// RAG runs chat turns: retrieve FAQs for a message, ask the model, score
// the answer and decide on escalation.
type RAG struct {
	store     Store
	embedder  embedding.Embedder
	generator Generator
	retriever Retriever
	opts      Options
}

func NewRAG(store Store, embedder embedding.Embedder, generator Generator, retriever Retriever, opts Options) *RAG {
	opts.applyDefaults()
	return &RAG{
		store:     store,
		embedder:  embedder,
		generator: generator,
		retriever: retriever,
		opts:      opts,
	}
}

// ValidateMessage checks a message at the boundary, before any backend is called.
func ValidateMessage(message string, maxLen int) error {
	if strings.TrimSpace(message) == "" {
		return models.ErrMissingMessage
	}
	if maxLen > 0 && utf8.RuneCountInString(message) > maxLen {
		return fmt.Errorf("%w: %d characters, max %d", models.ErrMessageTooLong, utf8.RuneCountInString(message), maxLen)
	}
	return nil
}

// Chat processes one turn. The user message is stored before the backends
// are called and is not rolled back if they fail.
func (r *RAG) Chat(ctx context.Context, req models.ChatRequest) (*models.ChatResponse, error) {
	if err := ValidateMessage(req.Message, 0); err != nil {
		return nil, err
	}

	session, err := r.resolveSession(ctx, req.SessionID, req.UserID)
	if err != nil {
		return nil, err
	}
	logger := log.With().Str("session_id", session.ID).Logger()

	if err := r.store.AppendMessage(ctx, &models.Message{
		SessionID: session.ID,
		Role:      models.RoleUser,
		Content:   req.Message,
	}); err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	raw, err := r.embedder.Embed(ctx, req.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}
	query := embedding.Normalize(raw)
	if len(query) == 0 {
		return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, models.ErrInvalidEmbedding)
	}

	faqs, err := r.retriever.Search(query, r.opts.TopK)
	if err != nil {
		if errors.Is(err, models.ErrDimensionMismatch) {
			return nil, fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
		}
		return nil, fmt.Errorf("search faqs: %w", err)
	}
	logger.Debug().Int("matches", len(faqs)).Msg("Retrieved FAQs")

	history, err := r.store.GetRecentMessages(ctx, session.ID, r.opts.HistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	prompt := BuildPrompt(req.Message, faqs, history)
	output, err := r.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrGenerationUnavailable, err)
	}

	confidence := ExtractConfidence(output)
	answer := CleanText(output)
	top := summarize(faqs, r.opts.RelevantFAQs)

	if err := r.store.AppendMessage(ctx, &models.Message{
		SessionID:  session.ID,
		Role:       models.RoleAssistant,
		Content:    answer,
		Confidence: &confidence,
		Metadata:   &models.MessageMetadata{TopFAQs: top},
	}); err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}

	escalate := r.opts.Policy.ShouldEscalate(req.Message, confidence)
	if escalate && !session.Escalated {
		if err := r.store.SetEscalated(ctx, session.ID); err != nil {
			return nil, fmt.Errorf("escalate session: %w", err)
		}
		logger.Info().Float64("confidence", confidence).Msg("Session escalated")
	}

	logger.Info().
		Float64("confidence", confidence).
		Bool("escalated", escalate).
		Msg("Chat turn completed")

	return &models.ChatResponse{
		Response:     answer,
		Confidence:   confidence,
		SessionID:    session.ID,
		Escalated:    escalate,
		RelevantFAQs: top,
	}, nil
}

// NewSession creates an empty session.
func (r *RAG) NewSession(ctx context.Context, userID string) (*models.Session, error) {
	return r.store.CreateSession(ctx, optional(userID))
}

// Session returns a session with its full history, oldest first.
func (r *RAG) Session(ctx context.Context, id string) (*models.SessionHistory, error) {
	s, err := r.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	msgs, err := r.store.GetRecentMessages(ctx, id, 0)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	return &models.SessionHistory{Session: *s, Messages: msgs}, nil
}

// resolveSession looks up id and falls back to a new session when the id
// is empty or unknown.
func (r *RAG) resolveSession(ctx context.Context, id, userID string) (*models.Session, error) {
	if id != "" {
		s, err := r.store.GetSession(ctx, id)
		switch {
		case err == nil:
			if err := r.store.TouchSession(ctx, s.ID); err != nil {
				return nil, fmt.Errorf("touch session: %w", err)
			}
			return s, nil
		case errors.Is(err, models.ErrSessionNotFound):
			log.Debug().Str("session_id", id).Msg("Unknown session, creating a new one")
		default:
			return nil, fmt.Errorf("get session: %w", err)
		}
	}

	s, err := r.store.CreateSession(ctx, optional(userID))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return s, nil
}

func summarize(faqs []models.RetrievedFAQ, n int) []models.FAQSummary {
	if len(faqs) < n {
		n = len(faqs)
	}
	out := make([]models.FAQSummary, 0, n)
	for _, f := range faqs[:n] {
		out = append(out, models.FAQSummary{Question: f.Question, Score: f.Score})
	}
	return out
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
