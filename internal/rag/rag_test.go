package rag_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-rag/internal/faq"
	"support-rag/internal/memstore"
	"support-rag/internal/models"
	"support-rag/internal/rag"
)

type countingStore struct {
	*memstore.Store
	created   int
	escalated int
}

func (s *countingStore) CreateSession(ctx context.Context, userID *string) (*models.Session, error) {
	s.created++
	return s.Store.CreateSession(ctx, userID)
}

func (s *countingStore) SetEscalated(ctx context.Context, id string) error {
	s.escalated++
	return s.Store.SetEscalated(ctx, id)
}

type fakeEmbedder struct {
	calls int
	out   any
	err   error
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) (any, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	if e.out != nil {
		return e.out, nil
	}
	return []float32{1, 0, 0}, nil
}

type fakeGenerator struct {
	calls   int
	prompts []string
	replies []string
	err     error
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	if len(g.replies) == 0 {
		return "Happy to help.", nil
	}
	r := g.replies[0]
	if len(g.replies) > 1 {
		g.replies = g.replies[1:]
	}
	return r, nil
}

type harness struct {
	store *countingStore
	emb   *fakeEmbedder
	gen   *fakeGenerator
	rag   *rag.RAG
}

func newHarness(t *testing.T, faqs ...models.FAQEntry) *harness {
	t.Helper()
	ctx := context.Background()
	store := &countingStore{Store: memstore.New()}
	for _, f := range faqs {
		require.NoError(t, store.UpsertFAQ(ctx, f))
	}
	corpus := faq.NewCorpus(store)
	_, err := corpus.Load(ctx)
	require.NoError(t, err)

	h := &harness{store: store, emb: &fakeEmbedder{}, gen: &fakeGenerator{}}
	h.rag = rag.NewRAG(store, h.emb, h.gen, corpus, rag.Options{})
	return h
}

func sampleCorpus() []models.FAQEntry {
	return []models.FAQEntry{
		{Question: "What are your business hours?", Answer: "9 to 6.", Embedding: models.Vector{1, 0, 0}},
		{Question: "How do I reset my password?", Answer: "Use the link.", Embedding: models.Vector{0.9, 0.1, 0}},
		{Question: "What is your refund policy?", Answer: "30 days.", Embedding: models.Vector{0.5, 0.5, 0}},
		{Question: "How do I contact support?", Answer: "Email us.", Embedding: models.Vector{0, 1, 0}},
		{Question: "Do you ship internationally?", Answer: "Yes.", Embedding: models.Vector{0, 0, 1}},
	}
}

func TestChatUnknownSessionCreatesNew(t *testing.T) {
	h := newHarness(t, sampleCorpus()...)

	resp, err := h.rag.Chat(context.Background(), models.ChatRequest{Message: "When are you open?", SessionID: "does-not-exist"})
	require.NoError(t, err)
	assert.NotEqual(t, "does-not-exist", resp.SessionID)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, 1, h.store.created)
}

func TestChatReusesSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleCorpus()...)

	first, err := h.rag.Chat(ctx, models.ChatRequest{Message: "hello", UserID: "u1"})
	require.NoError(t, err)
	second, err := h.rag.Chat(ctx, models.ChatRequest{Message: "hello again", SessionID: first.SessionID})
	require.NoError(t, err)

	assert.Equal(t, first.SessionID, second.SessionID)
	assert.Equal(t, 1, h.store.created)

	hist, err := h.rag.Session(ctx, first.SessionID)
	require.NoError(t, err)
	require.NotNil(t, hist.UserID)
	assert.Equal(t, "u1", *hist.UserID)
	assert.Len(t, hist.Messages, 4)
}

func TestChatDefaultConfidence(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleCorpus()...)
	h.gen.replies = []string{"We are open **9 to 6**."}

	resp, err := h.rag.Chat(ctx, models.ChatRequest{Message: "When are you open?"})
	require.NoError(t, err)
	assert.Equal(t, "We are open 9 to 6.", resp.Response)
	assert.Equal(t, 0.7, resp.Confidence)
	assert.False(t, resp.Escalated)
	assert.Equal(t, 0, h.store.escalated)

	sess, err := h.store.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.False(t, sess.Escalated)

	msgs, err := h.store.GetRecentMessages(ctx, resp.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, models.RoleUser, msgs[0].Role)
	assert.Nil(t, msgs[0].Confidence)
	assert.Equal(t, models.RoleAssistant, msgs[1].Role)
	require.NotNil(t, msgs[1].Confidence)
	assert.Equal(t, 0.7, *msgs[1].Confidence)
	require.NotNil(t, msgs[1].Metadata)
	assert.Equal(t, resp.RelevantFAQs, msgs[1].Metadata.TopFAQs)
}

func TestChatLowConfidenceEscalates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleCorpus()...)
	h.gen.replies = []string{`I am not sure. {"confidence": 0.3}`}

	resp, err := h.rag.Chat(ctx, models.ChatRequest{Message: "Can I pay with seashells?"})
	require.NoError(t, err)
	assert.Equal(t, "I am not sure.", resp.Response)
	assert.Equal(t, 0.3, resp.Confidence)
	assert.True(t, resp.Escalated)

	sess, err := h.store.GetSession(ctx, resp.SessionID)
	require.NoError(t, err)
	assert.True(t, sess.Escalated)
}

func TestChatKeywordEscalatesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleCorpus()...)
	h.gen.replies = []string{`Sure. {"confidence": 0.9}`}

	first, err := h.rag.Chat(ctx, models.ChatRequest{Message: "I want to talk to a MANAGER"})
	require.NoError(t, err)
	assert.True(t, first.Escalated)
	assert.Equal(t, 0.9, first.Confidence)

	second, err := h.rag.Chat(ctx, models.ChatRequest{Message: "This is unacceptable", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.True(t, second.Escalated)
	assert.Equal(t, 1, h.store.escalated)

	third, err := h.rag.Chat(ctx, models.ChatRequest{Message: "thanks", SessionID: first.SessionID})
	require.NoError(t, err)
	assert.False(t, third.Escalated)

	sess, err := h.store.GetSession(ctx, first.SessionID)
	require.NoError(t, err)
	assert.True(t, sess.Escalated)
}

func TestChatRelevantFAQsCapped(t *testing.T) {
	h := newHarness(t, sampleCorpus()...)

	resp, err := h.rag.Chat(context.Background(), models.ChatRequest{Message: "When are you open?"})
	require.NoError(t, err)
	require.Len(t, resp.RelevantFAQs, 3)
	assert.Equal(t, "What are your business hours?", resp.RelevantFAQs[0].Question)
	assert.InDelta(t, 1.0, resp.RelevantFAQs[0].Score, 1e-9)
	for i := 1; i < len(resp.RelevantFAQs); i++ {
		assert.GreaterOrEqual(t, resp.RelevantFAQs[i-1].Score, resp.RelevantFAQs[i].Score)
	}

	prompt := h.gen.prompts[0]
	assert.Contains(t, prompt, "FAQ5:")
	assert.NotContains(t, prompt, "FAQ6:")
}

func TestChatLargeMagnitudeQuery(t *testing.T) {
	h := newHarness(t, sampleCorpus()...)
	h.emb.out = []float64{1e200, 0, 0}

	resp, err := h.rag.Chat(context.Background(), models.ChatRequest{Message: "When are you open?"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.RelevantFAQs)
	assert.Equal(t, "What are your business hours?", resp.RelevantFAQs[0].Question)
	assert.InDelta(t, 1.0, resp.RelevantFAQs[0].Score, 1e-9)
	for _, f := range resp.RelevantFAQs {
		assert.False(t, math.IsNaN(f.Score), f.Question)
	}

	_, err = json.Marshal(resp)
	assert.NoError(t, err)
}

func TestChatEmptyCorpus(t *testing.T) {
	h := newHarness(t)

	resp, err := h.rag.Chat(context.Background(), models.ChatRequest{Message: "hello"})
	require.NoError(t, err)
	assert.Empty(t, resp.RelevantFAQs)
	assert.NotNil(t, resp.RelevantFAQs)
	assert.Contains(t, h.gen.prompts[0], models.NoFAQPlaceholder)
}

func TestChatHistoryWindow(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleCorpus()...)
	for i := 0; i < 5; i++ {
		h.gen.replies = append(h.gen.replies, fmt.Sprintf("reply-%d", i))
	}
	h.gen.replies = append(h.gen.replies, "last")

	var sessionID string
	for i := 0; i < 6; i++ {
		resp, err := h.rag.Chat(ctx, models.ChatRequest{Message: fmt.Sprintf("question-%d", i), SessionID: sessionID})
		require.NoError(t, err)
		sessionID = resp.SessionID
	}

	prompt := h.gen.prompts[5]
	assert.NotContains(t, prompt, "USER: question-2")
	assert.Contains(t, prompt, "ASSISTANT: reply-2\nUSER: question-3\nASSISTANT: reply-3\nUSER: question-4\nASSISTANT: reply-4\nUSER: question-5")
}

func TestChatEmbeddingFailures(t *testing.T) {
	tests := []struct {
		name string
		out  any
		err  error
	}{
		{name: "backend error", err: errors.New("connection refused")},
		{name: "empty vector", out: []float64{}},
		{name: "unrecognized payload", out: map[string]any{"result": "nope"}},
		{name: "wrong dimension", out: []float64{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, sampleCorpus()...)
			h.emb.out, h.emb.err = tt.out, tt.err

			_, err := h.rag.Chat(ctx, models.ChatRequest{Message: "hello", SessionID: ""})
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrEmbeddingUnavailable)
			assert.Equal(t, models.CodeEmbeddingError, models.ErrorCode(err))
			assert.Equal(t, 0, h.gen.calls)
		})
	}
}

func TestChatEmbeddingFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleCorpus()...)

	first, err := h.rag.Chat(ctx, models.ChatRequest{Message: "hello"})
	require.NoError(t, err)

	h.emb.err = errors.New("timeout")
	_, err = h.rag.Chat(ctx, models.ChatRequest{Message: "are you there?", SessionID: first.SessionID})
	require.Error(t, err)

	msgs, err := h.store.GetRecentMessages(ctx, first.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "are you there?", msgs[2].Content)
	assert.Equal(t, models.RoleUser, msgs[2].Role)
}

func TestChatGenerationFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "backend error", err: errors.New("model crashed"), code: models.CodeGenerationError},
		{name: "quota", err: fmt.Errorf("%w: 429", models.ErrRateLimited), code: models.CodeQuotaExceeded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, sampleCorpus()...)
			h.gen.err = tt.err

			resp, err := h.rag.Chat(ctx, models.ChatRequest{Message: "hello"})
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, models.ErrGenerationUnavailable)
			assert.Equal(t, tt.code, models.ErrorCode(err))
			assert.Equal(t, 0, h.store.escalated)
		})
	}
}

func TestChatRejectsInvalidMessage(t *testing.T) {
	for _, msg := range []string{"", "   ", "\n\t"} {
		h := newHarness(t, sampleCorpus()...)

		_, err := h.rag.Chat(context.Background(), models.ChatRequest{Message: msg})
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrMissingMessage)
		assert.Equal(t, 0, h.emb.calls)
		assert.Equal(t, 0, h.gen.calls)
		assert.Equal(t, 0, h.store.created)
	}
}

func TestValidateMessage(t *testing.T) {
	assert.ErrorIs(t, rag.ValidateMessage("", 10), models.ErrMissingMessage)
	assert.NoError(t, rag.ValidateMessage("héllo", 5))
	err := rag.ValidateMessage(strings.Repeat("a", 11), 10)
	assert.ErrorIs(t, err, models.ErrMessageTooLong)
	assert.Equal(t, models.CodeMessageTooLong, models.ErrorCode(err))
	assert.NoError(t, rag.ValidateMessage(strings.Repeat("a", 5000), 0))
}

func TestNewSessionAndHistory(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, sampleCorpus()...)

	sess, err := h.rag.NewSession(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, sess.UserID)
	assert.False(t, sess.Escalated)

	hist, err := h.rag.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Empty(t, hist.Messages)

	_, err = h.rag.Chat(ctx, models.ChatRequest{Message: "first", SessionID: sess.ID})
	require.NoError(t, err)
	_, err = h.rag.Chat(ctx, models.ChatRequest{Message: "second", SessionID: sess.ID})
	require.NoError(t, err)

	hist, err = h.rag.Session(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, hist.Messages, 4)
	assert.Equal(t, "first", hist.Messages[0].Content)
	assert.Equal(t, "second", hist.Messages[2].Content)
	for i := 1; i < len(hist.Messages); i++ {
		assert.False(t, hist.Messages[i].CreatedAt.Before(hist.Messages[i-1].CreatedAt))
	}

	_, err = h.rag.Session(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrSessionNotFound)
}
