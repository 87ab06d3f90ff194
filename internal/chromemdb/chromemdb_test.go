package chromemdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"support-rag/internal/embedding"
	"support-rag/internal/models"
	"support-rag/internal/vectorindex"
)

func TestUpsertAndList(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), "faqs", true, "")
	require.NoError(t, err)

	require.NoError(t, s.UpsertFAQ(ctx, models.FAQEntry{Question: "How do I reset my password?", Answer: "Use the link.", Source: "account", Embedding: models.Vector{1, 0, 0}}))
	require.NoError(t, s.UpsertFAQ(ctx, models.FAQEntry{Question: "Refunds?", Answer: "30 days.", Source: "billing", Embedding: models.Vector{0, 1, 0}}))
	require.NoError(t, s.UpsertFAQ(ctx, models.FAQEntry{Question: "How do I reset my password?", Answer: "Use the reset link.", Source: "account", Embedding: models.Vector{0, 0, 2}}))

	faqs, err := s.ListFAQs(ctx)
	require.NoError(t, err)
	require.Len(t, faqs, 2)

	assert.Equal(t, "faq-00001", faqs[0].ID)
	assert.Equal(t, "Use the reset link.", faqs[0].Answer)
	assert.Equal(t, "account", faqs[0].Source)
	assert.Equal(t, "faq-00002", faqs[1].ID)

	vec := embedding.Normalize(faqs[0].RawEmbedding)
	require.Len(t, vec, 3)
	sim, err := vectorindex.Cosine(vec, models.Vector{0, 0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-6)
}

func TestUpsertRejectsMissingEmbedding(t *testing.T) {
	s, err := New(t.TempDir(), "faqs", true, "")
	require.NoError(t, err)
	err = s.UpsertFAQ(context.Background(), models.FAQEntry{Question: "q", Answer: "a"})
	assert.ErrorIs(t, err, models.ErrInvalidEmbedding)
}

func TestDropFAQs(t *testing.T) {
	ctx := context.Background()
	s, err := New(t.TempDir(), "faqs", true, "")
	require.NoError(t, err)
	require.NoError(t, s.UpsertFAQ(ctx, models.FAQEntry{Question: "q", Answer: "a", Embedding: models.Vector{1}}))

	require.NoError(t, s.DropFAQs(ctx))
	faqs, err := s.ListFAQs(ctx)
	require.NoError(t, err)
	assert.Empty(t, faqs)
}

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	key := "0123456789abcdef0123456789abcdef"
	src, err := New(t.TempDir(), "faqs", true, key)
	require.NoError(t, err)
	require.NoError(t, src.UpsertFAQ(ctx, models.FAQEntry{Question: "q1", Answer: "a1", Embedding: models.Vector{1, 1}}))
	require.NoError(t, src.UpsertFAQ(ctx, models.FAQEntry{Question: "q2", Answer: "a2", Embedding: models.Vector{1, -1}}))

	path := filepath.Join(t.TempDir(), "export", "faqs.chromem")
	require.NoError(t, src.Export(path))

	dst, err := New(t.TempDir(), "faqs", true, key)
	require.NoError(t, err)
	require.NoError(t, dst.Import(path))

	faqs, err := dst.ListFAQs(ctx)
	require.NoError(t, err)
	require.Len(t, faqs, 2)
	assert.Equal(t, "q1", faqs[0].Question)
	assert.Equal(t, "a2", faqs[1].Answer)
}
