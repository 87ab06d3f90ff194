// Package faq loads the FAQ corpus used for retrieval and keeps it fresh.
package faq

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"support-rag/internal/embedding"
	"support-rag/internal/models"
	"support-rag/internal/vectorindex"
)

// Store persists FAQ records. UpsertFAQ matches on the question text.
type Store interface {
	ListFAQs(ctx context.Context) ([]models.StoredFAQ, error)
	UpsertFAQ(ctx context.Context, entry models.FAQEntry) error
}

type snapshot struct {
	entries map[string]models.FAQEntry
	index   *vectorindex.Index
}

// Corpus serves retrieval from an immutable snapshot. Load builds a new
// snapshot and swaps it in, so concurrent searches never see a partial one.
type Corpus struct {
	store Store
	snap  atomic.Pointer[snapshot]
}

func NewCorpus(store Store) *Corpus {
	c := &Corpus{store: store}
	c.snap.Store(&snapshot{entries: map[string]models.FAQEntry{}, index: vectorindex.New(0)})
	return c
}

// Load reads every stored FAQ. Records whose embedding cannot be parsed, or
// whose dimension differs from the first valid record, are skipped.
func (c *Corpus) Load(ctx context.Context) (int, error) {
	recs, err := c.store.ListFAQs(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", models.ErrCorpusLoad, err)
	}

	next := &snapshot{entries: make(map[string]models.FAQEntry, len(recs)), index: vectorindex.New(0)}
	skipped := 0
	for i, rec := range recs {
		id := rec.ID
		if id == "" {
			id = fmt.Sprintf("faq-%d", i+1)
		}
		vec := parseEmbedding(rec.RawEmbedding)
		if len(vec) == 0 {
			log.Warn().Err(models.ErrCorpusLoad).Str("faq_id", id).Msg("Skipping FAQ with unusable embedding")
			skipped++
			continue
		}
		if err := next.index.Add(id, vec); err != nil {
			log.Warn().Err(err).Str("faq_id", id).Msg("Skipping FAQ")
			skipped++
			continue
		}
		source := rec.Source
		if source == "" {
			source = models.DefaultSource
		}
		next.entries[id] = models.FAQEntry{
			ID:        id,
			Question:  rec.Question,
			Answer:    rec.Answer,
			Source:    source,
			Embedding: vec,
		}
	}

	c.snap.Store(next)
	log.Info().Int("loaded", next.index.Len()).Int("skipped", skipped).Int("dim", next.index.Dim()).Msg("FAQ corpus loaded")
	return next.index.Len(), nil
}

// Search implements retrieval for chat turns.
func (c *Corpus) Search(query models.Vector, k int) ([]models.RetrievedFAQ, error) {
	s := c.snap.Load()
	matches, err := s.index.TopK(query, k)
	if err != nil {
		return nil, err
	}
	out := make([]models.RetrievedFAQ, 0, len(matches))
	for _, m := range matches {
		e := s.entries[m.ID]
		out = append(out, models.RetrievedFAQ{ID: m.ID, Question: e.Question, Answer: e.Answer, Score: m.Score})
	}
	return out, nil
}

func (c *Corpus) Len() int {
	return c.snap.Load().index.Len()
}

func parseEmbedding(raw any) models.Vector {
	switch v := raw.(type) {
	case string:
		return embedding.NormalizeJSON([]byte(v))
	case []byte:
		return embedding.NormalizeJSON(v)
	default:
		return embedding.Normalize(v)
	}
}
