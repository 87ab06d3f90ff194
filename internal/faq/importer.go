package faq

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"support-rag/internal/embedding"
	"support-rag/internal/models"
)

// Importer embeds FAQ answers and upserts them into a Store.
type Importer struct {
	store    Store
	embedder embedding.Embedder
	pace     time.Duration
}

// NewImporter wires an importer. The embedder is expected to carry its own
// retry policy (see embedding.WithRetry); pace is the pause after each
// successful import.
func NewImporter(store Store, embedder embedding.Embedder, pace time.Duration) *Importer {
	return &Importer{store: store, embedder: embedder, pace: pace}
}

// Import processes entries one by one. Invalid entries and per-entry
// failures are counted, not fatal. Only context cancellation aborts the run.
func (im *Importer) Import(ctx context.Context, entries []models.FAQEntry) (models.ImportSummary, error) {
	var sum models.ImportSummary
	log.Info().Int("faqs", len(entries)).Msg("Starting FAQ import")

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		e.Question = strings.TrimSpace(e.Question)
		e.Answer = strings.TrimSpace(e.Answer)
		if e.Question == "" || e.Answer == "" {
			log.Warn().Str("question", preview(e.Question)).Msg("Skipping invalid FAQ (missing question or answer)")
			sum.Errors++
			continue
		}
		if e.Source == "" {
			e.Source = models.DefaultSource
		}

		if err := im.importOne(ctx, e); err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			log.Error().Err(err).Str("question", preview(e.Question)).Msg("Error importing FAQ")
			sum.Errors++
			continue
		}
		sum.Imported++
		log.Debug().Str("question", preview(e.Question)).Msg("Imported FAQ")

		if im.pace > 0 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(im.pace):
			}
		}
	}

	log.Info().Int("imported", sum.Imported).Int("errors", sum.Errors).Msg("FAQ import complete")
	return sum, nil
}

func (im *Importer) importOne(ctx context.Context, e models.FAQEntry) error {
	raw, err := im.embedder.Embed(ctx, e.Answer)
	if err != nil {
		return fmt.Errorf("%w: %w", models.ErrEmbeddingUnavailable, err)
	}
	e.Embedding = embedding.Normalize(raw)
	if len(e.Embedding) == 0 {
		return models.ErrInvalidEmbedding
	}
	if err := im.store.UpsertFAQ(ctx, e); err != nil {
		return fmt.Errorf("store faq: %w", err)
	}
	return nil
}

func preview(s string) string {
	r := []rune(s)
	if len(r) > 50 {
		return string(r[:50]) + "..."
	}
	return s
}
