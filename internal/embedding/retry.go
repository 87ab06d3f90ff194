package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryEmbedder retries a failing embedder with exponential backoff.
// It belongs on the import path only; live chat turns do not retry.
type RetryEmbedder struct {
	next     Embedder
	attempts int
	delay    time.Duration
}

func WithRetry(next Embedder, attempts int, delay time.Duration) *RetryEmbedder {
	if attempts < 1 {
		attempts = 1
	}
	return &RetryEmbedder{next: next, attempts: attempts, delay: delay}
}

func (r *RetryEmbedder) Embed(ctx context.Context, text string) (any, error) {
	delay := r.delay
	var lastErr error
	for i := 0; i < r.attempts; i++ {
		raw, err := r.next.Embed(ctx, text)
		if err == nil {
			return raw, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", i+1).Int("attempts", r.attempts).Msg("Embedding generation failed")
		if i == r.attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return nil, fmt.Errorf("embedding failed after %d attempts: %w", r.attempts, lastErr)
}
