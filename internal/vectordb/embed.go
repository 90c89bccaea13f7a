package vectordb

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Embedder is the slice of the LLM layer this package needs.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

const (
	embedAttempts  = 3
	embedBaseDelay = 30 * time.Second
)

// sleep is replaced in tests.
var sleep = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// EmbedBatches embeds texts in fixed-size batches. A failed batch is
// retried with a linearly growing delay (30s, 60s) before giving up, which
// rides out embedding-endpoint rate limits during large index runs.
func EmbedBatches(ctx context.Context, e Embedder, texts []string, batchSize int) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		var embeddings [][]float32
		var err error
		for attempt := 1; attempt <= embedAttempts; attempt++ {
			embeddings, err = e.Embed(ctx, batch)
			if err == nil {
				break
			}
			if attempt == embedAttempts {
				return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
			}
			delay := embedBaseDelay * time.Duration(attempt)
			log.Warn().Err(err).
				Int("batch_start", start).
				Dur("retry_in", delay).
				Msg("embedding batch failed, retrying")
			if serr := sleep(ctx, delay); serr != nil {
				return nil, serr
			}
		}
		if len(embeddings) != len(batch) {
			return nil, fmt.Errorf("embed batch %d-%d: got %d embeddings for %d texts", start, end, len(embeddings), len(batch))
		}
		out = append(out, embeddings...)
	}
	return out, nil
}
