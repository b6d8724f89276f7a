package tokens

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/seanblong/reporover/internal/ai"
)

// EmbedBatch submits one batch, recursively bisecting it whenever the
// provider reports an over-token-limit rejection despite our estimate.
// Recursion bottoms out at single-text batches: a lone text that still
// exceeds the provider limit fails for that text only, leaving a nil vector
// in its slot so the caller can skip it. The returned slice is always
// aligned with the input batch. failed counts the texts that could not be
// embedded.
func EmbedBatch(ctx context.Context, client ai.Client, batch []string) (vecs [][]float32, failed int, err error) {
	if len(batch) == 0 {
		return nil, 0, nil
	}

	vecs, err = client.EmbedMany(ctx, batch)
	if err == nil {
		if len(vecs) != len(batch) {
			return nil, 0, fmt.Errorf("embedding count mismatch: got %d for %d texts", len(vecs), len(batch))
		}
		return vecs, 0, nil
	}
	if !errors.Is(err, ai.ErrTokenLimit) {
		return nil, 0, err
	}
	if len(batch) == 1 {
		log.Error().Err(err).Int("chars", len(batch[0])).Msg("single text exceeds provider token limit, skipping")
		return [][]float32{nil}, 1, nil
	}

	mid := len(batch) / 2
	log.Warn().Int("batch", len(batch)).Msg("batch over provider token limit, bisecting")

	left, lf, err := EmbedBatch(ctx, client, batch[:mid])
	if err != nil {
		return nil, 0, err
	}
	right, rf, err := EmbedBatch(ctx, client, batch[mid:])
	if err != nil {
		return nil, 0, err
	}
	return append(left, right...), lf + rf, nil
}
