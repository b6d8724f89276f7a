// Package tokens estimates token costs and partitions chunk texts into
// batches that respect a provider's per-request token ceiling.
package tokens

import (
	"github.com/pkoukk/tiktoken-go"
)

const fallbackCharsPerToken = 3

// Estimator counts tokens for a target embedding model. When the exact
// tokenizer is unavailable it falls back to a conservative character-based
// approximation that errs on the high side.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// NewEstimator builds an estimator for the given model name. The model may be
// unknown to the tokenizer; the estimator still works via the fallback.
func NewEstimator(model string) *Estimator {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			enc = nil
		}
	}
	return &Estimator{enc: enc}
}

// Count returns the estimated token count of text, never less than 1.
func (e *Estimator) Count(text string) int {
	if e != nil && e.enc != nil {
		if n := len(e.enc.Encode(text, nil, nil)); n > 0 {
			return n
		}
		return 1
	}
	n := len(text) / fallbackCharsPerToken
	if n < 1 {
		n = 1
	}
	return n
}

// Pack partitions texts, in order, into batches whose estimated token sums do
// not exceed ceiling. Packing is greedy: a text joins the current batch
// unless it would push the batch over the ceiling. A single text larger than
// the ceiling still gets its own batch; the provider decides its fate.
func (e *Estimator) Pack(texts []string, ceiling int) [][]string {
	if len(texts) == 0 {
		return nil
	}

	var batches [][]string
	var current []string
	currentTokens := 0
	for _, t := range texts {
		n := e.Count(t)
		if len(current) > 0 && currentTokens+n > ceiling {
			batches = append(batches, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, t)
		currentTokens += n
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}
