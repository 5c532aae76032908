// Package tokencount provides pluggable token estimators. Estimate
// never needs to be exact: the chunker only needs a stable, monotonic
// proxy for how much text a model call will cost.
package tokencount

import (
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"
)

// Estimator is the abstract contract every chunk-sizing decision is
// built on: approximate the token count for a string.
type Estimator interface {
	Estimate(text string) int
}

// wordsPerToken is the fixed multiplier the default estimator uses to
// turn a whitespace-delimited word count into a token estimate.
const wordsPerToken = 1.3

// Simple estimates tokens as word count times a fixed multiplier. It
// needs no external model and is the default estimator when a precise
// tokenizer isn't configured.
type Simple struct{}

// Estimate returns len(strings.Fields(text)) scaled by wordsPerToken,
// truncated toward zero to match the reference estimator's int() cast.
func (Simple) Estimate(text string) int {
	words := len(strings.Fields(text))
	return int(float64(words) * wordsPerToken)
}

// Tiktoken estimates tokens precisely using the GPT-4o byte-pair
// encoding. It is slower than Simple but exact for the models that
// share that vocabulary, and close enough for the others.
type Tiktoken struct {
	enc tokenizer.Codec
}

// NewTiktoken loads the GPT-4o encoder once and returns an Estimator
// backed by it.
func NewTiktoken() (Tiktoken, error) {
	enc, err := tokenizer.ForModel(tokenizer.GPT4o)
	if err != nil {
		return Tiktoken{}, fmt.Errorf("failed to load tiktoken encoder: %w", err)
	}
	return Tiktoken{enc: enc}, nil
}

// Estimate returns the exact number of GPT-4o tokens in text, or 0 if
// encoding fails (estimators never error — a failed precise count just
// falls back to no signal rather than aborting the caller).
func (t Tiktoken) Estimate(text string) int {
	if text == "" {
		return 0
	}
	ids, _, err := t.enc.Encode(text)
	if err != nil {
		return 0
	}
	return len(ids)
}

// Encode exposes the underlying token IDs for callers (the sliding
// window chunker) that need to slice text by token boundary rather
// than merely count tokens.
func (t Tiktoken) Encode(text string) ([]uint, error) {
	ids, _, err := t.enc.Encode(text)
	return ids, err
}

// Decode turns token IDs back into text.
func (t Tiktoken) Decode(ids []uint) (string, error) {
	return t.enc.Decode(ids)
}
