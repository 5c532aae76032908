package chunker

import (
	"fmt"
	"strings"

	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/tokencount"
)

// Default overlap and size used by SlidingWindow when its fields are
// left at zero.
const (
	defaultWindowMaxTokens     = 1200
	defaultWindowOverlapTokens = 100
)

// SlidingWindow is a fallback chunking strategy used by Normalizer for
// the one case the boundary-aware passes can't improve on: a single
// sentence with no further punctuation to split on that still exceeds
// the configured token budget. Fixed-size, fixed-overlap token windows
// with no regard for sentence or chapter structure beat emitting one
// oversize chunk.
type SlidingWindow struct {
	MaxTokens     int
	OverlapTokens int
}

// Chunk splits content into overlapping token windows using tk to
// encode and decode. Unlike the boundary-aware Chunker, every chunk
// here belongs to source section 0 — callers needing section breaks
// should prefer the boundary-aware path.
func (w SlidingWindow) Chunk(content string, tk tokencount.Tiktoken) ([]tenlib.Chunk, error) {
	ids, err := tk.Encode(content)
	if err != nil {
		return nil, fmt.Errorf("failed to encode content: %w", err)
	}

	maxTokens := w.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultWindowMaxTokens
	}
	overlap := w.OverlapTokens
	if overlap == 0 {
		overlap = defaultWindowOverlapTokens
	}

	var chunks []tenlib.Chunk
	for index, start := 0, 0; start < len(ids); index, start = index+1, start+maxTokens-overlap {
		end := start + maxTokens
		if end > len(ids) {
			end = len(ids)
		}

		text, err := tk.Decode(ids[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to decode window: %w", err)
		}

		chunks = append(chunks, tenlib.Chunk{
			ChunkIndex:     index,
			Original:       strings.TrimSpace(text),
			TokenEstimated: end - start,
			SourceSection:  0,
			Status:         tenlib.ChunkPending,
		})
	}

	return chunks, nil
}
