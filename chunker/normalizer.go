package chunker

import (
	"strings"

	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/tokencount"
)

// Normalizer is pass two: it takes pass one's semantic segments and
// fits them into the configured token range, producing the final
// chunk list for one section.
type Normalizer struct {
	cfg Config
	est tokencount.Estimator
	tk  *tokencount.Tiktoken
}

// NewNormalizer returns a Normalizer bound to cfg's token thresholds.
// When est is a Tiktoken estimator, the normalizer can also carve a
// pathological oversize sentence (no further punctuation to split on)
// into fixed token windows via SlidingWindow instead of emitting one
// giant chunk.
func NewNormalizer(cfg Config, est tokencount.Estimator) *Normalizer {
	n := &Normalizer{cfg: cfg, est: est}
	if tk, ok := est.(tokencount.Tiktoken); ok {
		n.tk = &tk
	}
	return n
}

// Normalize expands oversize segments, merges undersize ones, and
// converts the result into section-local chunks (chunk_index 0, 1, …
// within the section; the Chunker re-indexes globally afterward).
func (n *Normalizer) Normalize(segments []TextSegment) []tenlib.Chunk {
	if len(segments) == 0 {
		return nil
	}
	expanded := n.expandLarge(segments)
	merged := n.mergeSmall(expanded)
	return n.toChunks(merged)
}

func (n *Normalizer) expandLarge(segments []TextSegment) []TextSegment {
	result := make([]TextSegment, 0, len(segments))
	for _, seg := range segments {
		if seg.TokenEstimated <= n.cfg.MaxTokens {
			result = append(result, seg)
			continue
		}
		result = append(result, n.splitSegment(seg)...)
	}
	return result
}

func (n *Normalizer) splitSegment(segment TextSegment) []TextSegment {
	var paragraphs []string
	for _, p := range strings.Split(segment.Text, "\n\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	if len(paragraphs) <= 1 {
		return n.splitBySentences(segment)
	}

	var result []TextSegment
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			result = append(result, n.makeSubsegment(strings.Join(current, "\n\n"), segment))
			current = nil
			currentTokens = 0
		}
	}

	for _, para := range paragraphs {
		paraTokens := n.est.Estimate(para)

		if paraTokens > n.cfg.MaxTokens {
			flush()
			mini := n.makeSubsegment(para, segment)
			result = append(result, n.splitBySentences(mini)...)
			continue
		}

		if currentTokens+paraTokens > n.cfg.MaxTokens && len(current) > 0 {
			flush()
			current = []string{para}
			currentTokens = paraTokens
		} else {
			current = append(current, para)
			currentTokens += paraTokens
		}
	}
	flush()

	return result
}

func (n *Normalizer) splitBySentences(segment TextSegment) []TextSegment {
	sentences := splitSentences(segment.Text)

	var result []TextSegment
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) > 0 {
			result = append(result, n.makeSubsegment(strings.Join(current, " "), segment))
			current = nil
			currentTokens = 0
		}
	}

	for _, sentence := range sentences {
		sentenceTokens := n.est.Estimate(sentence)

		if sentenceTokens > n.cfg.MaxTokens {
			flush()
			result = append(result, n.windowOversizeSentence(sentence, segment)...)
			continue
		}

		if currentTokens+sentenceTokens > n.cfg.MaxTokens && len(current) > 0 {
			flush()
			current = []string{sentence}
			currentTokens = sentenceTokens
		} else {
			current = append(current, sentence)
			currentTokens += sentenceTokens
		}
	}
	flush()

	return result
}

// splitSentences splits text at sentence boundaries, keeping
// abbreviations and ellipses intact by requiring the following
// character to be a capital letter, opening quote, or dash.
func splitSentences(text string) []string {
	loc := sentenceSplit.FindAllStringIndex(text, -1)
	if len(loc) == 0 {
		return []string{text}
	}

	var out []string
	start := 0
	for _, l := range loc {
		// The match consumes the next sentence's first character to assert
		// context (no lookahead in RE2); split just before it.
		splitAt := l[1] - 1
		if splitAt <= start {
			continue
		}
		out = append(out, text[start:splitAt])
		start = splitAt
	}
	out = append(out, text[start:])

	trimmed := out[:0]
	for _, s := range out {
		s = strings.TrimSpace(s)
		if s != "" {
			trimmed = append(trimmed, s)
		}
	}
	return trimmed
}

// windowOversizeSentence handles the one case the boundary-aware
// passes can't improve on: a single sentence with no further
// punctuation to split on that still exceeds MaxTokens. With a
// tiktoken estimator available it carves the sentence into
// fixed-size, overlapping token windows via SlidingWindow rather than
// emitting one oversize chunk; without one (no precise encoder
// loaded) it falls back to the prior behavior of keeping it whole.
func (n *Normalizer) windowOversizeSentence(sentence string, parent TextSegment) []TextSegment {
	if n.tk == nil {
		return []TextSegment{n.makeSubsegment(sentence, parent)}
	}

	window := SlidingWindow{MaxTokens: n.cfg.MaxTokens, OverlapTokens: n.cfg.MaxTokens / 10}
	chunks, err := window.Chunk(sentence, *n.tk)
	if err != nil || len(chunks) == 0 {
		return []TextSegment{n.makeSubsegment(sentence, parent)}
	}

	segments := make([]TextSegment, len(chunks))
	for i, ch := range chunks {
		segments[i] = TextSegment{
			Text:             ch.Original,
			BoundaryType:     BoundarySentence,
			SourceSection:    parent.SourceSection,
			OriginalPosition: parent.OriginalPosition,
			TokenEstimated:   ch.TokenEstimated,
		}
	}
	return segments
}

func (n *Normalizer) mergeSmall(segments []TextSegment) []TextSegment {
	if len(segments) == 0 {
		return nil
	}

	result := []TextSegment{segments[0]}

	for _, current := range segments[1:] {
		previous := result[len(result)-1]
		combinedTokens := previous.TokenEstimated + current.TokenEstimated

		canMerge := previous.TokenEstimated < n.cfg.MinTokens &&
			combinedTokens <= n.cfg.MaxTokens &&
			current.BoundaryType != BoundaryChapter &&
			previous.BoundaryType != BoundaryChapter

		if canMerge {
			mergedText := previous.Text + "\n\n" + current.Text
			result[len(result)-1] = TextSegment{
				Text:             mergedText,
				BoundaryType:     previous.BoundaryType,
				SourceSection:    previous.SourceSection,
				OriginalPosition: previous.OriginalPosition,
				TokenEstimated:   n.est.Estimate(mergedText),
			}
		} else {
			result = append(result, current)
		}
	}

	return result
}

func (n *Normalizer) toChunks(segments []TextSegment) []tenlib.Chunk {
	chunks := make([]tenlib.Chunk, len(segments))
	for i, seg := range segments {
		chunks[i] = tenlib.Chunk{
			ChunkIndex:     i,
			Original:       seg.Text,
			TokenEstimated: seg.TokenEstimated,
			SourceSection:  seg.SourceSection,
			Status:         tenlib.ChunkPending,
		}
	}
	return chunks
}

func (n *Normalizer) makeSubsegment(text string, parent TextSegment) TextSegment {
	return TextSegment{
		Text:             text,
		BoundaryType:     BoundaryParagraph,
		SourceSection:    parent.SourceSection,
		OriginalPosition: parent.OriginalPosition,
		TokenEstimated:   n.est.Estimate(text),
	}
}
