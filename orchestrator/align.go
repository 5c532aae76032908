package orchestrator

import (
	"strings"

	"github.com/tenlib/tenlib"
)

// alignTranslationByReferenceChunks aligns an existing translation's
// text to the boundaries of the reference (original) chunks it is
// meant to correct, so fix mode can pair each original chunk with its
// corresponding draft. Strategy: proportional split by reference
// chunk length, snapped to a nearby natural break.
func alignTranslationByReferenceChunks(referenceChunks []tenlib.Chunk, translationSections []string) []string {
	if len(referenceChunks) == 0 {
		return nil
	}

	lengths := make([]int, len(referenceChunks))
	for i, c := range referenceChunks {
		lengths[i] = max(len(c.Original), 1)
	}

	translationText := strings.Join(translationSections, "\n\n")
	return splitTextByReferenceLengths(translationText, lengths)
}

// splitTextByReferenceLengths splits text into len(referenceLengths)
// segments, each sized proportionally to its corresponding reference
// length, snapping each split point to the nearest natural break.
func splitTextByReferenceLengths(text string, referenceLengths []int) []string {
	if len(referenceLengths) == 0 {
		return nil
	}
	if text == "" {
		segments := make([]string, len(referenceLengths))
		return segments
	}

	safeLengths := make([]int, len(referenceLengths))
	totalReference := 0
	for i, l := range referenceLengths {
		safeLengths[i] = max(l, 1)
		totalReference += safeLengths[i]
	}
	totalChars := len([]rune(text))

	runes := []rune(text)
	segments := make([]string, 0, len(safeLengths))
	start := 0
	consumedReference := 0

	for _, length := range safeLengths[:len(safeLengths)-1] {
		consumedReference += length
		target := int(roundDiv(consumedReference*totalChars, totalReference))
		splitIdx := snapSplitIndex(runes, target, start)
		segments = append(segments, strings.TrimSpace(string(runes[start:splitIdx])))
		start = splitIdx
	}
	segments = append(segments, strings.TrimSpace(string(runes[start:])))

	return segments
}

func roundDiv(num, den int) int {
	if den == 0 {
		return 0
	}
	// round-half-up for non-negative inputs (2.5 rounds to 3)
	return (2*num + den) / (2 * den)
}

// snapSplitIndex nudges a proportional split point to the nearest
// natural break (a newline, or sentence-ending punctuation followed by
// whitespace) within a 120-rune radius. When no break lies within that
// radius the proportional target is returned unchanged, which may fall
// inside a word.
func snapSplitIndex(runes []rune, target, start int) int {
	if start >= len(runes) {
		return len(runes)
	}

	minIdx := start + 1
	maxIdx := len(runes) - 1
	if minIdx > maxIdx {
		return len(runes)
	}

	if target < minIdx {
		target = minIdx
	}
	if target > maxIdx {
		target = maxIdx
	}

	const window = 120
	for radius := 0; radius <= window; radius++ {
		left := target - radius
		right := target + radius

		if left >= minIdx && isNaturalBreak(runes, left) {
			return left
		}
		if right <= maxIdx && isNaturalBreak(runes, right) {
			return right
		}
	}
	return target
}

func isNaturalBreak(runes []rune, idx int) bool {
	var prev, curr rune
	if idx > 0 {
		prev = runes[idx-1]
	}
	if idx < len(runes) {
		curr = runes[idx]
	}

	if prev == '\n' {
		return true
	}
	if idx < len(runes) && strings.ContainsRune(".?!;:", prev) && isSpaceRune(curr) {
		return true
	}
	return false
}

func isSpaceRune(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}
