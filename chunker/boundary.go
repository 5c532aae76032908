package chunker

import (
	"strings"

	"github.com/tenlib/tenlib/tokencount"
)

// TextSegment is the output of pass one: a semantically coherent
// fragment with no size constraint applied yet.
type TextSegment struct {
	Text             string
	BoundaryType     BoundaryType
	SourceSection    int
	OriginalPosition int
	TokenEstimated   int
}

// Detector classifies a section's text line by line into an ordered
// sequence of semantic segments. It knows nothing about token budgets;
// that's the Normalizer's job.
type Detector struct {
	cfg      Config
	patterns compiledPatterns
	est      tokencount.Estimator
}

// NewDetector compiles cfg's patterns once and returns a reusable
// Detector.
func NewDetector(cfg Config, est tokencount.Estimator) *Detector {
	return &Detector{cfg: cfg, patterns: compilePatterns(cfg), est: est}
}

// Detect scans text line by line and returns its semantic segments in
// order. Every input character belongs to exactly one segment: the
// detector never drops text.
func (d *Detector) Detect(text string, sourceSection int) []TextSegment {
	lines := splitKeepEnds(text)

	var segments []TextSegment
	var current []string
	currentStart := 0
	currentBoundary := BoundaryParagraph
	charPos := 0

	closeSegment := func() {
		if len(current) == 0 {
			return
		}
		segText := strings.TrimSpace(strings.Join(current, ""))
		if segText == "" {
			return
		}
		segments = append(segments, TextSegment{
			Text:             segText,
			BoundaryType:     currentBoundary,
			SourceSection:    sourceSection,
			OriginalPosition: currentStart,
			TokenEstimated:   d.est.Estimate(segText),
		})
	}

	for i, line := range lines {
		boundary, ok := d.classifyLine(line, lines, i)
		if ok {
			if len(current) > 0 {
				closeSegment()
				current = []string{line}
				currentStart = charPos
				currentBoundary = boundary
			} else {
				current = append(current, line)
				currentBoundary = boundary
			}
		} else {
			current = append(current, line)
		}
		charPos += len(line)
	}
	closeSegment()

	return segments
}

// classifyLine returns the boundary type that line opens, and whether
// it opens one at all. The hierarchy (chapter > scene > pov >
// paragraph > sentence) is enforced by trying each class in order and
// returning the first match.
func (d *Detector) classifyLine(line string, allLines []string, index int) (BoundaryType, bool) {
	stripped := strings.TrimSpace(line)

	if stripped == "" {
		if index > 0 && index < len(allLines)-1 {
			prevEmpty := strings.TrimSpace(allLines[index-1]) == ""
			if prevEmpty {
				return BoundaryScene, true
			}
		}
		return "", false
	}

	for _, p := range d.patterns.chapter {
		if p.MatchString(stripped) {
			return BoundaryChapter, true
		}
	}
	for _, p := range d.patterns.scene {
		if p.MatchString(stripped) {
			return BoundaryScene, true
		}
	}
	for _, p := range d.patterns.pov {
		if p.MatchString(stripped) {
			return BoundaryPOV, true
		}
	}
	for _, p := range d.patterns.paragraph {
		if p.MatchString(stripped) {
			return BoundaryParagraph, true
		}
	}
	for _, p := range d.patterns.sentence {
		if p.MatchString(stripped) {
			return BoundarySentence, true
		}
	}

	return "", false
}

// splitKeepEnds splits text into lines, keeping the trailing newline on
// each line the way Python's str.splitlines(keepends=True) does, so
// that re-joining segments reproduces the original byte stream.
func splitKeepEnds(text string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			lines = append(lines, text[start:i+1])
			start = i + 1
		}
	}
	if start < len(text) {
		lines = append(lines, text[start:])
	}
	return lines
}
