package parser

import (
	"os"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// sectionHeadingLevel is the heading depth a Markdown manuscript splits
// sections on: level 1/2 headings ("#", "##") are chapter breaks, deeper
// headings stay inside the surrounding section.
const sectionHeadingLevel = 2

// Markdown parses a .md manuscript into sections split at top-level
// headings, handing the chunker plain prose instead of raw Markdown
// syntax.
type Markdown struct{}

// Parse reads path and splits it into sections at level-1/2 headings.
// A document with no headings at all is returned as one section.
func (Markdown) Parse(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return SplitMarkdownSections(raw), nil
}

// SplitMarkdownSections walks source's Markdown AST and concatenates
// the literal text of each block into sections, starting a new section
// at every heading of level <= sectionHeadingLevel.
func SplitMarkdownSections(source []byte) []string {
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var sections []string
	var current strings.Builder

	flush := func() {
		section := strings.TrimSpace(current.String())
		if section != "" {
			sections = append(sections, section)
		}
		current.Reset()
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		if h, ok := n.(*ast.Heading); ok && h.Level <= sectionHeadingLevel {
			flush()
		}

		linesOf, ok := n.(interface{ Lines() *text.Segments })
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := linesOf.Lines()
		for i := 0; i < lines.Len(); i++ {
			segment := lines.At(i)
			current.Write(segment.Value(source))
		}
		if lines.Len() > 0 {
			current.WriteString("\n")
		}

		return ast.WalkContinue, nil
	})
	flush()

	if len(sections) == 0 {
		return []string{strings.TrimSpace(string(source))}
	}
	return sections
}
