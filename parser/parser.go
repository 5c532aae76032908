// Package parser defines the boundary between the pipeline and
// whatever turns a manuscript file on disk into plain-text sections.
// Real binary-format handling (.epub, .pdf) stays out of scope for
// this module; PlainText and Markdown cover the two text-based formats
// a manuscript realistically arrives in, so the orchestrator and its
// tests have concrete Parsers to run against without depending on a
// full e-book toolchain.
package parser

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Parser turns a file on disk into an ordered list of section texts.
// A section is an upstream structural unit (e.g. one EPUB spine item
// or one Markdown chapter) preserved on each chunk as source_section
// for reconstruction breaks.
type Parser interface {
	Parse(path string) ([]string, error)
}

// PlainText treats an entire .txt file as a single section, leaving
// chapter and scene detection to the chunker's Detector.
type PlainText struct{}

func (PlainText) Parse(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []string{string(raw)}, nil
}

// BySuffix dispatches to PlainText or Markdown by file extension and
// rejects .epub/.pdf with a clear error, matching the CLI's file
// existence/extension validation without claiming binary-format
// parsing this module doesn't implement.
type BySuffix struct{}

func (BySuffix) Parse(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return Markdown{}.Parse(path)
	case ".txt", "":
		return PlainText{}.Parse(path)
	case ".epub", ".pdf":
		return nil, fmt.Errorf("parsing %s manuscripts is not implemented; convert to .txt or .md first", strings.ToLower(filepath.Ext(path)))
	default:
		return nil, fmt.Errorf("unsupported manuscript extension %q", filepath.Ext(path))
	}
}
