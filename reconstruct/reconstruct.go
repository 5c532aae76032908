// Package reconstruct turns a book's stored chunks back into a single
// manuscript file. It knows nothing about models, parsers, or
// translation logic — only how to read chunks in order and write text.
package reconstruct

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/storage"
)

const reviewMarker = "[⚠ PENDIENTE DE REVISIÓN]\n"

// Reconstructor writes a book's translated (or partially translated)
// chunks to a single output file.
type Reconstructor struct {
	repo      storage.Repository
	outputDir string
}

// New returns a Reconstructor that writes output files under
// outputDir, creating it as needed.
func New(repo storage.Repository, outputDir string) Reconstructor {
	return Reconstructor{repo: repo, outputDir: outputDir}
}

// Build reads bookID's chunks ordered by chunk_index, concatenates
// their resolved text with blank-line separators (plus an extra break
// wherever consecutive chunks come from different source sections),
// and writes the result to outputFilename inside the output
// directory. Returns the full path written.
func (r Reconstructor) Build(ctx context.Context, bookID int64, outputFilename string) (string, error) {
	chunks, err := r.repo.GetAllChunks(ctx, bookID)
	if err != nil {
		return "", fmt.Errorf("loading chunks for book %d: %w", bookID, err)
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("no chunks for book %d", bookID)
	}

	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	outputPath := filepath.Join(r.outputDir, outputFilename)

	var parts []string
	prevSection := -1
	first := true

	for _, chunk := range chunks {
		if !first && chunk.SourceSection != prevSection {
			parts = append(parts, "\n\n")
		}
		parts = append(parts, resolveChunkText(chunk))
		prevSection = chunk.SourceSection
		first = false
	}

	content := strings.Join(parts, "\n\n")
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("writing output file: %w", err)
	}
	return outputPath, nil
}

// resolveChunkText picks the text to emit for one chunk: the
// translation when there is one, else the original prefixed with a
// visible review marker when the chunk was flagged, else the bare
// original.
func resolveChunkText(chunk tenlib.Chunk) string {
	if chunk.Translated != "" {
		return chunk.Translated
	}
	if chunk.Status == tenlib.ChunkFlagged {
		return reviewMarker + chunk.Original
	}
	return chunk.Original
}

// Slug converts a book title into a filesystem-safe slug, used to
// derive the output filename slug(title)_target_lang.txt.
func Slug(title string) string {
	lower := strings.ToLower(strings.TrimSpace(title))
	var b strings.Builder
	for _, r := range lower {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_' || r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune('_')
		}
	}
	slug := b.String()
	for strings.Contains(slug, "__") {
		slug = strings.ReplaceAll(slug, "__", "_")
	}
	return slug
}
