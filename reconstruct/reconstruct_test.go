package reconstruct_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/reconstruct"
)

// stubRepo only implements the Repository methods Reconstructor
// actually calls; everything else panics if exercised, which would
// mean the reconstructor grew a dependency this test doesn't expect.
type stubRepo struct {
	chunks map[int64][]tenlib.Chunk
}

func (s stubRepo) GetAllChunks(_ context.Context, bookID int64) ([]tenlib.Chunk, error) {
	return s.chunks[bookID], nil
}

func (stubRepo) CreateBook(context.Context, tenlib.Book) (int64, error) { panic("not used") }
func (stubRepo) GetBookByHash(context.Context, string) (tenlib.Book, error) {
	panic("not used")
}
func (stubRepo) GetBookByID(context.Context, int64) (tenlib.Book, error) { panic("not used") }
func (stubRepo) UpdateBookStatus(context.Context, int64, tenlib.BookStatus) error {
	panic("not used")
}
func (stubRepo) SaveChunks(context.Context, int64, []tenlib.Chunk) error  { panic("not used") }
func (stubRepo) GetPendingChunks(context.Context, int64) ([]tenlib.Chunk, error) {
	panic("not used")
}
func (stubRepo) UpdateChunkTranslation(context.Context, int64, string, string, float64, tenlib.ChunkStatus) error {
	panic("not used")
}
func (stubRepo) FlagChunk(context.Context, int64, []string) error { panic("not used") }
func (stubRepo) AddTokenUsage(context.Context, string, time.Time, int) (int, error) {
	panic("not used")
}
func (stubRepo) TokensUsedToday(context.Context, string, time.Time) (int, error) {
	panic("not used")
}
func (stubRepo) SaveBible(context.Context, int64, string) (int, error) { panic("not used") }
func (stubRepo) GetLatestBible(context.Context, int64) (string, int, error) {
	panic("not used")
}
func (stubRepo) Close() error { return nil }

func TestBuildConcatenatesInOrderWithSectionBreaks(t *testing.T) {
	repo := stubRepo{chunks: map[int64][]tenlib.Chunk{
		1: {
			{ChunkIndex: 0, SourceSection: 0, Translated: "Hola"},
			{ChunkIndex: 1, SourceSection: 0, Translated: "mundo"},
			{ChunkIndex: 2, SourceSection: 1, Translated: "Nuevo capitulo"},
		},
	}}
	r := reconstruct.New(repo, t.TempDir())

	path, err := r.Build(context.Background(), 1, "out.txt")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	content := string(raw)

	idxHola := strings.Index(content, "Hola")
	idxMundo := strings.Index(content, "mundo")
	idxCapitulo := strings.Index(content, "Nuevo capitulo")
	if idxHola == -1 || idxMundo == -1 || idxCapitulo == -1 {
		t.Fatalf("missing expected content: %q", content)
	}
	if !(idxHola < idxMundo && idxMundo < idxCapitulo) {
		t.Fatalf("chunks out of order: %q", content)
	}

	between := content[idxMundo+len("mundo") : idxCapitulo]
	if !strings.Contains(between, "\n\n\n\n") {
		t.Errorf("expected an extra blank-line break at the source_section change, got %q", between)
	}
}

func TestBuildMarksFlaggedChunksForReview(t *testing.T) {
	repo := stubRepo{chunks: map[int64][]tenlib.Chunk{
		1: {
			{ChunkIndex: 0, SourceSection: 0, Status: tenlib.ChunkFlagged, Original: "sin traducir"},
		},
	}}
	r := reconstruct.New(repo, t.TempDir())

	path, err := r.Build(context.Background(), 1, "out.txt")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	raw, _ := os.ReadFile(path)
	content := string(raw)
	if !strings.Contains(content, "PENDIENTE DE REVISIÓN") {
		t.Errorf("expected a review marker for a flagged, untranslated chunk, got %q", content)
	}
	if !strings.Contains(content, "sin traducir") {
		t.Errorf("expected the original text to still appear, got %q", content)
	}
}

func TestBuildUntranslatedUnflaggedChunkHasNoMarker(t *testing.T) {
	repo := stubRepo{chunks: map[int64][]tenlib.Chunk{
		1: {
			{ChunkIndex: 0, SourceSection: 0, Status: tenlib.ChunkPending, Original: "todavia pendiente"},
		},
	}}
	r := reconstruct.New(repo, t.TempDir())

	path, err := r.Build(context.Background(), 1, "out.txt")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	raw, _ := os.ReadFile(path)
	content := string(raw)
	if strings.Contains(content, "PENDIENTE DE REVISIÓN") {
		t.Errorf("a merely pending (not flagged) chunk should not get a review marker, got %q", content)
	}
}

func TestBuildNoChunksErrors(t *testing.T) {
	repo := stubRepo{chunks: map[int64][]tenlib.Chunk{}}
	r := reconstruct.New(repo, t.TempDir())
	if _, err := r.Build(context.Background(), 99, "out.txt"); err == nil {
		t.Fatal("expected an error for a book with no chunks")
	}
}

func TestBuildWritesUnderOutputDir(t *testing.T) {
	dir := t.TempDir()
	repo := stubRepo{chunks: map[int64][]tenlib.Chunk{
		1: {{ChunkIndex: 0, SourceSection: 0, Translated: "texto"}},
	}}
	r := reconstruct.New(repo, filepath.Join(dir, "nested"))

	path, err := r.Build(context.Background(), 1, "libro_es.txt")
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if filepath.Dir(path) != filepath.Join(dir, "nested") {
		t.Errorf("path = %s, want it under the nested output dir", path)
	}
	if filepath.Base(path) != "libro_es.txt" {
		t.Errorf("filename = %s, want libro_es.txt", filepath.Base(path))
	}
}

func TestSlug(t *testing.T) {
	tests := []struct{ title, want string }{
		{"El Señor de los Anillos", "el_señor_de_los_anillos"},
		{"  Espacios   Multiples  ", "espacios_multiples"},
		{"Title: With Punctuation!", "title_with_punctuation"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := reconstruct.Slug(tt.title); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.title, got, tt.want)
		}
	}
}
