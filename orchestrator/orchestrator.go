// Package orchestrator drives the pipeline end to end. It carries no
// business logic of its own — it coordinates the chunker, router,
// bible, and repository, deciding whether a run is new or resumed and
// handling per-chunk failure without stopping the whole book.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/bible"
	"github.com/tenlib/tenlib/chunker"
	"github.com/tenlib/tenlib/parser"
	"github.com/tenlib/tenlib/reconstruct"
	"github.com/tenlib/tenlib/router"
	"github.com/tenlib/tenlib/storage"
)

// Translator is the subset of router.Router the orchestrator needs —
// narrowed to an interface so tests can substitute a fake without
// standing up real model adapters.
type Translator interface {
	Translate(ctx context.Context, chunk, systemPrompt string) (router.Response, error)
}

// Extractor is the subset of bible.Extractor the orchestrator needs.
type Extractor interface {
	Extract(ctx context.Context, original, translation, notes string, chunkIndex int, characterCandidates map[string]string, force bool) (*bible.Update, error)
}

// Compressor is the subset of bible.Compressor the orchestrator needs.
type Compressor interface {
	Compress(b bible.Book, chunkText string) bible.Book
	CompressionRatio(original, compressed bible.Book) float64
}

// noopExtractor never proposes an update, for callers that have not
// wired an AI extractor yet.
type noopExtractor struct{}

func (noopExtractor) Extract(context.Context, string, string, string, int, map[string]string, bool) (*bible.Update, error) {
	return nil, nil
}

// PipelineResult is what a Run/RunFix/RunFixStyle call returns — the
// summary the CLI reports to the user.
type PipelineResult struct {
	BookID      int64
	OutputPath  string
	TotalChunks int
	Translated  int
	Flagged     int
	WasResumed  bool
}

// Orchestrator ties every pipeline stage together.
type Orchestrator struct {
	repo       storage.Repository
	parser     parser.Parser
	chunker    *chunker.Chunker
	translator Translator
	output     reconstruct.Reconstructor
	extractor  Extractor
	compressor Compressor
	logger     *slog.Logger
}

// New returns an Orchestrator. extractor and compressor may be nil, in
// which case a no-op extractor and bible.Compressor{} are used.
func New(
	repo storage.Repository,
	p parser.Parser,
	c *chunker.Chunker,
	translator Translator,
	output reconstruct.Reconstructor,
	extractor Extractor,
	compressor Compressor,
	logger *slog.Logger,
) *Orchestrator {
	if extractor == nil {
		extractor = noopExtractor{}
	}
	if compressor == nil {
		compressor = bible.Compressor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		repo:       repo,
		parser:     p,
		chunker:    c,
		translator: translator,
		output:     output,
		extractor:  extractor,
		compressor: compressor,
		logger:     logger.With(slog.String("module", "orchestrator")),
	}
}

// Run is the main entry point for translate mode. It is idempotent:
// calling it twice with the same file resumes from where it left off.
func (o *Orchestrator) Run(ctx context.Context, filePath, sourceLang, targetLang string) (PipelineResult, error) {
	path, err := resolvePath(filePath)
	if err != nil {
		return PipelineResult{}, err
	}

	fileHash, err := computeFileHash(path)
	if err != nil {
		return PipelineResult{}, err
	}

	wasResumed, bookID, title, err := o.identify(ctx, fileHash, trimExt(path), tenlib.ModeTranslate, sourceLang, targetLang)
	if err != nil {
		return PipelineResult{}, err
	}

	if !wasResumed {
		if err := o.parseAndStore(ctx, path, bookID); err != nil {
			return PipelineResult{}, err
		}
	}

	return o.runLoop(ctx, bookID, title, targetLang, wasResumed, func(pending []tenlib.Chunk, total, offset int) ([]int64, error) {
		return o.processChunks(ctx, pending, bookID, sourceLang, targetLang, total, offset)
	})
}

// RunFix corrects an existing translation using the original text as
// a reference. Idempotent by a hash combining both files.
func (o *Orchestrator) RunFix(ctx context.Context, originalPath, translationPath, targetLang, sourceLang string) (PipelineResult, error) {
	sourcePath, err := resolvePath(originalPath)
	if err != nil {
		return PipelineResult{}, err
	}
	draftPath, err := resolvePath(translationPath)
	if err != nil {
		return PipelineResult{}, err
	}

	fileHash, err := computeFixHash(sourcePath, draftPath)
	if err != nil {
		return PipelineResult{}, err
	}

	sourceSections, err := o.parser.Parse(sourcePath)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("parsing reference original: %w", err)
	}
	sourceChunks := o.chunker.Chunk(sourceSections)

	wasResumed, bookID, title, err := o.identify(ctx, fileHash, trimExt(draftPath), tenlib.ModeFix, sourceLang, targetLang)
	if err != nil {
		return PipelineResult{}, err
	}

	if !wasResumed {
		if err := o.parseAndStoreFix(ctx, sourceChunks, draftPath, bookID); err != nil {
			return PipelineResult{}, err
		}
	}

	sourceByIndex := make(map[int]string, len(sourceChunks))
	for _, c := range sourceChunks {
		sourceByIndex[c.ChunkIndex] = c.Original
	}

	return o.runLoop(ctx, bookID, title, targetLang, wasResumed, func(pending []tenlib.Chunk, total, offset int) ([]int64, error) {
		return o.processChunksFix(ctx, pending, bookID, sourceByIndex, sourceLang, targetLang, total, offset)
	})
}

// RunFixStyle polishes an existing translation's fluency without a
// reference original.
func (o *Orchestrator) RunFixStyle(ctx context.Context, translationPath, targetLang, sourceLang string) (PipelineResult, error) {
	draftPath, err := resolvePath(translationPath)
	if err != nil {
		return PipelineResult{}, err
	}

	fileHash, err := computeFixStyleHash(draftPath, targetLang)
	if err != nil {
		return PipelineResult{}, err
	}

	wasResumed, bookID, title, err := o.identify(ctx, fileHash, trimExt(draftPath), tenlib.ModeFix, sourceLang, targetLang)
	if err != nil {
		return PipelineResult{}, err
	}

	if !wasResumed {
		if err := o.parseAndStore(ctx, draftPath, bookID); err != nil {
			return PipelineResult{}, err
		}
	}

	return o.runLoop(ctx, bookID, title, targetLang, wasResumed, func(pending []tenlib.Chunk, total, offset int) ([]int64, error) {
		return o.processChunksPolish(ctx, pending, bookID, targetLang, total, offset)
	})
}

// runLoop holds the control flow shared by Run/RunFix/RunFixStyle once
// the book's identity has been resolved: fetch pending chunks, bail
// early if none, otherwise delegate to process, then reconstruct and
// compute the final status.
func (o *Orchestrator) runLoop(
	ctx context.Context,
	bookID int64,
	title, targetLang string,
	wasResumed bool,
	process func(pending []tenlib.Chunk, total, offset int) ([]int64, error),
) (PipelineResult, error) {
	pending, err := o.repo.GetPendingChunks(ctx, bookID)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("loading pending chunks: %w", err)
	}

	if len(pending) == 0 {
		outputPath, err := o.reconstruct(ctx, bookID, title, targetLang)
		if err != nil {
			return PipelineResult{}, err
		}
		return o.buildResult(ctx, bookID, outputPath, wasResumed)
	}

	all, err := o.repo.GetAllChunks(ctx, bookID)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("loading all chunks: %w", err)
	}
	total := len(all)
	doneSoFar := total - len(pending)

	_, processErr := process(pending, total, doneSoFar)
	if processErr != nil && !errors.Is(processErr, tenlib.ErrAllModelsExhausted) {
		return PipelineResult{}, processErr
	}

	outputPath, err := o.reconstruct(ctx, bookID, title, targetLang)
	if err != nil {
		return PipelineResult{}, err
	}

	result, err := o.buildResult(ctx, bookID, outputPath, wasResumed)
	if err != nil {
		return PipelineResult{}, err
	}

	pendingAfter := result.TotalChunks - result.Translated - result.Flagged
	if pendingAfter > 0 {
		if err := o.repo.UpdateBookStatus(ctx, bookID, tenlib.StatusInProgress); err != nil {
			return PipelineResult{}, fmt.Errorf("updating book status: %w", err)
		}
	} else {
		if err := o.repo.UpdateBookStatus(ctx, bookID, tenlib.StatusDone); err != nil {
			return PipelineResult{}, fmt.Errorf("updating book status: %w", err)
		}
	}

	// A partial PipelineResult is always returned alongside this
	// sentinel so the caller can still report progress on a paused run.
	return result, processErr
}

// identify resolves a book's identity by content hash: resumes an
// existing book (forcing a legacy DONE-with-PENDING repair if needed,
// or raising ErrBookAlreadyDone if truly finished), or creates a new
// one titled titleForNewBook.
func (o *Orchestrator) identify(
	ctx context.Context,
	fileHash, titleForNewBook string,
	mode tenlib.BookMode,
	sourceLang, targetLang string,
) (wasResumed bool, bookID int64, title string, err error) {
	book, err := o.repo.GetBookByHash(ctx, fileHash)
	if err == nil {
		if err := o.assertBookCanRun(ctx, book); err != nil {
			return false, 0, "", err
		}
		o.log("Reanudando '%s' (book_id=%d)", book.Title, book.ID)
		return true, book.ID, book.Title, nil
	}
	if !errors.Is(err, tenlib.ErrBookNotFound) {
		return false, 0, "", fmt.Errorf("looking up book by hash: %w", err)
	}

	bookID, err = o.repo.CreateBook(ctx, tenlib.Book{
		Title:      titleForNewBook,
		FileHash:   fileHash,
		Mode:       mode,
		Status:     tenlib.StatusInProgress,
		SourceLang: sourceLang,
		TargetLang: targetLang,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		return false, 0, "", fmt.Errorf("creating book: %w", err)
	}
	o.log("Nuevo libro: '%s' (book_id=%d)", titleForNewBook, bookID)

	return false, bookID, titleForNewBook, nil
}

// assertBookCanRun implements the legacy-repair open question: a book
// left DONE with PENDING chunks (an inconsistent legacy state) is
// forced back to IN_PROGRESS with a warning rather than rejected; a
// book that is truly done raises ErrBookAlreadyDone.
func (o *Orchestrator) assertBookCanRun(ctx context.Context, book tenlib.Book) error {
	if book.Status != tenlib.StatusDone {
		return nil
	}

	pending, err := o.repo.GetPendingChunks(ctx, book.ID)
	if err != nil {
		return fmt.Errorf("checking pending chunks: %w", err)
	}
	if len(pending) > 0 {
		o.logger.Warn("book was DONE with pending chunks; forcing resume",
			slog.Int64("book_id", book.ID), slog.Int("pending", len(pending)))
		return o.repo.UpdateBookStatus(ctx, book.ID, tenlib.StatusInProgress)
	}

	return fmt.Errorf("%w: '%s' (book_id=%d)", tenlib.ErrBookAlreadyDone, book.Title, book.ID)
}

func (o *Orchestrator) parseAndStore(ctx context.Context, path string, bookID int64) error {
	sections, err := o.parser.Parse(path)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	chunks := o.chunker.Chunk(sections)
	if err := o.repo.SaveChunks(ctx, bookID, chunks); err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	o.log("%d chunks creados y guardados", len(chunks))
	return nil
}

func (o *Orchestrator) parseAndStoreFix(ctx context.Context, sourceChunks []tenlib.Chunk, translationPath string, bookID int64) error {
	translationSections, err := o.parser.Parse(translationPath)
	if err != nil {
		return fmt.Errorf("parsing existing translation: %w", err)
	}
	aligned := alignTranslationByReferenceChunks(sourceChunks, translationSections)

	staged := make([]tenlib.Chunk, len(sourceChunks))
	for i, src := range sourceChunks {
		text := ""
		if i < len(aligned) {
			text = aligned[i]
		}
		staged[i] = tenlib.Chunk{
			ChunkIndex:     src.ChunkIndex,
			Original:       text,
			TokenEstimated: src.TokenEstimated,
			SourceSection:  src.SourceSection,
		}
	}

	if err := o.repo.SaveChunks(ctx, bookID, staged); err != nil {
		return fmt.Errorf("saving fix chunks: %w", err)
	}
	o.log("%d chunks fix creados y guardados (alineados desde traducción existente)", len(staged))
	return nil
}

func (o *Orchestrator) reconstruct(ctx context.Context, bookID int64, title, targetLang string) (string, error) {
	filename := fmt.Sprintf("%s_%s.txt", reconstruct.Slug(title), targetLang)
	return o.output.Build(ctx, bookID, filename)
}

func (o *Orchestrator) buildResult(ctx context.Context, bookID int64, outputPath string, wasResumed bool) (PipelineResult, error) {
	all, err := o.repo.GetAllChunks(ctx, bookID)
	if err != nil {
		return PipelineResult{}, fmt.Errorf("loading chunks for result: %w", err)
	}

	result := PipelineResult{
		BookID:      bookID,
		OutputPath:  outputPath,
		TotalChunks: len(all),
		WasResumed:  wasResumed,
	}
	for _, c := range all {
		switch c.Status {
		case tenlib.ChunkDone, tenlib.ChunkReviewed:
			result.Translated++
		case tenlib.ChunkFlagged:
			result.Flagged++
		}
	}
	return result, nil
}

func (o *Orchestrator) loadOrInitBible(ctx context.Context, bookID int64) (bible.Book, error) {
	content, version, err := o.repo.GetLatestBible(ctx, bookID)
	if err != nil {
		return bible.Book{}, fmt.Errorf("loading bible: %w", err)
	}
	if content != "" {
		return bible.FromJSON(content)
	}

	b := bible.Empty()
	raw, err := b.ToJSON()
	if err != nil {
		return bible.Book{}, fmt.Errorf("serializing empty bible: %w", err)
	}
	version, err = o.repo.SaveBible(ctx, bookID, raw)
	if err != nil {
		return bible.Book{}, fmt.Errorf("saving initial bible: %w", err)
	}
	o.logger.Debug("initial bible created", slog.Int64("book_id", bookID), slog.Int("version", version))
	return b, nil
}

func resolveStatus(confidence float64) tenlib.ChunkStatus {
	if confidence >= tenlib.ConfidenceThreshold {
		return tenlib.ChunkDone
	}
	return tenlib.ChunkFlagged
}

func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path %s: %w", path, err)
	}
	if _, err := os.Stat(abs); err != nil {
		return "", fmt.Errorf("archivo no encontrado: %s: %w", abs, err)
	}
	return abs, nil
}

func trimExt(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func (o *Orchestrator) log(format string, args ...any) {
	fmt.Printf("[tenlib] "+format+"\n", args...)
}
