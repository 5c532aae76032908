package orchestrator

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/bible"
	"github.com/tenlib/tenlib/prompt"
)

// extractorTranslator adapts this package's Translator to
// bible.Translator, so the same router (or fake) backs both the
// user-facing translation call and the bible extractor's analysis
// call, without the bible package importing router.
type extractorTranslator struct {
	t Translator
}

// NewExtractorTranslator adapts a Translator (typically the same
// *router.Router used for user-facing translation) into a
// bible.Translator, so callers can build a bible.Extractor without
// standing up a second model client.
func NewExtractorTranslator(t Translator) bible.Translator {
	return extractorTranslator{t: t}
}

func (a extractorTranslator) Translate(ctx context.Context, promptText, systemPrompt string) (bible.Response, error) {
	resp, err := a.t.Translate(ctx, promptText, systemPrompt)
	if err != nil {
		return bible.Response{}, err
	}
	return bible.Response{Translation: resp.Translation}, nil
}

func compressedToPromptBible(b bible.Book) prompt.Bible {
	return prompt.Bible{
		Voice:      b.Voice,
		Decisions:  b.Decisions,
		Glossary:   b.Glossary,
		Characters: b.Characters,
		LastScene:  b.LastScene,
	}
}

// updateBibleFromResponse runs the full post-translation bible update
// cycle shared by all three processing modes: detect character
// mentions locally, let the AI extractor validate/enrich them
// (forced whenever an unenriched candidate appeared this chunk),
// merge the AI result over the local fallback update, apply it, and
// persist the new version.
func (o *Orchestrator) updateBibleFromResponse(
	ctx context.Context,
	current *bible.Book,
	bookID int64,
	chunkIndex int,
	original, translation, notes string,
) error {
	localCharacters := bible.ExtractCharacterMentions(original, translation, bible.MaxCharacterEntries, current.Characters)

	extracted, err := o.extractor.Extract(ctx, original, translation, notes, chunkIndex, localCharacters, bible.HasUnenrichedCandidates(localCharacters, *current))
	if err != nil {
		slog.Warn("bible extraction failed, continuing with local update only", slog.Any("error", err))
	}

	localUpdate := bible.BuildLocalUpdate(original, translation, notes, current.Voice, localCharacters)
	merged := bible.MergeUpdates(localUpdate, extracted)
	current.Apply(merged)

	raw, err := current.ToJSON()
	if err != nil {
		return err
	}
	version, err := o.repo.SaveBible(ctx, bookID, raw)
	if err != nil {
		return err
	}
	o.logger.Debug("bible updated", slog.Int64("book_id", bookID), slog.Int("version", version))
	return nil
}

// processChunks runs the translate-mode loop: one request per pending
// chunk, each wrapped in its own failure boundary so one bad chunk
// never stops the book. AllModelsExhausted pauses the whole run,
// leaving the remaining chunks PENDING for the next invocation.
func (o *Orchestrator) processChunks(ctx context.Context, pending []tenlib.Chunk, bookID int64, sourceLang, targetLang string, total, offset int) ([]int64, error) {
	var flagged []int64

	current, err := o.loadOrInitBible(ctx, bookID)
	if err != nil {
		return nil, err
	}

	for i, chunk := range pending {
		step := offset + i + 1

		compressed := o.compressor.Compress(current, chunk.Original)
		ratio := o.compressor.CompressionRatio(current, compressed)
		if ratio < 1.0 {
			o.logger.Debug("bible compressed", slog.Int("chunk_index", chunk.ChunkIndex), slog.Float64("ratio", ratio))
		}

		systemPrompt, err := prompt.BuildTranslatePrompt(sourceLang, targetLang, compressedToPromptBible(compressed))
		if err != nil {
			o.flagChunk(ctx, chunk, &flagged, err)
			continue
		}

		resp, err := o.translator.Translate(ctx, chunk.Original, systemPrompt)
		if errors.Is(err, tenlib.ErrAllModelsExhausted) {
			o.log("⚠ Pipeline pausado en chunk %d/%d. Reejecutar cuando haya quota disponible.", step, total)
			return flagged, tenlib.ErrAllModelsExhausted
		}
		if err != nil {
			o.flagChunk(ctx, chunk, &flagged, err)
			continue
		}

		if err := o.repo.UpdateChunkTranslation(ctx, chunk.ID, resp.Translation, resp.ModelUsed, resp.Confidence, resolveStatus(resp.Confidence)); err != nil {
			o.flagChunk(ctx, chunk, &flagged, err)
			continue
		}

		if err := o.updateBibleFromResponse(ctx, &current, bookID, chunk.ChunkIndex, chunk.Original, resp.Translation, resp.Notes); err != nil {
			o.logger.Warn("bible update failed", slog.Any("error", err))
		}

		o.log("Traduciendo... %d/%d — modelo: %s — confianza: %.2f", step, total, resp.ModelUsed, resp.Confidence)
	}

	return flagged, nil
}

// processChunksFix runs the fix-mode loop, pairing each pending draft
// chunk with its reference original via sourceByIndex.
func (o *Orchestrator) processChunksFix(ctx context.Context, pending []tenlib.Chunk, bookID int64, sourceByIndex map[int]string, sourceLang, targetLang string, total, offset int) ([]int64, error) {
	var flagged []int64

	current, err := o.loadOrInitBible(ctx, bookID)
	if err != nil {
		return nil, err
	}

	for i, chunk := range pending {
		step := offset + i + 1

		sourceChunk := sourceByIndex[chunk.ChunkIndex]
		draftChunk := chunk.Original
		reference := sourceChunk
		if reference == "" {
			reference = draftChunk
			o.logger.Warn("fix chunk has no reference original, using draft only", slog.Int("chunk_index", chunk.ChunkIndex))
		}

		compressed := o.compressor.Compress(current, reference)
		ratio := o.compressor.CompressionRatio(current, compressed)
		if ratio < 1.0 {
			o.logger.Debug("bible compressed (fix)", slog.Int("chunk_index", chunk.ChunkIndex), slog.Float64("ratio", ratio))
		}

		systemPrompt, err := prompt.BuildFixPrompt(sourceLang, targetLang, compressedToPromptBible(compressed))
		if err != nil {
			o.flagChunk(ctx, chunk, &flagged, err)
			continue
		}
		userChunk := prompt.BuildFixChunkPayload(sourceChunk, draftChunk, sourceLang, targetLang)

		resp, err := o.translator.Translate(ctx, userChunk, systemPrompt)
		if errors.Is(err, tenlib.ErrAllModelsExhausted) {
			o.log("⚠ Pipeline fix pausado en chunk %d/%d. Reejecutar cuando haya quota disponible.", step, total)
			return flagged, tenlib.ErrAllModelsExhausted
		}
		if err != nil {
			o.flagChunk(ctx, chunk, &flagged, err)
			continue
		}

		if err := o.repo.UpdateChunkTranslation(ctx, chunk.ID, resp.Translation, resp.ModelUsed, resp.Confidence, resolveStatus(resp.Confidence)); err != nil {
			o.flagChunk(ctx, chunk, &flagged, err)
			continue
		}

		if err := o.updateBibleFromResponse(ctx, &current, bookID, chunk.ChunkIndex, reference, resp.Translation, resp.Notes); err != nil {
			o.logger.Warn("bible update failed (fix)", slog.Any("error", err))
		}

		o.log("Corrigiendo... %d/%d — modelo: %s — confianza: %.2f", step, total, resp.ModelUsed, resp.Confidence)
	}

	return flagged, nil
}

// processChunksPolish runs the fix-style loop: no reference original,
// only fluency/style correction of the existing draft.
func (o *Orchestrator) processChunksPolish(ctx context.Context, pending []tenlib.Chunk, bookID int64, targetLang string, total, offset int) ([]int64, error) {
	var flagged []int64

	current, err := o.loadOrInitBible(ctx, bookID)
	if err != nil {
		return nil, err
	}

	for i, chunk := range pending {
		step := offset + i + 1

		compressed := o.compressor.Compress(current, chunk.Original)
		ratio := o.compressor.CompressionRatio(current, compressed)
		if ratio < 1.0 {
			o.logger.Debug("bible compressed (fix-style)", slog.Int("chunk_index", chunk.ChunkIndex), slog.Float64("ratio", ratio))
		}

		systemPrompt, err := prompt.BuildPolishPrompt(targetLang, compressedToPromptBible(compressed))
		if err != nil {
			o.flagChunk(ctx, chunk, &flagged, err)
			continue
		}
		userChunk := prompt.BuildPolishChunkPayload(chunk.Original, targetLang)

		resp, err := o.translator.Translate(ctx, userChunk, systemPrompt)
		if errors.Is(err, tenlib.ErrAllModelsExhausted) {
			o.log("⚠ Pipeline fix-style pausado en chunk %d/%d. Reejecutar cuando haya quota disponible.", step, total)
			return flagged, tenlib.ErrAllModelsExhausted
		}
		if err != nil {
			o.flagChunk(ctx, chunk, &flagged, err)
			continue
		}

		if err := o.repo.UpdateChunkTranslation(ctx, chunk.ID, resp.Translation, resp.ModelUsed, resp.Confidence, resolveStatus(resp.Confidence)); err != nil {
			o.flagChunk(ctx, chunk, &flagged, err)
			continue
		}

		if err := o.updateBibleFromResponse(ctx, &current, bookID, chunk.ChunkIndex, chunk.Original, resp.Translation, resp.Notes); err != nil {
			o.logger.Warn("bible update failed (fix-style)", slog.Any("error", err))
		}

		o.log("Corrigiendo estilo... %d/%d — modelo: %s — confianza: %.2f", step, total, resp.ModelUsed, resp.Confidence)
	}

	return flagged, nil
}

// flagChunk records a per-chunk failure without aborting the loop: the
// chunk is persisted as FLAGGED with a diagnostic flag string, and its
// id is appended to the caller's flagged-id accumulator.
func (o *Orchestrator) flagChunk(ctx context.Context, chunk tenlib.Chunk, flagged *[]int64, cause error) {
	o.logger.Warn("chunk failed, flagging and continuing", slog.Int("chunk_index", chunk.ChunkIndex), slog.Any("error", cause))
	if err := o.repo.FlagChunk(ctx, chunk.ID, []string{"error: " + cause.Error()}); err != nil {
		o.logger.Error("failed to flag chunk", slog.Int64("chunk_id", chunk.ID), slog.Any("error", err))
	}
	*flagged = append(*flagged, chunk.ID)
}
