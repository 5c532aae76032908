// Package chunker turns raw section text into the token-bounded,
// boundary-aware chunks the rest of the pipeline operates on. It runs
// in two passes per section (Detector then Normalizer) and then
// re-indexes the combined result globally across sections.
package chunker

import (
	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/tokencount"
)

// Chunker ties the Detector and Normalizer together across a book's
// sections, producing one globally-indexed chunk list.
type Chunker struct {
	cfg        Config
	estimator  tokencount.Estimator
	detector   *Detector
	normalizer *Normalizer
}

// New returns a Chunker configured with cfg and est. A zero Config is
// not valid; callers should use NewConfig or ConfigForPreset.
func New(cfg Config, est tokencount.Estimator) *Chunker {
	if est == nil {
		est = tokencount.Simple{}
	}
	return &Chunker{
		cfg:        cfg,
		estimator:  est,
		detector:   NewDetector(cfg, est),
		normalizer: NewNormalizer(cfg, est),
	}
}

// Chunk detects boundaries and normalizes token sizes within each
// section independently, then re-indexes the concatenated result
// globally (chunk_index 0, 1, 2, … across the whole book) so that
// chapter-sacred merge boundaries are always respected within, never
// across, a section.
func (c *Chunker) Chunk(sections []string) []tenlib.Chunk {
	var all []tenlib.Chunk
	globalIndex := 0

	for sectionIdx, sectionText := range sections {
		segments := c.detector.Detect(sectionText, sectionIdx)
		chunks := c.normalizer.Normalize(segments)

		for _, ch := range chunks {
			ch.ChunkIndex = globalIndex
			globalIndex++
			all = append(all, ch)
		}
	}

	return all
}
