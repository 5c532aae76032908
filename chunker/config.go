package chunker

import "regexp"

// BoundaryType classifies what kind of semantic boundary opened a
// segment. The hierarchy is strict: chapter outranks scene outranks
// pov outranks paragraph outranks sentence, and a merge may never
// cross a chapter boundary.
type BoundaryType string

// Boundary types, in descending priority order.
const (
	BoundaryChapter   BoundaryType = "chapter"
	BoundaryScene     BoundaryType = "scene"
	BoundaryPOV       BoundaryType = "pov"
	BoundaryParagraph BoundaryType = "paragraph"
	BoundarySentence  BoundaryType = "sentence"
)

// Preset names a chunk_size knob value.
type Preset string

// Supported chunk-size presets.
const (
	PresetStandard Preset = "standard"
	PresetLarge    Preset = "large"
	PresetXLarge   Preset = "xlarge"
)

// Config centralizes the chunker's size targets and detection patterns.
// The zero value is not usable; use NewConfig or one of the presets.
type Config struct {
	MinTokens    int
	MaxTokens    int
	TargetTokens int

	ChapterPatterns   []string
	ScenePatterns     []string
	POVPatterns       []string
	ParagraphPatterns []string
	SentencePatterns  []string
}

// NewConfig returns the standard preset, the chunker's default.
func NewConfig() Config {
	return ConfigForPreset(PresetStandard)
}

// ConfigForPreset returns the token-size triple for a named preset,
// falling back to standard for an unrecognized name.
func ConfigForPreset(p Preset) Config {
	cfg := Config{
		ChapterPatterns: []string{
			`^\s*cap[ií]tulo\s+[\dIVXLCivxlc]+`,
			`^\s*chapter\s+[\dIVXLCivxlc]+`,
			`^\s*第[一二三四五六七八九十百千]+章`,
			`^\s*#{1,2}\s+.+`,
			`^\s*PART\s+[\dIVXLCivxlc]+`,
			`^\s*[IVXLCivxlc]{1,6}\.\s*$`,
		},
		ScenePatterns: []string{
			`^\s*[*\-—]{3,}\s*$`,
			`^\s*[*\-—]\s*[*\-—]\s*[*\-—]\s*$`,
			`^\s*·{3,}\s*$`,
			`^\s*#{3,}\s*$`,
		},
		POVPatterns: []string{
			`^\s*\*{1,2}[A-ZÁÉÍÓÚ][^*]+\*{1,2}\s*$`,
			`^\s*[A-ZÁÉÍÓÚ]{2,}[^.!?]*$`,
		},
		ParagraphPatterns: []string{
			`^\s{2,}`,
			`^\t`,
		},
		SentencePatterns: []string{
			`(?:[.!?])\s+$`,
		},
	}

	switch p {
	case PresetLarge:
		cfg.MinTokens, cfg.MaxTokens, cfg.TargetTokens = 1200, 3500, 2500
	case PresetXLarge:
		cfg.MinTokens, cfg.MaxTokens, cfg.TargetTokens = 2000, 5000, 3500
	default:
		cfg.MinTokens, cfg.MaxTokens, cfg.TargetTokens = 800, 2000, 1400
	}
	return cfg
}

// sentenceSplit is the reference sentence-boundary regex used by the
// normalizer's last-resort split: a sentence-ending punctuation mark
// followed by whitespace and a capital letter or opening quote,
// avoiding cuts inside abbreviations or ellipses.
var sentenceSplit = regexp.MustCompile(`(?:[.!?…])\s+(?:[A-ZÁÉÍÓÚÑ"“«—])`)

type compiledPatterns struct {
	chapter   []*regexp.Regexp
	scene     []*regexp.Regexp
	pov       []*regexp.Regexp
	paragraph []*regexp.Regexp
	sentence  []*regexp.Regexp
}

func compilePatterns(cfg Config) compiledPatterns {
	compile := func(pats []string, caseInsensitive bool) []*regexp.Regexp {
		out := make([]*regexp.Regexp, 0, len(pats))
		for _, p := range pats {
			if caseInsensitive {
				p = "(?i)" + p
			}
			out = append(out, regexp.MustCompile(p))
		}
		return out
	}
	return compiledPatterns{
		chapter:   compile(cfg.ChapterPatterns, true),
		scene:     compile(cfg.ScenePatterns, false),
		pov:       compile(cfg.POVPatterns, false),
		paragraph: compile(cfg.ParagraphPatterns, false),
		sentence:  compile(cfg.SentencePatterns, false),
	}
}
