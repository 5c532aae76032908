// Package bible implements the book bible: the editorial memory that
// accrues chunk by chunk as a book is translated. It covers the local
// heuristic character detector, the AI-mediated extractor and its
// prompt templates, the local update builder, and the merge semantics
// that fold an update into the running bible.
package bible

import (
	"encoding/json"
	"regexp"
	"sort"
	"strings"

	"github.com/agext/levenshtein"
)

const (
	MaxGlossaryEntries  = 600
	MaxCharacterEntries = 240
	MaxDecisionsEntries = 18
	MaxLastSceneChars   = 420
	maxDecisionChars    = 220

	defaultVoice     = "narrador en tercera persona, tiempo pasado"
	defaultLastScene = "Inicio del libro — no hay contexto previo."

	decisionSimilarityThreshold = 0.84
)

// Book is the persistent editorial memory of one book: it starts empty
// and is built up one chunk at a time. It round-trips to JSON to live
// in the bible column of the book's latest row.
type Book struct {
	Voice      string            `json:"voice"`
	Decisions  []string          `json:"decisions"`
	Glossary   map[string]string `json:"glossary"`
	Characters map[string]string `json:"characters"`
	LastScene  string            `json:"last_scene"`
}

// Update is what the Extractor (and the local update builder) produce
// after processing one chunk. It holds only what is new, never the
// full bible.
type Update struct {
	Voice      string
	Glossary   map[string]string
	Characters map[string]string
	Decisions  []string
	LastScene  string
	// Rejected holds names the AI confirmed are not characters (places,
	// organizations, collective titles). Present entries are removed
	// from the bible if already there.
	Rejected []string
}

// Empty returns the bible for a brand-new book.
func Empty() Book {
	return Book{
		Voice:      defaultVoice,
		Decisions:  nil,
		Glossary:   map[string]string{},
		Characters: map[string]string{},
		LastScene:  defaultLastScene,
	}
}

// IsEmpty reports whether no meaningful content has accumulated yet.
func (b Book) IsEmpty() bool {
	return len(b.Glossary) == 0 && len(b.Characters) == 0 && len(b.Decisions) == 0
}

// ToJSON serializes the bible the way it is persisted in storage.
func (b Book) ToJSON() (string, error) {
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// FromJSON parses a persisted bible, defaulting voice and last_scene
// when absent so older rows without those fields still load cleanly.
func FromJSON(raw string) (Book, error) {
	b := Book{Voice: defaultVoice, LastScene: defaultLastScene}
	if strings.TrimSpace(raw) == "" {
		return Empty(), nil
	}
	if err := json.Unmarshal([]byte(raw), &b); err != nil {
		return Book{}, err
	}
	if b.Glossary == nil {
		b.Glossary = map[string]string{}
	}
	if b.Characters == nil {
		b.Characters = map[string]string{}
	}
	return b, nil
}

// Apply folds update into b. Glossary terms and character entries are
// write-once: an existing term or name keeps its value, except a
// placeholder character description, which the AI extractor is allowed
// to enrich. A non-empty voice and a non-empty last_scene replace the
// current ones, characters listed in update.Rejected are removed, and
// decisions are deduplicated and capped to the most recent
// MaxDecisionsEntries.
func (b *Book) Apply(update Update) {
	if voice := strings.TrimSpace(update.Voice); voice != "" {
		b.Voice = voice
	}

	for _, name := range update.Rejected {
		delete(b.Characters, name)
	}

	if b.Glossary == nil {
		b.Glossary = map[string]string{}
	}
	for term, translation := range update.Glossary {
		if _, exists := b.Glossary[term]; !exists && len(b.Glossary) < MaxGlossaryEntries {
			b.Glossary[term] = translation
		}
	}

	if b.Characters == nil {
		b.Characters = map[string]string{}
	}
	for name, description := range update.Characters {
		if !isValidCharacterName(name) {
			continue
		}
		existing, exists := b.Characters[name]
		switch {
		case !exists:
			if len(b.Characters) < MaxCharacterEntries {
				b.Characters[name] = description
			}
		case existing == PlaceholderDescription && description != PlaceholderDescription && strings.TrimSpace(description) != "":
			b.Characters[name] = description
		}
	}

	for _, decision := range update.Decisions {
		cleaned := cleanDecision(decision)
		if cleaned == "" {
			continue
		}
		if isNewDecision(cleaned, b.Decisions) {
			b.Decisions = append(b.Decisions, cleaned)
		}
	}
	if len(b.Decisions) > MaxDecisionsEntries {
		b.Decisions = b.Decisions[len(b.Decisions)-MaxDecisionsEntries:]
	}

	if update.LastScene != "" {
		b.LastScene = truncateText(update.LastScene, MaxLastSceneChars)
	}
}

var validNameRE = regexp.MustCompile(`^[A-Za-zÁÉÍÓÚÑáéíóúñ' -]+$`)

var nonCharacterSingleWords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {},
	"un": {}, "una": {}, "unos": {}, "unas": {},
	"yo": {}, "tu": {}, "tú": {}, "mi": {}, "mis": {}, "me": {},
	"nos": {}, "nosotros": {}, "nosotras": {},
	"ella": {}, "ellas": {}, "ello": {}, "ellos": {},
	"eso": {}, "esto": {}, "esa": {}, "ese": {}, "esas": {}, "esos": {},
	"aqui": {}, "aquí": {}, "alli": {}, "allí": {},
	"antes": {}, "despues": {}, "después": {},
	"estaba": {}, "estaban": {}, "era": {}, "eran": {}, "fue": {}, "fueron": {}, "es": {}, "son": {},
	"texto": {}, "original": {}, "chunk": {}, "capitulo": {}, "capítulo": {},
}

// isValidCharacterName filters out obvious noise before a name is
// allowed into the bible's character map: length bounds, an
// allowed-character set, at least one proper-looking (capitalized)
// token, and rejection of single-token stopwords.
func isValidCharacterName(name string) bool {
	candidate := strings.TrimSpace(name)
	if len(candidate) < 2 || len(candidate) > 80 {
		return false
	}
	if !validNameRE.MatchString(candidate) {
		return false
	}

	tokens := strings.Fields(candidate)
	if len(tokens) == 0 {
		return false
	}

	if len(tokens) == 1 {
		if _, ok := nonCharacterSingleWords[normalizeWord(tokens[0])]; ok {
			return false
		}
	}

	hasProperLike := false
	for _, t := range tokens {
		r := []rune(t)
		if len(r) > 0 && strings.ToUpper(string(r[0])) == string(r[0]) && strings.ToLower(string(r[0])) != string(r[0]) {
			hasProperLike = true
			break
		}
	}
	return hasProperLike
}

func truncateText(text string, maxChars int) string {
	cleaned := strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	runes := []rune(cleaned)
	if len(runes) <= maxChars {
		return cleaned
	}
	return strings.TrimRight(string(runes[:maxChars-1]), " ") + "…"
}

func cleanDecision(decision string) string {
	cleaned := strings.TrimSpace(strings.Join(strings.Fields(decision), " "))
	if cleaned == "" {
		return ""
	}
	return truncateText(cleaned, maxDecisionChars)
}

var decisionNoiseRE = regexp.MustCompile(`[^\wáéíóúñü ]+`)

func normalizeDecision(decision string) string {
	text := strings.ToLower(strings.TrimSpace(decision))
	text = strings.Join(strings.Fields(text), " ")
	text = decisionNoiseRE.ReplaceAllString(text, "")
	return text
}

// isNewDecision reports whether candidate is distinct enough from
// every decision already recorded, using Levenshtein similarity as a
// stand-in for difflib's SequenceMatcher ratio.
func isNewDecision(candidate string, existing []string) bool {
	normalized := normalizeDecision(candidate)
	if normalized == "" {
		return false
	}
	for _, current := range existing {
		currNorm := normalizeDecision(current)
		if normalized == currNorm {
			return false
		}
		if levenshtein.Match(normalized, currNorm, nil) >= decisionSimilarityThreshold {
			return false
		}
	}
	return true
}

// sortedKeys is a small helper used by the extractor and local update
// builder when they need deterministic iteration over a bible map.
func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
