// Package prompt renders the three system prompts the router hands to
// a model adapter (translate, fix, polish) from static template
// resources, never leaving a bible section blank in the rendered
// output.
package prompt

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/tenlib/tenlib"
)

//go:embed templates/translate.tmpl templates/fix.tmpl templates/polish.tmpl
var templatesFS embed.FS

// Fallback section strings. No section of a rendered prompt is ever
// empty — a missing value falls back to one of these.
const (
	defaultVoice    = "narrador en tercera persona, tiempo pasado"
	emptyGlossary   = "Sin glosario todavía — extrae términos relevantes que encuentres."
	emptyDecisions  = "Ninguna todavía — este es el primer fragmento."
	emptyCharacters = "Sin perfiles definidos todavía — infiere el tono de cada personaje del texto."
	emptyLastScene  = "Inicio del libro — no hay contexto previo."
)

// Bible is the subset of a book bible a prompt needs. It mirrors
// bible.Book's fields without importing that package, so prompt has no
// dependency on the bible's internal merge rules.
type Bible struct {
	Voice      string
	Decisions  []string
	Glossary   map[string]string
	Characters map[string]string
	LastScene  string
}

type templateData struct {
	SourceLang string
	TargetLang string
	Voice      string
	Glossary   string
	Decisions  string
	Characters string
	LastScene  string
}

func (b Bible) toData(sourceLang, targetLang string) templateData {
	voice := b.Voice
	if voice == "" {
		voice = defaultVoice
	}
	lastScene := b.LastScene
	if lastScene == "" {
		lastScene = emptyLastScene
	}
	return templateData{
		SourceLang: sourceLang,
		TargetLang: targetLang,
		Voice:      voice,
		Glossary:   formatGlossary(b.Glossary),
		Decisions:  formatDecisions(b.Decisions),
		Characters: formatCharacters(b.Characters),
		LastScene:  lastScene,
	}
}

func formatGlossary(glossary map[string]string) string {
	if len(glossary) == 0 {
		return emptyGlossary
	}
	keys := make([]string, 0, len(glossary))
	for k := range glossary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, src := range keys {
		lines = append(lines, fmt.Sprintf("  - %s → %s", src, glossary[src]))
	}
	return strings.Join(lines, "\n")
}

func formatDecisions(decisions []string) string {
	if len(decisions) == 0 {
		return emptyDecisions
	}
	lines := make([]string, 0, len(decisions))
	for _, d := range decisions {
		lines = append(lines, "  - "+d)
	}
	return strings.Join(lines, "\n")
}

func formatCharacters(characters map[string]string) string {
	if len(characters) == 0 {
		return emptyCharacters
	}
	keys := make([]string, 0, len(characters))
	for k := range characters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, name := range keys {
		lines = append(lines, fmt.Sprintf("  - %s: %s", name, characters[name]))
	}
	return strings.Join(lines, "\n")
}

func render(templateFile string, data templateData) (string, error) {
	raw, err := templatesFS.ReadFile(templateFile)
	if err != nil {
		return "", fmt.Errorf("reading prompt template %s: %w", templateFile, err)
	}
	return tenlib.RenderTemplate(templateFile, string(raw), data)
}

// BuildTranslatePrompt renders the system prompt for translate mode.
// The chunk to translate never goes here — it travels as the user
// message, keeping instructions separate from content.
func BuildTranslatePrompt(sourceLang, targetLang string, b Bible) (string, error) {
	return render("templates/translate.tmpl", b.toData(sourceLang, targetLang))
}

// BuildFixPrompt renders the system prompt for fix mode. The original
// and the existing draft travel in the user message; only editorial
// rules and the output contract live here.
func BuildFixPrompt(sourceLang, targetLang string, b Bible) (string, error) {
	return render("templates/fix.tmpl", b.toData(sourceLang, targetLang))
}

// BuildPolishPrompt renders the system prompt for fix-style mode,
// where there is no source-language reference text.
func BuildPolishPrompt(targetLang string, b Bible) (string, error) {
	return render("templates/polish.tmpl", b.toData("", targetLang))
}

// BuildFixChunkPayload is the user-message payload for fix mode,
// explicitly separating the original from the existing draft so any
// model can tell them apart.
func BuildFixChunkPayload(sourceChunk, draftChunk, sourceLang, targetLang string) string {
	sourceText := nonEmpty(sourceChunk)
	draftText := nonEmpty(draftChunk)

	return fmt.Sprintf(
		"TEXTO ORIGINAL (%s):\n<original>\n%s\n</original>\n\nTRADUCCIÓN EXISTENTE (%s):\n<traduccion_existente>\n%s\n</traduccion_existente>",
		sourceLang, sourceText, targetLang, draftText,
	)
}

// BuildPolishChunkPayload is the user-message payload for fix-style
// mode.
func BuildPolishChunkPayload(draftChunk, targetLang string) string {
	return fmt.Sprintf(
		"TRADUCCIÓN EXISTENTE (%s):\n<traduccion_existente>\n%s\n</traduccion_existente>",
		targetLang, nonEmpty(draftChunk),
	)
}

func nonEmpty(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return "[VACÍO]"
	}
	return trimmed
}
