package bible

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"

	"github.com/tenlib/tenlib"
)

// defaultExtractEvery is how many chunks may pass without a reported
// finding before the extractor runs anyway, just in case.
const defaultExtractEvery = 5

const extractionPromptTemplate = `Analiza el fragmento original y su traducción. Extrae únicamente información nueva que deba recordarse para mantener consistencia en el resto del libro.

FRAGMENTO ORIGINAL:
{{.Original}}

TRADUCCIÓN:
{{.Translation}}

NOTAS DEL TRADUCTOR:
{{.Notes}}

{{.CandidatesSection}}Extrae:
0. Voz narrativa: persona gramatical (primera/tercera), tiempo verbal (pasado/presente) y rasgo principal del narrador (ej. "íntima y reflexiva", "épica y descriptiva", "irónica y distante"). Ejemplo: "narrador en primera persona, tiempo pasado, tono íntimo y contemplativo".
1. Glosario de términos del universo ficcional: habilidades, técnicas, razas, objetos especiales, títulos únicos y nombres de lugares que aparecen en este fragmento. Incluye TODO término relevante con su traducción establecida, incluso los que se decidió mantener sin traducir (ej. "Void" → "Void").
2. Personajes: solo individuos con nombre propio (personas, criaturas, entidades únicas) que actúan, hablan o tienen relevancia narrativa. NO incluyas lugares, reinos, organizaciones, grupos ni títulos colectivos. Para cada personaje incluye género (M/F/N), rol narrativo, estilo de habla y personalidad.
3. Decisiones de estilo puras (máximo 3): convenciones que NO son términos del glosario. Solo lo concreto: tratamiento del diálogo, uso de tuteo/ustedeo, estructuras gramaticales especiales.
4. Resumen en 2 frases de qué ocurrió en esta escena (para continuidad).

Responde ÚNICAMENTE con JSON válido:
{"voice": "persona, tiempo verbal y rasgo principal del narrador", "glossary": {"término_original": "término_traducido"}, "characters": {"nombre": "Género: M/F/N | Rol: ... | Habla: ... | Personalidad: ..."}, "rejected": ["nombre_que_no_es_personaje"], "decisions": ["decisión concreta que debe mantenerse"], "last_scene": "resumen de 2 frases de la escena"}

Si no hay nada nuevo en alguna categoría, devuelve un objeto/lista vacío.
No inventes términos que no aparezcan en el fragmento.
`

const candidatesSectionTemplate = `CANDIDATOS DE PERSONAJES DETECTADOS AUTOMÁTICAMENTE:
{{range .}}  - {{.}}
{{end}}
Para la sección "characters": revisa cada candidato de la lista anterior.
- Si es un individuo real (personaje que actúa, habla o tiene relevancia narrativa): inclúyelo con el formato "Género: M/F/N | Rol: ... | Habla: ... | Personalidad: ..."
- Si es un lugar, organización, grupo, título colectivo, palabra común del inglés (That, The, Time, Got, Dragon, Lord...) o sustantivo común del español (Página, Regreso, Estrella...): NO lo incluyas en "characters". Ponlo en "rejected".
Además, añade cualquier personaje nuevo que encuentres en el fragmento y no esté listado.

`

var (
	markdownJSONRE = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*(\{.*\})\s*` + "```")
	bareJSONRE     = regexp.MustCompile(`(?s)\{.*\}`)
)

var extractionKeywords = []string{
	"nuevo", "new", "término", "term",
	"personaje", "character", "nombre", "name",
	"decisión", "decision",
}

// Response is the minimal shape the extractor needs back from a
// model call. It mirrors router.Response's Translation field without
// importing the router package, keeping bible decoupled from it.
type Response struct {
	Translation string
}

// Translator is the minimal interface the extractor needs from a
// model — decoupled from the router, it only needs to make one call.
type Translator interface {
	Translate(ctx context.Context, prompt, systemPrompt string) (Response, error)
}

// Extractor's single responsibility is, given a translated chunk, to
// return an Update with newly-detected terms, characters and
// decisions. When characterCandidates (from the local detector) are
// supplied, the model validates them: confirms the real characters,
// discards places/organizations/groups, and may add its own.
//
// It never modifies the bible — only reports what would change. The
// Orchestrator decides whether to apply the result.
type Extractor struct {
	model                  Translator
	extractEvery           int
	chunksSinceLastExtract int
}

// NewExtractor returns an Extractor bound to model, extracting at
// least every extractEvery chunks. extractEvery <= 0 uses the default.
func NewExtractor(model Translator, extractEvery int) *Extractor {
	if extractEvery <= 0 {
		extractEvery = defaultExtractEvery
	}
	return &Extractor{model: model, extractEvery: extractEvery}
}

// ShouldExtract decides whether extraction is worth running on this
// chunk: always on the first chunk, always when force is set (new
// local candidates), when the translator's own notes mention finding
// something new, or when extractEvery chunks have passed since the
// last extraction.
func (e *Extractor) ShouldExtract(chunkIndex int, notes string, force bool) bool {
	if chunkIndex == 0 || force {
		return true
	}

	notesLower := strings.ToLower(notes)
	for _, keyword := range extractionKeywords {
		if strings.Contains(notesLower, keyword) {
			return true
		}
	}

	e.chunksSinceLastExtract++
	return e.chunksSinceLastExtract >= e.extractEvery
}

// Extract runs the extraction prompt and parses the result into an
// Update, or returns (nil, nil) if it decided not to extract this
// chunk. A failed model call logs a warning and returns (nil, nil); an
// unparseable response yields an empty Update. An error is returned
// only when the extraction prompt itself cannot be built.
func (e *Extractor) Extract(
	ctx context.Context,
	original, translation, notes string,
	chunkIndex int,
	characterCandidates map[string]string,
	force bool,
) (*Update, error) {
	if !e.ShouldExtract(chunkIndex, notes, force) {
		return nil, nil
	}

	candidatesSection, err := buildCandidatesSection(characterCandidates)
	if err != nil {
		return nil, fmt.Errorf("building candidates section: %w", err)
	}
	if notes == "" {
		notes = "Sin notas."
	}

	prompt, err := renderExtractionPrompt(original, translation, notes, candidatesSection)
	if err != nil {
		return nil, fmt.Errorf("rendering extraction prompt: %w", err)
	}

	response, err := e.model.Translate(ctx, prompt, "")
	if err != nil {
		slog.Warn("extractor call failed, bible unchanged", slog.Int("chunk_index", chunkIndex), slog.Any("error", err))
		return nil, nil
	}
	e.chunksSinceLastExtract = 0

	return parseUpdate(response.Translation), nil
}

func buildCandidatesSection(candidates map[string]string) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}
	names := sortedKeys(candidates)
	return tenlib.RenderTemplate("candidates", candidatesSectionTemplate, names)
}

type extractionPromptData struct {
	Original          string
	Translation       string
	Notes             string
	CandidatesSection string
}

func renderExtractionPrompt(original, translation, notes, candidatesSection string) (string, error) {
	return tenlib.RenderTemplate("extraction", extractionPromptTemplate, extractionPromptData{
		Original:          original,
		Translation:       translation,
		Notes:             notes,
		CandidatesSection: candidatesSection,
	})
}

// parseUpdate parses the model's response in stages: direct JSON, then
// a fenced markdown block, then the span from the first "{" to the last
// "}" (each of those two retried through json-repair when it does not
// parse directly), then json-repair over the whole text. An
// unparseable response yields a zero Update rather than an
// error — the bible simply doesn't change this chunk.
func parseUpdate(rawText string) *Update {
	data := tryParseJSON(strings.TrimSpace(rawText))
	if data == nil {
		slog.Warn("extractor response not parseable, bible unchanged")
		return &Update{}
	}

	return &Update{
		Voice:      stringOrEmpty(data["voice"]),
		Glossary:   safeStringMap(data["glossary"]),
		Characters: safeStringMap(data["characters"]),
		Decisions:  safeStringSlice(data["decisions"]),
		LastScene:  stringOrEmpty(data["last_scene"]),
		Rejected:   safeStringSlice(data["rejected"]),
	}
}

func tryParseJSON(text string) map[string]any {
	var direct map[string]any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct
	}

	if m := markdownJSONRE.FindStringSubmatch(text); m != nil {
		var fenced map[string]any
		if err := json.Unmarshal([]byte(m[1]), &fenced); err == nil {
			return fenced
		}
		if repaired, err := jsonrepair.RepairJSON(m[1]); err == nil {
			var viaRepair map[string]any
			if err := json.Unmarshal([]byte(repaired), &viaRepair); err == nil {
				return viaRepair
			}
		}
	}

	if m := bareJSONRE.FindString(text); m != "" {
		var bare map[string]any
		if err := json.Unmarshal([]byte(m), &bare); err == nil {
			return bare
		}
		if repaired, err := jsonrepair.RepairJSON(m); err == nil {
			var viaRepair map[string]any
			if err := json.Unmarshal([]byte(repaired), &viaRepair); err == nil {
				return viaRepair
			}
		}
	}

	if repaired, err := jsonrepair.RepairJSON(text); err == nil {
		var viaRepair map[string]any
		if err := json.Unmarshal([]byte(repaired), &viaRepair); err == nil {
			return viaRepair
		}
	}

	return nil
}

func stringOrEmpty(v any) string {
	s, _ := v.(string)
	return strings.TrimSpace(s)
}

func safeStringMap(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]string{}
	}
	out := make(map[string]string, len(m))
	for k, raw := range m {
		if k == "" {
			continue
		}
		if s, ok := raw.(string); ok && s != "" {
			out[k] = s
		}
	}
	return out
}

func safeStringSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
