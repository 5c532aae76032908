package bible

import (
	"regexp"
	"strings"
)

const sceneDigestMaxChars = 280

// BuildLocalUpdate produces a deterministic Update from plain text
// analysis, guaranteeing continuity and progress even when the AI
// extractor doesn't respond. detectedCharacters should come from
// ExtractCharacterMentions — passed in rather than recomputed here so
// a chunk never runs character detection twice.
//
// Voice is only inferred locally while no AI-enriched voice has been
// set yet (existingVoice empty or still the generic default): once
// the extractor establishes a voice with real tonal detail, the local
// heuristic — which always returns the same plain format — must not
// clobber it.
func BuildLocalUpdate(sourceText, translatedText, notes, existingVoice string, detectedCharacters map[string]string) Update {
	var voice string
	if existingVoice == "" || existingVoice == defaultVoice {
		voice = inferNarrativeVoice(translatedText, existingVoice)
	}

	characters := detectedCharacters
	if characters == nil {
		characters = map[string]string{}
	}

	return Update{
		Voice:      voice,
		Characters: characters,
		Decisions:  extractStyleDecisions(notes, 5),
		LastScene:  sceneDigest(translatedText),
	}
}

var (
	pastTenseRE    = regexp.MustCompile(`\b(fue|era|estaba|había|dijo|pensó|miró|entró)\b`)
	presentTenseRE = regexp.MustCompile(`\b(es|está|dice|piensa|mira|entra|hay)\b`)
)

var firstPersonTokens = []string{" yo ", " me ", " mi ", " mí ", " conmigo ", " nosotros ", " nos "}
var thirdPersonTokens = []string{" él ", " ella ", " ellos ", " ellas ", " le ", " les ", " su ", " sus "}

// inferNarrativeVoice approximates the book's narrative voice well
// enough to keep later chunks consistent. Not a substitute for the AI
// extractor's richer read — just a deterministic fallback.
func inferNarrativeVoice(text, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}

	lowered := " " + strings.ToLower(text) + " "

	firstPersonHits := countTokens(lowered, firstPersonTokens)
	thirdPersonHits := countTokens(lowered, thirdPersonTokens)

	person := "tercera persona"
	if firstPersonHits >= max(2, thirdPersonHits+1) {
		person = "primera persona"
	}

	pastHits := len(pastTenseRE.FindAllString(lowered, -1))
	presentHits := len(presentTenseRE.FindAllString(lowered, -1))

	tense := "tiempo presente"
	if pastHits >= presentHits {
		tense = "tiempo pasado"
	}

	return "narrador en " + person + ", " + tense
}

func countTokens(haystack string, tokens []string) int {
	n := 0
	for _, t := range tokens {
		if strings.Contains(haystack, t) {
			n++
		}
	}
	return n
}

var decisionKeywords = []string{
	"mantener", "preservar", "adaptar", "traducir", "estilo", "tono",
	"registro", "consistencia", "voz", "narrador", "tiempo verbal",
	"perspectiva", "tutear", "ustedear", "nombre propio", "término",
}

// extractStyleDecisions pulls short style decisions out of notes when
// explicit cues are present, stopping at maxItems.
func extractStyleDecisions(notes string, maxItems int) []string {
	if notes == "" {
		return nil
	}

	var decisions []string
	for _, sentence := range strings.Split(notes, ".") {
		fragment := strings.TrimSpace(sentence)
		if fragment == "" {
			continue
		}
		lowered := strings.ToLower(fragment)
		for _, k := range decisionKeywords {
			if strings.Contains(lowered, k) {
				decisions = append(decisions, fragment)
				break
			}
		}
		if len(decisions) >= maxItems {
			break
		}
	}
	return decisions
}

var sentenceBoundaryRE = regexp.MustCompile(`(?:[.!?])\s+`)

// sceneDigest produces a short, deterministic summary for continuity
// when the AI extractor isn't used this chunk.
func sceneDigest(text string) string {
	clean := strings.TrimSpace(strings.Join(strings.Fields(text), " "))
	if clean == "" {
		return "Sin contenido suficiente para resumir la escena."
	}

	sentences := splitOnSentenceBoundary(clean)
	limit := len(sentences)
	if limit > 2 {
		limit = 2
	}
	summary := strings.TrimSpace(strings.Join(sentences[:limit], " "))
	if summary == "" {
		summary = clean
	}

	runes := []rune(summary)
	if len(runes) > sceneDigestMaxChars {
		summary = strings.TrimRight(string(runes[:sceneDigestMaxChars-1]), " ") + "…"
	}
	return summary
}

func splitOnSentenceBoundary(text string) []string {
	loc := sentenceBoundaryRE.FindAllStringIndex(text, -1)
	if len(loc) == 0 {
		return []string{text}
	}
	var out []string
	start := 0
	for _, l := range loc {
		out = append(out, text[start:l[0]+1])
		start = l[1]
	}
	out = append(out, text[start:])
	return out
}
