package bible

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// PlaceholderDescription is the sentinel value assigned to a character
// discovered by the local detector but not yet enriched by the AI
// extractor. It is the only description apply() may overwrite.
const PlaceholderDescription = "personaje mencionado en esta escena"

var nameRE = regexp.MustCompile(`\b[A-ZÁÉÍÓÚÑ][a-záéíóúñ]{2,}\b`)

var speechVerbs = []string{
	"dijo", "dijeron", "pregunto", "preguntó", "respondio", "respondió",
	"grito", "gritó", "susurro", "susurró", "murmuro", "murmuró",
	"exclamo", "exclamó", "anadio", "añadió",
}

var actionVerbs = []string{
	"miro", "miró", "sonrio", "sonrió", "asintio", "asintió",
	"avanzo", "avanzó", "ataco", "atacó", "corrio", "corrió",
	"rio", "rió", "penso", "pensó",
	"ordeno", "ordenó", "entro", "entró", "salio", "salió",
}

var titleHints = []string{
	"señor", "señora", "sr", "sra", "sir", "lady", "lord",
	"rey", "reina", "príncipe", "principe", "princesa",
	"general", "capitán", "capitan", "doctor", "doctora",
}

var genitivePrepositions = []string{"de", "del"}

var nonCharacterWords = map[string]struct{}{
	"el": {}, "la": {}, "los": {}, "las": {}, "un": {}, "una": {},
	"de": {}, "del": {}, "al": {}, "en": {}, "por": {}, "para": {}, "con": {}, "sin": {},
	"él": {}, "ella": {}, "ellas": {}, "ello": {}, "ellos": {},
	"eso": {}, "esto": {}, "esta": {}, "este": {}, "antes": {}, "despues": {}, "después": {},
	"cuando": {}, "mientras": {}, "aunque": {}, "porque": {}, "pero": {}, "como": {}, "qué": {}, "que": {},
	"entonces": {}, "asi": {}, "así": {}, "todavia": {}, "todavía": {}, "bueno": {},
	"luego": {}, "ahora": {},
	"estaba": {}, "era": {}, "fue": {}, "es": {}, "son": {}, "eres": {}, "estas": {}, "estás": {},
	"escuche": {}, "escuché": {},
	"señor": {}, "senor": {},
	"sala": {}, "control": {}, "centro": {}, "verdad": {}, "cualquiera": {}, "demonio": {},
	"guardianes": {}, "guardian": {}, "guerreros": {}, "guerrero": {},
	"soldados": {}, "soldado": {}, "angeles": {}, "angel": {},
	"generales": {}, "lideres": {},
	"ejercito": {}, "ejercitos": {},
	"doce": {}, "siete": {}, "tres": {}, "diez": {}, "cinco": {}, "seis": {}, "ocho": {}, "nueve": {}, "once": {},
	"kufufufu": {}, "jajaja": {}, "jejeje": {}, "hahaha": {},
	"texto": {}, "original": {}, "chunk": {}, "capitulo": {}, "capítulo": {},
	"pagina": {}, "página": {}, "regreso": {}, "estrella": {},
	"dragon": {}, "slime": {}, "demon": {},
	"lord": {}, "king": {}, "queen": {}, "emperor": {}, "master": {},
	"the": {}, "that": {}, "this": {}, "time": {}, "got": {}, "from": {}, "with": {}, "when": {}, "then": {},
	"they": {}, "them": {}, "their": {}, "there": {}, "have": {}, "been": {}, "will": {}, "would": {}, "could": {},
	"which": {}, "what": {}, "where": {}, "who": {}, "how": {}, "some": {}, "all": {}, "one": {}, "two": {},
	"him": {}, "her": {}, "his": {}, "she": {}, "was": {}, "were": {}, "had": {}, "has": {}, "may": {}, "also": {},
	"even": {}, "only": {}, "than": {}, "more": {}, "very": {}, "too": {}, "out": {}, "back": {},
	"being": {}, "said": {}, "still": {}, "again": {}, "most": {}, "other": {}, "into": {}, "over": {},
	"after": {}, "before": {}, "about": {}, "just": {}, "your": {}, "our": {}, "and": {}, "but": {}, "not": {},
	"any": {}, "new": {}, "see": {}, "its": {}, "for": {}, "are": {},
	"reincarnated": {},
}

func set(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[normalizeWord(w)] = struct{}{}
	}
	return m
}

var speechVerbsNormalized = set(speechVerbs)
var actionVerbsNormalized = set(actionVerbs)
var titleHintsNormalized = set(titleHints)

var tokenRE = regexp.MustCompile(`[A-Za-zÁÉÍÓÚÑáéíóúñ]+`)

// normalizeWord strips diacritics (NFKD decomposition, drop combining
// marks) and lowercases, matching Python's unicodedata-based fold.
func normalizeWord(value string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, value)
	if err != nil {
		out = value
	}
	return strings.ToLower(strings.TrimSpace(out))
}

type candidateStats struct {
	occurrences       int
	speechHits        int
	actionHits        int
	titleHits         int
	sentenceStartHits int
	genitiveHits      int
	firstIndex        int
}

// ExtractCharacterMentions detects character names with contextual
// evidence (speech verbs, action verbs, titles) to avoid treating
// every capitalized word as a character, and excludes names that only
// ever appear after a genitive preposition (a signal for a place or
// organization rather than a person).
func ExtractCharacterMentions(
	sourceText, translatedText string,
	maxCharacters int,
	existingCharacters map[string]string,
) map[string]string {
	combined := strings.TrimSpace(sourceText + "\n" + translatedText)
	if combined == "" {
		return map[string]string{}
	}

	knownByNorm := make(map[string]string, len(existingCharacters))
	for name := range existingCharacters {
		knownByNorm[normalizeWord(name)] = name
	}

	statsByNorm := make(map[string]*candidateStats)
	displayByNorm := make(map[string]string)

	for _, loc := range nameRE.FindAllStringIndex(combined, -1) {
		rawName := combined[loc[0]:loc[1]]
		norm := normalizeWord(rawName)

		stats, ok := statsByNorm[norm]
		if !ok {
			stats = &candidateStats{firstIndex: 1 << 30}
			statsByNorm[norm] = stats
		}
		stats.occurrences++
		if loc[0] < stats.firstIndex {
			stats.firstIndex = loc[0]
		}

		if isSentenceStart(combined, loc[0]) {
			stats.sentenceStartHits++
		}
		if hasSpeechContext(combined, rawName, loc[0], loc[1]) {
			stats.speechHits++
		}
		if hasActionContext(combined, loc[1]) {
			stats.actionHits++
		}
		if hasTitleContext(combined, loc[0]) {
			stats.titleHits++
		}
		if hasGenitiveContext(combined, loc[0]) {
			stats.genitiveHits++
		}

		if canonical, ok := knownByNorm[norm]; ok {
			displayByNorm[norm] = canonical
		} else if _, exists := displayByNorm[norm]; !exists {
			displayByNorm[norm] = rawName
		}
	}

	type ranked struct {
		score       int
		occurrences int
		negFirst    int
		display     string
	}
	var candidates []ranked

	for norm, stats := range statsByNorm {
		display := displayByNorm[norm]

		if _, ok := knownByNorm[norm]; ok {
			score := 100 + stats.occurrences
			candidates = append(candidates, ranked{score, stats.occurrences, -stats.firstIndex, display})
			continue
		}

		if _, ok := nonCharacterWords[norm]; ok {
			continue
		}
		if _, ok := speechVerbsNormalized[norm]; ok {
			continue
		}
		if _, ok := actionVerbsNormalized[norm]; ok {
			continue
		}

		hasDirectContext := stats.speechHits > 0 || stats.actionHits > 0 || stats.titleHits > 0

		if !hasDirectContext && stats.genitiveHits >= stats.occurrences {
			continue
		}

		score := scoreCandidate(stats)
		repeatedWithBodyContext := stats.occurrences >= 2 && stats.sentenceStartHits < stats.occurrences

		if score >= 2 && (hasDirectContext || repeatedWithBodyContext) {
			candidates = append(candidates, ranked{score, stats.occurrences, -stats.firstIndex, display})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.occurrences != b.occurrences {
			return a.occurrences > b.occurrences
		}
		if a.negFirst != b.negFirst {
			return a.negFirst > b.negFirst
		}
		return a.display < b.display
	})

	selected := make(map[string]string)
	for _, c := range candidates {
		if _, exists := selected[c.display]; !exists {
			selected[c.display] = PlaceholderDescription
		}
		if len(selected) >= maxCharacters {
			break
		}
	}

	return selected
}

func scoreCandidate(stats *candidateStats) int {
	score := stats.occurrences
	if score > 3 {
		score = 3
	}
	score += stats.speechHits * 3
	score += stats.actionHits * 3
	score += stats.titleHits * 2
	if stats.occurrences == stats.sentenceStartHits {
		score -= 2
	}
	return score
}

func isSentenceStart(text string, index int) bool {
	i := index - 1
	for i >= 0 && isSpaceByte(text[i]) {
		i--
	}
	if i < 0 {
		return true
	}
	c := text[i]
	return c == '.' || c == '!' || c == '?' || c == '\n'
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func hasSpeechContext(text, name string, start, end int) bool {
	beforeStart := start - 42
	if beforeStart < 0 {
		beforeStart = 0
	}
	before := text[beforeStart:end]
	afterEnd := end + 42
	if afterEnd > len(text) {
		afterEnd = len(text)
	}
	after := text[end:afterEnd]

	if matchesVerbBefore(before, name, speechVerbs) {
		return true
	}
	return matchesVerbImmediatelyAfter(after, speechVerbs)
}

func hasActionContext(text string, end int) bool {
	afterEnd := end + 24
	if afterEnd > len(text) {
		afterEnd = len(text)
	}
	after := text[end:afterEnd]
	return matchesVerbImmediatelyAfter(after, actionVerbs)
}

// matchesVerbBefore reports whether before ends with "<verb> <name>"
// (case-insensitively), i.e. the verb directly precedes name.
func matchesVerbBefore(before, name string, verbs []string) bool {
	trimmedLower := strings.ToLower(strings.TrimRight(before, " \t\n\r"))
	nameLower := strings.ToLower(name)
	if !strings.HasSuffix(trimmedLower, nameLower) {
		return false
	}
	rest := strings.TrimSpace(trimmedLower[:len(trimmedLower)-len(nameLower)])
	if rest == "" {
		return false
	}
	fields := strings.Fields(rest)
	last := fields[len(fields)-1]
	for _, v := range verbs {
		if strings.ToLower(v) == last {
			return true
		}
	}
	return false
}

// matchesVerbImmediatelyAfter reports whether after starts with
// whitespace then one of verbs as its first word.
func matchesVerbImmediatelyAfter(after string, verbs []string) bool {
	trimmed := strings.TrimLeft(after, " \t\n\r")
	if trimmed == after && after != "" {
		return false // no leading whitespace: not "immediately after a gap"
	}
	fields := strings.Fields(trimmed)
	if len(fields) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimRightFunc(fields[0], unicode.IsPunct))
	for _, v := range verbs {
		if strings.ToLower(v) == first {
			return true
		}
	}
	return false
}

func hasTitleContext(text string, start int) bool {
	beforeStart := start - 20
	if beforeStart < 0 {
		beforeStart = 0
	}
	tokens := tokenRE.FindAllString(text[beforeStart:start], -1)
	if len(tokens) == 0 {
		return false
	}
	_, ok := titleHintsNormalized[normalizeWord(tokens[len(tokens)-1])]
	return ok
}

func hasGenitiveContext(text string, start int) bool {
	beforeStart := start - 25
	if beforeStart < 0 {
		beforeStart = 0
	}
	tokens := tokenRE.FindAllString(text[beforeStart:start], -1)
	if len(tokens) == 0 {
		return false
	}
	last := normalizeWord(tokens[len(tokens)-1])
	for _, p := range genitivePrepositions {
		if p == last {
			return true
		}
	}
	return false
}
