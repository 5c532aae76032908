package router

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
)

const (
	defaultConfidence   = 0.5
	emergencyConfidence = 0.3
	defaultNotes        = "Sin notas."
)

var (
	fencedJSONRE = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*\\})\\s*```")
	bareObjectRE = regexp.MustCompile(`(?s)\{.*\}`)
)

var thinkTagRE = regexp.MustCompile(`(?s)<think>.*?</think>`)

// stripThinkTags removes <think>...</think> reasoning traces some
// models prepend to their actual answer, so neither the JSON stages
// nor the emergency fallback ever treat reasoning as the translation.
func stripThinkTags(text string) string {
	return thinkTagRE.ReplaceAllString(text, "")
}

// stripMarkdownFences drops lines that are bare ``` fence markers,
// used in the emergency fallback when a model wraps a plain-text
// (non-JSON) translation in a markdown code block instead of
// returning the structured JSON the prompt asked for.
func stripMarkdownFences(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "```") {
			kept = append(kept, line)
		}
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// ParseResponse runs the teacher-style progressive degradation over a
// model's raw text: direct JSON, then a fenced markdown block, then the
// span from the first "{" to the last "}" (each of those two retried
// through json-repair when it does not parse directly), finally an
// emergency fallback that treats the whole response as the translation. It
// never errors — every stage failure just falls through to the next,
// and the last stage always succeeds.
func ParseResponse(modelName, rawText string) Response {
	trimmed := stripThinkTags(strings.TrimSpace(rawText))

	if data, ok := tryDirectJSON(trimmed); ok {
		return fieldsToResponse(modelName, data)
	}

	if m := fencedJSONRE.FindStringSubmatch(trimmed); m != nil {
		if data, ok := tryDirectJSON(m[1]); ok {
			return fieldsToResponse(modelName, data)
		}
		if data, ok := tryRepairedJSON(m[1]); ok {
			return fieldsToResponse(modelName, data)
		}
	}

	if m := bareObjectRE.FindString(trimmed); m != "" {
		if data, ok := tryDirectJSON(m); ok {
			return fieldsToResponse(modelName, data)
		}
		if data, ok := tryRepairedJSON(m); ok {
			return fieldsToResponse(modelName, data)
		}
	}

	return Response{
		Translation: stripMarkdownFences(trimmed),
		Confidence:  emergencyConfidence,
		Notes:       "respuesta no estructurada — usada como traducción directa",
		ModelUsed:   modelName,
	}
}

func tryDirectJSON(text string) (map[string]any, bool) {
	var data map[string]any
	if err := json.Unmarshal([]byte(text), &data); err != nil {
		return nil, false
	}
	return data, true
}

func tryRepairedJSON(text string) (map[string]any, bool) {
	repaired, err := jsonrepair.RepairJSON(text)
	if err != nil {
		return nil, false
	}
	return tryDirectJSON(repaired)
}

func fieldsToResponse(modelName string, data map[string]any) Response {
	translation := coerceString(data["translation"])
	if translation == "" {
		translation = coerceString(data["text"])
	}
	if translation == "" {
		translation = coerceString(data["result"])
	}

	confidence := defaultConfidence
	if v, ok := data["confidence"]; ok {
		if f, ok := coerceFloat(v); ok {
			confidence = clamp01(f)
		}
	}

	notes := coerceString(data["notes"])
	if notes == "" {
		notes = defaultNotes
	}

	return Response{
		Translation: translation,
		Confidence:  confidence,
		Notes:       notes,
		ModelUsed:   modelName,
	}
}

func coerceString(v any) string {
	s, _ := v.(string)
	return s
}

func coerceFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
