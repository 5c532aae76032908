package router_test

import (
	"testing"

	"github.com/tenlib/tenlib/router"
)

func TestParseResponse_FencedMarkdownWithNestedObject(t *testing.T) {
	raw := "```json\n{\"translation\":\"T\",\"confidence\":0.85,\"notes\":\"N\",\"extra\":{\"a\":\"b\"}}\n```"

	got := router.ParseResponse("test-model", raw)

	if got.Translation != "T" {
		t.Errorf("translation = %q, want %q", got.Translation, "T")
	}
	if got.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", got.Confidence)
	}
}

func TestParseResponse_DirectJSON(t *testing.T) {
	raw := `{"translation":"hola","confidence":0.9,"notes":"ok"}`
	got := router.ParseResponse("m", raw)
	if got.Translation != "hola" || got.Confidence != 0.9 || got.Notes != "ok" {
		t.Errorf("unexpected response: %+v", got)
	}
}

func TestParseResponse_BareObjectInProse(t *testing.T) {
	raw := `Aquí está el resultado: {"translation":"hola mundo","confidence":0.7} — gracias`
	got := router.ParseResponse("m", raw)
	if got.Translation != "hola mundo" {
		t.Errorf("translation = %q", got.Translation)
	}
}

func TestParseResponse_EmergencyFallback(t *testing.T) {
	raw := "esto no es json en absoluto"
	got := router.ParseResponse("m", raw)
	if got.Translation != raw {
		t.Errorf("emergency translation = %q, want raw text", got.Translation)
	}
	if got.Confidence != 0.3 {
		t.Errorf("emergency confidence = %v, want 0.3", got.Confidence)
	}
}

func TestParseResponse_DefaultsWhenFieldsMissing(t *testing.T) {
	raw := `{"translation":"hola"}`
	got := router.ParseResponse("m", raw)
	if got.Confidence != 0.5 {
		t.Errorf("default confidence = %v, want 0.5", got.Confidence)
	}
	if got.Notes != "Sin notas." {
		t.Errorf("default notes = %q", got.Notes)
	}
}

func TestParseResponse_ConfidenceClamped(t *testing.T) {
	raw := `{"translation":"hola","confidence":1.5}`
	got := router.ParseResponse("m", raw)
	if got.Confidence != 1 {
		t.Errorf("confidence = %v, want clamped to 1", got.Confidence)
	}
}

func TestParseResponse_StripsThinkTagsBeforeParsingJSON(t *testing.T) {
	raw := "<think>dejame pensar en la mejor traduccion...</think>" +
		`{"translation":"hola mundo","confidence":0.8}`
	got := router.ParseResponse("m", raw)
	if got.Translation != "hola mundo" {
		t.Errorf("translation = %q, want %q", got.Translation, "hola mundo")
	}
}

func TestParseResponse_EmergencyFallbackStripsMarkdownFences(t *testing.T) {
	raw := "```\nhola mundo, esto no es json\n```"
	got := router.ParseResponse("m", raw)
	if got.Translation != "hola mundo, esto no es json" {
		t.Errorf("translation = %q, want fence markers stripped", got.Translation)
	}
}
