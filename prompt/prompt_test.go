package prompt_test

import (
	"strings"
	"testing"

	"github.com/tenlib/tenlib/prompt"
)

func TestBuildTranslatePromptNeverLeavesASectionEmpty(t *testing.T) {
	got, err := prompt.BuildTranslatePrompt("en", "es", prompt.Bible{})
	if err != nil {
		t.Fatalf("BuildTranslatePrompt: %v", err)
	}
	for _, want := range []string{"en", "es", "narrador en tercera persona", "Sin glosario todavía", "Ninguna todavía", "Sin perfiles definidos", "Inicio del libro"} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered prompt missing fallback text %q:\n%s", want, got)
		}
	}
}

func TestBuildTranslatePromptRendersPopulatedBible(t *testing.T) {
	b := prompt.Bible{
		Voice:      "voz irónica en primera persona",
		Decisions:  []string{"mantener \"señor\" sin traducir"},
		Glossary:   map[string]string{"sword": "espada", "dragon": "dragón"},
		Characters: map[string]string{"Aria": "protagonista, tono sarcástico"},
		LastScene:  "Aria cruza el puente en llamas.",
	}
	got, err := prompt.BuildTranslatePrompt("en", "es", b)
	if err != nil {
		t.Fatalf("BuildTranslatePrompt: %v", err)
	}
	for _, want := range []string{
		"voz irónica en primera persona",
		"mantener \"señor\" sin traducir",
		"dragon → dragón",
		"sword → espada",
		"Aria: protagonista, tono sarcástico",
		"Aria cruza el puente en llamas.",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("rendered prompt missing %q:\n%s", want, got)
		}
	}
}

func TestGlossaryIsRenderedInSortedOrder(t *testing.T) {
	b := prompt.Bible{Glossary: map[string]string{"zebra": "cebra", "apple": "manzana"}}
	got, err := prompt.BuildTranslatePrompt("en", "es", b)
	if err != nil {
		t.Fatalf("BuildTranslatePrompt: %v", err)
	}
	if strings.Index(got, "apple") > strings.Index(got, "zebra") {
		t.Errorf("expected glossary entries sorted alphabetically, got:\n%s", got)
	}
}

func TestBuildFixPromptReferencesSourceLanguage(t *testing.T) {
	got, err := prompt.BuildFixPrompt("en", "es", prompt.Bible{})
	if err != nil {
		t.Fatalf("BuildFixPrompt: %v", err)
	}
	if !strings.Contains(got, "Idioma original: en") {
		t.Errorf("fix prompt should still reference the source language, got:\n%s", got)
	}
}

func TestBuildPolishPromptHasNoSourceLanguage(t *testing.T) {
	got, err := prompt.BuildPolishPrompt("es", prompt.Bible{Voice: "voz poetica"})
	if err != nil {
		t.Fatalf("BuildPolishPrompt: %v", err)
	}
	if !strings.Contains(got, "voz poetica") {
		t.Errorf("polish prompt missing voice, got:\n%s", got)
	}
	if strings.Contains(got, "Idioma origen") || strings.Contains(got, "Idioma original") {
		t.Errorf("polish prompt should not name a source language, got:\n%s", got)
	}
}

func TestBuildFixChunkPayloadSeparatesOriginalFromDraft(t *testing.T) {
	got := prompt.BuildFixChunkPayload("The dragon roared.", "El dragón rugio.", "en", "es")
	if !strings.Contains(got, "The dragon roared.") || !strings.Contains(got, "El dragón rugio.") {
		t.Fatalf("payload missing original or draft text: %q", got)
	}
	if strings.Index(got, "The dragon roared.") > strings.Index(got, "El dragón rugio.") {
		t.Errorf("expected original before draft in the payload: %q", got)
	}
}

func TestBuildFixChunkPayloadHandlesEmptyOriginal(t *testing.T) {
	got := prompt.BuildFixChunkPayload("", "El dragón rugio.", "en", "es")
	if !strings.Contains(got, "[VACÍO]") {
		t.Errorf("expected an empty-original placeholder, got: %q", got)
	}
}

func TestBuildPolishChunkPayload(t *testing.T) {
	got := prompt.BuildPolishChunkPayload("El dragón rugio.", "es")
	if !strings.Contains(got, "El dragón rugio.") {
		t.Fatalf("payload missing draft text: %q", got)
	}
}
