package bible_test

import (
	"testing"

	"github.com/tenlib/tenlib/bible"
)

func TestExtractCharacterMentions_RejectsOrganisation(t *testing.T) {
	text := "Los ejecutivos de Tempest decidieron actuar. El director de Tempest firmó el documento."

	got := bible.ExtractCharacterMentions("", text, 240, nil)

	if _, ok := got["Tempest"]; ok {
		t.Errorf("expected Tempest to be rejected as an organization, got %+v", got)
	}
}

func TestExtractCharacterMentions_AcceptsViaSpeechVerb(t *testing.T) {
	text := "Rimuru avanzó. Rimuru respiró hondo. 'Sí,' dijo Rimuru."

	got := bible.ExtractCharacterMentions("", text, 240, nil)

	if _, ok := got["Rimuru"]; !ok {
		t.Errorf("expected Rimuru to be accepted, got %+v", got)
	}
}

func TestExtractCharacterMentions_KnownCharacterAlwaysAccepted(t *testing.T) {
	text := "Elena estaba cansada. Elena miró el cielo."
	existing := map[string]string{"Elena": "protagonista"}

	got := bible.ExtractCharacterMentions("", text, 240, existing)

	if _, ok := got["Elena"]; !ok {
		t.Errorf("expected known character Elena to remain accepted, got %+v", got)
	}
}

func TestExtractCharacterMentions_MaxCharactersRespected(t *testing.T) {
	text := "Ana gritó. Ana avanzó. Beatriz susurró. Beatriz corrió. Carlos preguntó. Carlos asintió."

	got := bible.ExtractCharacterMentions("", text, 1, nil)

	if len(got) > 1 {
		t.Errorf("expected at most 1 character, got %d: %+v", len(got), got)
	}
}
