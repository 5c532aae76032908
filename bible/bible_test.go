package bible_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/tenlib/tenlib/bible"
)

func TestBook_Apply_GlossaryWriteOnce(t *testing.T) {
	b := bible.Empty()
	b.Apply(bible.Update{Glossary: map[string]string{"Void": "Void"}})
	b.Apply(bible.Update{Glossary: map[string]string{"Void": "El Vacío"}})

	if got := b.Glossary["Void"]; got != "Void" {
		t.Errorf("glossary entry should be write-once, got %q", got)
	}
}

func TestBook_Apply_GlossaryCapacity(t *testing.T) {
	b := bible.Empty()
	for i := 0; i < bible.MaxGlossaryEntries+10; i++ {
		term := fmt.Sprintf("term-%d", i)
		b.Apply(bible.Update{Glossary: map[string]string{term: term}})
	}
	if len(b.Glossary) > bible.MaxGlossaryEntries {
		t.Errorf("glossary exceeded cap: %d > %d", len(b.Glossary), bible.MaxGlossaryEntries)
	}
}

func TestBook_Apply_CharacterPlaceholderOverwrittenByRealDescription(t *testing.T) {
	b := bible.Empty()
	b.Apply(bible.Update{Characters: map[string]string{"Rimuru": bible.PlaceholderDescription}})
	b.Apply(bible.Update{Characters: map[string]string{"Rimuru": "Género: M | Rol: protagonista"}})

	if got := b.Characters["Rimuru"]; got != "Género: M | Rol: protagonista" {
		t.Errorf("placeholder description should be overwritten by real one, got %q", got)
	}
}

func TestBook_Apply_CharacterRealDescriptionNotOverwritten(t *testing.T) {
	b := bible.Empty()
	b.Apply(bible.Update{Characters: map[string]string{"Rimuru": "Género: M | Rol: protagonista"}})
	b.Apply(bible.Update{Characters: map[string]string{"Rimuru": "otra cosa"}})

	if got := b.Characters["Rimuru"]; got != "Género: M | Rol: protagonista" {
		t.Errorf("real description must not be overwritten, got %q", got)
	}
}

func TestBook_Apply_RejectedCharacterRemoved(t *testing.T) {
	b := bible.Empty()
	b.Apply(bible.Update{Characters: map[string]string{"Tempest": bible.PlaceholderDescription}})
	b.Apply(bible.Update{Rejected: []string{"Tempest"}})

	if _, ok := b.Characters["Tempest"]; ok {
		t.Error("rejected character should have been removed")
	}
}

func TestBook_Apply_DecisionsDedupAndCap(t *testing.T) {
	b := bible.Empty()
	for i := 0; i < bible.MaxDecisionsEntries+5; i++ {
		b.Apply(bible.Update{Decisions: []string{fmt.Sprintf("usar tuteo consistente en diálogos número %d", i)}})
	}
	if len(b.Decisions) > bible.MaxDecisionsEntries {
		t.Errorf("decisions exceeded cap: %d > %d", len(b.Decisions), bible.MaxDecisionsEntries)
	}
}

func TestBook_Apply_DecisionNearDuplicateRejected(t *testing.T) {
	b := bible.Empty()
	b.Apply(bible.Update{Decisions: []string{"usar tuteo consistente en diálogos entre protagonistas"}})
	b.Apply(bible.Update{Decisions: []string{"usar tuteo consistente en dialogos entre protagonistas"}})

	if len(b.Decisions) != 1 {
		t.Errorf("near-duplicate decision should have been rejected, got %d decisions: %v", len(b.Decisions), b.Decisions)
	}
}

func TestBook_Apply_LastSceneAlwaysRefreshedAndTruncated(t *testing.T) {
	b := bible.Empty()
	b.Apply(bible.Update{LastScene: "Primera escena."})
	if b.LastScene != "Primera escena." {
		t.Fatalf("unexpected last scene: %q", b.LastScene)
	}

	long := strings.Repeat("palabra ", 100)
	b.Apply(bible.Update{LastScene: long})
	if len([]rune(b.LastScene)) > bible.MaxLastSceneChars {
		t.Errorf("last_scene exceeded cap: %d runes", len([]rune(b.LastScene)))
	}
	if !strings.HasSuffix(b.LastScene, "…") {
		t.Errorf("truncated last_scene should end with ellipsis, got %q", b.LastScene)
	}
}

func TestBook_JSONRoundTrip(t *testing.T) {
	b := bible.Empty()
	b.Apply(bible.Update{
		Voice:      "narrador en primera persona, tiempo pasado",
		Glossary:   map[string]string{"Void": "Void"},
		Characters: map[string]string{"Rimuru": "Género: M | Rol: protagonista"},
		Decisions:  []string{"usar tuteo consistente"},
		LastScene:  "Una escena cualquiera.",
	})

	raw, err := b.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON: %v", err)
	}

	roundTripped, err := bible.FromJSON(raw)
	if err != nil {
		t.Fatalf("FromJSON: %v", err)
	}

	if roundTripped.Voice != b.Voice ||
		roundTripped.LastScene != b.LastScene ||
		len(roundTripped.Glossary) != len(b.Glossary) ||
		len(roundTripped.Characters) != len(b.Characters) ||
		len(roundTripped.Decisions) != len(b.Decisions) {
		t.Errorf("round trip mismatch: want %+v, got %+v", b, roundTripped)
	}
}

func TestMergeUpdates_AITakesPriorityOnConflict(t *testing.T) {
	local := bible.Update{Voice: "narrador en tercera persona, tiempo pasado", LastScene: "local scene"}
	extracted := &bible.Update{Voice: "narrador en primera persona, tiempo pasado, tono íntimo", LastScene: "ai scene"}

	merged := bible.MergeUpdates(local, extracted)

	if merged.Voice != extracted.Voice {
		t.Errorf("expected AI voice to win, got %q", merged.Voice)
	}
	if merged.LastScene != extracted.LastScene {
		t.Errorf("expected AI last_scene to win, got %q", merged.LastScene)
	}
}

func TestMergeUpdates_FallsBackToLocalWhenNoExtraction(t *testing.T) {
	local := bible.Update{Voice: "narrador en tercera persona, tiempo pasado"}

	merged := bible.MergeUpdates(local, nil)

	if merged.Voice != local.Voice {
		t.Errorf("expected local voice fallback, got %q", merged.Voice)
	}
}
