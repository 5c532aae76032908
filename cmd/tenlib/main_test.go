package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/tenlib/tenlib"
	"github.com/tenlib/tenlib/orchestrator"
)

func TestValidateManuscriptPath(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "book.txt")
	if err := os.WriteFile(txt, []byte("hola"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	bad := filepath.Join(dir, "book.docx")
	if err := os.WriteFile(bad, []byte("hola"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	if err := validateManuscriptPath(txt); err != nil {
		t.Errorf("expected %s to be valid, got %v", txt, err)
	}
	if err := validateManuscriptPath(bad); err == nil {
		t.Errorf("expected %s to be rejected for its extension", bad)
	}
	if err := validateManuscriptPath(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected a missing file to be rejected")
	}
	if err := validateManuscriptPath(dir); err == nil {
		t.Error("expected a directory to be rejected")
	}
	if err := validateManuscriptPath(""); err == nil {
		t.Error("expected an empty path to be rejected")
	}
}

func TestValidateLangTag(t *testing.T) {
	cases := []struct {
		tag string
		ok  bool
	}{
		{"en", true},
		{"es-419", true},
		{"a", true},
		{"", false},
		{"this-tag-is-too-long", false},
		{"has space", false},
	}
	for _, c := range cases {
		err := validateLangTag("-target", c.tag)
		if c.ok && err != nil {
			t.Errorf("tag %q: expected valid, got %v", c.tag, err)
		}
		if !c.ok && err == nil {
			t.Errorf("tag %q: expected invalid, got nil error", c.tag)
		}
	}
}

func TestReport_AllModelsExhaustedExitsTwo(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	result := orchestrator.PipelineResult{TotalChunks: 10, Translated: 5}

	code := report(result, tenlib.ErrAllModelsExhausted, logger)
	if code != 2 {
		t.Errorf("exit code = %d, want 2", code)
	}
}

func TestReport_SuccessExitsZero(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	result := orchestrator.PipelineResult{TotalChunks: 10, Translated: 10}

	code := report(result, nil, logger)
	if code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}

func TestReport_OtherErrorExitsOne(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	code := report(orchestrator.PipelineResult{}, errReportTestGeneric, logger)
	if code != 1 {
		t.Errorf("exit code = %d, want 1", code)
	}
}

var errReportTestGeneric = os.ErrInvalid
