package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigExpandsEnvVars(t *testing.T) {
	t.Setenv("TENLIB_TEST_API_KEY", "sk-from-env")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	contents := `
models:
  - name: primary
    provider: openai
    apiKey: "${TENLIB_TEST_API_KEY}"
    model: gpt-4o-mini
    dailyQuota: 100000
chunkPreset: standard
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Models) != 1 {
		t.Fatalf("expected 1 model, got %d", len(cfg.Models))
	}
	if cfg.Models[0].APIKey != "sk-from-env" {
		t.Errorf("expected the env var to be expanded, got %q", cfg.Models[0].APIKey)
	}
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("models: []\n"), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPath == "" || cfg.QuotaCachePath == "" || cfg.OutputDir == "" {
		t.Errorf("expected default paths to be filled in, got %+v", cfg)
	}
	if cfg.ChunkPreset != "standard" {
		t.Errorf("expected default chunk preset %q, got %q", "standard", cfg.ChunkPreset)
	}
}

func TestResolveConfigPathHonorsEnvOverride(t *testing.T) {
	t.Setenv(configPathEnv, "/tmp/custom-tenlib-config.yaml")
	path, err := resolveConfigPath()
	if err != nil {
		t.Fatalf("resolveConfigPath: %v", err)
	}
	if path != "/tmp/custom-tenlib-config.yaml" {
		t.Errorf("expected override path, got %q", path)
	}
}

func TestLoadConfigMissingFileErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected a missing config file to error")
	}
}
