package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/tenlib/tenlib/llm"
)

// configPathEnv overrides the default config location, ported from
// config_loader.py's TENLIB_CONFIG_PATH handling.
const configPathEnv = "TENLIB_CONFIG_PATH"

// ModelConfig describes one entry in the router's priority list.
type ModelConfig struct {
	Name       string         `yaml:"name"`
	Provider   string         `yaml:"provider"`
	APIKey     string         `yaml:"apiKey"`
	Model      string         `yaml:"model"`
	Host       string         `yaml:"host"`
	MaxTokens  int            `yaml:"maxTokens"`
	DailyQuota int            `yaml:"dailyQuota"`
	Params     llm.Parameters `yaml:"params"`
}

// Config is the top-level shape of ~/.tenlib/config.yaml.
type Config struct {
	Models []ModelConfig `yaml:"models"`

	DBPath         string `yaml:"dbPath"`
	QuotaCachePath string `yaml:"quotaCachePath"`
	OutputDir      string `yaml:"outputDir"`

	ChunkPreset        string `yaml:"chunkPreset"`
	BibleExtractPeriod int    `yaml:"bibleExtractPeriod"`
}

// defaultConfigPath returns ~/.tenlib/config.yaml.
func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".tenlib", "config.yaml"), nil
}

// resolveConfigPath honors TENLIB_CONFIG_PATH, falling back to
// defaultConfigPath.
func resolveConfigPath() (string, error) {
	if p := os.Getenv(configPathEnv); p != "" {
		return p, nil
	}
	return defaultConfigPath()
}

// LoadConfig reads and parses the YAML config at path, expanding
// ${ENV_VAR} references the way config_loader.py's load_model_configs
// does before handing secrets (API keys, hosts) to the adapters.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	expanded := os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	})

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = defaultUnderHome(".tenlib/tenlib.db")
	}
	if cfg.QuotaCachePath == "" {
		cfg.QuotaCachePath = defaultUnderHome(".tenlib/quota.db")
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultUnderHome(".tenlib/output")
	}
	if cfg.ChunkPreset == "" {
		cfg.ChunkPreset = "standard"
	}
}

func defaultUnderHome(rel string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return rel
	}
	return filepath.Join(home, rel)
}
