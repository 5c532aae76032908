package main

import (
	"fmt"
	"log/slog"

	"github.com/tenlib/tenlib/bible"
	"github.com/tenlib/tenlib/chunker"
	"github.com/tenlib/tenlib/llm"
	"github.com/tenlib/tenlib/orchestrator"
	"github.com/tenlib/tenlib/parser"
	"github.com/tenlib/tenlib/reconstruct"
	"github.com/tenlib/tenlib/router"
	"github.com/tenlib/tenlib/storage"
	"github.com/tenlib/tenlib/tokencount"
)

// pipeline bundles everything a run needs and everything that needs
// closing afterward.
type pipeline struct {
	orchestrator *orchestrator.Orchestrator
	repo         storage.Repository
	quota        storage.QuotaCache
}

func (p *pipeline) Close() {
	if err := p.repo.Close(); err != nil {
		slog.Warn("closing repository", slog.Any("error", err))
	}
	if err := p.quota.Close(); err != nil {
		slog.Warn("closing quota cache", slog.Any("error", err))
	}
}

// buildPipeline wires a config into a runnable Orchestrator: opens the
// durable store and quota cache, builds one router.Adapter per
// configured model (falling back to the Simple estimator when the
// tiktoken encoder can't be loaded), and assembles the chunker, bible
// extractor, and reconstructor around them.
func buildPipeline(cfg Config, logger *slog.Logger) (*pipeline, error) {
	repo, err := storage.NewSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}

	quota, err := storage.NewQuotaCache(cfg.QuotaCachePath)
	if err != nil {
		return nil, fmt.Errorf("opening quota cache: %w", err)
	}

	estimator := buildEstimator(logger)

	adapters := make([]router.Adapter, 0, len(cfg.Models))
	for _, m := range cfg.Models {
		adapter, err := buildAdapter(m, estimator, repo, &quota, logger)
		if err != nil {
			return nil, fmt.Errorf("building adapter %s: %w", m.Name, err)
		}
		adapters = append(adapters, adapter)
	}
	if len(adapters) == 0 {
		return nil, fmt.Errorf("no models configured")
	}

	r := router.New(adapters, logger)

	chunkCfg := chunker.ConfigForPreset(chunker.Preset(cfg.ChunkPreset))
	c := chunker.New(chunkCfg, estimator)

	extractor := bible.NewExtractor(orchestrator.NewExtractorTranslator(r), cfg.BibleExtractPeriod)
	compressor := bible.Compressor{}

	out := reconstruct.New(repo, cfg.OutputDir)

	o := orchestrator.New(repo, parser.BySuffix{}, c, r, out, extractor, compressor, logger)

	return &pipeline{orchestrator: o, repo: repo, quota: quota}, nil
}

func buildEstimator(logger *slog.Logger) tokencount.Estimator {
	est, err := tokencount.NewTiktoken()
	if err != nil {
		logger.Warn("tiktoken encoder unavailable, falling back to word-count estimator", slog.Any("error", err))
		return tokencount.Simple{}
	}
	return est
}

// buildChatter constructs the Chatter named by m.Provider, the one
// place every provider's teacher-style client is selected by name.
func buildChatter(m ModelConfig, logger *slog.Logger) (llm.Chatter, error) {
	switch m.Provider {
	case "openai":
		return llm.NewOpenAI(m.APIKey, m.Model, m.Params, logger), nil
	case "anthropic":
		return llm.NewAnthropic(m.APIKey, m.Model, m.MaxTokens, m.Params), nil
	case "ollama":
		return llm.NewOllama(m.Host, m.Model, m.Params, logger), nil
	case "openrouter":
		return llm.NewOpenRouter(m.APIKey, m.Model, m.Params, logger), nil
	case "openai-compat":
		return llm.NewOpenAICompat(m.Host, m.Model, m.Params, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider %q for model %q", m.Provider, m.Name)
	}
}

// buildAdapter wraps m's Chatter in a ModelAdapter, the one place
// every provider's client meets the router's cooldown/quota contract.
func buildAdapter(m ModelConfig, estimator tokencount.Estimator, repo storage.Repository, quota *storage.QuotaCache, logger *slog.Logger) (router.Adapter, error) {
	chatter, err := buildChatter(m, logger)
	if err != nil {
		return nil, err
	}
	return llm.NewModelAdapter(m.Name, chatter, estimator, repo, quota, m.DailyQuota), nil
}
