package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/kalambet/pwgen/internal/config"
	"github.com/kalambet/pwgen/internal/crawl"
	"github.com/kalambet/pwgen/internal/extract"
	"github.com/kalambet/pwgen/internal/fetch"
	"github.com/kalambet/pwgen/internal/generate"
	"github.com/kalambet/pwgen/internal/llm"
	"github.com/kalambet/pwgen/internal/pipeline"
	"github.com/kalambet/pwgen/internal/repair"
	"github.com/kalambet/pwgen/internal/scan"
	"github.com/kalambet/pwgen/internal/storage"
	"github.com/kalambet/pwgen/internal/verify"
)

// setupLogging installs the default slog handler at the configured level.
func setupLogging(level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// app holds every collaborator built from the loaded configuration.
type app struct {
	cfg     config.Config
	store   *storage.Store
	fetcher fetch.Fetcher
	client  llm.Client

	crawler   *crawl.Crawler
	scanner   *scan.Scanner
	extractor *extract.Extractor
	pom       *generate.POMGenerator
	spec      *generate.SpecGenerator
	verifier  *verify.PythonVerifier
	repairer  *repair.LLMRepairer
	pipeline  *pipeline.Pipeline
}

type appOptions struct {
	// Concurrency overrides pipeline.concurrency when > 0.
	Concurrency int
	// NoStore skips opening the run store; runs are not recorded.
	NoStore bool
	// PullModels makes sure an Ollama provider has the configured models.
	PullModels bool
}

func newApp(cfg config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}

	client, err := llm.New(llm.Config{
		Provider: cfg.LLM.Provider,
		BaseURL:  cfg.LLM.BaseURL,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		return nil, err
	}
	a.client = client

	switch cfg.Fetch.Mode {
	case config.FetchBrowser:
		a.fetcher = fetch.NewBrowser(fetch.BrowserConfig{DebuggerURL: cfg.Fetch.DebuggerURL})
	default:
		a.fetcher = fetch.NewHTTP(nil)
	}

	a.crawler = crawl.New(a.fetcher)
	a.scanner = scan.New(a.fetcher)
	a.extractor, err = extract.New(client, cfg.LLM.Model, cfg.LLM.Temperature)
	if err != nil {
		return nil, fmt.Errorf("building extractor: %w", err)
	}

	preset := cfg.Preset()
	a.pom = generate.NewPOM(generate.POMConfig{
		OutDir:      cfg.Output.Dir,
		Enhance:     preset.EnhancePOM,
		Client:      client,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})
	a.spec = generate.NewSpec(generate.SpecConfig{
		OutDir:              cfg.Output.Dir,
		AI:                  preset.AITests,
		Client:              client,
		ScenarioModel:       cfg.LLM.Model,
		ScenarioTemperature: cfg.LLM.Temperature,
		TestModel:           cfg.TestModel(),
		TestTemperature:     cfg.LLM.Temperature,
	})
	a.verifier = verify.NewPython(cfg.Verify.Python)
	a.repairer = repair.New(client, cfg.LLM.Model, cfg.LLM.Temperature)

	deps := pipeline.Deps{
		Crawler:   a.crawler,
		Scanner:   a.scanner,
		Extractor: a.extractor,
		Primary:   a.pom,
		Secondary: a.spec,
		Verifier:  a.verifier,
		Repairer:  a.repairer,
	}
	if !opts.NoStore {
		a.store, err = storage.Open(cfg.Storage.DataDir)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		deps.Recorder = a.store
	}

	concurrency := cfg.Pipeline.Concurrency
	if opts.Concurrency > 0 {
		concurrency = opts.Concurrency
	}
	a.pipeline = pipeline.New(deps, pipeline.Options{
		Concurrency: concurrency,
		JobTimeout:  cfg.JobTimeout(),
	})

	return a, nil
}

// Close releases the browser and the store.
func (a *app) Close() error {
	var firstErr error
	if c, ok := a.fetcher.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			firstErr = err
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// loadApp loads config, sets up logging and builds the app.
func loadApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log.Level)
	if cfg.LLM.APIKey == "" && cfg.LLM.Provider != llm.ProviderOllama {
		printWarning("LLM API key not set; extraction will fail. Set PWGEN_LLM_API_KEY%s", config.SecretHint())
	}
	if opts.PullModels && cfg.LLM.Provider == llm.ProviderOllama {
		models := []string{cfg.LLM.Model, cfg.TestModel()}
		if err := llm.NewOllama(cfg.LLM.BaseURL).EnsureModels(ctx, models, os.Stderr); err != nil {
			return nil, err
		}
	}
	return newApp(cfg, opts)
}
