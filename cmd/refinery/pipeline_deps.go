package main

import (
	"log/slog"

	"refinery/internal/batch"
	"refinery/internal/config"
	"refinery/internal/generate"
	"refinery/internal/llm"
	"refinery/internal/pipeline"
	"refinery/internal/resume"
	"refinery/internal/retry"
	"refinery/internal/stage"
)

// pipelineDeps bundles the wired components shared by the run and generate
// commands.
type pipelineDeps struct {
	store     *batch.Store
	generator *generate.Generator
	runner    *stage.Runner
	tracker   *resume.Tracker
	driver    *pipeline.Driver
}

func buildPipeline(cfg *config.Config, logger *slog.Logger) (*pipelineDeps, error) {
	store, err := batch.Open(cfg.Paths.DataDir, cfg.Pipeline.StageCount)
	if err != nil {
		return nil, err
	}

	client := llm.NewClient(llm.Config{
		APIKey:         cfg.APIKey(),
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		MaxTokens:      cfg.LLM.MaxTokens,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
	})

	// One pacer for every service call, so generation and refinement share
	// the same rate-limit budget.
	pacer := retry.NewPacer(cfg.Pipeline.CallDelay())
	exec := retry.NewExecutor(retry.Policy{
		MaxAttempts:  cfg.Retry.MaxAttempts,
		InitialDelay: cfg.Retry.InitialDelay(),
		Multiplier:   cfg.Retry.Multiplier,
		Jitter:       cfg.Retry.Jitter,
	}, retry.WithPacer(pacer), retry.WithLogger(logger))

	entropy := generate.NewEntropy(generate.WithEntropyLogger(logger))
	generator := generate.New(store, client, exec, entropy, generate.WithLogger(logger))
	runner := stage.NewRunner(store, client, exec, logger)
	tracker := resume.NewTracker(store)

	driver := pipeline.New(store, generator, runner, tracker,
		cfg.Pipeline.TargetTotal, cfg.Pipeline.BatchSize,
		pipeline.WithLogger(logger),
	)

	return &pipelineDeps{
		store:     store,
		generator: generator,
		runner:    runner,
		tracker:   tracker,
		driver:    driver,
	}, nil
}
