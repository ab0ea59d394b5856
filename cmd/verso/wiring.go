package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/versobook/verso/internal/config"
	"github.com/versobook/verso/internal/glossary"
	"github.com/versobook/verso/internal/home"
	"github.com/versobook/verso/internal/jobs"
	"github.com/versobook/verso/internal/library"
	"github.com/versobook/verso/internal/providers"
	"github.com/versobook/verso/internal/store"
	"github.com/versobook/verso/internal/translate"
)

// openLibrary loads config, connects the store client, and ensures the schema.
func openLibrary(ctx context.Context, logger *slog.Logger) (*config.Config, *library.Store, error) {
	path := cfgFile
	if path == "" && homeDir != "" {
		if dir, err := home.New(homeDir); err == nil && dir.ConfigExists() {
			path = dir.ConfigPath()
		}
	}

	cm, err := config.NewManager(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg := cm.Get()

	db := store.NewClient(cfg.StoreClientConfig())
	lib := library.NewStore(db, logger)
	if err := lib.EnsureSchema(ctx); err != nil {
		return nil, nil, err
	}
	return cfg, lib, nil
}

// newJobService assembles the translation stack for one backend.
func newJobService(cfg *config.Config, lib *library.Store, backendName string, logger *slog.Logger) (*jobs.Service, error) {
	backend, err := cfg.Backend(backendName)
	if err != nil {
		return nil, err
	}
	client, err := providers.NewFromConfig(backend)
	if err != nil {
		return nil, err
	}

	tr := translate.NewTranslator(client, translate.Config{
		Model:   backend.Model,
		Timeout: cfg.Pipeline.SegmentTimeout,
		Logger:  logger,
	})
	gl := glossary.NewExtractor(client, glossary.Config{
		Model:        backend.Model,
		HeadSegments: cfg.Pipeline.GlossaryHead,
		MidSegments:  cfg.Pipeline.GlossaryMid,
		TailSegments: cfg.Pipeline.GlossaryTail,
		Logger:       logger,
	})
	orch := jobs.NewOrchestrator(lib, tr, gl, jobs.OrchestratorConfig{
		CheckpointInterval: cfg.Pipeline.CheckpointInterval,
		Placeholder:        cfg.Pipeline.Placeholder,
		Logger:             logger,
	})
	return jobs.NewService(orch, lib, logger), nil
}
