// Package app wires the configured components shared by the binaries.
package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/docextract/internal/async"
	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/export"
	"github.com/joseph-ayodele/docextract/internal/extract"
	"github.com/joseph-ayodele/docextract/internal/llm"
	"github.com/joseph-ayodele/docextract/internal/llm/provider"
	"github.com/joseph-ayodele/docextract/internal/pages"
	"github.com/joseph-ayodele/docextract/internal/pipeline"
	"github.com/joseph-ayodele/docextract/internal/repository"
	"github.com/joseph-ayodele/docextract/internal/translate"
)

// Options adjust what New builds.
type Options struct {
	InMemory  bool          // SQLite in memory instead of the configured database
	SkipModel bool          // storage only; Processor stays nil
	Model     llm.Model     // overrides the configured provider
	PageOpts  []pages.Option
}

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config      *common.Config
	Logger      *slog.Logger
	DB          *repository.DB
	Extractions repository.ExtractionRepository
	Prompts     repository.PromptRepository
	Exporter    *export.Service
	Processor   *pipeline.Processor

	closers []func() error
}

// New opens and migrates the database, then builds the model backend and
// pipeline unless opts.SkipModel is set.
func New(ctx context.Context, cfg *common.Config, logger *slog.Logger, opts Options) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if opts.InMemory {
		a.DB, err = repository.OpenInMemory(ctx, logger)
	} else {
		a.DB, err = repository.Open(ctx, repository.ConfigFrom(cfg.Database), logger)
	}
	if err != nil {
		return nil, common.NewAppError(common.CodePersistence, "open database", errors.Join(common.ErrDatabase, err))
	}
	a.closers = append(a.closers, a.DB.Close)
	if err = a.DB.Migrate(ctx); err != nil {
		return nil, err
	}

	a.Extractions = repository.NewExtractionRepository(a.DB, logger)
	a.Prompts = repository.NewPromptRepository(a.DB, logger)
	a.Exporter = export.NewService(a.Extractions, logger)

	if opts.SkipModel {
		return a, nil
	}

	model := opts.Model
	if model == nil {
		var release func() error
		model, release, err = provider.New(ctx, cfg.LLM, logger)
		if err != nil {
			return nil, common.ModelCallError("create "+cfg.LLM.Provider+" client", err)
		}
		a.closers = append(a.closers, release)
	}

	annotator := translate.NewAnnotator(model, logger,
		translate.WithCache(a.cache(ctx)),
		translate.WithTimeout(cfg.LLM.Timeout),
	)
	a.Processor = pipeline.NewProcessor(
		logger,
		pages.NewNormalizer(pages.ConfigFrom(cfg.Pages), logger, opts.PageOpts...),
		extract.NewExtractor(model, cfg.LLM.PageTimeout, logger),
		annotator,
		a.Extractions,
		a.Prompts,
		cfg.LLM.PageWorkers,
	)
	return a, nil
}

// cache prefers Redis when configured and falls back to process memory.
func (a *App) cache(ctx context.Context) translate.Cache {
	if a.Config.Cache.RedisURL == "" {
		return translate.NewMemoryCache()
	}
	rc, err := translate.NewRedisCache(ctx, a.Config.Cache.RedisURL, a.Config.Cache.Prefix, a.Config.Cache.TTL)
	if err != nil {
		a.Logger.Warn("cache.redis.unavailable", "error", err)
		return translate.NewMemoryCache()
	}
	a.closers = append(a.closers, rc.Close)
	a.Logger.Info("cache.redis.ok", "prefix", a.Config.Cache.Prefix)
	return rc
}

// NewQueue starts a background queue over the processor.
func (a *App) NewQueue(workers int) *async.ProcessorQueue {
	if workers <= 0 {
		workers = a.Config.Queue.Workers
	}
	return async.NewProcessorQueue(a.Processor, a.Logger,
		async.WithWorkers(workers),
		async.WithQueueSize(a.Config.Queue.Size),
		async.WithProcessTimeout(a.Config.Queue.ProcessTimeout),
	)
}

func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
