package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/starford/kiln/internal/build"
	"github.com/starford/kiln/internal/gitstamp"
	"github.com/starford/kiln/internal/index"
	"github.com/starford/kiln/internal/markdown"
	"github.com/starford/kiln/internal/schema"
	"github.com/starford/kiln/internal/sse"
	"github.com/starford/kiln/internal/storage"
)

// pipeline holds the long-lived build components shared by every mode.
type pipeline struct {
	cfg     *Config
	logger  *slog.Logger
	source  *storage.FS
	builder *build.Builder
	store   *build.Store
	writer  *build.Writer
	db      *index.DB
	broker  *sse.Broker
}

func newPipeline(cfg *Config, logger *slog.Logger) (*pipeline, error) {
	if info, err := os.Stat(cfg.Content.Root); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("content root %q is not a directory", cfg.Content.Root)
	}
	source, err := storage.NewFS(cfg.Content.Root)
	if err != nil {
		return nil, fmt.Errorf("init content storage: %w", err)
	}

	if err := os.MkdirAll(cfg.Content.Output, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	out, err := storage.NewFS(cfg.Content.Output)
	if err != nil {
		return nil, fmt.Errorf("init output storage: %w", err)
	}

	proc, err := markdown.New(markdown.Options{
		LanguageAliases: cfg.Markdown.LanguageAliases,
		CalloutAnchor:   cfg.Markdown.CalloutAnchor,
	})
	if err != nil {
		return nil, fmt.Errorf("init markdown: %w", err)
	}
	compiler := &build.Compiler{
		Processor: proc,
		Policy:    cfg.Build.ValidationPolicy,
		Sanitizer: schema.NewDescriptionPolicy(),
	}
	builder := build.NewBuilder(source, compiler, build.Options{
		Definitions: cfg.Collections,
		Concurrency: cfg.Build.Concurrency,
		Stamps:      gitstamp.NewResolver(source.Root(), cfg.Build.GitTimeout),
	}, logger)

	p := &pipeline{
		cfg:     cfg,
		logger:  logger,
		source:  source,
		builder: builder,
		store:   build.NewStore(),
		writer:  build.NewWriter(out, cfg.Build.Production, logger),
	}

	if cfg.SQLite.Enabled() {
		db, err := index.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("init index: %w", err)
		}
		p.db = db
	}
	return p, nil
}

func (p *pipeline) close() {
	if p.broker != nil {
		p.broker.Close()
	}
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			p.logger.Warn("index close failed", slog.String("error", err.Error()))
		}
	}
}

// buildOnce compiles a single generation and publishes it.
func (p *pipeline) buildOnce(ctx context.Context) (*build.Generation, error) {
	g, err := p.builder.Build(ctx)
	if err != nil {
		return nil, err
	}
	if !p.store.Publish(g) {
		return nil, fmt.Errorf("generation %d is stale", g.ID)
	}
	return g, p.publish(g)
}

// publish writes the output files of g, syncs the index and notifies SSE
// clients. The first error is returned after every step has run.
func (p *pipeline) publish(g *build.Generation) error {
	var errs []error
	if err := p.writer.Write(g); err != nil {
		errs = append(errs, err)
	}
	if p.db != nil {
		if _, err := index.Sync(p.db, g.ID, g.Records(), p.logger); err != nil {
			errs = append(errs, fmt.Errorf("index sync: %w", err))
		}
	}
	if p.broker != nil {
		errCount, warnings := g.Severities()
		p.broker.PublishGeneration(sse.GenerationSummary{
			Generation:  g.ID,
			Collections: g.Counts(),
			Errors:      errCount,
			Warnings:    warnings,
		})
	}
	return errors.Join(errs...)
}

// watcher returns a watcher that publishes through p.
func (p *pipeline) watcher() *build.Watcher {
	ignore := []string{p.writer.Dir()}
	if p.cfg.SQLite.Enabled() {
		if abs, err := filepath.Abs(p.cfg.SQLite.Path); err == nil {
			ignore = append(ignore, abs, abs+"-wal", abs+"-shm", abs+"-journal")
		}
	}
	return &build.Watcher{
		Root:     p.source.Root(),
		Builder:  p.builder,
		Store:    p.store,
		Logger:   p.logger,
		Debounce: p.cfg.Build.Debounce,
		Ignore:   ignore,
		OnPublish: func(g *build.Generation) {
			if err := p.publish(g); err != nil {
				p.logger.Error("publish failed", slog.Uint64("generation", g.ID), slog.String("error", err.Error()))
			}
		},
	}
}

// recordIndex returns the index as an interface, nil when disabled.
func (p *pipeline) recordIndex() index.RecordIndex {
	if p.db == nil {
		return nil
	}
	return p.db
}
