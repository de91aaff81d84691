package build

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/starford/kiln/internal/checksum"
	"github.com/starford/kiln/internal/collection"
	"github.com/starford/kiln/internal/gitstamp"
	"github.com/starford/kiln/internal/loader"
	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/storage"
)

// DefaultConcurrency bounds the per-file pipelines running at once when
// Options leaves it unset.
const DefaultConcurrency = 8

// Options configures a Builder.
type Options struct {
	Definitions []collection.Definition
	Concurrency int
	// Stamps resolves lastModified values. Each generation wraps it in a
	// fresh memo. Nil disables the lookup.
	Stamps gitstamp.Lookup
	// Cache is reused across generations when set.
	Cache *FileCache
}

// Builder compiles the content tree into generations.
type Builder struct {
	source      storage.Provider
	compiler    *Compiler
	defs        []collection.Definition
	concurrency int
	stamps      gitstamp.Lookup
	cache       *FileCache
	logger      *slog.Logger
	lastID      atomic.Uint64
}

// NewBuilder returns a Builder reading sources from source.
func NewBuilder(source storage.Provider, compiler *Compiler, opts Options, logger *slog.Logger) *Builder {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Cache == nil {
		opts.Cache = NewFileCache()
	}
	defs := make([]collection.Definition, len(opts.Definitions))
	for i, d := range opts.Definitions {
		defs[i] = d.WithDefaults()
	}
	return &Builder{
		source:      source,
		compiler:    compiler,
		defs:        defs,
		concurrency: opts.Concurrency,
		stamps:      opts.Stamps,
		cache:       opts.Cache,
		logger:      logger,
	}
}

// Cache returns the file cache shared by the builder's generations.
func (b *Builder) Cache() *FileCache { return b.cache }

type job struct {
	def  collection.Definition
	path string
}

// Build runs one generation. Diagnostics never fail a build; only a
// validation failure under the fail policy or a cancelled ctx does.
func (b *Builder) Build(ctx context.Context) (*Generation, error) {
	gen := &Generation{
		ID:          b.lastID.Add(1),
		Definitions: b.defs,
		Collections: make(map[string]*collection.Collection),
		Singles:     make(map[string]*models.Record),
		StartedAt:   time.Now(),
	}

	var stamps gitstamp.Lookup
	if b.stamps != nil {
		stamps = gitstamp.NewCache(b.stamps)
	}

	var jobs []job
	for _, def := range b.defs {
		paths, err := b.source.Glob(def.Pattern)
		if err != nil {
			gen.Diagnostics = append(gen.Diagnostics, models.Diagnostic{
				Severity:   models.SeverityError,
				Stage:      models.StageLoad,
				Collection: def.Name,
				Message:    err.Error(),
			})
			continue
		}
		if def.Single {
			switch len(paths) {
			case 0:
				gen.Diagnostics = append(gen.Diagnostics, models.Diagnostic{
					Severity:   models.SeverityWarning,
					Stage:      models.StageLoad,
					Collection: def.Name,
					Message:    fmt.Sprintf("no file matches %q", def.Pattern),
				})
			case 1:
			default:
				gen.Diagnostics = append(gen.Diagnostics, models.Diagnostic{
					Severity:   models.SeverityWarning,
					Stage:      models.StageLoad,
					Collection: def.Name,
					Message:    fmt.Sprintf("%d files match %q, using %s", len(paths), def.Pattern, paths[0]),
				})
				paths = paths[:1]
			}
		}
		for _, p := range paths {
			jobs = append(jobs, job{def: def, path: p})
		}
	}

	slots := make([]Compiled, len(jobs))
	var hits atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, j := range jobs {
		g.Go(func() error {
			res, hit, err := b.compileOne(gctx, j, stamps)
			if err != nil {
				return err
			}
			if hit {
				hits.Add(1)
			}
			slots[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	keep := make(map[string]bool, len(jobs))
	byCollection := make(map[string][]*models.Record, len(b.defs))
	elements := map[string]bool{}
	for i, j := range jobs {
		keep[j.path] = true
		res := slots[i]
		gen.Diagnostics = append(gen.Diagnostics, res.Diagnostics...)
		for _, el := range res.Elements {
			elements[el] = true
		}
		if res.Record != nil {
			byCollection[j.def.Name] = append(byCollection[j.def.Name], res.Record)
		}
	}
	b.cache.Retain(keep)

	for _, def := range b.defs {
		if def.Single {
			recs := byCollection[def.Name]
			if len(recs) > 0 {
				gen.Singles[def.Name] = recs[0]
			}
			continue
		}
		c, diags := collection.AssembleGrouped(def.Name, def.GroupBy, byCollection[def.Name])
		gen.Collections[def.Name] = c
		gen.Diagnostics = append(gen.Diagnostics, diags...)
	}

	gen.Elements = make([]string, 0, len(elements))
	for el := range elements {
		gen.Elements = append(gen.Elements, el)
	}
	sort.Strings(gen.Elements)
	gen.Duration = time.Since(gen.StartedAt)

	errs, warnings := gen.Severities()
	b.logger.Info("build: generation complete",
		slog.Uint64("generation", gen.ID),
		slog.Int("files", len(jobs)),
		slog.Int64("cached", hits.Load()),
		slog.Int("errors", errs),
		slog.Int("warnings", warnings),
		slog.Duration("duration", gen.Duration))
	for _, d := range gen.Diagnostics {
		level := slog.LevelWarn
		if d.Severity == models.SeverityError {
			level = slog.LevelError
		}
		b.logger.Log(ctx, level, "build: diagnostic",
			slog.String("stage", string(d.Stage)),
			slog.String("collection", d.Collection),
			slog.String("path", d.Path),
			slog.String("field", d.Field),
			slog.String("message", d.Message))
	}
	return gen, nil
}

func (b *Builder) compileOne(ctx context.Context, j job, stamps gitstamp.Lookup) (Compiled, bool, error) {
	fileDiag := func(stage models.Stage, msg string) Compiled {
		return Compiled{Diagnostics: []models.Diagnostic{{
			Severity:   models.SeverityError,
			Stage:      stage,
			Collection: j.def.Name,
			Path:       j.path,
			Message:    msg,
		}}}
	}

	content, err := b.source.Read(j.path)
	if err != nil {
		return fileDiag(models.StageLoad, err.Error()), false, nil
	}
	sum := checksum.Sum(content)
	if cached, ok := b.cache.Get(j.def.Name, j.path, sum); ok {
		return cached, true, nil
	}

	file, err := loader.NewSourceFile(j.def.Name, j.path, content)
	if err != nil {
		return fileDiag(models.StageLoad, err.Error()), false, nil
	}
	res, err := b.compiler.Compile(ctx, j.def, file, stamps)
	if err != nil {
		return Compiled{}, false, compileErr(j.def, file, err)
	}
	b.cache.Put(j.def.Name, j.path, sum, res)
	b.logger.Debug("build: compiled", slog.String("collection", j.def.Name), slog.String("path", j.path))
	return res, false, nil
}
