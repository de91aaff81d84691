// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/kiln/internal/api"
	"github.com/starford/kiln/internal/contentservice"
	"github.com/starford/kiln/internal/mcpserver"
	"github.com/starford/kiln/internal/sse"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{mode: ModeServe, version: "dev"}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	logOutput := app.logOutput
	if logOutput == nil {
		logOutput = io.Writer(os.Stdout)
		if app.mode == ModeMCP {
			logOutput = os.Stderr
		}
	}

	// Initialize structured JSON logger.
	logger := slog.New(slog.NewJSONHandler(logOutput, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("mode", string(app.mode)),
		slog.String("content_root", cfg.Content.Root),
		slog.String("output_dir", cfg.Content.Output),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("validation_policy", string(cfg.Build.ValidationPolicy)),
		slog.Bool("production", cfg.Build.Production),
		slog.Int("collections", len(cfg.Collections)),
		slog.String("log_level", cfg.App.LogLevel.String()))

	p, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.close()

	switch app.mode {
	case ModeBuild:
		return runBuild(ctx, p)
	case ModeWatch:
		return runWatch(ctx, p)
	case ModeServe:
		return runServe(ctx, p)
	case ModeMCP:
		return runMCP(ctx, p, app.version)
	default:
		return fmt.Errorf("unknown mode %q", app.mode)
	}
}

func runBuild(ctx context.Context, p *pipeline) error {
	g, err := p.buildOnce(ctx)
	if err != nil {
		p.logger.Error("Build failed", slog.String("error", err.Error()))
		return err
	}
	errs, warnings := g.Severities()
	p.logger.Info("Build finished",
		slog.Uint64("generation", g.ID),
		slog.Int("errors", errs),
		slog.Int("warnings", warnings))
	return nil
}

func runWatch(ctx context.Context, p *pipeline) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return p.watcher().Run(ctx)
}

func runMCP(ctx context.Context, p *pipeline, version string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc := contentservice.NewService(p.store, p.recordIndex(), p.cfg.Build.Production)
	srv := mcpserver.New(svc, version)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.watcher().Run(gCtx)
	})
	g.Go(func() error {
		// ServeStdio returns when stdin closes or on a signal.
		defer cancel()
		return srv.ServeStdio()
	})
	return g.Wait()
}

func runServe(ctx context.Context, p *pipeline) error {
	cfg := p.cfg
	logger := p.logger

	// SSE broker.
	p.broker = sse.NewBroker(2 * time.Second)

	// Build API service and router.
	svc := contentservice.NewService(p.store, p.recordIndex(), cfg.Build.Production)
	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, p.broker)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if p.store.Current() == nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"building"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: r,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	g, gCtx := errgroup.WithContext(ctx)

	// Start content watcher; it publishes generations to the SSE broker.
	g.Go(func() error {
		return p.watcher().Run(gCtx)
	})

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}

		return errShutdown
	})

	if err := g.Wait(); err != nil && !errors.Is(err, errShutdown) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// errShutdown stops the errgroup after a signal so the watcher exits too.
var errShutdown = errors.New("shutdown")
