// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/othala/internal/api"
	"github.com/starford/othala/internal/archive"
	"github.com/starford/othala/internal/docservice"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/mcpserver"
	"github.com/starford/othala/internal/remote"
	"github.com/starford/othala/internal/resolver"
	"github.com/starford/othala/internal/sse"
	"github.com/starford/othala/internal/traverse"
)

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app := &application{}

	for _, opt := range opts {
		opt(app)
	}

	if app.config == nil {
		return fmt.Errorf("config is required")
	}

	cfg := app.config

	// Initialize structured JSON logger. The MCP server owns stdout, so it
	// logs to stderr instead.
	logOut := os.Stdout
	if app.mcp {
		logOut = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("archive_path", cfg.Archive.Path),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("remote_host", cfg.Remote.Host),
		slog.Bool("remote_public", cfg.Remote.Public),
		slog.String("log_level", cfg.App.LogLevel.String()))

	svc, db, store, err := buildService(cfg, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	// Run initial sync.
	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}

	if app.mcp {
		return runMCP(ctx, svc, db, store, logger)
	}

	// SSE broker.
	broker := sse.NewBroker(2 * time.Second)

	apiRouter := api.NewRouter(svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker)

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

	// Start archive watcher with SSE callback.
	g.Go(func() error {
		if err := index.Watch(gCtx, db, store, logger, func(kind, number string) {
			broker.PublishRecordEvent(kind, number)
		}); err != nil {
			logger.Warn("archive watcher stopped", slog.String("error", err.Error()))
		}
		return nil
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
		broker.Close()

		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// buildService wires the archive, catalog, remote gateway and traversal
// engine behind a document service. The caller owns closing the returned DB.
func buildService(cfg *Config, logger *slog.Logger) (*docservice.Service, *index.DB, *archive.Store, error) {
	if err := os.MkdirAll(cfg.Archive.Path, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create archive dir: %w", err)
	}

	store, err := archive.NewStore(cfg.Archive.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init archive: %w", err)
	}

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init catalog: %w", err)
	}

	gateway := remote.NewClient(remote.ClientConfig{
		Host:   cfg.Remote.Host,
		Public: cfg.Remote.Public,
		Cookie: cfg.Remote.Cookie,
	})
	res := resolver.New(store, gateway, logger)
	engine := traverse.New(store, gateway, res, logger)

	return docservice.NewService(store, db, gateway, res, engine), db, store, nil
}

// runMCP serves the MCP stdio transport. The archive watcher still runs so
// that records dropped into the archive by other processes stay catalogued.
func runMCP(ctx context.Context, svc *docservice.Service, db *index.DB, store *archive.Store, logger *slog.Logger) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := index.Watch(gCtx, db, store, logger, nil); err != nil {
			logger.Warn("archive watcher stopped", slog.String("error", err.Error()))
		}
		return nil
	})

	g.Go(func() error {
		logger.Info("Starting MCP server on stdio")
		return mcpserver.New(svc).ServeStdio()
	})

	return g.Wait()
}
