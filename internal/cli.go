package internal

import (
	"context"
	"log/slog"
	"os"

	"github.com/starford/othala/internal/docservice"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/traverse"
)

// cliLogger builds a text logger on stderr so command output stays clean on
// stdout.
func cliLogger(cfg *Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
}

// Archive runs a one-shot traversal over the given seed numbers and returns
// the report.
func Archive(ctx context.Context, cfg *Config, req docservice.ArchiveRequest) (*traverse.Report, error) {
	logger := cliLogger(cfg)
	svc, db, _, err := buildService(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return svc.Archive(ctx, req)
}

// List returns catalogued records after syncing the catalog with the
// archive, so the listing reflects what is on disk right now.
func List(ctx context.Context, cfg *Config, limit, offset int, category, sort string) ([]docservice.RecordListItem, int, error) {
	logger := cliLogger(cfg)
	svc, db, store, err := buildService(cfg, logger)
	if err != nil {
		return nil, 0, err
	}
	defer db.Close()

	if err := index.Sync(db, store, logger); err != nil {
		logger.Warn("sync failed", slog.String("error", err.Error()))
	}
	return svc.ListRecords(ctx, limit, offset, category, sort)
}

// Fetch resolves a single record, going to the remote host when the local
// archive cannot serve it.
func Fetch(ctx context.Context, cfg *Config, number string, opts docservice.FetchOptions) (*docservice.RecordDetail, error) {
	logger := cliLogger(cfg)
	svc, db, _, err := buildService(cfg, logger)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return svc.FetchRecord(ctx, number, opts)
}
