// Package traverse walks the cross-reference graph of document records,
// archiving every node it visits. The walk is breadth first, deduplicates by
// document family, and records per-node failures instead of aborting.
package traverse

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/archive"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/remote"
	"github.com/starford/othala/internal/resolver"
	"github.com/starford/othala/internal/stream"
)

// Config tunes a single walk.
type Config struct {
	// Depth is the number of cross-reference hops followed from the seeds.
	// Zero archives the seeds only.
	Depth int

	// FetchRelated follows outgoing references.
	FetchRelated bool

	// FetchReferencing follows incoming references. Hub documents can be
	// referenced by thousands of others, so this is off by default.
	FetchReferencing bool

	// Files downloads every attachment of each archived record.
	Files bool

	// MaxFileSize skips attachments whose declared size exceeds it.
	// Zero or negative means unlimited.
	MaxFileSize int64

	// SkipCategories names category letters whose documents are ignored.
	SkipCategories []string

	// Resolve is applied to every node resolution.
	Resolve resolver.Options

	// Progress, if set, is notified as attachment bytes arrive.
	Progress stream.Hook
}

// NodeError is a failure tied to one document in the walk.
type NodeError struct {
	Number docnum.Number
	Err    error
}

// Report summarises a walk.
type Report struct {
	// Archived lists every revision successfully resolved, in visit order.
	Archived []docnum.Number

	// Ignored lists documents excluded by category.
	Ignored []docnum.Number

	// Failed lists documents whose resolution or attachments failed.
	Failed []NodeError

	// Files counts downloaded attachments; SkippedFiles counts attachments
	// passed over because they exceeded the size limit or already existed.
	Files        int
	SkippedFiles int
}

// Engine runs graph walks over an archive, a resolver and a gateway.
type Engine struct {
	store    *archive.Store
	gateway  remote.Gateway
	resolver *resolver.Resolver
	log      *slog.Logger
}

// New creates an Engine.
func New(store *archive.Store, gateway remote.Gateway, res *resolver.Resolver, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: store, gateway: gateway, resolver: res, log: log}
}

type workItem struct {
	number docnum.Number
	depth  int
}

// Run walks the graph from the given seeds. Failures of individual nodes and
// attachments are collected in the report, not returned; the only error Run
// itself returns is context cancellation, and the report then covers the work
// finished before the cut.
func (e *Engine) Run(ctx context.Context, seeds []docnum.Number, cfg Config) (*Report, error) {
	skip := make(map[string]bool, len(cfg.SkipCategories))
	for _, cat := range cfg.SkipCategories {
		skip[cat] = true
	}

	report := &Report{}
	visited := make(map[string]bool)
	var queue []workItem
	for _, seed := range seeds {
		if visited[seed.Key()] {
			continue
		}
		visited[seed.Key()] = true
		queue = append(queue, workItem{number: seed, depth: 0})
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		item := queue[0]
		queue = queue[1:]

		if skip[item.number.Category] {
			e.log.Debug("document skipped by category", "number", item.number.String())
			report.Ignored = append(report.Ignored, item.number)
			continue
		}

		record, err := e.resolver.Resolve(ctx, item.number, cfg.Resolve)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			e.log.Warn("document resolution failed", "number", item.number.String(), "error", err)
			report.Failed = append(report.Failed, NodeError{Number: item.number, Err: err})
			continue
		}
		report.Archived = append(report.Archived, record.Number)

		if cfg.Files {
			e.fetchFiles(ctx, record, cfg, report)
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
		}

		if item.depth >= cfg.Depth {
			continue
		}
		var next []docnum.Number
		if cfg.FetchRelated {
			next = append(next, record.Related...)
		}
		if cfg.FetchReferencing {
			next = append(next, record.ReferencedBy...)
		}
		for _, ref := range next {
			if visited[ref.Key()] {
				continue
			}
			visited[ref.Key()] = true
			queue = append(queue, workItem{number: ref, depth: item.depth + 1})
		}
	}
	return report, nil
}

// fetchFiles downloads the record's attachments. Oversized attachments and
// already archived ones are counted as skipped; other per-file failures land
// in the report without stopping the walk.
func (e *Engine) fetchFiles(ctx context.Context, record *models.Record, cfg Config, report *Report) {
	for _, file := range record.Files {
		if ctx.Err() != nil {
			return
		}
		if e.hasFile(record.Number, file.Filename) && !cfg.Resolve.Force {
			report.SkippedFiles++
			continue
		}
		if err := e.fetchFile(ctx, record.Number, file, cfg); err != nil {
			if errors.Is(err, apperr.ErrTooLarge) || errors.Is(err, apperr.ErrFileSkipped) {
				e.log.Info("attachment skipped", "number", record.Number.String(), "file", file.Filename, "reason", err)
				report.SkippedFiles++
				continue
			}
			e.log.Warn("attachment fetch failed", "number", record.Number.String(), "file", file.Filename, "error", err)
			report.Failed = append(report.Failed, NodeError{Number: record.Number, Err: err})
			continue
		}
		report.Files++
	}
}

func (e *Engine) fetchFile(ctx context.Context, number docnum.Number, file models.FileRef, cfg Config) error {
	body, length, err := e.gateway.OpenFile(ctx, file)
	if err != nil {
		return err
	}
	defer body.Close()

	_, err = e.store.WriteFile(number, file.Filename, func(w io.Writer) error {
		_, err := stream.Consume(w, body, length, cfg.MaxFileSize, cfg.Progress)
		return err
	})
	return err
}

func (e *Engine) hasFile(number docnum.Number, filename string) bool {
	path, err := e.store.FilePath(number, filename)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
