// Package resolver decides, per document number, whether a record comes from
// the local archive or the remote host, and keeps the archive up to date with
// whatever it fetches.
package resolver

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/starford/othala/internal/archive"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/remote"
)

// Options tune a single resolution.
type Options struct {
	// Force fetches from the host even when a matching local entry exists.
	Force bool

	// PreferLocal lets an unversioned request be satisfied by the locally
	// archived latest revision. Without it, an unversioned request always
	// asks the host which revision is latest.
	PreferLocal bool
}

// Resolver routes record requests between the archive and the host.
type Resolver struct {
	store   *archive.Store
	gateway remote.Gateway
	log     *slog.Logger
}

// New creates a Resolver over the given archive and gateway.
func New(store *archive.Store, gateway remote.Gateway, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{store: store, gateway: gateway, log: log}
}

// Resolve returns the record for the given number.
//
// A versioned number is served from the archive when present, unless Force is
// set. An unversioned number means "the latest revision": only PreferLocal
// allows the locally archived latest to stand in for the host's answer, since
// the host may know a newer revision. Every remote fetch is written back to
// the archive before the record is returned.
func (r *Resolver) Resolve(ctx context.Context, number docnum.Number, opts Options) (*models.Record, error) {
	useLocal := !opts.Force
	if !number.HasVersion() && !opts.PreferLocal {
		useLocal = false
	}

	if useLocal && r.store.Exists(number) {
		record, err := r.store.Read(number)
		if err == nil {
			r.log.Debug("record served from archive", "number", record.Number.String())
			return record, nil
		}
		// A damaged local entry falls through to the host.
		r.log.Warn("archived record unreadable, refetching", "number", number.String(), "error", err)
	}

	record, err := r.gateway.FetchRecord(ctx, number)
	if err != nil {
		return nil, err
	}
	if err := r.store.Write(record); err != nil {
		return nil, fmt.Errorf("resolver: archive %s: %w", record.Number, err)
	}
	r.log.Info("record fetched from host", "number", record.Number.String())
	return record, nil
}
