// Package docservice coordinates the archive, catalog, resolver and
// traversal engine behind the serving surfaces.
package docservice

import (
	"context"
	"fmt"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/archive"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/remote"
	"github.com/starford/othala/internal/resolver"
	"github.com/starford/othala/internal/traverse"
)

// RecordDetail is the full representation of an archived record.
type RecordDetail struct {
	Number        string       `json:"number"`
	Title         string       `json:"title"`
	Abstract      string       `json:"abstract,omitempty"`
	Authors       []string     `json:"authors"`
	Keywords      []string     `json:"keywords"`
	Note          string       `json:"note,omitempty"`
	Journal       string       `json:"journal,omitempty"`
	OtherVersions []int        `json:"other_versions"`
	Files         []FileDetail `json:"files"`
	Related       []string     `json:"related"`
	ReferencedBy  []string     `json:"referenced_by"`
	Referencing   []string     `json:"referencing"`

	ContentsRevisionDate *time.Time `json:"contents_revision_date,omitempty"`
}

// FileDetail describes one attachment of a record.
type FileDetail struct {
	Title    string `json:"title,omitempty"`
	Filename string `json:"filename"`
	URL      string `json:"url,omitempty"`
	Archived bool   `json:"archived"`
}

// RecordListItem is a lightweight item in a list response.
type RecordListItem struct {
	Number    string    `json:"number"`
	Category  string    `json:"category"`
	Title     string    `json:"title"`
	Authors   []string  `json:"authors"`
	Keywords  []string  `json:"keywords"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FetchOptions tune a single record fetch.
type FetchOptions struct {
	Force       bool
	PreferLocal bool
}

// ArchiveRequest describes a batch archival run.
type ArchiveRequest struct {
	Numbers          []string
	Depth            int
	FetchRelated     bool
	FetchReferencing bool
	Files            bool
	MaxFileSize      int64
	SkipCategories   []string
	Force            bool
	PreferLocal      bool
}

// Service coordinates archive and catalog operations.
type Service struct {
	store    *archive.Store
	db       *index.DB
	gateway  remote.Gateway
	resolver *resolver.Resolver
	engine   *traverse.Engine
}

// NewService creates a new document service.
func NewService(store *archive.Store, db *index.DB, gateway remote.Gateway, res *resolver.Resolver, engine *traverse.Engine) *Service {
	return &Service{store: store, db: db, gateway: gateway, resolver: res, engine: engine}
}

// GetRecord reads a record from the archive and enriches it with the catalog's
// referencing families. An unversioned number reads the latest archived
// revision.
func (s *Service) GetRecord(_ context.Context, number string) (*RecordDetail, error) {
	n, err := docnum.Parse(number)
	if err != nil {
		return nil, err
	}
	record, err := s.store.Read(n)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(record), nil
}

// FetchRecord resolves a record, going to the host when the archive cannot
// serve it, and keeps the catalog in step.
func (s *Service) FetchRecord(ctx context.Context, number string, opts FetchOptions) (*RecordDetail, error) {
	n, err := docnum.Parse(number)
	if err != nil {
		return nil, err
	}
	record, err := s.resolver.Resolve(ctx, n, resolver.Options{Force: opts.Force, PreferLocal: opts.PreferLocal})
	if err != nil {
		return nil, err
	}
	if err := s.indexRevision(record.Number); err != nil {
		return nil, err
	}
	return s.buildDetail(record), nil
}

// Archive runs a traversal over the given seed numbers and syncs the catalog
// afterwards. Per-node failures are reported, not returned.
func (s *Service) Archive(ctx context.Context, req ArchiveRequest) (*traverse.Report, error) {
	seeds := make([]docnum.Number, 0, len(req.Numbers))
	for _, text := range req.Numbers {
		n, err := docnum.Parse(text)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, n)
	}

	report, err := s.engine.Run(ctx, seeds, traverse.Config{
		Depth:            req.Depth,
		FetchRelated:     req.FetchRelated,
		FetchReferencing: req.FetchReferencing,
		Files:            req.Files,
		MaxFileSize:      req.MaxFileSize,
		SkipCategories:   req.SkipCategories,
		Resolve:          resolver.Options{Force: req.Force, PreferLocal: req.PreferLocal},
	})
	if err != nil {
		return report, err
	}

	for _, archived := range report.Archived {
		if idxErr := s.indexRevision(archived); idxErr != nil {
			report.Failed = append(report.Failed, traverse.NodeError{Number: archived, Err: idxErr})
		}
	}
	return report, nil
}

// UpdateMetadata submits the record's editable fields to the host, then
// refetches the latest revision so archive and catalog reflect the change.
func (s *Service) UpdateMetadata(ctx context.Context, number string, update *models.Record) (*RecordDetail, error) {
	n, err := docnum.Parse(number)
	if err != nil {
		return nil, err
	}
	update.Number = n
	if err := s.gateway.UpdateMetadata(ctx, update); err != nil {
		return nil, err
	}
	return s.FetchRecord(ctx, n.Format(false), FetchOptions{Force: true})
}

// ListRecords returns paginated catalog rows with optional category filter.
func (s *Service) ListRecords(_ context.Context, limit, offset int, category, sort string) ([]RecordListItem, int, error) {
	rows, total, err := s.db.ListRecords(limit, offset, category, sort)
	if err != nil {
		return nil, 0, err
	}
	items := make([]RecordListItem, len(rows))
	for i, r := range rows {
		items[i] = RecordListItem{
			Number:    r.Number,
			Category:  r.Category,
			Title:     r.Title,
			Authors:   nonNilSlice(r.Authors),
			Keywords:  nonNilSlice(r.Keywords),
			UpdatedAt: r.UpdatedAt,
		}
	}
	return items, total, nil
}

// Search delegates to the catalog.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	return s.db.Search(query, limit)
}

// Graph delegates to the catalog.
func (s *Service) Graph(_ context.Context) ([]index.GraphNode, []index.GraphLink, error) {
	return s.db.Graph()
}

// Referencing returns the catalogued families that reference the given
// document.
func (s *Service) Referencing(_ context.Context, number string) ([]string, error) {
	n, err := docnum.Parse(number)
	if err != nil {
		return nil, err
	}
	return s.db.Referencing(n.Key())
}

// FilePath maps a record attachment to its archived path. The number must
// name a revision present in the archive; unversioned numbers resolve to the
// latest archived revision.
func (s *Service) FilePath(_ context.Context, number, filename string) (string, error) {
	n, err := docnum.Parse(number)
	if err != nil {
		return "", err
	}
	record, err := s.store.Read(n)
	if err != nil {
		return "", err
	}
	for _, f := range record.Files {
		if f.Filename == filename {
			if f.LocalPath == "" {
				return "", fmt.Errorf("%s/%s: %w", record.Number, filename, apperr.ErrNotFound)
			}
			return f.LocalPath, nil
		}
	}
	return "", fmt.Errorf("%s/%s: %w", record.Number, filename, apperr.ErrNotFound)
}

// indexRevision mirrors one archived revision into the catalog. Catalog
// staleness is tolerable; archive write errors are not.
func (s *Service) indexRevision(number docnum.Number) error {
	if err := index.IndexRevision(s.db, s.store, number); err != nil {
		return fmt.Errorf("catalog %s: %w", number, err)
	}
	return nil
}

func (s *Service) buildDetail(record *models.Record) *RecordDetail {
	detail := &RecordDetail{
		Number:        record.Number.String(),
		Title:         record.Title,
		Abstract:      record.Abstract,
		Authors:       nonNilSlice(record.AuthorNames()),
		Keywords:      nonNilSlice(record.Keywords),
		Note:          record.Note,
		OtherVersions: nonNilSlice(record.OtherVersions),
		Related:       formatNumbers(record.Related),
		ReferencedBy:  formatNumbers(record.ReferencedBy),
		Referencing:   []string{},

		ContentsRevisionDate: record.ContentsRevisionDate,
	}
	if record.JournalRef != nil {
		detail.Journal = record.JournalRef.Citation
	}
	detail.Files = make([]FileDetail, 0, len(record.Files))
	for _, f := range record.Files {
		detail.Files = append(detail.Files, FileDetail{
			Title:    f.Title,
			Filename: f.Filename,
			URL:      f.URL,
			Archived: f.LocalPath != "",
		})
	}
	if refs, err := s.db.Referencing(record.Number.Key()); err == nil && refs != nil {
		detail.Referencing = refs
	}
	return detail
}

func formatNumbers(numbers []docnum.Number) []string {
	out := make([]string, 0, len(numbers))
	for _, n := range numbers {
		out = append(out, n.String())
	}
	return out
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
