package index

import (
	"log/slog"
	"strings"

	"github.com/starford/othala/internal/archive"
	"github.com/starford/othala/internal/checksum"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
)

// Sync walks the archive and brings the catalog up to date:
//   - new/changed revisions are read and upserted
//   - revisions removed from disk are deleted from the catalog
func Sync(db *DB, store *archive.Store, logger *slog.Logger) error {
	docs, err := store.Documents()
	if err != nil {
		return err
	}

	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{})
	for _, doc := range docs {
		revs, err := store.RevisionNumbers(doc)
		if err != nil {
			logger.Warn("sync: scan failed", slog.String("document", doc.Key()), slog.String("error", err.Error()))
			continue
		}
		for _, rev := range revs {
			disk[rev.String()] = struct{}{}

			cs, err := metaChecksum(store, rev)
			if err != nil {
				logger.Warn("sync: checksum failed", slog.String("number", rev.String()), slog.String("error", err.Error()))
				continue
			}
			if checksums[rev.String()] == cs {
				continue
			}
			if err := IndexRevision(db, store, rev); err != nil {
				logger.Warn("sync: index failed", slog.String("number", rev.String()), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: indexed", slog.String("number", rev.String()))
			}
		}
	}

	// Remove stale entries.
	for number := range checksums {
		if _, ok := disk[number]; !ok {
			if err := db.DeleteRecord(number); err != nil {
				logger.Warn("sync: delete failed", slog.String("number", number), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("number", number))
			}
		}
	}

	return nil
}

// IndexRevision reads one archived revision and upserts it into the catalog.
func IndexRevision(db *DB, store *archive.Store, number docnum.Number) error {
	record, err := store.Read(number)
	if err != nil {
		return err
	}
	cs, err := metaChecksum(store, number)
	if err != nil {
		return err
	}

	row := RecordRow{
		Number:   record.Number.String(),
		Family:   record.Number.Key(),
		Category: record.Number.Category,
		Title:    record.Title,
		Authors:  record.AuthorNames(),
		Keywords: record.Keywords,
		Checksum: cs,
	}
	if record.Number.Version != nil {
		row.Version = *record.Number.Version
	}
	return db.UpsertRecord(row, searchBody(record), relatedFamilies(record))
}

// metaChecksum hashes the raw meta file of a revision.
func metaChecksum(store *archive.Store, number docnum.Number) (string, error) {
	path, err := store.MetaPath(number)
	if err != nil {
		return "", err
	}
	return checksum.File(path)
}

// searchBody flattens a record's textual fields for full-text search.
func searchBody(record *models.Record) string {
	parts := []string{record.Title, record.Abstract, record.Note}
	parts = append(parts, record.AuthorNames()...)
	if record.JournalRef != nil {
		parts = append(parts, record.JournalRef.Citation)
	}
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n")
}

func relatedFamilies(record *models.Record) []string {
	out := make([]string, 0, len(record.Related))
	for _, ref := range record.Related {
		out = append(out, ref.Key())
	}
	return out
}
