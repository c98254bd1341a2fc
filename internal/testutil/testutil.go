// Package testutil provides shared test helpers for setting up archives,
// databases and a scriptable remote gateway.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/archive"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/index"
	"github.com/starford/othala/internal/models"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "othala-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestArchive creates a temporary archive directory with a Store over it.
func TestArchive(t *testing.T) (string, *archive.Store) {
	t.Helper()
	root := t.TempDir()
	store, err := archive.NewStore(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// MustParse parses a document number or fails the test.
func MustParse(t *testing.T, text string) docnum.Number {
	t.Helper()
	n, err := docnum.Parse(text)
	if err != nil {
		t.Fatalf("parse %q: %v", text, err)
	}
	return n
}

// FakeGateway is an in-memory Gateway. Records are keyed by versioned number;
// an unversioned fetch resolves to the highest version present. File bodies
// are keyed by URL.
type FakeGateway struct {
	mu      sync.Mutex
	records map[string]*models.Record
	files   map[string][]byte

	// Fetches counts FetchRecord calls per requested number string.
	Fetches map[string]int

	// Err, when set, fails every call.
	Err error
}

// NewFakeGateway creates an empty FakeGateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		records: make(map[string]*models.Record),
		files:   make(map[string][]byte),
		Fetches: make(map[string]int),
	}
}

// AddRecord registers a record. Its number must carry a version.
func (g *FakeGateway) AddRecord(record *models.Record) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[record.Number.String()] = record
}

// AddFile registers attachment bytes under a URL.
func (g *FakeGateway) AddFile(url string, data []byte) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.files[url] = data
}

func (g *FakeGateway) FetchRecord(_ context.Context, number docnum.Number) (*models.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Fetches[number.String()]++
	if g.Err != nil {
		return nil, g.Err
	}

	if number.HasVersion() {
		if record, ok := g.records[number.String()]; ok {
			return cloneRecord(record), nil
		}
		return nil, fmt.Errorf("fake gateway: %s: %w", number, apperr.ErrNotFound)
	}

	var best *models.Record
	for _, record := range g.records {
		if !record.Number.SameDocument(number) {
			continue
		}
		if best == nil || *record.Number.Version > *best.Number.Version {
			best = record
		}
	}
	if best == nil {
		return nil, fmt.Errorf("fake gateway: %s: %w", number, apperr.ErrNotFound)
	}
	return cloneRecord(best), nil
}

func (g *FakeGateway) OpenFile(_ context.Context, file models.FileRef) (io.ReadCloser, int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return nil, -1, g.Err
	}
	data, ok := g.files[file.URL]
	if !ok {
		return nil, -1, fmt.Errorf("fake gateway: file %s: %w", file.URL, apperr.ErrNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), int64(len(data)), nil
}

// UpdateMetadata applies the non-empty editable fields to the latest stored
// version of the document, like the real host does.
func (g *FakeGateway) UpdateMetadata(_ context.Context, record *models.Record) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return g.Err
	}
	var best *models.Record
	for _, r := range g.records {
		if !r.Number.SameDocument(record.Number) {
			continue
		}
		if best == nil || *r.Number.Version > *best.Number.Version {
			best = r
		}
	}
	if best == nil {
		return fmt.Errorf("fake gateway: %s: %w", record.Number, apperr.ErrNotFound)
	}
	if record.Title != "" {
		best.Title = record.Title
	}
	if record.Abstract != "" {
		best.Abstract = record.Abstract
	}
	if len(record.Keywords) > 0 {
		best.Keywords = record.Keywords
	}
	if record.Note != "" {
		best.Note = record.Note
	}
	if len(record.Authors) > 0 {
		best.Authors = record.Authors
	}
	if len(record.Related) > 0 {
		best.Related = record.Related
	}
	return nil
}

// cloneRecord guards fake-internal state from caller mutation. Slices are
// copied shallowly; tests do not mutate element innards.
func cloneRecord(record *models.Record) *models.Record {
	out := *record
	out.Authors = append([]models.Author(nil), record.Authors...)
	out.Keywords = append([]string(nil), record.Keywords...)
	out.OtherVersions = append([]int(nil), record.OtherVersions...)
	out.Files = append([]models.FileRef(nil), record.Files...)
	out.Related = append([]docnum.Number(nil), record.Related...)
	out.ReferencedBy = append([]docnum.Number(nil), record.ReferencedBy...)
	return &out
}
