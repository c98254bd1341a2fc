// Package archive implements the on-disk store of document records and
// their attached files.
//
// Layout: one directory per document family (e.g. T0123456), one
// subdirectory per revision (e.g. T0123456-v2), containing a meta.yaml file
// and zero or more attachment files. A revision is "present" exactly when
// its meta file exists; attachment count is irrelevant.
package archive

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
)

// MetaFilename is the name of the per-revision metadata file.
const MetaFilename = "meta.yaml"

// Store is a local archive rooted at a directory. The zero value is not
// usable; construct with NewStore.
type Store struct {
	root string // absolute path to the archive root
}

// NewStore creates a Store rooted at the given directory. The directory must
// already exist.
func NewStore(root string) (*Store, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("archive: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("archive: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("archive: root is not a directory: %s", abs)
	}
	return &Store{root: abs}, nil
}

// Root returns the archive root directory.
func (s *Store) Root() string {
	return s.root
}

// DocumentDir returns the directory for a document family. The version part
// of the number, if any, is ignored. The directory may not exist yet.
func (s *Store) DocumentDir(number docnum.Number) string {
	return filepath.Join(s.root, number.Key())
}

// RevisionDir returns the directory for a specific revision. The number must
// carry a version.
func (s *Store) RevisionDir(number docnum.Number) (string, error) {
	if !number.HasVersion() {
		return "", fmt.Errorf("archive: %w", apperr.ErrNoVersion)
	}
	return filepath.Join(s.DocumentDir(number), number.Format(true)), nil
}

// MetaPath returns the metadata file path for a revision. The number must
// carry a version.
func (s *Store) MetaPath(number docnum.Number) (string, error) {
	dir, err := s.RevisionDir(number)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, MetaFilename), nil
}

// FilePath returns the path an attachment of the given revision would occupy.
// The filename must be a plain path component.
func (s *Store) FilePath(number docnum.Number, filename string) (string, error) {
	dir, err := s.RevisionDir(number)
	if err != nil {
		return "", err
	}
	if filename == "" || filename == MetaFilename || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return "", fmt.Errorf("archive: invalid attachment filename %q", filename)
	}
	return filepath.Join(dir, filename), nil
}

// Exists reports whether the archive holds the given number. For a versioned
// number, it checks that exact revision; for an unversioned number, it
// reports whether any revision of the document is present.
func (s *Store) Exists(number docnum.Number) bool {
	if !number.HasVersion() {
		v, err := s.LatestVersion(number)
		return err == nil && v != nil
	}
	meta, err := s.MetaPath(number)
	if err != nil {
		return false
	}
	info, err := os.Stat(meta)
	return err == nil && info.Mode().IsRegular()
}

// LatestVersion scans the document's revision directories and returns the
// highest version present, or nil when the document has no archived
// revisions. The version part of the number, if any, is ignored.
func (s *Store) LatestVersion(number docnum.Number) (*int, error) {
	entries, err := os.ReadDir(s.DocumentDir(number))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: scan %s: %w", number.Key(), err)
	}

	var latest *int
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rev, err := docnum.Parse(entry.Name())
		if err != nil || !rev.HasVersion() || !rev.SameDocument(number) {
			continue
		}
		// Presence requires the meta file, not just the directory.
		if !s.Exists(rev) {
			continue
		}
		if latest == nil || *rev.Version > *latest {
			v := *rev.Version
			latest = &v
		}
	}
	return latest, nil
}

// Read loads the record for the given revision from the archive. Absence is
// reported as ErrNotArchived; an unreadable or malformed meta file is
// reported as ErrCorruptEntry, never as a partial record. For an unversioned
// number the latest archived revision is read.
func (s *Store) Read(number docnum.Number) (*models.Record, error) {
	if !number.HasVersion() {
		v, err := s.LatestVersion(number)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, fmt.Errorf("archive: %s: %w", number.Key(), apperr.ErrNotArchived)
		}
		number = number.WithVersion(*v)
	}

	meta, err := s.MetaPath(number)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(meta)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("archive: %s: %w", number, apperr.ErrNotArchived)
		}
		return nil, fmt.Errorf("archive: read %s: %v: %w", number, err, apperr.ErrCorruptEntry)
	}

	record, err := decodeMeta(data)
	if err != nil {
		return nil, fmt.Errorf("archive: decode %s: %v: %w", number, err, apperr.ErrCorruptEntry)
	}

	// Rediscover attachment local paths.
	dir := filepath.Dir(meta)
	for i := range record.Files {
		p := filepath.Join(dir, record.Files[i].Filename)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			record.Files[i].LocalPath = p
		}
	}
	return record, nil
}

// Write serialises the record's metadata into the archive, overwriting any
// existing entry for the same revision. The write is atomic: the metadata is
// written to a temporary file in the revision directory, fsynced, then
// renamed into place, so no partial meta file is ever visible at the
// canonical path. The record's number must carry a version.
func (s *Store) Write(record *models.Record) error {
	meta, err := s.MetaPath(record.Number)
	if err != nil {
		return err
	}
	data, err := encodeMeta(record)
	if err != nil {
		return fmt.Errorf("archive: encode %s: %w", record.Number, err)
	}
	return s.atomicWrite(meta, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// WriteFile streams attachment bytes into the archive under the given
// revision, with the same atomic contract as Write: the canonical path only
// ever holds a complete file, and a failed fill leaves no temporary file
// behind. fill receives the destination writer. Returns the final path.
func (s *Store) WriteFile(number docnum.Number, filename string, fill func(io.Writer) error) (string, error) {
	path, err := s.FilePath(number, filename)
	if err != nil {
		return "", err
	}
	if err := s.atomicWrite(path, fill); err != nil {
		return "", err
	}
	return path, nil
}

// atomicWrite fills path via a temp file in the same directory followed by a
// rename. fill receives the open temp file; any error on any path removes
// the temp file and leaves the canonical path untouched.
func (s *Store) atomicWrite(path string, fill func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("archive: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".othala-tmp-*")
	if err != nil {
		return fmt.Errorf("archive: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if err := fill(tmp); err != nil {
		return fmt.Errorf("archive: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("archive: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("archive: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("archive: rename: %w", err)
	}
	success = true
	return nil
}

// Documents returns the unversioned numbers of every document family in the
// archive, in directory order. Entries that are not valid document numbers
// are ignored.
func (s *Store) Documents() ([]docnum.Number, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("archive: scan root: %w", err)
	}
	var out []docnum.Number
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		n, err := docnum.Parse(entry.Name())
		if err != nil || n.HasVersion() {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

// RevisionNumbers returns the versioned numbers of every archived revision
// of the given document, sorted by version ascending. The version part of the
// number, if any, is ignored.
func (s *Store) RevisionNumbers(number docnum.Number) ([]docnum.Number, error) {
	entries, err := os.ReadDir(s.DocumentDir(number))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("archive: scan %s: %w", number.Key(), err)
	}

	var revs []docnum.Number
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		rev, err := docnum.Parse(entry.Name())
		if err != nil || !rev.HasVersion() || !rev.SameDocument(number) || !s.Exists(rev) {
			continue
		}
		revs = append(revs, rev)
	}
	sortNumbers(revs)
	return revs, nil
}

// Revisions returns every archived revision of the given document, sorted by
// version ascending. The version part of the number, if any, is ignored.
// Corrupt entries fail the whole call; a damaged archive should be
// diagnosable, not silently thinner.
func (s *Store) Revisions(number docnum.Number) ([]*models.Record, error) {
	revs, err := s.RevisionNumbers(number)
	if err != nil {
		return nil, err
	}

	out := make([]*models.Record, 0, len(revs))
	for _, rev := range revs {
		record, err := s.Read(rev)
		if err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, nil
}

// LatestRevisions returns the record for the highest archived version of
// every document family. The scan is repeated on each call; nothing is
// cached. Families whose entries cannot be read are skipped.
func (s *Store) LatestRevisions() ([]*models.Record, error) {
	docs, err := s.Documents()
	if err != nil {
		return nil, err
	}
	var out []*models.Record
	for _, doc := range docs {
		record, err := s.Read(doc)
		if err != nil {
			continue
		}
		out = append(out, record)
	}
	return out, nil
}

func sortNumbers(numbers []docnum.Number) {
	sort.Slice(numbers, func(i, j int) bool {
		return docnum.Compare(numbers[i], numbers[j]) < 0
	})
}
