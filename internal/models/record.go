// Package models defines the domain types for Othala.
package models

import (
	"strings"
	"time"

	"github.com/starford/othala/internal/docnum"
)

// Author is a document author as reported by the control center.
type Author struct {
	Name string `yaml:"name" json:"name"`
	UID  int    `yaml:"uid,omitempty" json:"uid,omitempty"`
}

// JournalRef is a journal publication reference attached to a record.
type JournalRef struct {
	Journal  string `yaml:"journal,omitempty" json:"journal,omitempty"`
	Volume   string `yaml:"volume,omitempty" json:"volume,omitempty"`
	Page     string `yaml:"page,omitempty" json:"page,omitempty"` // not necessarily numeric
	Citation string `yaml:"citation,omitempty" json:"citation,omitempty"`
	URL      string `yaml:"url,omitempty" json:"url,omitempty"`
}

// FileRef describes a file attached to a record revision. LocalPath is set
// only once a complete copy exists in the local archive; it is never
// serialised, it is rediscovered from disk on read.
type FileRef struct {
	Title     string `yaml:"title" json:"title"`
	Filename  string `yaml:"filename" json:"filename"`
	URL       string `yaml:"url" json:"url"`
	LocalPath string `yaml:"-" json:"local_path,omitempty"`
}

// NewFileRef builds a FileRef with the title and filename sanitised to valid
// single path components.
func NewFileRef(title, filename, url string) FileRef {
	return FileRef{
		Title:    strings.TrimSpace(title),
		Filename: SanitizeFilename(filename),
		URL:      url,
	}
}

func (f FileRef) String() string {
	if f.Title == "" || f.Title == f.Filename {
		return f.Filename
	}
	return f.Title + " (" + f.Filename + ")"
}

// Record is one revision of a document in the control center. A Record is a
// value: updates produce a new Record, never in-place mutation. File
// LocalPath discovery is the one exception, applied when reading from the
// archive.
type Record struct {
	Number        docnum.Number
	Title         string
	Abstract      string
	Authors       []Author
	Keywords      []string
	Note          string
	JournalRef    *JournalRef
	OtherVersions []int

	CreationDate         *time.Time
	MetadataRevisionDate *time.Time
	ContentsRevisionDate *time.Time

	Files        []FileRef
	Related      []docnum.Number
	ReferencedBy []docnum.Number
}

func (r *Record) String() string {
	return r.Number.String() + ": " + r.Title
}

// AuthorNames returns the author names in record order.
func (r *Record) AuthorNames() []string {
	names := make([]string, len(r.Authors))
	for i, a := range r.Authors {
		names[i] = a.Name
	}
	return names
}

// VersionNumbers returns every version known for this document, including
// this revision's own.
func (r *Record) VersionNumbers() []int {
	seen := make(map[int]struct{}, len(r.OtherVersions)+1)
	var out []int
	add := func(v int) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	if r.Number.Version != nil {
		add(*r.Number.Version)
	}
	for _, v := range r.OtherVersions {
		add(v)
	}
	return out
}

// LatestVersionNumber returns the highest version known for this document.
// Returns -1 when no versions are known.
func (r *Record) LatestVersionNumber() int {
	latest := -1
	for _, v := range r.VersionNumbers() {
		if v > latest {
			latest = v
		}
	}
	return latest
}

// IsLatestVersion reports whether this revision is the latest the record
// itself knows about. The remote host is not consulted.
func (r *Record) IsLatestVersion() bool {
	return r.Number.Version != nil && *r.Number.Version == r.LatestVersionNumber()
}

// DropSelfReferences removes entries from Related and ReferencedBy that point
// back at this record's own document family. Some hosts include the record in
// its own cross-reference lists.
func (r *Record) DropSelfReferences() {
	r.Related = withoutDocument(r.Related, r.Number)
	r.ReferencedBy = withoutDocument(r.ReferencedBy, r.Number)
}

func withoutDocument(refs []docnum.Number, self docnum.Number) []docnum.Number {
	out := refs[:0]
	for _, ref := range refs {
		if !ref.SameDocument(self) {
			out = append(out, ref)
		}
	}
	return out
}

// reservedFilenameChars cannot appear in a path component on at least one of
// the file systems the archive targets.
const reservedFilenameChars = `/\:*?"<>|`

// SanitizeFilename reduces name to a valid single path component: reserved
// and control characters become underscores, surrounding whitespace and dots
// are trimmed, and an empty result falls back to "file".
func SanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	var b strings.Builder
	for _, r := range name {
		if r < 0x20 || strings.ContainsRune(reservedFilenameChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}
	out := strings.Trim(b.String(), " .")
	if out == "" {
		return "file"
	}
	return out
}
