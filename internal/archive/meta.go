package archive

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
)

// schemaVersion is written into every meta file so the on-disk format can
// evolve without breaking old archives.
const schemaVersion = "1"

// metaDoc is the serialisation view of a record. The in-memory Record is the
// primary representation; this struct exists only at the archive boundary.
type metaDoc struct {
	SchemaVersion string        `yaml:"schema_version"`
	Number        docnum.Number `yaml:"number"`
	Title         string        `yaml:"title,omitempty"`
	Abstract      string        `yaml:"abstract,omitempty"`
	Authors       []metaAuthor  `yaml:"authors,omitempty"`
	Keywords      []string      `yaml:"keywords,omitempty"`
	Note          string        `yaml:"note,omitempty"`
	JournalRef    *metaJournal  `yaml:"journal_reference,omitempty"`
	OtherVersions []int         `yaml:"other_versions,omitempty"`

	CreationDate         *time.Time `yaml:"creation_date,omitempty"`
	MetadataRevisionDate *time.Time `yaml:"metadata_revision_date,omitempty"`
	ContentsRevisionDate *time.Time `yaml:"contents_revision_date,omitempty"`

	Files        []metaFile `yaml:"files,omitempty"`
	Related      []string   `yaml:"related,omitempty"`
	ReferencedBy []string   `yaml:"referenced_by,omitempty"`
}

type metaAuthor struct {
	Name string `yaml:"name"`
	UID  int    `yaml:"uid,omitempty"`
}

type metaJournal struct {
	Journal  string `yaml:"journal,omitempty"`
	Volume   string `yaml:"volume,omitempty"`
	Page     string `yaml:"page,omitempty"`
	Citation string `yaml:"citation,omitempty"`
	URL      string `yaml:"url,omitempty"`
}

type metaFile struct {
	Title    string `yaml:"title,omitempty"`
	Filename string `yaml:"filename"`
	URL      string `yaml:"url,omitempty"`
}

func encodeMeta(record *models.Record) ([]byte, error) {
	doc := metaDoc{
		SchemaVersion: schemaVersion,
		Number:        record.Number,
		Title:         record.Title,
		Abstract:      record.Abstract,
		Keywords:      record.Keywords,
		Note:          record.Note,
		OtherVersions: record.OtherVersions,

		CreationDate:         record.CreationDate,
		MetadataRevisionDate: record.MetadataRevisionDate,
		ContentsRevisionDate: record.ContentsRevisionDate,
	}
	for _, a := range record.Authors {
		doc.Authors = append(doc.Authors, metaAuthor{Name: a.Name, UID: a.UID})
	}
	if record.JournalRef != nil {
		doc.JournalRef = &metaJournal{
			Journal:  record.JournalRef.Journal,
			Volume:   record.JournalRef.Volume,
			Page:     record.JournalRef.Page,
			Citation: record.JournalRef.Citation,
			URL:      record.JournalRef.URL,
		}
	}
	for _, f := range record.Files {
		// LocalPath is deliberately not serialised; it is rediscovered
		// from disk on read.
		doc.Files = append(doc.Files, metaFile{Title: f.Title, Filename: f.Filename, URL: f.URL})
	}
	for _, ref := range record.Related {
		doc.Related = append(doc.Related, ref.String())
	}
	for _, ref := range record.ReferencedBy {
		doc.ReferencedBy = append(doc.ReferencedBy, ref.String())
	}
	return yaml.Marshal(doc)
}

func decodeMeta(data []byte) (*models.Record, error) {
	var doc metaDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.SchemaVersion != schemaVersion {
		return nil, fmt.Errorf("unsupported schema version %q", doc.SchemaVersion)
	}
	number, err := docnum.New(doc.Number.Category, doc.Number.Numeric, doc.Number.Version)
	if err != nil {
		return nil, err
	}

	record := &models.Record{
		Number:        number,
		Title:         doc.Title,
		Abstract:      doc.Abstract,
		Keywords:      doc.Keywords,
		Note:          doc.Note,
		OtherVersions: doc.OtherVersions,

		CreationDate:         doc.CreationDate,
		MetadataRevisionDate: doc.MetadataRevisionDate,
		ContentsRevisionDate: doc.ContentsRevisionDate,
	}
	for _, a := range doc.Authors {
		record.Authors = append(record.Authors, models.Author{Name: a.Name, UID: a.UID})
	}
	if doc.JournalRef != nil {
		record.JournalRef = &models.JournalRef{
			Journal:  doc.JournalRef.Journal,
			Volume:   doc.JournalRef.Volume,
			Page:     doc.JournalRef.Page,
			Citation: doc.JournalRef.Citation,
			URL:      doc.JournalRef.URL,
		}
	}
	for _, f := range doc.Files {
		record.Files = append(record.Files, models.FileRef{Title: f.Title, Filename: f.Filename, URL: f.URL})
	}
	record.Related, err = parseNumbers(doc.Related)
	if err != nil {
		return nil, err
	}
	record.ReferencedBy, err = parseNumbers(doc.ReferencedBy)
	if err != nil {
		return nil, err
	}
	return record, nil
}

func parseNumbers(texts []string) ([]docnum.Number, error) {
	var out []docnum.Number
	for _, text := range texts {
		n, err := docnum.Parse(text)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
