package remote

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
)

// modifiedLayout is the timestamp format of the docrev modified attribute.
const modifiedLayout = "2006-01-02 15:04:05"

// hostLocation is the timezone the host stamps revisions in.
var hostLocation = func() *time.Location {
	loc, err := time.LoadLocation("America/Los_Angeles")
	if err != nil {
		return time.UTC
	}
	return loc
}()

// xmlEnvelope matches the host's XML record export. The root element name is
// left unconstrained; only the structure below it matters.
type xmlEnvelope struct {
	XMLName  xml.Name
	Document struct {
		Revision xmlRevision `xml:"docrev"`
	} `xml:"document"`
}

type xmlRevision struct {
	Version  int    `xml:"version,attr"`
	Modified string `xml:"modified,attr"`

	DCCNumber       string       `xml:"dccnumber"`
	Title           string       `xml:"title"`
	Abstract        string       `xml:"abstract"`
	Note            string       `xml:"note"`
	PublicationInfo string       `xml:"publicationinfo"`
	Keywords        []string     `xml:"keyword"`
	Authors         []xmlAuthor  `xml:"author"`
	Reference       *xmlJournal  `xml:"reference"`
	OtherVersions   *xmlVersions `xml:"otherversions"`
	Files           []xmlFile    `xml:"file"`
	XRefTo          []xmlXRef    `xml:"xrefto"`
	XRefBy          []xmlXRef    `xml:"xrefby"`
}

type xmlAuthor struct {
	FullName       string `xml:"fullname"`
	EmployeeNumber int    `xml:"employeenumber"`
}

type xmlJournal struct {
	HRef     string `xml:"href,attr"`
	Journal  string `xml:"journal"`
	Volume   string `xml:"volume"`
	Page     string `xml:"page"`
	Citation string `xml:"citation"`
}

// xmlVersions accepts any child element name; only the version attributes
// carry information.
type xmlVersions struct {
	Entries []struct {
		Version int `xml:"version,attr"`
	} `xml:",any"`
}

type xmlFile struct {
	HRef        string `xml:"href,attr"`
	Name        string `xml:"name"`
	Description string `xml:"description"`
}

type xmlXRef struct {
	Alias string `xml:"alias,attr"`
}

// parseRecordXML turns a record export body into a Record. Bodies that are
// not the XML export are sniffed for the host's HTML responses: the login
// interstitial maps to ErrAuthRequired and the document search page, which
// the host serves instead of a 404 for unknown numbers, maps to ErrNotFound.
func parseRecordXML(body []byte) (*models.Record, error) {
	var env xmlEnvelope
	if err := xml.Unmarshal(body, &env); err != nil || env.Document.Revision.DCCNumber == "" {
		return nil, classifyNonRecord(body, err)
	}
	rev := env.Document.Revision

	number, err := docnum.Parse(rev.DCCNumber)
	if err != nil {
		return nil, fmt.Errorf("remote: record number %q: %w", rev.DCCNumber, err)
	}
	number = number.WithVersion(rev.Version)

	record := &models.Record{
		Number:   number,
		Title:    rev.Title,
		Abstract: rev.Abstract,
		Note:     rev.Note,
		Keywords: rev.Keywords,
	}

	if rev.Modified != "" {
		ts, err := time.ParseInLocation(modifiedLayout, rev.Modified, hostLocation)
		if err != nil {
			return nil, fmt.Errorf("remote: modified timestamp %q: %w", rev.Modified, err)
		}
		record.ContentsRevisionDate = &ts
	}

	for _, a := range rev.Authors {
		record.Authors = append(record.Authors, models.Author{Name: a.FullName, UID: a.EmployeeNumber})
	}

	if rev.Reference != nil && (rev.Reference.Citation != "" || rev.Reference.Journal != "") {
		record.JournalRef = &models.JournalRef{
			Journal:  rev.Reference.Journal,
			Volume:   rev.Reference.Volume,
			Page:     rev.Reference.Page,
			Citation: rev.Reference.Citation,
			URL:      rev.Reference.HRef,
		}
	} else if rev.PublicationInfo != "" {
		record.JournalRef = &models.JournalRef{Citation: rev.PublicationInfo}
	}

	if rev.OtherVersions != nil {
		for _, entry := range rev.OtherVersions.Entries {
			if entry.Version == rev.Version {
				continue
			}
			record.OtherVersions = append(record.OtherVersions, entry.Version)
		}
	}

	for _, f := range rev.Files {
		record.Files = append(record.Files, models.NewFileRef(f.Description, f.Name, f.HRef))
	}

	record.Related = parseAliases(rev.XRefTo)
	record.ReferencedBy = parseAliases(rev.XRefBy)
	record.DropSelfReferences()

	return record, nil
}

// parseAliases converts cross-reference aliases into numbers. Aliases the
// host emits that are not document numbers (e.g. links into other systems)
// are skipped rather than failing the whole record.
func parseAliases(refs []xmlXRef) []docnum.Number {
	var out []docnum.Number
	for _, ref := range refs {
		n, err := docnum.Parse(ref.Alias)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func classifyNonRecord(body []byte, parseErr error) error {
	if bytes.Contains(body, []byte("Accessing private documents")) {
		return fmt.Errorf("remote: host demanded a session: %w", apperr.ErrAuthRequired)
	}
	if bytes.Contains(body, []byte("Search for Documents by")) {
		// The host redirects unknown numbers to its search page.
		return fmt.Errorf("remote: host does not know the document: %w", apperr.ErrNotFound)
	}
	if parseErr != nil {
		return fmt.Errorf("remote: parse record: %v: %w", parseErr, apperr.ErrRemoteUnavailable)
	}
	return fmt.Errorf("remote: response is not a record export: %w", apperr.ErrRemoteUnavailable)
}

// parseUpdateResponse checks the bulk-modify endpoint's HTML confirmation.
func parseUpdateResponse(body []byte) error {
	if bytes.Contains(body, []byte("You were successful")) {
		return nil
	}
	if bytes.Contains(body, []byte("Accessing private documents")) {
		return fmt.Errorf("remote: host demanded a session: %w", apperr.ErrAuthRequired)
	}
	return fmt.Errorf("remote: host rejected the metadata update: %w", apperr.ErrRemoteUnavailable)
}
