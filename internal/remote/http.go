package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
)

// updatePath is the host's bulk-modify endpoint.
const updatePath = "cgi-bin/private/DocDB/XMLUpdate"

// ClientConfig configures an HTTP Gateway.
type ClientConfig struct {
	// Host is the control center host, e.g. "dcc.example.org". A scheme
	// prefix is honoured if present; https is assumed otherwise.
	Host string

	// Public requests the unauthenticated record views.
	Public bool

	// Cookie, if set, is sent verbatim as the Cookie header. Session
	// negotiation itself happens outside this package.
	Cookie string

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	cfg  ClientConfig
	http *http.Client
}

var _ Gateway = (*Client)(nil)

// NewClient creates a Gateway talking to the configured host.
func NewClient(cfg ClientConfig) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{cfg: cfg, http: hc}
}

func (c *Client) baseURL() string {
	if strings.Contains(c.cfg.Host, "://") {
		return strings.TrimSuffix(c.cfg.Host, "/")
	}
	return "https://" + c.cfg.Host
}

// recordURL builds the XML record URL for a number, e.g.
// https://host/T0123456-v2/of=xml (with /public for unauthenticated access).
func (c *Client) recordURL(number docnum.Number) string {
	var b strings.Builder
	b.WriteString(c.baseURL())
	b.WriteString("/")
	b.WriteString(number.Format(true))
	if c.cfg.Public {
		b.WriteString("/public")
	}
	b.WriteString("/of=xml")
	return b.String()
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.cfg.Cookie != "" {
		req.Header.Set("Cookie", c.cfg.Cookie)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %v: %w", err, apperr.ErrRemoteUnavailable)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		resp.Body.Close()
		return nil, fmt.Errorf("remote: http %s: %w", resp.Status, apperr.ErrAuthRequired)
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("remote: http %s: %w", resp.Status, apperr.ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		resp.Body.Close()
		return nil, fmt.Errorf("remote: http %s: %w", resp.Status, apperr.ErrRemoteUnavailable)
	}
	return resp, nil
}

// FetchRecord retrieves and parses the record for the given number, then
// verifies the host returned the document (and version, if requested) that
// was asked for.
func (c *Client) FetchRecord(ctx context.Context, number docnum.Number) (*models.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.recordURL(number), nil)
	if err != nil {
		return nil, fmt.Errorf("remote: build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read body: %v: %w", err, apperr.ErrRemoteUnavailable)
	}

	record, err := parseRecordXML(body)
	if err != nil {
		return nil, err
	}

	if !record.Number.SameDocument(number) {
		return nil, fmt.Errorf("remote: host returned %s for requested %s", record.Number, number)
	}
	if number.HasVersion() && (record.Number.Version == nil || *record.Number.Version != *number.Version) {
		return nil, fmt.Errorf("remote: host returned %s, not the requested version %s", record.Number, number)
	}
	return record, nil
}

// OpenFile opens the remote byte stream of an attached file. Files the host
// listed without a download URL cannot be fetched and report ErrFileSkipped.
func (c *Client) OpenFile(ctx context.Context, file models.FileRef) (io.ReadCloser, int64, error) {
	if file.URL == "" {
		return nil, -1, fmt.Errorf("remote: %s has no download URL: %w", file.Filename, apperr.ErrFileSkipped)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return nil, -1, fmt.Errorf("remote: build request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, -1, err
	}
	return resp.Body, resp.ContentLength, nil
}

// UpdateMetadata submits the record's editable fields to the host's
// bulk-modify endpoint. Only the latest version of the document is changed;
// the version in the record's number is ignored by the host.
func (c *Client) UpdateMetadata(ctx context.Context, record *models.Record) error {
	form := buildUpdateForm(record)
	form.Set("DocumentsField", record.Number.Format(false))
	form.Set("DocumentChange", "Change Latest Version")

	endpoint := c.baseURL() + "/" + updatePath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("remote: read body: %v: %w", err, apperr.ErrRemoteUnavailable)
	}
	return parseUpdateResponse(body)
}

// buildUpdateForm maps the record's editable fields onto the host's form
// vocabulary. A present field replaces the stored value; an absent field is
// sent as an empty append so the stored value survives.
func buildUpdateForm(record *models.Record) url.Values {
	var related string
	if len(record.Related) > 0 {
		parts := make([]string, len(record.Related))
		for i, ref := range record.Related {
			parts[i] = ref.Format(false)
		}
		related = strings.Join(parts, " ")
	}

	var authors string
	if len(record.Authors) > 0 {
		// The host wants "Surname, Forename" lines.
		lines := make([]string, len(record.Authors))
		for i, author := range record.Authors {
			pieces := strings.Fields(author.Name)
			if len(pieces) > 1 {
				lines[i] = strings.Join(pieces[1:], " ") + ", " + pieces[0]
			} else {
				lines[i] = author.Name
			}
		}
		authors = strings.Join(lines, "\n")
	}

	keywords := strings.Join(record.Keywords, " ")

	fields := []struct {
		value      string
		name       string
		changeName string
	}{
		{record.Title, "TitleField", "TitleChange"},
		{record.Abstract, "AbstractField", "AbstractChange"},
		{keywords, "KeywordsField", "KeywordsChange"},
		{record.Note, "NotesField", "NotesChange"},
		{related, "RelatedDocumentsField", "RelatedDocumentsChange"},
		{authors, "authormanual", "AuthorsChange"},
	}

	form := url.Values{}
	for _, f := range fields {
		if f.value != "" {
			form.Set(f.name, f.value)
			form.Set(f.changeName, "Replace")
		} else {
			form.Set(f.name, "")
			form.Set(f.changeName, "Append")
		}
	}
	return form
}
