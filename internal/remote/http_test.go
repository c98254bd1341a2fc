package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/models"
)

const sampleRecordXML = `<?xml version="1.0"?>
<docdb project="LIGO">
  <document docid="12345">
    <docrev version="2" modified="2023-04-01 10:30:00" docid="12345">
      <dccnumber>T0123456</dccnumber>
      <title>Interferometer Noise Budget</title>
      <abstract>Noise contributions by subsystem.</abstract>
      <note>Draft pending review.</note>
      <publicationinfo></publicationinfo>
      <keyword>noise</keyword>
      <keyword>budget</keyword>
      <author>
        <fullname>Ada Lovelace</fullname>
        <employeenumber>101</employeenumber>
      </author>
      <author>
        <fullname>Grace Hopper</fullname>
        <employeenumber>102</employeenumber>
      </author>
      <reference href="https://doi.example.org/xyz">
        <journal>Class. Quantum Grav.</journal>
        <volume>40</volume>
        <page>12</page>
        <citation>CQG 40, 12</citation>
      </reference>
      <otherversions>
        <docrev version="1"/>
        <docrev version="2"/>
      </otherversions>
      <file href="https://host/file/1"><name>budget.pdf</name><description>Budget</description></file>
      <file href="https://host/file/2"><name>data.csv</name><description></description></file>
      <xrefto alias="T0123456"/>
      <xrefto alias="E0900001"/>
      <xrefto alias="ExternalLink"/>
      <xrefby alias="G1800123-v4"/>
    </docrev>
  </document>
</docdb>`

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{Host: srv.URL, HTTPClient: srv.Client()}), srv
}

func TestRecordURL(t *testing.T) {
	tests := []struct {
		name   string
		cfg    ClientConfig
		number string
		want   string
	}{
		{"versioned", ClientConfig{Host: "dcc.example.org"}, "T0123456-v2", "https://dcc.example.org/T0123456-v2/of=xml"},
		{"unversioned", ClientConfig{Host: "dcc.example.org"}, "T0123456", "https://dcc.example.org/T0123456/of=xml"},
		{"public", ClientConfig{Host: "dcc.example.org", Public: true}, "T0123456-v2", "https://dcc.example.org/T0123456-v2/public/of=xml"},
		{"explicit scheme", ClientConfig{Host: "http://localhost:8080"}, "E0900001", "http://localhost:8080/E0900001/of=xml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			number, err := docnum.Parse(tt.number)
			if err != nil {
				t.Fatalf("parse %q: %v", tt.number, err)
			}
			if got := NewClient(tt.cfg).recordURL(number); got != tt.want {
				t.Errorf("recordURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFetchRecord(t *testing.T) {
	var gotPath, gotCookie string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotCookie = r.Header.Get("Cookie")
		fmt.Fprint(w, sampleRecordXML)
	}))
	client.cfg.Cookie = "session=abc"

	number, _ := docnum.Parse("T0123456-v2")
	record, err := client.FetchRecord(context.Background(), number)
	if err != nil {
		t.Fatalf("FetchRecord: %v", err)
	}

	if gotPath != "/T0123456-v2/of=xml" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotCookie != "session=abc" {
		t.Errorf("cookie header = %q", gotCookie)
	}
	if record.Number.String() != "T0123456-v2" {
		t.Errorf("number = %s", record.Number)
	}
	if record.Title != "Interferometer Noise Budget" {
		t.Errorf("title = %q", record.Title)
	}
	if len(record.Authors) != 2 || record.Authors[0].Name != "Ada Lovelace" || record.Authors[0].UID != 101 {
		t.Errorf("authors = %+v", record.Authors)
	}
	if len(record.Keywords) != 2 {
		t.Errorf("keywords = %v", record.Keywords)
	}
	if record.JournalRef == nil || record.JournalRef.Citation != "CQG 40, 12" {
		t.Errorf("journal ref = %+v", record.JournalRef)
	}
	// The revision's own version is excluded from other versions.
	if len(record.OtherVersions) != 1 || record.OtherVersions[0] != 1 {
		t.Errorf("other versions = %v", record.OtherVersions)
	}
	if len(record.Files) != 2 || record.Files[0].Filename != "budget.pdf" || record.Files[0].Title != "Budget" {
		t.Errorf("files = %+v", record.Files)
	}
	if record.ContentsRevisionDate == nil {
		t.Error("contents revision date missing")
	}
	// Self-references and non-number aliases are dropped.
	if len(record.Related) != 1 || record.Related[0].String() != "E0900001" {
		t.Errorf("related = %v", record.Related)
	}
	if len(record.ReferencedBy) != 1 || record.ReferencedBy[0].String() != "G1800123-v4" {
		t.Errorf("referenced by = %v", record.ReferencedBy)
	}
}

func TestFetchRecordWrongDocument(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleRecordXML)
	}))

	number, _ := docnum.Parse("T0999999")
	if _, err := client.FetchRecord(context.Background(), number); err == nil {
		t.Fatal("expected mismatch error")
	}
}

func TestFetchRecordWrongVersion(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleRecordXML)
	}))

	number, _ := docnum.Parse("T0123456-v5")
	if _, err := client.FetchRecord(context.Background(), number); err == nil {
		t.Fatal("expected version mismatch error")
	}
}

func TestFetchRecordErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"forbidden", http.StatusForbidden, "", apperr.ErrAuthRequired},
		{"not found", http.StatusNotFound, "", apperr.ErrNotFound},
		{"server error", http.StatusInternalServerError, "", apperr.ErrRemoteUnavailable},
		{"login page", http.StatusOK, "<html>Accessing private documents</html>", apperr.ErrAuthRequired},
		{"search page", http.StatusOK, "<html>Search for Documents by anything</html>", apperr.ErrNotFound},
		{"garbage", http.StatusOK, "not xml at all", apperr.ErrRemoteUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			number, _ := docnum.Parse("T0123456")
			_, err := client.FetchRecord(context.Background(), number)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenFile(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "attachment bytes")
	}))

	file := models.FileRef{Filename: "a.txt", URL: srv.URL + "/file/1"}
	body, length, err := client.OpenFile(context.Background(), file)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "attachment bytes" {
		t.Errorf("body = %q", data)
	}
	if length != int64(len("attachment bytes")) {
		t.Errorf("length = %d", length)
	}
}

func TestUpdateMetadata(t *testing.T) {
	var gotForm map[string][]string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotForm = r.PostForm
		fmt.Fprint(w, "<html>You were successful</html>")
	}))

	number, _ := docnum.Parse("T0123456-v2")
	record := &models.Record{
		Number:   number,
		Title:    "New Title",
		Keywords: []string{"alpha", "beta"},
		Authors:  []models.Author{{Name: "Ada Lovelace"}},
	}
	if err := client.UpdateMetadata(context.Background(), record); err != nil {
		t.Fatalf("UpdateMetadata: %v", err)
	}

	if got := gotForm["DocumentsField"]; len(got) != 1 || got[0] != "T0123456" {
		t.Errorf("DocumentsField = %v", got)
	}
	if got := gotForm["TitleField"]; len(got) != 1 || got[0] != "New Title" {
		t.Errorf("TitleField = %v", got)
	}
	if got := gotForm["TitleChange"]; len(got) != 1 || got[0] != "Replace" {
		t.Errorf("TitleChange = %v", got)
	}
	// Empty fields are appended, keeping the stored values.
	if got := gotForm["AbstractChange"]; len(got) != 1 || got[0] != "Append" {
		t.Errorf("AbstractChange = %v", got)
	}
	if got := gotForm["KeywordsField"]; len(got) != 1 || got[0] != "alpha beta" {
		t.Errorf("KeywordsField = %v", got)
	}
	if got := gotForm["authormanual"]; len(got) != 1 || got[0] != "Lovelace, Ada" {
		t.Errorf("authormanual = %v", got)
	}
}

func TestUpdateMetadataRejected(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>Something went wrong</html>")
	}))

	number, _ := docnum.Parse("T0123456")
	err := client.UpdateMetadata(context.Background(), &models.Record{Number: number})
	if !errors.Is(err, apperr.ErrRemoteUnavailable) {
		t.Errorf("err = %v", err)
	}
}
