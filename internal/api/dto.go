package api

import (
	"github.com/starford/othala/internal/docservice"
)

// FetchRecordRequest is the request body for fetching a single record.
type FetchRecordRequest struct {
	Number      string `json:"number" example:"T0123456-v2" validate:"required"`
	Force       bool   `json:"force,omitempty"`
	PreferLocal bool   `json:"prefer_local,omitempty"`
}

// ArchiveRequest is the request body for a batch archival run.
type ArchiveRequest struct {
	Numbers          []string `json:"numbers" example:"T0123456,G1800123" validate:"required"`
	Depth            int      `json:"depth,omitempty"`
	FetchRelated     bool     `json:"fetch_related,omitempty"`
	FetchReferencing bool     `json:"fetch_referencing,omitempty"`
	Files            bool     `json:"files,omitempty"`
	MaxFileSize      int64    `json:"max_file_size,omitempty"`
	SkipCategories   []string `json:"skip_categories,omitempty"`
	Force            bool     `json:"force,omitempty"`
	PreferLocal      bool     `json:"prefer_local,omitempty"`
}

// UpdateMetadataRequest is the request body for editing a record's metadata
// on the host.
type UpdateMetadataRequest struct {
	Title    string   `json:"title,omitempty"`
	Abstract string   `json:"abstract,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
	Note     string   `json:"note,omitempty"`
	Authors  []string `json:"authors,omitempty"`
	Related  []string `json:"related,omitempty"`
}

// RecordDetail is the full record response type (aliased from the domain layer).
type RecordDetail = docservice.RecordDetail

// RecordListItem is a lightweight item in a list response (aliased from the domain layer).
type RecordListItem = docservice.RecordListItem

// RecordListResponse wraps paginated record listings.
type RecordListResponse struct {
	Records []RecordListItem `json:"records" validate:"required"`
	Total   int              `json:"total" example:"42" validate:"required"`
}

// ArchiveReport summarises a batch archival run.
type ArchiveReport struct {
	Archived     []string      `json:"archived" validate:"required"`
	Ignored      []string      `json:"ignored" validate:"required"`
	Failed       []FailedEntry `json:"failed" validate:"required"`
	Files        int           `json:"files"`
	SkippedFiles int           `json:"skipped_files"`
}

// FailedEntry is one failed document in an archive report.
type FailedEntry struct {
	Number string `json:"number" example:"T0123456" validate:"required"`
	Error  string `json:"error" validate:"required"`
}

// SearchResult is a single search hit in the API response.
type SearchResult struct {
	Number  string `json:"number" example:"T0123456-v2" validate:"required"`
	Title   string `json:"title" example:"Noise Budget" validate:"required"`
	Snippet string `json:"snippet" example:"...matched text..." validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []SearchResult `json:"results" validate:"required"`
}

// GraphNode is a document family in the reference graph.
type GraphNode struct {
	Family string `json:"family" example:"T0123456" validate:"required"`
	Title  string `json:"title,omitempty" example:"Noise Budget"`
}

// GraphLink is a directed reference between document families.
type GraphLink struct {
	Source string `json:"source" example:"T0123456" validate:"required"`
	Target string `json:"target" example:"G1800123" validate:"required"`
}

// GraphResponse wraps the reference graph.
type GraphResponse struct {
	Nodes []GraphNode `json:"nodes" validate:"required"`
	Links []GraphLink `json:"links" validate:"required"`
}
