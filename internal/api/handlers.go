package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/starford/othala/internal/apperr"
	"github.com/starford/othala/internal/docnum"
	"github.com/starford/othala/internal/docservice"
	"github.com/starford/othala/internal/models"
	"github.com/starford/othala/internal/traverse"
)

// Handler holds API route handlers.
type Handler struct {
	svc *docservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *docservice.Service) *Handler {
	return &Handler{svc: svc}
}

// writeError maps domain errors onto HTTP statuses.
func writeError(w http.ResponseWriter, err error, context string) {
	switch {
	case errors.Is(err, apperr.ErrMalformedNumber):
		writeJSON(w, http.StatusBadRequest, errorBody("malformed document number"))
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, apperr.ErrNotArchived):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAuthRequired):
		writeJSON(w, http.StatusBadGateway, errorBody("host requires authentication"))
	case errors.Is(err, apperr.ErrRemoteUnavailable):
		writeJSON(w, http.StatusBadGateway, errorBody("host unavailable"))
	default:
		slog.Error(context, slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// ListRecords handles GET /api/records.
//
//	@Summary		List catalogued records with pagination and filtering
//	@Tags			records
//	@Produce		json
//	@Param			limit		query		int		false	"Page size"
//	@Param			offset		query		int		false	"Page offset"
//	@Param			category	query		string	false	"Filter by category letter"
//	@Param			sort		query		string	false	"Sort field"	Enums(number, title, updated)
//	@Success		200			{object}	RecordListResponse
//	@Security		BearerAuth
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	category := q.Get("category")
	sort := q.Get("sort")

	items, total, err := h.svc.ListRecords(r.Context(), limit, offset, category, sort)
	if err != nil {
		slog.Error("list records failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"records": items,
		"total":   total,
	})
}

// GetRecord handles GET /api/records/{number}.
//
//	@Summary		Get an archived record
//	@Tags			records
//	@Produce		json
//	@Param			number	path		string	true	"Document number, optionally versioned"
//	@Success		200		{object}	RecordDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{number} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	record, err := h.svc.GetRecord(r.Context(), number)
	if err != nil {
		writeError(w, err, "get record failed")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// FetchRecord handles POST /api/records/fetch.
//
//	@Summary		Fetch a record, going to the host when needed
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		FetchRecordRequest	true	"Record to fetch"
//	@Success		200		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/fetch [post]
func (h *Handler) FetchRecord(w http.ResponseWriter, r *http.Request) {
	var req FetchRecordRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Number == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("number is required"))
		return
	}
	record, err := h.svc.FetchRecord(r.Context(), req.Number, docservice.FetchOptions{
		Force:       req.Force,
		PreferLocal: req.PreferLocal,
	})
	if err != nil {
		writeError(w, err, "fetch record failed")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Archive handles POST /api/archive.
//
//	@Summary		Archive a set of documents, optionally walking references
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ArchiveRequest	true	"Archival run parameters"
//	@Success		200		{object}	ArchiveReport
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/archive [post]
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	var req ArchiveRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if len(req.Numbers) == 0 {
		writeJSON(w, http.StatusBadRequest, errorBody("numbers are required"))
		return
	}
	report, err := h.svc.Archive(r.Context(), docservice.ArchiveRequest{
		Numbers:          req.Numbers,
		Depth:            req.Depth,
		FetchRelated:     req.FetchRelated,
		FetchReferencing: req.FetchReferencing,
		Files:            req.Files,
		MaxFileSize:      req.MaxFileSize,
		SkipCategories:   req.SkipCategories,
		Force:            req.Force,
		PreferLocal:      req.PreferLocal,
	})
	if err != nil {
		writeError(w, err, "archive run failed")
		return
	}
	writeJSON(w, http.StatusOK, buildReport(report))
}

// UpdateMetadata handles PUT /api/records/{number}/metadata.
//
//	@Summary		Edit a record's metadata on the host
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			number	path		string					true	"Document number"
//	@Param			body	body		UpdateMetadataRequest	true	"Fields to replace"
//	@Success		200		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{number}/metadata [put]
func (h *Handler) UpdateMetadata(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	var req UpdateMetadataRequest
	if err := readJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}

	update := &models.Record{
		Title:    req.Title,
		Abstract: req.Abstract,
		Keywords: req.Keywords,
		Note:     req.Note,
	}
	for _, name := range req.Authors {
		update.Authors = append(update.Authors, models.Author{Name: name})
	}
	for _, related := range req.Related {
		n, err := docnum.Parse(related)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody("malformed related number"))
			return
		}
		update.Related = append(update.Related, n)
	}

	record, err := h.svc.UpdateMetadata(r.Context(), number, update)
	if err != nil {
		writeError(w, err, "update metadata failed")
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across catalogued records
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	results, err := h.svc.Search(r.Context(), q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("query", q), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": results,
	})
}

// Graph handles GET /api/graph.
//
//	@Summary		Get the document reference graph
//	@Tags			graph
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, r *http.Request) {
	nodes, links, err := h.svc.Graph(r.Context())
	if err != nil {
		slog.Error("graph failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"nodes": nodes,
		"links": links,
	})
}

func buildReport(report *traverse.Report) ArchiveReport {
	out := ArchiveReport{
		Archived:     []string{},
		Ignored:      []string{},
		Failed:       []FailedEntry{},
		Files:        report.Files,
		SkippedFiles: report.SkippedFiles,
	}
	for _, n := range report.Archived {
		out.Archived = append(out.Archived, n.String())
	}
	for _, n := range report.Ignored {
		out.Ignored = append(out.Ignored, n.String())
	}
	for _, f := range report.Failed {
		out.Failed = append(out.Failed, FailedEntry{Number: f.Number.String(), Error: f.Err.Error()})
	}
	return out
}
