package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/starford/othala/internal/docservice"
)

// FileHandler serves archived record attachments.
type FileHandler struct {
	svc *docservice.Service
}

// NewFileHandler creates a handler over the document service.
func NewFileHandler(svc *docservice.Service) *FileHandler {
	return &FileHandler{svc: svc}
}

// ServeFile handles GET /api/records/{number}/files/{filename}. The file is
// served straight from the archive; nothing is fetched from the host.
func (h *FileHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	number := chi.URLParam(r, "number")
	filename := chi.URLParam(r, "filename")
	if decoded, err := url.PathUnescape(filename); err == nil {
		filename = decoded
	}

	path, err := h.svc.FilePath(r.Context(), number, filename)
	if err != nil {
		writeError(w, err, "serve file failed")
		return
	}
	http.ServeFile(w, r, path)
}
