package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/homepage/internal/service"
)

// ContentHandler is list/create/delete for one plain content table. The same
// generic handler serves quotes, suggestions, the dev log, the forum and the
// playlist; T is the row type.
type ContentHandler[T any] struct {
	svc    *service.ContentService[T]
	logger *slog.Logger
}

func NewContentHandler[T any](svc *service.ContentService[T], logger *slog.Logger) *ContentHandler[T] {
	return &ContentHandler[T]{svc: svc, logger: logger}
}

// HandleList → GET /api/<resource>
func (h *ContentHandler[T]) HandleList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// HandleCreate → POST /api/<resource>, 201 with the stored row.
func (h *ContentHandler[T]) HandleCreate(w http.ResponseWriter, r *http.Request) {
	row := new(T)
	if err := bind(w, r, row); err != nil {
		writeError(w, err)
		return
	}
	created, err := h.svc.Create(r.Context(), row)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// HandleDelete → DELETE /api/<resource>?id= or /api/<resource>/{id}
func (h *ContentHandler[T]) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), idParam(r, chi.URLParam(r, "id"))); err != nil {
		writeError(w, err)
		return
	}
	writeSuccess(w)
}
