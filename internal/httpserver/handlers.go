package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/pinmark/pinmark/internal/bookmark"
	"github.com/pinmark/pinmark/internal/scraper"
)

// Manager is the slice of the service layer the handlers need.
type Manager interface {
	Add(ctx context.Context, params []bookmark.AddParam) ([]*bookmark.Bookmark, error)
	Update(ctx context.Context, params []bookmark.EditParam) ([]*bookmark.Bookmark, error)
	Check(ctx context.Context, params []bookmark.CheckParam) ([]*bookmark.Bookmark, error)
	Delete(ctx context.Context, params []bookmark.DeleteParam) error
	Visit(ctx context.Context, param bookmark.VisitParam) (*bookmark.Bookmark, error)
	List(ctx context.Context, ids []string) ([]*bookmark.Bookmark, error)
}

// Handler translates HTTP requests into manager calls.
type Handler struct {
	manager Manager
}

func NewHandler(m Manager) *Handler {
	return &Handler{manager: m}
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	bs, err := h.manager.List(r.Context(), nil)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bs)
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	var params []bookmark.AddParam
	if !decode(w, r, &params) {
		return
	}

	bs, err := h.manager.Add(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bs)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var params []bookmark.EditParam
	if !decode(w, r, &params) {
		return
	}

	bs, err := h.manager.Update(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bs)
}

func (h *Handler) Check(w http.ResponseWriter, r *http.Request) {
	var params []bookmark.CheckParam
	if !decode(w, r, &params) {
		return
	}

	bs, err := h.manager.Check(r.Context(), params)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, bs)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	var params []bookmark.DeleteParam
	if !decode(w, r, &params) {
		return
	}

	if err := h.manager.Delete(r.Context(), params); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) Visit(w http.ResponseWriter, r *http.Request) {
	var param bookmark.VisitParam
	if !decode(w, r, &param) {
		return
	}

	b, err := h.manager.Visit(r.Context(), param)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, b)
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return false
	}

	return true
}

// writeError maps the error taxonomy onto status codes: fetch failures
// are upstream errors, unknown ids are 404, everything else is a store
// failure.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, scraper.ErrFetch):
		status = http.StatusBadGateway
	case errors.Is(err, bookmark.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, bookmark.ErrIDNotProvided):
		status = http.StatusBadRequest
	}

	slog.Error("request failed", "status", status, "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}
