package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kwcat/internal/apperr"
	"github.com/starford/kwcat/internal/models"
)

// Categorizer runs and reports project categorizations.
type Categorizer interface {
	Run(ctx context.Context, projectID int64, raw []models.KeywordRecord, force bool) (*models.Result, error)
	Status(ctx context.Context, projectID int64) (models.CacheEntry, error)
}

// Handler holds API route handlers.
type Handler struct {
	svc         Categorizer
	reportSaved bool
}

// NewHandler creates a new Handler.
func NewHandler(svc Categorizer, reportSaved bool) *Handler {
	return &Handler{svc: svc, reportSaved: reportSaved}
}

func projectID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// GetCategorization handles GET /api/projects/{id}/categorization.
//
//	@Summary		Get the cached categorization of a project
//	@Tags			categorization
//	@Produce		json
//	@Param			id	path		int	true	"Project id"
//	@Success		200	{object}	StatusResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id}/categorization [get]
func (h *Handler) GetCategorization(w http.ResponseWriter, r *http.Request) {
	id, ok := projectID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid project id"))
		return
	}
	entry, err := h.svc.Status(r.Context(), id)
	if err != nil {
		h.writeError(w, "get categorization failed", id, err)
		return
	}
	resp := StatusResponse{Success: true, CategorizationDone: entry.Done}
	if entry.Hit() {
		resp.Categories = entry.Categories
	}
	writeJSON(w, http.StatusOK, resp)
}

// Categorize handles POST /api/projects/{id}/categorization.
//
//	@Summary		Deduplicate and categorize keywords for a project
//	@Tags			categorization
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Project id"
//	@Param			body	body		CategorizeRequest	true	"Keywords to categorize"
//	@Success		200		{object}	CategorizeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/projects/{id}/categorization [post]
func (h *Handler) Categorize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 32<<20)
	id, ok := projectID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid project id"))
		return
	}

	var req CategorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if err := req.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	res, err := h.svc.Run(r.Context(), id, req.Keywords, req.Force)
	if err != nil {
		h.writeError(w, "categorization failed", id, err)
		return
	}

	saved := true
	if h.reportSaved {
		saved = res.Saved
	}
	keywords := res.Keywords
	if keywords == nil {
		keywords = []models.KeywordRecord{}
	}
	writeJSON(w, http.StatusOK, CategorizeResponse{
		Success:           true,
		Categories:        res.Categories,
		Keywords:          keywords,
		AISource:          res.Source,
		KeywordCount:      res.KeywordsConsidered,
		OriginalCount:     res.OriginalCount,
		DuplicatesRemoved: res.DuplicatesRemoved,
		ResponseTimeMS:    res.Elapsed.Milliseconds(),
		SavedToDB:         saved,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, msg string, id int64, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("project not found"))
	case errors.Is(err, apperr.ErrNoKeywords), errors.Is(err, apperr.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(msg, slog.Int64("project_id", id), slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}
