package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// reportSaved makes saved_to_db reflect the actual persistence outcome.
func NewRouter(svc Categorizer, authEnabled bool, token string, sseHandler http.Handler, reportSaved bool) chi.Router {
	h := NewHandler(svc, reportSaved)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/projects/{id}/categorization", h.GetCategorization)
	r.Post("/projects/{id}/categorization", h.Categorize)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
