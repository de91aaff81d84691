package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kiln/internal/contentservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *contentservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Collections.
	r.Get("/collections", h.ListCollections)
	r.Get("/collections/{name}", h.GetCollection)
	r.Get("/collections/{name}/tags/{tag}", h.ListByTag)
	r.Get("/collections/{name}/groups/{group}/{slug}", h.GetGroupRecord)
	r.Get("/collections/{name}/{slug}", h.GetRecord)
	r.Get("/query/{name}", h.Query)

	// Search and links.
	r.Get("/search", h.Search)
	r.Get("/backlinks", h.Backlinks)

	// Build diagnostics.
	r.Get("/diagnostics", h.Diagnostics)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
