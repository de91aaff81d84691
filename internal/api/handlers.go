package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/kiln/internal/contentservice"
	"github.com/starford/kiln/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *contentservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *contentservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListCollections handles GET /api/collections.
//
//	@Summary		List the collections of the current generation
//	@Tags			collections
//	@Produce		json
//	@Success		200	{object}	CollectionListResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections [get]
func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	gen, list, err := h.svc.ListCollections(r.Context())
	if err != nil {
		writeError(w, "list collections", err)
		return
	}
	writeJSON(w, http.StatusOK, CollectionListResponse{Generation: gen, Collections: list})
}

// GetCollection handles GET /api/collections/{name}. The body has the
// shape of the written <name>.json file.
//
//	@Summary		Get a collection in its published shape
//	@Tags			collections
//	@Produce		json
//	@Param			name	path	string	true	"Collection name"
//	@Success		200
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name} [get]
func (h *Handler) GetCollection(w http.ResponseWriter, r *http.Request) {
	v, err := h.svc.Collection(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, "get collection", err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// GetRecord handles GET /api/collections/{name}/{slug}.
//
//	@Summary		Get one compiled record by slug
//	@Tags			collections
//	@Produce		json
//	@Param			name	path		string	true	"Collection name"
//	@Param			slug	path		string	true	"Record slug"
//	@Success		200		{object}	models.Record
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name}/{slug} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Record(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, "get record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// GetGroupRecord handles GET /api/collections/{name}/groups/{group}/{slug}.
//
//	@Summary		Get one record of a grouped collection
//	@Tags			collections
//	@Produce		json
//	@Param			name	path		string	true	"Collection name"
//	@Param			group	path		string	true	"Group key"
//	@Param			slug	path		string	true	"Record slug"
//	@Success		200		{object}	models.Record
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name}/groups/{group}/{slug} [get]
func (h *Handler) GetGroupRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.RecordInGroup(r.Context(),
		chi.URLParam(r, "name"), chi.URLParam(r, "group"), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, "get group record", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListByTag handles GET /api/collections/{name}/tags/{tag}.
//
//	@Summary		List the records of a collection carrying a tag
//	@Tags			collections
//	@Produce		json
//	@Param			name	path		string	true	"Collection name"
//	@Param			tag		path		string	true	"Tag"
//	@Success		200		{object}	RecordListResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/collections/{name}/tags/{tag} [get]
func (h *Handler) ListByTag(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.ByTag(r.Context(), chi.URLParam(r, "name"), chi.URLParam(r, "tag"))
	if err != nil {
		writeError(w, "list by tag", err)
		return
	}
	if recs == nil {
		recs = []*models.Record{}
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: recs})
}

// Query handles GET /api/query/{name}.
//
//	@Summary		Evaluate a JSONPath expression over a collection
//	@Tags			collections
//	@Produce		json
//	@Param			name	path		string	true	"Collection name"
//	@Param			path	query		string	true	"JSONPath expression"
//	@Success		200		{object}	QueryResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/query/{name} [get]
func (h *Handler) Query(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("path")
	res, err := h.svc.Query(r.Context(), chi.URLParam(r, "name"), expr)
	if err != nil {
		writeError(w, "query", err)
		return
	}
	writeJSON(w, http.StatusOK, QueryResponse{Path: expr, Results: res})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across compiled records
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Failure		503		{object}	errResponse
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
		writeError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Backlinks handles GET /api/backlinks.
//
//	@Summary		List the records linking to an href
//	@Tags			search
//	@Produce		json
//	@Param			href	query		string	true	"Site-relative href"
//	@Success		200		{object}	BacklinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/backlinks [get]
func (h *Handler) Backlinks(w http.ResponseWriter, r *http.Request) {
	href := r.URL.Query().Get("href")
	refs, err := h.svc.Backlinks(r.Context(), href)
	if err != nil {
		writeError(w, "backlinks", err)
		return
	}
	writeJSON(w, http.StatusOK, BacklinksResponse{Href: href, Backlinks: refs})
}

// Diagnostics handles GET /api/diagnostics.
//
//	@Summary		Get the diagnostics of the current generation
//	@Tags			build
//	@Produce		json
//	@Success		200	{object}	DiagnosticsResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/diagnostics [get]
func (h *Handler) Diagnostics(w http.ResponseWriter, r *http.Request) {
	rep, err := h.svc.Diagnostics(r.Context())
	if err != nil {
		writeError(w, "diagnostics", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
