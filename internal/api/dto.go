package api

import (
	"github.com/starford/kiln/internal/contentservice"
	"github.com/starford/kiln/internal/index"
	"github.com/starford/kiln/internal/models"
)

// CollectionSummary describes one collection (aliased from the domain layer).
type CollectionSummary = contentservice.CollectionSummary

// CollectionListResponse lists the collections of the current generation.
type CollectionListResponse struct {
	Generation  uint64              `json:"generation" example:"12" validate:"required"`
	Collections []CollectionSummary `json:"collections" validate:"required"`
}

// RecordListResponse wraps a list of compiled records.
type RecordListResponse struct {
	Records []*models.Record `json:"records" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []index.SearchResult `json:"results" validate:"required"`
}

// BacklinksResponse lists the records linking to an href.
type BacklinksResponse struct {
	Href      string                   `json:"href" example:"/posts/hello-world" validate:"required"`
	Backlinks []contentservice.LinkRef `json:"backlinks" validate:"required"`
}

// QueryResponse wraps the values selected by a JSONPath expression.
type QueryResponse struct {
	Path    string `json:"path" example:"$[?(@.draft == false)].slug" validate:"required"`
	Results []any  `json:"results" validate:"required"`
}

// DiagnosticsResponse is the diagnostic list of the current generation.
type DiagnosticsResponse = contentservice.DiagnosticsReport
