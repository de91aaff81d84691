// Package contentservice is the read façade over the currently published
// generation and the record index. Both the HTTP API and the MCP server
// go through it.
package contentservice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/starford/kiln/internal/apperr"
	"github.com/starford/kiln/internal/build"
	"github.com/starford/kiln/internal/collection"
	"github.com/starford/kiln/internal/index"
	"github.com/starford/kiln/internal/models"
)

// DefaultSearchLimit caps search results when the caller gives no limit.
const DefaultSearchLimit = 20

// CollectionSummary describes one collection of the current generation.
type CollectionSummary struct {
	Name    string   `json:"name"`
	Single  bool     `json:"single"`
	Count   int      `json:"count"`
	GroupBy string   `json:"groupBy,omitempty"`
	Tags    []string `json:"tags"`
}

// LinkRef identifies a record that links to another one.
type LinkRef struct {
	Path       string `json:"path"`
	Collection string `json:"collection"`
	Slug       string `json:"slug"`
	Href       string `json:"href"`
	Title      string `json:"title"`
}

// DiagnosticsReport is the diagnostic list of one generation.
type DiagnosticsReport struct {
	Generation  uint64              `json:"generation"`
	Errors      int                 `json:"errors"`
	Warnings    int                 `json:"warnings"`
	Diagnostics []models.Diagnostic `json:"diagnostics"`
}

// Service answers read queries over compiled content.
type Service struct {
	store      *build.Store
	db         index.RecordIndex
	production bool
}

// NewService creates a content service. db may be nil, in which case
// search is unavailable and backlinks come from the generation itself.
// In production drafts are hidden.
func NewService(store *build.Store, db index.RecordIndex, production bool) *Service {
	return &Service{store: store, db: db, production: production}
}

// Generation returns the currently published generation.
func (s *Service) Generation() (*build.Generation, error) {
	g := s.store.Current()
	if g == nil {
		return nil, apperr.ErrNotReady
	}
	return g, nil
}

// ListCollections summarises every configured collection.
func (s *Service) ListCollections(_ context.Context) (uint64, []CollectionSummary, error) {
	g, err := s.Generation()
	if err != nil {
		return 0, nil, err
	}
	out := make([]CollectionSummary, 0, len(g.Definitions))
	for _, def := range g.Definitions {
		_, n := g.Shape(def, s.production)
		sum := CollectionSummary{Name: def.Name, Single: def.Single, Count: n, GroupBy: def.GroupBy, Tags: []string{}}
		if c, ok := g.Collection(def.Name); ok {
			sum.Tags = nonNilSlice(c.Tags())
		}
		out = append(out, sum)
	}
	return g.ID, out, nil
}

// Collection returns collection name in its published shape.
func (s *Service) Collection(_ context.Context, name string) (any, error) {
	g, err := s.Generation()
	if err != nil {
		return nil, err
	}
	def, ok := g.Definition(name)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	v, _ := g.Shape(def, s.production)
	return v, nil
}

// Record returns the record with slug in collection name. In a grouped
// collection it is the first record with slug; use RecordInGroup to pick
// one group.
func (s *Service) Record(_ context.Context, name, slug string) (*models.Record, error) {
	g, err := s.Generation()
	if err != nil {
		return nil, err
	}
	def, ok := g.Definition(name)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	var r *models.Record
	if def.Single {
		if single, ok := g.Single(name); ok && single.Slug == slug {
			r = single
		}
	} else if c, ok := g.Collection(name); ok {
		r, _ = c.FindBySlug(slug)
	}
	if r == nil || !s.visible(r) {
		return nil, apperr.ErrNotFound
	}
	return r, nil
}

// RecordInGroup returns the record with slug in group of the grouped
// collection name.
func (s *Service) RecordInGroup(_ context.Context, name, group, slug string) (*models.Record, error) {
	c, err := s.multi(name)
	if err != nil {
		return nil, err
	}
	if c.Grouping() == "" {
		return nil, fmt.Errorf("%w: %s is not grouped", apperr.ErrInvalid, name)
	}
	r, ok := c.FindInGroup(group, slug)
	if !ok || !s.visible(r) {
		return nil, apperr.ErrNotFound
	}
	return r, nil
}

// ByTag returns the records of collection name carrying tag, newest first.
func (s *Service) ByTag(_ context.Context, name, tag string) ([]*models.Record, error) {
	c, err := s.multi(name)
	if err != nil {
		return nil, err
	}
	recs := c.FilterByTag(tag)
	out := make([]*models.Record, 0, len(recs))
	for _, r := range recs {
		if s.visible(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	return out, nil
}

// Query evaluates a JSONPath expression over collection name. Drafts are
// hidden in production.
func (s *Service) Query(_ context.Context, name, expr string) ([]any, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, fmt.Errorf("%w: expression is required", apperr.ErrInvalid)
	}
	c, err := s.multi(name)
	if err != nil {
		return nil, err
	}
	res, err := c.Query(expr, s.production)
	if errors.Is(err, collection.ErrInvalidQuery) {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalid, err)
	}
	if err != nil {
		return nil, err
	}
	if res == nil {
		res = []any{}
	}
	return res, nil
}

// Search runs a full-text query against the index.
func (s *Service) Search(_ context.Context, query string, limit int) ([]index.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", apperr.ErrInvalid)
	}
	if s.db == nil {
		return nil, apperr.ErrUnavailable
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	hits, err := s.db.Search(query, limit)
	if err != nil {
		return nil, err
	}
	g := s.store.Current()
	out := make([]index.SearchResult, 0, len(hits))
	for _, h := range hits {
		if g != nil && !s.visibleIn(g, h.Collection, h.Path) {
			continue
		}
		out = append(out, h)
	}
	return out, nil
}

// Backlinks returns the records linking to href, ordered by path.
func (s *Service) Backlinks(_ context.Context, href string) ([]LinkRef, error) {
	if href == "" {
		return nil, fmt.Errorf("%w: href is required", apperr.ErrInvalid)
	}
	g, err := s.Generation()
	if err != nil {
		return nil, err
	}
	out := []LinkRef{}
	if s.db != nil {
		rows, err := s.db.Backlinks(href)
		if err != nil {
			return nil, err
		}
		for _, r := range rows {
			if !s.visibleIn(g, r.Collection, r.Path) {
				continue
			}
			out = append(out, LinkRef{Path: r.Path, Collection: r.Collection, Slug: r.Slug, Href: r.Href, Title: r.Title})
		}
		return out, nil
	}
	for _, r := range g.Records() {
		if !s.visible(r) {
			continue
		}
		for _, l := range r.Links {
			if l == href {
				out = append(out, LinkRef{Path: r.Path, Collection: r.Collection, Slug: r.Slug, Href: r.Href, Title: r.Title})
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// Diagnostics returns the diagnostics of the current generation.
func (s *Service) Diagnostics(_ context.Context) (*DiagnosticsReport, error) {
	g, err := s.Generation()
	if err != nil {
		return nil, err
	}
	errs, warnings := g.Severities()
	return &DiagnosticsReport{
		Generation:  g.ID,
		Errors:      errs,
		Warnings:    warnings,
		Diagnostics: nonNilSlice(g.Diagnostics),
	}, nil
}

func (s *Service) multi(name string) (*collection.Collection, error) {
	g, err := s.Generation()
	if err != nil {
		return nil, err
	}
	def, ok := g.Definition(name)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if def.Single {
		return nil, fmt.Errorf("%w: %s is a single-entry collection", apperr.ErrInvalid, name)
	}
	c, ok := g.Collection(name)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

func (s *Service) visible(r *models.Record) bool {
	return !s.production || !r.Draft
}

// visibleIn reports whether the indexed record compiled from path is
// still part of g and visible in the current environment.
func (s *Service) visibleIn(g *build.Generation, name, path string) bool {
	if r, ok := g.Single(name); ok {
		return r.Path == path
	}
	c, ok := g.Collection(name)
	if !ok {
		return false
	}
	r, ok := c.FindByPath(path)
	return ok && s.visible(r)
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
