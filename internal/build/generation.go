// Package build orchestrates one compilation of the content tree into a
// generation of collections, and keeps the current generation live in
// watch mode.
package build

import (
	"time"

	"github.com/starford/kiln/internal/collection"
	"github.com/starford/kiln/internal/models"
)

// Generation is the complete result of one build. It is immutable once
// published.
type Generation struct {
	ID          uint64
	Definitions []collection.Definition
	Collections map[string]*collection.Collection
	Singles     map[string]*models.Record
	Diagnostics []models.Diagnostic
	// Elements lists the custom element tags emitted across all content.
	Elements  []string
	StartedAt time.Time
	Duration  time.Duration
}

// Collection returns the multi-record collection called name.
func (g *Generation) Collection(name string) (*collection.Collection, bool) {
	c, ok := g.Collections[name]
	return c, ok
}

// Single returns the record of the single-entry collection called name.
func (g *Generation) Single(name string) (*models.Record, bool) {
	r, ok := g.Singles[name]
	return r, ok && r != nil
}

// Definition returns the definition of collection name.
func (g *Generation) Definition(name string) (collection.Definition, bool) {
	for _, d := range g.Definitions {
		if d.Name == name {
			return d, true
		}
	}
	return collection.Definition{}, false
}

// Counts returns the number of records per collection.
func (g *Generation) Counts() map[string]int {
	out := make(map[string]int, len(g.Definitions))
	for _, d := range g.Definitions {
		if d.Single {
			if _, ok := g.Single(d.Name); ok {
				out[d.Name] = 1
			} else {
				out[d.Name] = 0
			}
			continue
		}
		if c, ok := g.Collections[d.Name]; ok {
			out[d.Name] = c.Len()
		}
	}
	return out
}

// Severities counts the diagnostics by severity.
func (g *Generation) Severities() (errs, warnings int) {
	for _, d := range g.Diagnostics {
		switch d.Severity {
		case models.SeverityError:
			errs++
		case models.SeverityWarning:
			warnings++
		}
	}
	return errs, warnings
}

// Records returns every record of the generation, collections in
// definition order.
func (g *Generation) Records() []*models.Record {
	var out []*models.Record
	for _, d := range g.Definitions {
		if d.Single {
			if r, ok := g.Single(d.Name); ok {
				out = append(out, r)
			}
			continue
		}
		if c, ok := g.Collections[d.Name]; ok {
			out = append(out, c.All()...)
		}
	}
	return out
}

// Shape returns the published form of collection def and its record
// count: an object (or nil) for single collections, a map of lists when
// grouped, and a list otherwise. In production drafts are left out.
func (g *Generation) Shape(def collection.Definition, production bool) (any, int) {
	if def.Single {
		r, ok := g.Single(def.Name)
		if !ok {
			return nil, 0
		}
		return r, 1
	}
	c, ok := g.Collection(def.Name)
	if !ok {
		return []*models.Record{}, 0
	}
	if def.GroupBy != "" {
		groups := make(map[string][]*models.Record)
		n := 0
		for key, recs := range c.GroupBy(def.GroupBy) {
			if production {
				recs = published(recs)
			}
			if len(recs) == 0 {
				continue
			}
			groups[key] = recs
			n += len(recs)
		}
		return groups, n
	}
	list := c.All()
	if production {
		list = c.Published()
	}
	return list, len(list)
}

func published(recs []*models.Record) []*models.Record {
	out := make([]*models.Record, 0, len(recs))
	for _, r := range recs {
		if !r.Draft {
			out = append(out, r)
		}
	}
	return out
}
