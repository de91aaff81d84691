// Package collection assembles compiled records into immutable, queryable
// collections.
package collection

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"github.com/starford/kiln/internal/models"
)

// Collection is an immutable, source-ordered set of records. Slugs are
// unique within the collection, or within each group when the collection
// is grouped. Derived views are computed once and shared by every caller;
// callers must not modify returned slices.
type Collection struct {
	name    string
	groupBy string
	records []*models.Record
	bySlug  map[string]*models.Record
	byKey   map[string]*models.Record
	byPath  map[string]*models.Record
	tags    map[string]*roaring.Bitmap

	mu     sync.Mutex
	views  map[string][]*models.Record
	groups map[string]map[string][]*models.Record

	docsOnce sync.Once
	docs     []any
	docsErr  error
}

// Assemble builds a collection from records in source order. Nil entries
// are skipped. A record whose slug is already taken is dropped and
// reported.
func Assemble(name string, records []*models.Record) (*Collection, []models.Diagnostic) {
	return AssembleGrouped(name, "", records)
}

// AssembleGrouped is Assemble for a collection grouped by field (see
// GroupKey). Slugs only need to be unique within their group.
func AssembleGrouped(name, field string, records []*models.Record) (*Collection, []models.Diagnostic) {
	c := &Collection{
		name:    name,
		groupBy: field,
		records: make([]*models.Record, 0, len(records)),
		bySlug:  make(map[string]*models.Record, len(records)),
		byKey:   make(map[string]*models.Record, len(records)),
		byPath:  make(map[string]*models.Record, len(records)),
		tags:    make(map[string]*roaring.Bitmap),
		views:   make(map[string][]*models.Record),
		groups:  make(map[string]map[string][]*models.Record),
	}
	var diags []models.Diagnostic
	for _, r := range records {
		if r == nil {
			continue
		}
		key := c.key(r)
		if first, taken := c.byKey[key]; taken {
			msg := fmt.Sprintf("duplicate slug %q, already used by %s", r.Slug, first.Path)
			if field != "" {
				msg = fmt.Sprintf("duplicate slug %q in group %q, already used by %s", r.Slug, GroupKey(r, field), first.Path)
			}
			diags = append(diags, models.Diagnostic{
				Severity:   models.SeverityError,
				Stage:      models.StageAssemble,
				Collection: name,
				Path:       r.Path,
				Field:      "slug",
				Message:    msg,
			})
			continue
		}
		idx := uint32(len(c.records))
		c.records = append(c.records, r)
		c.byKey[key] = r
		c.byPath[r.Path] = r
		if _, ok := c.bySlug[r.Slug]; !ok {
			c.bySlug[r.Slug] = r
		}
		for _, tag := range r.Tags {
			bm, ok := c.tags[tag]
			if !ok {
				bm = roaring.New()
				c.tags[tag] = bm
			}
			bm.Add(idx)
		}
	}
	return c, diags
}

func (c *Collection) key(r *models.Record) string {
	if c.groupBy == "" {
		return r.Slug
	}
	return GroupKey(r, c.groupBy) + "\x00" + r.Slug
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Grouping returns the field the collection is grouped by, or "".
func (c *Collection) Grouping() string { return c.groupBy }

// Len returns the number of records.
func (c *Collection) Len() int { return len(c.records) }

// All returns every record in source order.
func (c *Collection) All() []*models.Record { return c.records }

// First returns the first record, the value of a single-entry collection.
func (c *Collection) First() (*models.Record, bool) {
	if len(c.records) == 0 {
		return nil, false
	}
	return c.records[0], true
}

// FindBySlug returns the record with slug. In a grouped collection the
// same slug may occur in several groups; the first in source order wins.
func (c *Collection) FindBySlug(slug string) (*models.Record, bool) {
	r, ok := c.bySlug[slug]
	return r, ok
}

// FindInGroup returns the record with slug in group. For an ungrouped
// collection group must be empty.
func (c *Collection) FindInGroup(group, slug string) (*models.Record, bool) {
	if c.groupBy == "" {
		if group != "" {
			return nil, false
		}
		return c.FindBySlug(slug)
	}
	r, ok := c.byKey[group+"\x00"+slug]
	return r, ok
}

// FindByPath returns the record compiled from the source file at p.
func (c *Collection) FindByPath(p string) (*models.Record, bool) {
	r, ok := c.byPath[p]
	return r, ok
}

// SortedByDate returns the records ordered by date, newest first. Ties
// keep source order.
func (c *Collection) SortedByDate() []*models.Record {
	return c.view("sorted", func() []*models.Record {
		out := slices.Clone(c.records)
		slices.SortStableFunc(out, func(a, b *models.Record) int {
			return strings.Compare(b.Date, a.Date)
		})
		return out
	})
}

// Published returns the records that are not drafts, in source order.
func (c *Collection) Published() []*models.Record {
	return c.view("published", func() []*models.Record {
		out := make([]*models.Record, 0, len(c.records))
		for _, r := range c.records {
			if !r.Draft {
				out = append(out, r)
			}
		}
		return out
	})
}

// ForEnvironment returns the listing shown to readers: newest first, with
// drafts excluded in production.
func (c *Collection) ForEnvironment(production bool) []*models.Record {
	if !production {
		return c.SortedByDate()
	}
	sorted := c.SortedByDate()
	return c.view("production", func() []*models.Record {
		out := make([]*models.Record, 0, len(sorted))
		for _, r := range sorted {
			if !r.Draft {
				out = append(out, r)
			}
		}
		return out
	})
}

// Tags returns every tag used in the collection in lexical order.
func (c *Collection) Tags() []string {
	tags := make([]string, 0, len(c.tags))
	for tag := range c.tags {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// FilterByTag returns the records carrying every one of tags, in source
// order.
func (c *Collection) FilterByTag(tags ...string) []*models.Record {
	if len(tags) == 0 {
		return c.records
	}
	key := slices.Clone(tags)
	sort.Strings(key)
	key = slices.Compact(key)
	return c.view("tag:"+strings.Join(key, "\x00"), func() []*models.Record {
		var acc *roaring.Bitmap
		for _, tag := range key {
			bm, ok := c.tags[tag]
			if !ok {
				return []*models.Record{}
			}
			if acc == nil {
				acc = bm.Clone()
			} else {
				acc.And(bm)
			}
		}
		out := make([]*models.Record, 0, acc.GetCardinality())
		for _, idx := range acc.ToArray() {
			out = append(out, c.records[idx])
		}
		return out
	})
}

// GroupKey returns the group a record falls into for field. The pseudo
// field "dir" groups by source directory when no such field exists.
func GroupKey(r *models.Record, field string) string {
	if _, ok := r.Fields[field]; ok {
		return r.FieldString(field)
	}
	if field == "dir" {
		return r.Dir()
	}
	return ""
}

// GroupBy partitions the records by GroupKey. Each group keeps source
// order.
func (c *Collection) GroupBy(field string) map[string][]*models.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if g, ok := c.groups[field]; ok {
		return g
	}
	g := make(map[string][]*models.Record)
	for _, r := range c.records {
		k := GroupKey(r, field)
		g[k] = append(g[k], r)
	}
	c.groups[field] = g
	return g
}

func (c *Collection) view(key string, build func() []*models.Record) []*models.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.views[key]; ok {
		return v
	}
	v := build()
	c.views[key] = v
	return v
}
