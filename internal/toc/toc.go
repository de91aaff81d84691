// Package toc extracts table-of-contents entries from a processed tree, a
// delimited sidecar block or a frontmatter list.
package toc

import (
	"fmt"
	"strings"

	"github.com/starford/kiln/internal/markdown"
	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/slug"
)

// Strategy selects the heading source of a collection.
type Strategy string

const (
	StrategyTree        Strategy = "tree"
	StrategySidecar     Strategy = "sidecar"
	StrategyFrontmatter Strategy = "frontmatter"
	StrategyAuto        Strategy = "auto"
	StrategyNone        Strategy = "none"
)

// Strategies lists every valid Strategy.
var Strategies = []Strategy{StrategyTree, StrategySidecar, StrategyFrontmatter, StrategyAuto, StrategyNone}

// RenderFunc renders a heading title's markdown to HTML.
type RenderFunc func(string) string

// Input carries every heading source of one document.
type Input struct {
	Tree        *markdown.Node
	Body        string
	Frontmatter []Item
	Render      RenderFunc
}

// Extract runs strategy over in. The result is never nil.
func Extract(strategy Strategy, in Input) []models.Heading {
	switch strategy {
	case StrategyNone:
		return []models.Heading{}
	case StrategySidecar:
		return Sidecar(in.Body, in.Render)
	case StrategyFrontmatter:
		return FromItems(in.Frontmatter, in.Render)
	case StrategyAuto:
		switch {
		case len(in.Frontmatter) > 0:
			return FromItems(in.Frontmatter, in.Render)
		case HasSidecar(in.Body):
			return Sidecar(in.Body, in.Render)
		}
	}
	if in.Tree == nil {
		return []models.Heading{}
	}
	return Tree(in.Tree)
}

func inDepth(depth int) bool {
	return depth == 2 || depth == 3
}

// Item is a pre-computed heading as written in a sidecar line or a
// frontmatter list.
type Item struct {
	Title string `json:"title"`
	Slug  string `json:"slug"`
	Depth int    `json:"depth"`
}

// FromItems renders pre-computed items, keeping depths 2 and 3.
func FromItems(items []Item, render RenderFunc) []models.Heading {
	out := []models.Heading{}
	s := slug.New()
	for _, it := range items {
		if !inDepth(it.Depth) {
			continue
		}
		id := it.Slug
		if id == "" {
			id = slug.Slugify(it.Title)
		}
		out = append(out, models.Heading{
			Depth: it.Depth,
			Slug:  s.Unique(id),
			HTML:  renderTitle(it.Title, render),
		})
	}
	return out
}

// renderTitle renders a title and drops the single paragraph wrapping it.
func renderTitle(title string, render RenderFunc) string {
	if render == nil {
		return markdown.EscapeHTML(title)
	}
	html := strings.TrimSpace(render(title))
	if strings.HasPrefix(html, "<p>") && strings.HasSuffix(html, "</p>") && strings.Count(html, "<p>") == 1 {
		html = html[len("<p>") : len(html)-len("</p>")]
	}
	return html
}

// ParseItems coerces a decoded frontmatter value (a list of maps with
// title, slug and depth) into items.
func ParseItems(v any) ([]Item, error) {
	if items, ok := v.([]Item); ok {
		return items, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("must be a list of {title, slug, depth}")
	}
	items := make([]Item, 0, len(list))
	for i, raw := range list {
		m, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("item %d: must be a mapping", i)
		}
		title, _ := m["title"].(string)
		if title == "" {
			return nil, fmt.Errorf("item %d: title is required", i)
		}
		s, _ := m["slug"].(string)
		depth, ok := toInt(m["depth"])
		if !ok {
			return nil, fmt.Errorf("item %d: depth must be an integer", i)
		}
		items = append(items, Item{Title: title, Slug: s, Depth: depth})
	}
	return items, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
	}
	return 0, false
}
