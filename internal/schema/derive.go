package schema

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/starford/kiln/internal/gitstamp"
	"github.com/starford/kiln/internal/markdown"
	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/slug"
)

// SlugSource selects what a record slug is computed from when the
// frontmatter has no explicit one.
type SlugSource string

const (
	SlugFromTitle    SlugSource = "title"
	SlugFromBasename SlugSource = "basename"
)

// DefaultHref is the href template used when a collection sets none.
const DefaultHref = "/{collection}/{slug}"

// WordsPerMinute is the reading speed behind ReadingTime.
const WordsPerMinute = 200

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][\w-]*)\}`)

// DeriveSlug returns the explicit slug field when present, otherwise the
// slugified title, falling back to the file stem when the title has no
// slug characters.
func DeriveSlug(fields map[string]any, stem string, from SlugSource) string {
	if s, ok := fields["slug"].(string); ok && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s)
	}
	if from == SlugFromTitle {
		if title, ok := fields["title"].(string); ok {
			if s := slug.Slugify(title); s != "" {
				return s
			}
		}
	}
	return stem
}

// Href expands template. {collection} and {slug} always come from vars;
// any other {name} is taken from the fields first and then from vars
// (for instance {dir}). Unknown names expand to "".
func Href(template string, vars map[string]string, fields map[string]any) string {
	if template == "" {
		template = DefaultHref
	}
	return placeholderRe.ReplaceAllStringFunc(template, func(m string) string {
		name := m[1 : len(m)-1]
		if name == "collection" || name == "slug" {
			return vars[name]
		}
		switch v := fields[name].(type) {
		case nil:
			return vars[name]
		case string:
			return v
		default:
			return fmt.Sprint(v)
		}
	})
}

// ReadingTime estimates the reading time of text at WordsPerMinute,
// rounding up. Non-empty text takes at least one minute.
func ReadingTime(text string) models.ReadingTime {
	words := len(strings.Fields(text))
	if words == 0 {
		return models.ReadingTime{}
	}
	minutes := int(math.Ceil(float64(words) / WordsPerMinute))
	return models.ReadingTime{Words: words, Minutes: max(minutes, 1)}
}

// NewDescriptionPolicy returns the sanitising policy applied to rendered
// descriptions: user-content HTML plus the inline code element.
func NewDescriptionPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("value", "lang").OnElements(markdown.TagCodeInline)
	return p
}

// DescriptionHTML renders src with the inline processor and sanitises the
// result.
func DescriptionHTML(p *markdown.Processor, policy *bluemonday.Policy, src string) string {
	if strings.TrimSpace(src) == "" {
		return ""
	}
	html := p.Inline(src)
	if policy == nil {
		return html
	}
	return policy.Sanitize(html)
}

// LastModified resolves the last commit time of path. A declared
// frontmatter value is ignored and reported as a warning. Lookup failures
// leave the value absent and are returned as warnings too.
func LastModified(ctx context.Context, lookup gitstamp.Lookup, path string, declared any) (*time.Time, []string) {
	var warnings []string
	if declared != nil {
		warnings = append(warnings, "lastModified is resolved from version control; the frontmatter value is ignored")
	}
	if lookup == nil {
		return nil, warnings
	}
	t, ok, err := lookup.LastModified(ctx, path)
	if err != nil {
		return nil, append(warnings, "lastModified: "+err.Error())
	}
	if !ok {
		return nil, warnings
	}
	return &t, warnings
}
