package build

import (
	"context"
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/starford/kiln/internal/checksum"
	"github.com/starford/kiln/internal/collection"
	"github.com/starford/kiln/internal/gitstamp"
	"github.com/starford/kiln/internal/loader"
	"github.com/starford/kiln/internal/markdown"
	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/schema"
	"github.com/starford/kiln/internal/toc"
)

// Compiled is the outcome of the per-file pipeline.
type Compiled struct {
	// Record is nil when the file was excluded.
	Record      *models.Record
	Elements    []string
	Diagnostics []models.Diagnostic
}

// Compiler runs one source file through loading, parsing, heading
// extraction, validation and derivation.
type Compiler struct {
	Processor *markdown.Processor
	Policy    schema.Policy
	Sanitizer *bluemonday.Policy
}

// Compile compiles file as a member of def. The error is non-nil only when
// the build must stop: a validation failure under the fail policy, or a
// cancelled context.
func (c *Compiler) Compile(ctx context.Context, def collection.Definition, file loader.SourceFile, stamps gitstamp.Lookup) (Compiled, error) {
	var out Compiled
	diag := func(sev models.Severity, stage models.Stage, field, msg string) {
		out.Diagnostics = append(out.Diagnostics, models.Diagnostic{
			Severity:   sev,
			Stage:      stage,
			Collection: def.Name,
			Path:       file.Path,
			Field:      field,
			Message:    msg,
		})
	}

	if err := ctx.Err(); err != nil {
		return out, err
	}

	doc, err := loader.Load(file)
	if err != nil {
		diag(models.SeverityError, models.StageLoad, "", err.Error())
		return out, nil
	}
	for _, w := range doc.Warnings {
		diag(models.SeverityWarning, models.StageLoad, "", w)
	}

	checked := def.Schema.Check(file.Path, doc.Fields, c.Policy)
	if checked.Err != nil {
		sev := models.SeverityWarning
		if checked.Drop {
			sev = models.SeverityError
		}
		for _, fe := range checked.Err.Fields {
			diag(sev, models.StageValidate, fe.Field, fe.Message)
		}
		if c.Policy == schema.PolicyFail {
			return out, checked.Err
		}
	}
	if checked.Drop {
		return out, nil
	}
	fields := checked.Fields

	r := &models.Record{
		Collection: def.Name,
		Path:       file.Path,
		Checksum:   checksum.Sum(file.Content),
		Fields:     fields,
		Headings:   []models.Heading{},
	}

	switch file.Format {
	case loader.FormatAnnotatedScript:
		code, _ := fields["code"].(string)
		lang, _ := fields["lang"].(string)
		res := c.Processor.CodeBlock(code, lang)
		r.Content = res.HTML
		r.ReadingTime = schema.ReadingTime(code)
		out.Elements = res.Elements
	default:
		body := doc.Body
		r.Raw = body
		res := c.Processor.Content([]byte(toc.StripSidecar(body)))
		r.Content = res.HTML
		r.ReadingTime = schema.ReadingTime(markdown.PlainText(res.Tree))
		r.Links = internalLinks(res.Tree)
		out.Elements = res.Elements

		items, _ := fields["headings"].([]toc.Item)
		r.Headings = toc.Extract(def.Headings, toc.Input{
			Tree:        res.Tree,
			Body:        body,
			Frontmatter: items,
			Render:      c.Processor.Inline,
		})
	}

	r.Slug = schema.DeriveSlug(fields, file.Stem(), def.SlugFrom)
	r.Href = schema.Href(def.Href, map[string]string{
		"collection": def.Name,
		"slug":       r.Slug,
		"dir":        r.Dir(),
	}, fields)
	r.Title, _ = fields["title"].(string)
	r.Date, _ = fields["date"].(string)
	r.Tags, _ = fields["tags"].([]string)
	r.Draft, _ = fields["draft"].(bool)

	if def.DescriptionField != "" {
		if src, ok := fields[def.DescriptionField].(string); ok {
			r.DescriptionHTML = schema.DescriptionHTML(c.Processor, c.Sanitizer, src)
		}
	}

	if def.Timestamp {
		t, warnings := schema.LastModified(ctx, stamps, file.Path, doc.Fields["lastModified"])
		r.LastModified = t
		for _, w := range warnings {
			diag(models.SeverityWarning, models.StageDerive, "lastModified", w)
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
	}

	out.Record = r
	return out, nil
}

// internalLinks collects the site-relative link targets of a tree in
// document order, without duplicates.
func internalLinks(tree *markdown.Node) []string {
	var links []string
	seen := map[string]bool{}
	markdown.Walk(tree, func(n *markdown.Node) bool {
		if n.Kind != markdown.KindLink {
			return true
		}
		href, _ := n.Attr("href")
		if !strings.HasPrefix(href, "/") || strings.HasPrefix(href, "//") {
			return true
		}
		if i := strings.IndexAny(href, "?#"); i >= 0 {
			href = href[:i]
		}
		if href != "" && !seen[href] {
			seen[href] = true
			links = append(links, href)
		}
		return true
	})
	return links
}

func compileErr(def collection.Definition, file loader.SourceFile, err error) error {
	return fmt.Errorf("build: %s: %s: %w", def.Name, file.Path, err)
}
