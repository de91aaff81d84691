package toc

import (
	"github.com/starford/kiln/internal/markdown"
	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/slug"
)

// Tree walks doc in pre-order and returns its h2 and h3 headings. Slugs
// follow the same rule as markdown.AssignHeadingIDs, with a fresh slugger
// per call.
func Tree(doc *markdown.Node) []models.Heading {
	out := []models.Heading{}
	s := slug.New()
	markdown.Walk(doc, func(n *markdown.Node) bool {
		if n.Kind != markdown.KindHeading {
			return true
		}
		if inDepth(n.Level) {
			out = append(out, models.Heading{
				Depth: n.Level,
				Slug:  markdown.HeadingSlug(s, n),
				HTML:  InnerHTML(n),
			})
		}
		return false
	})
	return out
}

// InnerHTML serialises the children of a heading for use inside a
// navigation link: nested links become spans, href attributes are dropped
// and raw HTML is omitted.
func InnerHTML(h *markdown.Node) string {
	return markdown.RenderChildren(neutralize(h))
}

func neutralize(n *markdown.Node) *markdown.Node {
	out := &markdown.Node{
		Kind:  n.Kind,
		Tag:   n.Tag,
		Value: n.Value,
		Lang:  n.Lang,
		Level: n.Level,
	}
	for _, a := range n.Attrs {
		if a.Key != "href" {
			out.Attrs = append(out.Attrs, a)
		}
	}
	if n.Kind == markdown.KindLink {
		out.Kind, out.Tag = markdown.KindElement, "span"
	}
	for _, c := range n.Children {
		if c.Kind == markdown.KindRaw {
			continue
		}
		out.Children = append(out.Children, neutralize(c))
	}
	return out
}
