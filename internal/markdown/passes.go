package markdown

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/starford/kiln/internal/annotation"
	"github.com/starford/kiln/internal/slug"
)

// Custom element tags emitted by the passes.
const (
	TagCodeBlock  = "code-block"
	TagCodeInline = "code-inline"
)

// ExpandDirectives rewrites every directive into a custom element named
// after it. Attributes and children are kept; unknown names are expanded
// like any other.
func ExpandDirectives(n *Node) {
	Walk(n, func(c *Node) bool {
		if c.Kind == KindDirective {
			c.Kind = KindCustomElement
		}
		return true
	})
}

// UnwrapImages replaces each paragraph whose only non-blank child is an
// image with the image itself.
func UnwrapImages(n *Node) {
	for i, c := range n.Children {
		if c.Kind == KindParagraph {
			if img := soleImage(c); img != nil {
				n.Children[i] = img
				continue
			}
		}
		UnwrapImages(c)
	}
}

func soleImage(p *Node) *Node {
	var img *Node
	for _, c := range p.Children {
		if c.Kind == KindText && strings.TrimSpace(c.Value) == "" {
			continue
		}
		if c.Kind != KindImage || img != nil {
			return nil
		}
		img = c
	}
	return img
}

// CodeOptions configure StructureCode.
type CodeOptions struct {
	// Aliases maps fence language tokens to display languages. The
	// "default" entry applies to fences without a token.
	Aliases map[string]string
	// Caption renders a caption's markdown to HTML.
	Caption func(string) string
}

// ResolveLang maps a fence language token through the alias table.
func ResolveLang(token string, aliases map[string]string) string {
	if token == "" {
		token = "default"
	}
	if alias, ok := aliases[token]; ok {
		return alias
	}
	if token == "default" {
		return ""
	}
	return token
}

// StructureCode turns fenced code into code-block custom elements, fills the
// data attribute of language switchers and applies the inline code override.
func StructureCode(n *Node, opts CodeOptions) {
	for i, c := range n.Children {
		switch c.Kind {
		case KindFencedCode:
			block := NewCodeBlock(c.Value, ResolveLang(c.Lang, opts.Aliases), opts.Caption)
			block.Pos = c.Pos
			n.Children[i] = block
		case KindEmphasis:
			if inline := inlineCode(c); inline != nil {
				n.Children[i] = inline
				continue
			}
			StructureCode(c, opts)
		default:
			StructureCode(c, opts)
			if isSwitcher(c) {
				setSwitcherData(c)
			}
		}
	}
}

// TagInlineCode applies only the inline code override.
func TagInlineCode(n *Node) {
	for i, c := range n.Children {
		if c.Kind == KindEmphasis {
			if inline := inlineCode(c); inline != nil {
				n.Children[i] = inline
				continue
			}
		}
		TagInlineCode(c)
	}
}

// inlineCode reads `*lang `code`*`-shaped emphasis as inline code: the
// first child's text is the language and the first text of the second
// child is the code. Both are taken verbatim.
func inlineCode(em *Node) *Node {
	if em.Level != 1 || len(em.Children) < 2 {
		return nil
	}
	first, second := em.Children[0], em.Children[1]
	if first.Kind != KindText || first.Value == "" {
		return nil
	}
	var code string
	switch {
	case second.Kind == KindCodeSpan:
		code = second.Value
	case len(second.Children) > 0 && second.Children[0].Kind == KindText:
		code = second.Children[0].Value
	}
	if code == "" {
		return nil
	}
	return &Node{
		Kind:  KindCustomElement,
		Tag:   TagCodeInline,
		Attrs: []Attr{{Key: "value", Value: code}, {Key: "lang", Value: first.Value}},
		Pos:   em.Pos,
	}
}

// NewCodeBlock builds a code-block element from raw code, splitting off
// `#|` metadata lines.
func NewCodeBlock(raw, lang string, caption func(string) string) *Node {
	meta, code := splitMeta(raw)
	el := &Node{Kind: KindCustomElement, Tag: TagCodeBlock, Lang: lang, Value: code}
	if ref := meta["ref"]; ref != "" {
		el.SetAttr("id", ref)
	}
	el.SetAttr("value", code)
	if lang != "" {
		el.SetAttr("lang", lang)
	}
	if name := meta["filename"]; name != "" {
		el.SetAttr("filename", name)
	}
	if c := meta["caption"]; c != "" && caption != nil {
		el.SetAttr("caption", caption(c))
	}
	return el
}

// splitMeta separates `#| key: value` lines from code lines. Keys and values
// are split at the first colon and trimmed.
func splitMeta(raw string) (map[string]string, string) {
	lines := strings.Split(raw, "\n")
	code := make([]string, 0, len(lines))
	meta := map[string]string{}
	for _, line := range lines {
		if !strings.HasPrefix(line, "#|") {
			code = append(code, line)
			continue
		}
		key, value, _ := strings.Cut(strings.TrimSpace(line[2:]), ":")
		meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return meta, strings.Join(code, "\n")
}

func isSwitcher(n *Node) bool {
	return n.Kind == KindCustomElement && (n.Tag == "language-switcher" || n.Tag == "code-switcher")
}

type switcherEntry struct {
	Lang string `json:"lang"`
	Code string `json:"code"`
}

// setSwitcherData stores the languages and code of a switcher's code
// blocks as a JSON data attribute.
func setSwitcherData(sw *Node) {
	entries := []switcherEntry{}
	for _, c := range sw.Children {
		if c.Kind == KindCustomElement && c.Tag == TagCodeBlock {
			lang, _ := c.Attr("lang")
			code, _ := c.Attr("value")
			entries = append(entries, switcherEntry{Lang: lang, Code: code})
		}
	}
	sw.SetAttr("data", jsonString(entries))
}

// ResolveAnnotations resolves the markers of every code block, stores the
// annotations on the element and appends a footnote list after blocks with
// references.
func ResolveAnnotations(n *Node, opts annotation.Options) {
	out := make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		out = append(out, c)
		if c.Kind == KindCustomElement && c.Tag == TagCodeBlock {
			if notes := annotateCodeBlock(c, opts); notes != nil {
				out = append(out, notes)
			}
			continue
		}
		ResolveAnnotations(c, opts)
		if isSwitcher(c) {
			setSwitcherData(c)
		}
	}
	n.Children = out
}

func annotateCodeBlock(el *Node, opts annotation.Options) *Node {
	res := annotation.Process(el.Value, opts)
	if len(res.Annotations) == 0 {
		return nil
	}
	el.Value = res.Code
	el.SetAttr("value", res.Code)
	el.Annotations = res.Annotations
	el.SetAttr("annotations", jsonString(res.Annotations))
	if len(res.Footnotes) == 0 {
		return nil
	}
	list := newElement("ol")
	list.SetAttr("class", "code-footnotes")
	for _, f := range res.Footnotes {
		item := newElement("li", newText(f.Text))
		item.SetAttr("data-index", strconv.Itoa(f.Index))
		list.Children = append(list.Children, item)
	}
	return list
}

// AssignHeadingIDs gives every heading an id, unique within the document.
func AssignHeadingIDs(doc *Node) {
	s := slug.New()
	Walk(doc, func(n *Node) bool {
		if n.Kind == KindHeading {
			n.SetAttr("id", HeadingSlug(s, n))
			return false
		}
		return true
	})
}

// HeadingSlug returns the anchor of a heading: its explicit id made unique,
// or its text slugified.
func HeadingSlug(s *slug.Slugger, h *Node) string {
	if id, ok := h.Attr("id"); ok && id != "" {
		return s.Unique(id)
	}
	return s.Slug(h.Text())
}

// jsonString encodes v without HTML escaping; the serializer escapes
// attribute values itself.
func jsonString(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
