package markdown

import (
	"strconv"
	"strings"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes text for use in HTML content and attribute values.
func EscapeHTML(s string) string {
	return escaper.Replace(s)
}

var voidElements = map[string]bool{
	"img": true, "br": true, "hr": true, "input": true,
}

// IsVoid reports whether tag is serialised without children or end tag.
func IsVoid(tag string) bool {
	return voidElements[tag]
}

// Render serialises a tree to HTML. Top-level blocks of a document are
// separated by newlines.
func Render(n *Node) string {
	var b strings.Builder
	render(&b, n)
	return b.String()
}

// RenderChildren serialises the children of n without n itself.
func RenderChildren(n *Node) string {
	var b strings.Builder
	for _, c := range n.Children {
		render(&b, c)
	}
	return b.String()
}

func render(b *strings.Builder, n *Node) {
	switch n.Kind {
	case KindDocument:
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte('\n')
			}
			render(b, c)
		}
	case KindText:
		b.WriteString(EscapeHTML(n.Value))
	case KindRaw:
		b.WriteString(n.Value)
	case KindHeading:
		writeElement(b, "h"+strconv.Itoa(n.Level), n.Attrs, n.Children)
	case KindParagraph:
		writeElement(b, "p", n.Attrs, n.Children)
	case KindEmphasis:
		tag := "em"
		if n.Level >= 2 {
			tag = "strong"
		}
		writeElement(b, tag, n.Attrs, n.Children)
	case KindCodeSpan:
		b.WriteString("<code>")
		b.WriteString(EscapeHTML(n.Value))
		b.WriteString("</code>")
	case KindFencedCode:
		b.WriteString("<pre><code")
		if n.Lang != "" {
			writeAttr(b, "class", "language-"+n.Lang)
		}
		b.WriteByte('>')
		b.WriteString(EscapeHTML(n.Value))
		b.WriteString("</code></pre>")
	case KindImage:
		writeElement(b, "img", n.Attrs, nil)
	case KindLink:
		writeElement(b, "a", n.Attrs, n.Children)
	case KindDirective, KindCustomElement, KindElement:
		writeElement(b, n.Tag, n.Attrs, n.Children)
	default:
		for _, c := range n.Children {
			render(b, c)
		}
	}
}

func writeElement(b *strings.Builder, tag string, attrs []Attr, children []*Node) {
	b.WriteByte('<')
	b.WriteString(tag)
	for _, a := range attrs {
		writeAttr(b, a.Key, a.Value)
	}
	b.WriteByte('>')
	if IsVoid(tag) {
		return
	}
	for _, c := range children {
		render(b, c)
	}
	b.WriteString("</")
	b.WriteString(tag)
	b.WriteByte('>')
}

func writeAttr(b *strings.Builder, key, value string) {
	b.WriteByte(' ')
	b.WriteString(key)
	b.WriteString(`="`)
	b.WriteString(EscapeHTML(value))
	b.WriteByte('"')
}
