// Package markdown parses markdown into a typed syntax tree, rewrites it
// through an ordered list of passes and serialises it to HTML.
package markdown

import (
	"strings"

	"github.com/starford/kiln/internal/annotation"
)

// Kind tags the variant of a Node.
type Kind int

const (
	KindDocument Kind = iota
	KindHeading
	KindParagraph
	KindText
	KindEmphasis
	KindCodeSpan
	KindFencedCode
	KindImage
	KindLink
	KindDirective
	KindCustomElement
	// KindElement is generic HTML structure: lists, quotes, tables, breaks.
	KindElement
	// KindRaw is HTML passed through verbatim.
	KindRaw
)

var kindNames = [...]string{
	"document", "heading", "paragraph", "text", "emphasis", "code-span",
	"fenced-code", "image", "link", "directive", "custom-element", "element", "raw",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// DirectiveKind distinguishes the three directive forms.
type DirectiveKind int

const (
	DirectiveNone DirectiveKind = iota
	DirectiveContainer
	DirectiveLeaf
	DirectiveInline
)

// Attr is one element attribute. Attributes keep insertion order so the
// serialised HTML is deterministic.
type Attr struct {
	Key   string
	Value string
}

// Pos is the source position of a node: 1-based line and byte columns.
type Pos struct {
	Line     int
	StartCol int
	EndCol   int
}

// Node is one syntax tree node. A parent exclusively owns its children.
//
// Field use by kind:
//
//	Heading        Level (1..6), Attrs (id)
//	Text, Raw      Value
//	Emphasis       Level (1 em, 2 strong)
//	CodeSpan       Value
//	FencedCode     Value (code), Lang (info token)
//	Image, Link    Attrs (src/alt/title, href/title)
//	Directive      Tag (name), Attrs, Directive
//	CustomElement  Tag, Attrs, Annotations for code-block
//	Element        Tag, Attrs
type Node struct {
	Kind        Kind
	Tag         string
	Attrs       []Attr
	Value       string
	Lang        string
	Level       int
	Directive   DirectiveKind
	Annotations []annotation.Annotation
	Children    []*Node
	Pos         Pos
}

// Attr returns the value of attribute key.
func (n *Node) Attr(key string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets or replaces attribute key.
func (n *Node) SetAttr(key, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Key == key {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Key: key, Value: value})
}

// DelAttr removes attribute key.
func (n *Node) DelAttr(key string) {
	out := n.Attrs[:0]
	for _, a := range n.Attrs {
		if a.Key != key {
			out = append(out, a)
		}
	}
	n.Attrs = out
}

// Text returns the concatenated text content of n, the way a heading's
// visible text is read for slugging.
func (n *Node) Text() string {
	var b strings.Builder
	n.writeText(&b)
	return b.String()
}

func (n *Node) writeText(b *strings.Builder) {
	switch n.Kind {
	case KindText, KindCodeSpan:
		b.WriteString(n.Value)
		return
	case KindImage:
		alt, _ := n.Attr("alt")
		b.WriteString(alt)
		return
	}
	for _, c := range n.Children {
		c.writeText(b)
	}
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n *Node, fn func(*Node) bool) {
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

func newText(s string) *Node {
	return &Node{Kind: KindText, Value: s}
}

func newElement(tag string, children ...*Node) *Node {
	return &Node{Kind: KindElement, Tag: tag, Children: children}
}
