package markdown

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

// parseTree runs a goldmark parser over src and lowers the result.
func parseTree(md goldmark.Markdown, src []byte) *Node {
	root := md.Parser().Parse(text.NewReader(src))
	l := newLowerer(md, src)
	nodes := l.lower(root)
	if len(nodes) == 1 && nodes[0].Kind == KindDocument {
		return nodes[0]
	}
	return &Node{Kind: KindDocument, Children: nodes}
}

// lowerer converts goldmark nodes into Nodes. Unknown goldmark nodes are
// replaced by their lowered children.
type lowerer struct {
	md         goldmark.Markdown
	source     []byte
	lineStarts []int
}

func newLowerer(md goldmark.Markdown, src []byte) *lowerer {
	starts := []int{0}
	for i, c := range src {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lowerer{md: md, source: src, lineStarts: starts}
}

func (l *lowerer) position(start, stop int) Pos {
	line := sort.SearchInts(l.lineStarts, start+1) - 1
	endLine := line
	if stop > start {
		endLine = sort.SearchInts(l.lineStarts, stop) - 1
	}
	return Pos{
		Line:     line + 1,
		StartCol: start - l.lineStarts[line] + 1,
		EndCol:   stop - l.lineStarts[endLine] + 1,
	}
}

// span returns the source byte range covered by n, if known.
func (l *lowerer) span(n ast.Node) (int, int, bool) {
	if t, ok := n.(*ast.Text); ok {
		return t.Segment.Start, t.Segment.Stop, true
	}
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			return lines.At(0).Start, lines.At(lines.Len() - 1).Stop, true
		}
	}
	start, stop, found := 0, 0, false
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		s, e, ok := l.span(c)
		if !ok {
			continue
		}
		if !found {
			start = s
		}
		stop, found = e, true
	}
	return start, stop, found
}

func (l *lowerer) withPos(n ast.Node, node *Node) *Node {
	if s, e, ok := l.span(n); ok {
		node.Pos = l.position(s, e)
	}
	return node
}

func (l *lowerer) children(n ast.Node) []*Node {
	var out []*Node
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		out = append(out, l.lower(c)...)
	}
	return mergeText(out)
}

// mergeText joins adjacent text nodes.
func mergeText(nodes []*Node) []*Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.Kind == KindText && len(out) > 0 && out[len(out)-1].Kind == KindText {
			out[len(out)-1].Value += n.Value
			continue
		}
		out = append(out, n)
	}
	return out
}

func (l *lowerer) linesValue(lines *text.Segments) string {
	var b strings.Builder
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(l.source))
	}
	return b.String()
}

func (l *lowerer) textValue(v []byte) string {
	v = util.ResolveNumericReferences(v)
	v = util.ResolveEntityNames(v)
	return string(util.UnescapePunctuations(v))
}

func (l *lowerer) lower(n ast.Node) []*Node {
	switch v := n.(type) {
	case *ast.Document:
		return []*Node{{Kind: KindDocument, Children: l.children(n)}}
	case *ast.Heading:
		h := l.withPos(n, &Node{Kind: KindHeading, Level: v.Level, Children: l.children(n)})
		for _, a := range v.Attributes() {
			h.SetAttr(string(a.Name), attrString(a.Value))
		}
		return []*Node{h}
	case *ast.Paragraph:
		return []*Node{l.withPos(n, &Node{Kind: KindParagraph, Children: l.children(n)})}
	case *ast.TextBlock:
		return l.children(n)
	case *ast.Text:
		t := l.withPos(n, newText(l.textValue(v.Segment.Value(l.source))))
		switch {
		case v.HardLineBreak():
			return []*Node{t, newElement("br"), newText("\n")}
		case v.SoftLineBreak():
			t.Value += "\n"
		}
		return []*Node{t}
	case *ast.String:
		return []*Node{newText(string(v.Value))}
	case *ast.Emphasis:
		return []*Node{l.withPos(n, &Node{Kind: KindEmphasis, Level: v.Level, Children: l.children(n)})}
	case *ast.CodeSpan:
		var b strings.Builder
		for c := v.FirstChild(); c != nil; c = c.NextSibling() {
			switch t := c.(type) {
			case *ast.Text:
				b.Write(t.Segment.Value(l.source))
			case *ast.String:
				b.Write(t.Value)
			}
		}
		return []*Node{l.withPos(n, &Node{Kind: KindCodeSpan, Value: b.String()})}
	case *ast.FencedCodeBlock:
		code := &Node{Kind: KindFencedCode, Lang: string(v.Language(l.source))}
		code.Value = strings.TrimSuffix(l.linesValue(v.Lines()), "\n")
		return []*Node{l.withPos(n, code)}
	case *ast.CodeBlock:
		code := &Node{Kind: KindFencedCode, Value: strings.TrimSuffix(l.linesValue(v.Lines()), "\n")}
		return []*Node{l.withPos(n, code)}
	case *ast.Image:
		img := &Node{Kind: KindImage}
		img.SetAttr("src", string(v.Destination))
		img.SetAttr("alt", (&Node{Children: l.children(n)}).Text())
		if len(v.Title) > 0 {
			img.SetAttr("title", string(v.Title))
		}
		return []*Node{l.withPos(n, img)}
	case *ast.Link:
		a := &Node{Kind: KindLink, Children: l.children(n)}
		a.SetAttr("href", string(v.Destination))
		if len(v.Title) > 0 {
			a.SetAttr("title", string(v.Title))
		}
		return []*Node{l.withPos(n, a)}
	case *ast.AutoLink:
		href := string(v.URL(l.source))
		if v.AutoLinkType == ast.AutoLinkEmail && !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			href = "mailto:" + href
		}
		a := &Node{Kind: KindLink, Children: []*Node{newText(string(v.Label(l.source)))}}
		a.SetAttr("href", href)
		return []*Node{a}
	case *ast.Blockquote:
		return []*Node{l.withPos(n, newElement("blockquote", l.children(n)...))}
	case *ast.List:
		tag := "ul"
		if v.IsOrdered() {
			tag = "ol"
		}
		list := l.withPos(n, newElement(tag, l.children(n)...))
		if v.IsOrdered() && v.Start != 1 {
			list.SetAttr("start", strconv.Itoa(v.Start))
		}
		return []*Node{list}
	case *ast.ListItem:
		return []*Node{l.withPos(n, newElement("li", l.children(n)...))}
	case *ast.ThematicBreak:
		return []*Node{newElement("hr")}
	case *ast.HTMLBlock:
		raw := l.linesValue(v.Lines())
		if v.HasClosure() {
			raw += string(v.ClosureLine.Value(l.source))
		}
		return []*Node{l.withPos(n, &Node{Kind: KindRaw, Value: strings.TrimSuffix(raw, "\n")})}
	case *ast.RawHTML:
		var b strings.Builder
		for i := 0; i < v.Segments.Len(); i++ {
			seg := v.Segments.At(i)
			b.Write(seg.Value(l.source))
		}
		return []*Node{{Kind: KindRaw, Value: b.String()}}
	case *extast.Table:
		return []*Node{l.withPos(n, l.table(v))}
	case *extast.Strikethrough:
		return []*Node{newElement("del", l.children(n)...)}
	case *extast.TaskCheckBox:
		box := newElement("input")
		box.SetAttr("type", "checkbox")
		box.SetAttr("disabled", "")
		if v.IsChecked {
			box.SetAttr("checked", "")
		}
		return []*Node{box, newText(" ")}
	case *directiveBlock:
		d := &Node{
			Kind:      KindDirective,
			Tag:       v.Name,
			Attrs:     append([]Attr(nil), v.Attrs...),
			Directive: v.Form,
			Children:  l.children(n),
		}
		if v.Label != "" {
			d.SetAttr("label", v.Label)
		}
		return []*Node{l.withPos(n, d)}
	case *directiveText:
		d := &Node{
			Kind:      KindDirective,
			Tag:       v.Name,
			Attrs:     append([]Attr(nil), v.Attrs...),
			Directive: DirectiveInline,
			Children:  l.inline(v.label),
		}
		return []*Node{l.withPos(n, d)}
	default:
		return l.children(n)
	}
}

// inline parses a single-line segment of the source as inline markdown.
// Text that would open a block other than a paragraph stays literal.
func (l *lowerer) inline(seg text.Segment) []*Node {
	if seg.Len() == 0 {
		return nil
	}
	src := seg.Value(l.source)
	doc := l.md.Parser().Parse(text.NewReader(src))
	para, ok := doc.FirstChild().(*ast.Paragraph)
	if !ok || para.NextSibling() != nil {
		return []*Node{newText(l.textValue(src))}
	}
	sub := newLowerer(l.md, src)
	nodes := sub.children(para)
	shiftPos(nodes, l.position(seg.Start, seg.Start))
	return nodes
}

// shiftPos moves positions computed against a one-line fragment to where
// the fragment starts in the enclosing source.
func shiftPos(nodes []*Node, at Pos) {
	for _, n := range nodes {
		if n.Pos.Line > 0 {
			n.Pos.Line = at.Line
			n.Pos.StartCol += at.StartCol - 1
			n.Pos.EndCol += at.StartCol - 1
		}
		shiftPos(n.Children, at)
	}
}

func (l *lowerer) table(t *extast.Table) *Node {
	table := newElement("table")
	var body *Node
	for c := t.FirstChild(); c != nil; c = c.NextSibling() {
		switch row := c.(type) {
		case *extast.TableHeader:
			table.Children = append(table.Children, newElement("thead", l.tableRow(row, "th")))
		case *extast.TableRow:
			if body == nil {
				body = newElement("tbody")
				table.Children = append(table.Children, body)
			}
			body.Children = append(body.Children, l.tableRow(row, "td"))
		}
	}
	return table
}

func (l *lowerer) tableRow(row ast.Node, cellTag string) *Node {
	tr := newElement("tr")
	for c := row.FirstChild(); c != nil; c = c.NextSibling() {
		cell := newElement(cellTag, l.children(c)...)
		if tc, ok := c.(*extast.TableCell); ok && tc.Alignment != extast.AlignNone {
			cell.SetAttr("align", tc.Alignment.String())
		}
		tr.Children = append(tr.Children, cell)
	}
	return tr
}

func attrString(v any) string {
	switch s := v.(type) {
	case []byte:
		return string(s)
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}
