package markdown

import (
	"strings"
	"unicode"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

var (
	kindContainerDirective = ast.NewNodeKind("ContainerDirective")
	kindLeafDirective      = ast.NewNodeKind("LeafDirective")
	kindTextDirective      = ast.NewNodeKind("TextDirective")
)

// directiveBlock is a container (`:::name`) or leaf (`::name`) directive.
// Leaf labels are kept as the node's lines so goldmark parses their inline
// markup.
type directiveBlock struct {
	ast.BaseBlock
	Name  string
	Label string
	Attrs []Attr
	Form  DirectiveKind
	fence int
}

func (n *directiveBlock) Kind() ast.NodeKind {
	if n.Form == DirectiveContainer {
		return kindContainerDirective
	}
	return kindLeafDirective
}

func (n *directiveBlock) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Name": n.Name}, nil)
}

// directiveText is an inline directive (`:name[label]{attrs}`). The label
// is parsed as inline markdown when the tree is lowered.
type directiveText struct {
	ast.BaseInline
	Name  string
	Attrs []Attr
	label text.Segment
}

func (n *directiveText) Kind() ast.NodeKind { return kindTextDirective }

func (n *directiveText) Dump(source []byte, level int) {
	ast.DumpHelper(n, source, level, map[string]string{"Name": n.Name}, nil)
}

type directiveBlockParser struct{}

func (p *directiveBlockParser) Trigger() []byte { return []byte{':'} }

func (p *directiveBlockParser) Open(parent ast.Node, reader text.Reader, pc parser.Context) (ast.Node, parser.State) {
	line, segment := reader.PeekLine()
	pos := pc.BlockOffset()
	if pos < 0 || pos >= len(line) || line[pos] != ':' {
		return nil, parser.NoChildren
	}
	fence := 0
	for i := pos; i < len(line) && line[i] == ':'; i++ {
		fence++
	}
	if fence < 2 {
		return nil, parser.NoChildren
	}
	head, ok := parseDirectiveHead(line[pos+fence:])
	if !ok || !util.IsBlank(line[pos+fence+head.consumed:]) {
		return nil, parser.NoChildren
	}
	node := &directiveBlock{Name: head.name, Attrs: head.attrs, fence: fence}
	if fence == 2 {
		node.Form = DirectiveLeaf
		if head.labelEnd > head.labelStart {
			base := segment.Start - segment.Padding + pos + fence
			node.Lines().Append(text.NewSegment(base+head.labelStart, base+head.labelEnd))
		}
		return node, parser.NoChildren
	}
	node.Form = DirectiveContainer
	node.Label = head.label
	advance := len(line)
	if line[advance-1] == '\n' {
		advance--
	}
	reader.Advance(advance)
	return node, parser.HasChildren
}

func (p *directiveBlockParser) Continue(node ast.Node, reader text.Reader, pc parser.Context) parser.State {
	n := node.(*directiveBlock)
	if n.Form != DirectiveContainer {
		return parser.Close
	}
	line, segment := reader.PeekLine()
	w, pos := util.IndentWidth(line, reader.LineOffset())
	if w < 4 {
		i := pos
		for ; i < len(line) && line[i] == ':'; i++ {
		}
		if i-pos >= n.fence && util.IsBlank(line[i:]) {
			newline := 1
			if line[len(line)-1] != '\n' {
				newline = 0
			}
			reader.Advance(segment.Stop - segment.Start - newline + segment.Padding)
			return parser.Close
		}
	}
	return parser.Continue | parser.HasChildren
}

func (p *directiveBlockParser) Close(node ast.Node, reader text.Reader, pc parser.Context) {}

func (p *directiveBlockParser) CanInterruptParagraph() bool { return true }

func (p *directiveBlockParser) CanAcceptIndentedLine() bool { return false }

type directiveInlineParser struct{}

func (p *directiveInlineParser) Trigger() []byte { return []byte{':'} }

func (p *directiveInlineParser) Parse(parent ast.Node, block text.Reader, pc parser.Context) ast.Node {
	prev := block.PrecendingCharacter()
	if prev == ':' || unicode.IsLetter(prev) || unicode.IsDigit(prev) || prev == '_' {
		return nil
	}
	line, segment := block.PeekLine()
	if len(line) < 3 || line[0] != ':' || line[1] == ':' {
		return nil
	}
	head, ok := parseDirectiveHead(line[1:])
	if !ok || !(head.hasLabel || head.hasAttrs) {
		return nil
	}
	node := &directiveText{Name: head.name, Attrs: head.attrs}
	if head.labelEnd > head.labelStart {
		base := segment.Start + 1
		node.label = text.NewSegment(base+head.labelStart, base+head.labelEnd)
	}
	block.Advance(1 + head.consumed)
	return node
}

type directiveExtension struct{}

// Directives is a goldmark extension for container, leaf and inline
// directives. Malformed directive syntax is left to the other parsers and
// ends up as literal text.
var Directives goldmark.Extender = &directiveExtension{}

func (e *directiveExtension) Extend(m goldmark.Markdown) {
	m.Parser().AddOptions(
		parser.WithBlockParsers(util.Prioritized(&directiveBlockParser{}, 150)),
		parser.WithInlineParsers(util.Prioritized(&directiveInlineParser{}, 450)),
	)
}

type directiveHead struct {
	name                 string
	label                string
	labelStart, labelEnd int
	hasLabel, hasAttrs   bool
	attrs                []Attr
	consumed             int
}

// parseDirectiveHead reads `name[label]{attrs}` from the start of s.
func parseDirectiveHead(s []byte) (directiveHead, bool) {
	var h directiveHead
	if len(s) == 0 || !isASCIILetter(s[0]) {
		return h, false
	}
	i := 1
	for i < len(s) && (isASCIILetter(s[i]) || (s[i] >= '0' && s[i] <= '9') || s[i] == '-' || s[i] == '_') {
		i++
	}
	h.name = string(s[:i])

	if i < len(s) && s[i] == '[' {
		end := matchBracket(s, i)
		if end < 0 {
			return h, false
		}
		h.hasLabel = true
		h.labelStart, h.labelEnd = i+1, end
		h.label = string(s[i+1 : end])
		i = end + 1
	}
	if i < len(s) && s[i] == '{' {
		end := matchBrace(s, i)
		if end < 0 {
			return h, false
		}
		attrs, ok := parseAttributes(string(s[i+1 : end]))
		if !ok {
			return h, false
		}
		h.hasAttrs = true
		h.attrs = attrs
		i = end + 1
	}
	h.consumed = i
	return h, true
}

// matchBracket returns the index of the `]` closing the `[` at open, or -1.
func matchBracket(s []byte, open int) int {
	depth := 0
	for j := open; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return j
			}
		case '\n':
			return -1
		}
	}
	return -1
}

// matchBrace returns the index of the `}` closing the `{` at open, skipping
// quoted values, or -1.
func matchBrace(s []byte, open int) int {
	var quote byte
	for j := open + 1; j < len(s); j++ {
		c := s[j]
		switch {
		case c == '\n':
			return -1
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '}':
			return j
		}
	}
	return -1
}

// parseAttributes parses `#id .class key=value key="quoted value" flag`.
// Classes accumulate into a single class attribute; later keys win.
func parseAttributes(s string) ([]Attr, bool) {
	var attrs []Attr
	set := func(k, v string) {
		for i := range attrs {
			if attrs[i].Key == k {
				attrs[i].Value = v
				return
			}
		}
		attrs = append(attrs, Attr{Key: k, Value: v})
	}
	var classes []string
	i := 0
	for {
		for i < len(s) && isSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		switch s[i] {
		case '#', '.':
			j := i + 1
			for j < len(s) && !isSpace(s[j]) {
				j++
			}
			if j == i+1 {
				return nil, false
			}
			if s[i] == '#' {
				set("id", s[i+1:j])
			} else {
				classes = append(classes, s[i+1:j])
				set("class", strings.Join(classes, " "))
			}
			i = j
		default:
			j := i
			for j < len(s) && !isSpace(s[j]) && s[j] != '=' && s[j] != '"' && s[j] != '\'' {
				j++
			}
			if j == i {
				return nil, false
			}
			key := s[i:j]
			if j >= len(s) || s[j] != '=' {
				set(key, "")
				i = j
				continue
			}
			j++
			if j < len(s) && (s[j] == '"' || s[j] == '\'') {
				q := s[j]
				end := strings.IndexByte(s[j+1:], q)
				if end < 0 {
					return nil, false
				}
				set(key, s[j+1:j+1+end])
				i = j + end + 2
				continue
			}
			k := j
			for k < len(s) && !isSpace(s[k]) {
				k++
			}
			set(key, s[j:k])
			i = k
		}
	}
	return attrs, true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t'
}
