package markdown

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"

	"github.com/starford/kiln/internal/annotation"
)

const defaultCaptionCacheSize = 512

// DefaultLanguageAliases maps fence tokens to display languages.
var DefaultLanguageAliases = map[string]string{"default": "markdown"}

// Options configure a Processor.
type Options struct {
	LanguageAliases  map[string]string
	CalloutAnchor    annotation.Anchor
	CaptionCacheSize int
}

// Processor owns the goldmark parsers and the caption cache. It is safe for
// concurrent use.
type Processor struct {
	content  goldmark.Markdown
	inline   goldmark.Markdown
	aliases  map[string]string
	annot    annotation.Options
	captions *lru.Cache[string, string]
}

// Result is a fully processed document.
type Result struct {
	Tree *Node
	HTML string
	// Elements lists the custom element tags present in Tree, sorted.
	Elements []string
}

// New builds a Processor.
func New(opts Options) (*Processor, error) {
	size := opts.CaptionCacheSize
	if size <= 0 {
		size = defaultCaptionCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("markdown: caption cache: %w", err)
	}
	aliases := maps.Clone(DefaultLanguageAliases)
	maps.Copy(aliases, opts.LanguageAliases)
	anchor := opts.CalloutAnchor
	if anchor == "" {
		anchor = annotation.AnchorMidpoint
	}
	return &Processor{
		content:  newMarkdown(Directives),
		inline:   newMarkdown(),
		aliases:  aliases,
		annot:    annotation.Options{CalloutAnchor: anchor},
		captions: cache,
	}, nil
}

func newMarkdown(exts ...goldmark.Extender) goldmark.Markdown {
	exts = append([]goldmark.Extender{extension.Table, extension.Strikethrough, extension.TaskList}, exts...)
	return goldmark.New(
		goldmark.WithExtensions(exts...),
		goldmark.WithParserOptions(parser.WithAttribute()),
	)
}

// Parse parses src with the directive grammar and applies no passes.
func (p *Processor) Parse(src []byte) *Node {
	return parseTree(p.content, src)
}

// Content runs the full pass list over src.
func (p *Processor) Content(src []byte) Result {
	tree := p.Parse(src)
	p.Transform(tree)
	return p.result(tree)
}

// Transform applies the content passes to tree in order.
func (p *Processor) Transform(tree *Node) {
	ExpandDirectives(tree)
	UnwrapImages(tree)
	StructureCode(tree, CodeOptions{Aliases: p.aliases, Caption: p.Caption})
	ResolveAnnotations(tree, p.annot)
	AssignHeadingIDs(tree)
}

// Inline renders short-form markdown such as descriptions: no directive
// grammar, only the inline code override.
func (p *Processor) Inline(src string) string {
	tree := parseTree(p.inline, []byte(src))
	TagInlineCode(tree)
	return Render(tree)
}

// Plain renders markdown without any pass.
func (p *Processor) Plain(src string) string {
	return Render(parseTree(p.inline, []byte(src)))
}

// Caption renders a code-block caption, memoised by source text.
func (p *Processor) Caption(src string) string {
	if html, ok := p.captions.Get(src); ok {
		return html
	}
	html := p.Plain(src)
	p.captions.Add(src, html)
	return html
}

// CodeBlock structures a bare script as a single code block with resolved
// annotations.
func (p *Processor) CodeBlock(code, lang string) Result {
	tree := &Node{Kind: KindDocument, Children: []*Node{
		NewCodeBlock(code, ResolveLang(lang, p.aliases), p.Caption),
	}}
	ResolveAnnotations(tree, p.annot)
	return p.result(tree)
}

func (p *Processor) result(tree *Node) Result {
	seen := map[string]bool{}
	Walk(tree, func(n *Node) bool {
		if n.Kind == KindCustomElement {
			seen[n.Tag] = true
		}
		return true
	})
	return Result{
		Tree:     tree,
		HTML:     Render(tree),
		Elements: slices.Sorted(maps.Keys(seen)),
	}
}

// PlainText returns the visible text of a tree, with block boundaries and
// code block contents kept, for word counting.
func PlainText(n *Node) string {
	var parts []string
	Walk(n, func(c *Node) bool {
		switch c.Kind {
		case KindText, KindCodeSpan, KindFencedCode:
			parts = append(parts, c.Value)
		case KindCustomElement:
			if c.Tag == TagCodeBlock {
				parts = append(parts, c.Value)
				return false
			}
			if c.Tag == TagCodeInline {
				v, _ := c.Attr("value")
				parts = append(parts, v)
			}
		}
		return true
	})
	return strings.Join(parts, " ")
}
