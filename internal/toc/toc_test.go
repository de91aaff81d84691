package toc

import (
	"reflect"
	"testing"

	"github.com/starford/kiln/internal/markdown"
	"github.com/starford/kiln/internal/models"
)

func processor(t *testing.T) *markdown.Processor {
	t.Helper()
	p, err := markdown.New(markdown.Options{})
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestTree_DepthFilterAndUniqueSlugs(t *testing.T) {
	p := processor(t)
	src := "# Title\n\n## Setup\n\n### Setup\n\n#### Deep\n\n## Setup\n\n## Done\n"
	res := p.Content([]byte(src))

	got := Tree(res.Tree)
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4: %+v", len(got), got)
	}
	wantDepth := []int{2, 3, 2, 2}
	wantSlug := []string{"setup", "setup-1", "setup-2", "done"}
	seen := map[string]bool{}
	for i, h := range got {
		if h.Depth != wantDepth[i] || h.Slug != wantSlug[i] {
			t.Errorf("heading %d = (%d, %q), want (%d, %q)", i, h.Depth, h.Slug, wantDepth[i], wantSlug[i])
		}
		if seen[h.Slug] {
			t.Errorf("duplicate slug %s", h.Slug)
		}
		seen[h.Slug] = true
	}
}

func TestTree_SlugsMatchAnchorsInContent(t *testing.T) {
	p := processor(t)
	res := p.Content([]byte("## Intro\n\n## Intro\n\n## Custom {#custom}\n"))
	got := Tree(res.Tree)
	for i, h := range got {
		if id, _ := res.Tree.Children[i].Attr("id"); id != h.Slug {
			t.Errorf("heading %d: anchor %q, toc slug %q", i, id, h.Slug)
		}
	}
}

func TestTree_InnerHTML(t *testing.T) {
	p := processor(t)
	tree := p.Parse([]byte("## Use [the *API*](https://x.dev \"docs\") & `code` <b>raw</b>\n"))
	got := Tree(tree)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if want := `Use <span title="docs">the <em>API</em></span> &amp; <code>code</code> raw`; got[0].HTML != want {
		t.Errorf("html = %q, want %q", got[0].HTML, want)
	}
	if got[0].Slug != "use-the-api-code-raw" {
		t.Errorf("slug = %q", got[0].Slug)
	}
}

func TestTree_NoHeadingsIsEmptyNotNil(t *testing.T) {
	p := processor(t)
	got := Tree(p.Parse([]byte("just text\n")))
	if got == nil || len(got) != 0 {
		t.Errorf("got %#v, want empty non-nil slice", got)
	}
}

const sidecarBody = `<!--
BEGIN_TOC
  - Getting **started**|getting-started|2
  - Details|details|3
  - Too deep|too-deep|4
  - malformed line without fields
  - Bad depth|bad|x
END_TOC
-->

Body starts here.
`

func TestSidecar(t *testing.T) {
	p := processor(t)
	got := Sidecar(sidecarBody, p.Plain)
	want := []models.Heading{
		{Depth: 2, Slug: "getting-started", HTML: "Getting <strong>started</strong>"},
		{Depth: 3, Slug: "details", HTML: "Details"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Sidecar = %+v, want %+v", got, want)
	}
}

func TestSidecar_MissingMarkers(t *testing.T) {
	for _, body := range []string{
		"no markers at all",
		"BEGIN_TOC\n - a|a|2\n",
		"END_TOC\nBEGIN_TOC\n",
	} {
		got := Sidecar(body, nil)
		if got == nil || len(got) != 0 {
			t.Errorf("Sidecar(%q) = %#v, want empty non-nil slice", body, got)
		}
	}
}

func TestStripSidecar(t *testing.T) {
	cases := []struct{ in, want string }{
		{sidecarBody, "Body starts here.\n"},
		{"intro\nBEGIN_TOC\n - a|a|2\nEND_TOC\nrest", "intro\nrest"},
		{"untouched", "untouched"},
	}
	for _, tc := range cases {
		if got := StripSidecar(tc.in); got != tc.want {
			t.Errorf("StripSidecar(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseItems(t *testing.T) {
	items, err := ParseItems([]any{
		map[string]any{"title": "One", "slug": "one", "depth": 2},
		map[string]any{"title": "Two", "depth": 3.0},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []Item{{Title: "One", Slug: "one", Depth: 2}, {Title: "Two", Depth: 3}}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %+v, want %+v", items, want)
	}

	if _, err := ParseItems("nope"); err == nil {
		t.Error("expected error for non-list input")
	}
	if _, err := ParseItems([]any{map[string]any{"title": "x", "depth": "two"}}); err == nil {
		t.Error("expected error for non-numeric depth")
	}
}

func TestExtract_Strategies(t *testing.T) {
	p := processor(t)
	res := p.Content([]byte("## From tree\n"))
	in := Input{
		Tree:   res.Tree,
		Body:   sidecarBody,
		Render: p.Plain,
	}

	first := func(s Strategy) string {
		t.Helper()
		got := Extract(s, in)
		if len(got) == 0 {
			t.Fatalf("strategy %v: no headings", s)
		}
		return got[0].Slug
	}

	if got := first(StrategyTree); got != "from-tree" {
		t.Errorf("tree = %q", got)
	}
	if got := first(StrategySidecar); got != "getting-started" {
		t.Errorf("sidecar = %q", got)
	}
	if got := first(StrategyAuto); got != "getting-started" {
		t.Errorf("auto with sidecar = %q", got)
	}
	if got := Extract(StrategyNone, in); len(got) != 0 {
		t.Errorf("none = %+v", got)
	}

	in.Frontmatter = []Item{{Title: "From frontmatter", Depth: 2}}
	if got := first(StrategyAuto); got != "from-frontmatter" {
		t.Errorf("auto with frontmatter = %q", got)
	}
	if got := first(StrategyFrontmatter); got != "from-frontmatter" {
		t.Errorf("frontmatter = %q", got)
	}

	in.Frontmatter, in.Body = nil, "plain"
	if got := first(StrategyAuto); got != "from-tree" {
		t.Errorf("auto fallback = %q", got)
	}
}
