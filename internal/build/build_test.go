package build

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/kiln/internal/collection"
	"github.com/starford/kiln/internal/markdown"
	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/schema"
	"github.com/starford/kiln/internal/storage"
)

var stampTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type stubStamps struct {
	calls atomic.Int64
}

func (s *stubStamps) LastModified(context.Context, string) (time.Time, bool, error) {
	s.calls.Add(1)
	return stampTime, true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func contentTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, root, "home.md", "Welcome *home*.\n")
	writeFile(t, root, "posts/hello.md", `---
title: Hello World
date: 2024-01-02
description: A *short* intro
tags: [go]
slug: hello
---
## Intro

Read [the note](/notes/n1#top) first.
`)
	writeFile(t, root, "posts/draft.md", `---
title: Draft
date: 2024-03-01
description: wip
draft: true
---
Unfinished.
`)
	writeFile(t, root, "posts/bad.md", `---
date: 2024-01-01
description: no title
---
Body.
`)
	writeFile(t, root, "posts/zz-dup.md", `---
title: Dup
slug: hello
date: 2024-01-05
description: d
---
Dup.
`)
	writeFile(t, root, "notes/n1.md", `---
title: N1
date: 2024-02-01
---
# Top

## Part one
`)
	writeFile(t, root, "recipes/pandas/melt.py", `"""
title: Melt a frame
"""
import pandas as pd
`)
	writeFile(t, root, "recipes/base/vec.R", "x <- c(1, 2)\n")
	return root
}

func newTestBuilder(t *testing.T, root string, policy schema.Policy, stamps *stubStamps) *Builder {
	t.Helper()
	fs, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	proc, err := markdown.New(markdown.Options{})
	if err != nil {
		t.Fatal(err)
	}
	compiler := &Compiler{Processor: proc, Policy: policy, Sanitizer: schema.NewDescriptionPolicy()}
	opts := Options{Definitions: collection.Defaults(), Concurrency: 4}
	if stamps != nil {
		opts.Stamps = stamps
	}
	return NewBuilder(fs, compiler, opts, testLogger())
}

func findDiag(diags []models.Diagnostic, stage models.Stage, path string) (models.Diagnostic, bool) {
	for _, d := range diags {
		if d.Stage == stage && d.Path == path {
			return d, true
		}
	}
	return models.Diagnostic{}, false
}

func mustBuild(t *testing.T, b *Builder) *Generation {
	t.Helper()
	gen, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return gen
}

func mustCollection(t *testing.T, gen *Generation, name string) *collection.Collection {
	t.Helper()
	c, ok := gen.Collection(name)
	if !ok {
		t.Fatalf("collection %q missing", name)
	}
	return c
}

func mustFind(t *testing.T, c *collection.Collection, slug string) *models.Record {
	t.Helper()
	r, ok := c.FindBySlug(slug)
	if !ok {
		t.Fatalf("record %q missing", slug)
	}
	return r
}

func mustDiag(t *testing.T, diags []models.Diagnostic, stage models.Stage, path string) models.Diagnostic {
	t.Helper()
	d, ok := findDiag(diags, stage, path)
	if !ok {
		t.Fatalf("no %s diagnostic for %s in %+v", stage, path, diags)
	}
	return d
}

func TestBuild_Generation(t *testing.T) {
	stamps := &stubStamps{}
	gen := mustBuild(t, newTestBuilder(t, contentTree(t), schema.PolicyDrop, stamps))
	if gen.ID != 1 {
		t.Errorf("generation = %d, want 1", gen.ID)
	}

	posts := mustCollection(t, gen, "posts")
	if posts.Len() != 2 {
		t.Fatalf("posts = %d, want 2", posts.Len())
	}

	hello := mustFind(t, posts, "hello")
	if hello.Path != "posts/hello.md" || hello.Href != "/posts/hello" || hello.Title != "Hello World" {
		t.Errorf("hello identity = %s %s %q", hello.Path, hello.Href, hello.Title)
	}
	if hello.Date != "2024-01-02T00:00:00.000Z" {
		t.Errorf("date = %q", hello.Date)
	}
	if !reflect.DeepEqual(hello.Tags, []string{"go"}) {
		t.Errorf("tags = %v", hello.Tags)
	}
	if want := []models.Heading{{Depth: 2, Slug: "intro", HTML: "Intro"}}; !reflect.DeepEqual(hello.Headings, want) {
		t.Errorf("headings = %+v", hello.Headings)
	}
	if !strings.Contains(hello.Content, `<h2 id="intro">Intro</h2>`) {
		t.Errorf("content = %q", hello.Content)
	}
	if !strings.Contains(hello.DescriptionHTML, "<em>short</em>") {
		t.Errorf("description = %q", hello.DescriptionHTML)
	}
	if !reflect.DeepEqual(hello.Links, []string{"/notes/n1"}) {
		t.Errorf("links = %v", hello.Links)
	}
	if hello.ReadingTime.Words <= 0 || hello.ReadingTime.Minutes != 1 {
		t.Errorf("reading time = %+v", hello.ReadingTime)
	}
	if hello.LastModified == nil || !hello.LastModified.Equal(stampTime) {
		t.Errorf("last modified = %v", hello.LastModified)
	}
	if hello.Checksum == "" {
		t.Error("checksum is empty")
	}

	draft := mustFind(t, posts, "draft")
	if !draft.Draft || !reflect.DeepEqual(draft.Tags, []string{"other"}) {
		t.Errorf("draft = %v, tags %v", draft.Draft, draft.Tags)
	}

	if d := mustDiag(t, gen.Diagnostics, models.StageValidate, "posts/bad.md"); d.Severity != models.SeverityError || d.Field != "title" {
		t.Errorf("validate diag = %+v", d)
	}
	if d := mustDiag(t, gen.Diagnostics, models.StageAssemble, "posts/zz-dup.md"); !strings.Contains(d.Message, "posts/hello.md") {
		t.Errorf("assemble diag = %+v", d)
	}

	n1 := mustFind(t, mustCollection(t, gen, "notes"), "n1")
	if n1.Href != "/notes/n1" {
		t.Errorf("n1 href = %q", n1.Href)
	}
	if want := []models.Heading{{Depth: 2, Slug: "part-one", HTML: "Part one"}}; !reflect.DeepEqual(n1.Headings, want) {
		t.Errorf("n1 headings = %+v", n1.Headings)
	}

	home, ok := gen.Single("home")
	if !ok {
		t.Fatal("home single missing")
	}
	if !strings.Contains(home.Content, "<em>home</em>") || len(home.Headings) != 0 {
		t.Errorf("home = %q, headings %+v", home.Content, home.Headings)
	}
	if _, ok := gen.Single("about"); ok {
		t.Error("about should be absent")
	}
	var aboutWarned bool
	for _, d := range gen.Diagnostics {
		if d.Collection == "about" && d.Severity == models.SeverityWarning {
			aboutWarned = true
		}
	}
	if !aboutWarned {
		t.Error("missing single should produce a warning")
	}

	groups := mustCollection(t, gen, "recipes").GroupBy("dir")
	if len(groups["pandas"]) != 1 || len(groups["base"]) != 1 {
		t.Fatalf("recipe groups = %v", groups)
	}
	melt := groups["pandas"][0]
	if melt.Slug != "melt" || melt.Href != "/recipes/pandas/melt" || melt.Title != "Melt a frame" {
		t.Errorf("melt identity = %s %s %q", melt.Slug, melt.Href, melt.Title)
	}
	if melt.FieldString("lang") != "python" || melt.FieldString("filename") != "melt.py" {
		t.Errorf("melt fields = %v", melt.Fields)
	}
	if !strings.Contains(melt.Content, "<code-block") {
		t.Errorf("melt content = %q", melt.Content)
	}
	if lang := groups["base"][0].FieldString("lang"); lang != "r" {
		t.Errorf("vec lang = %q", lang)
	}

	if !slices.Contains(gen.Elements, markdown.TagCodeBlock) {
		t.Errorf("elements = %v", gen.Elements)
	}
	want := map[string]int{"home": 1, "about": 0, "posts": 2, "notes": 1, "recipes": 2}
	if got := gen.Counts(); !reflect.DeepEqual(got, want) {
		t.Errorf("counts = %v, want %v", got, want)
	}
}

func TestBuild_CacheSkipsUnchangedFiles(t *testing.T) {
	root := contentTree(t)
	stamps := &stubStamps{}
	b := newTestBuilder(t, root, schema.PolicyDrop, stamps)

	first := mustBuild(t, b)
	callsAfterFirst := stamps.calls.Load()

	writeFile(t, root, "notes/n1.md", "---\ntitle: N1 revised\nslug: n1\ndate: 2024-02-01\n---\nNew body.\n")
	second := mustBuild(t, b)
	if second.ID != 2 {
		t.Errorf("generation = %d, want 2", second.ID)
	}

	h1 := mustFind(t, mustCollection(t, first, "posts"), "hello")
	h2 := mustFind(t, mustCollection(t, second, "posts"), "hello")
	if h1 != h2 {
		t.Error("unchanged record should be reused from the cache")
	}

	r1 := mustFind(t, mustCollection(t, first, "notes"), "n1")
	r2 := mustFind(t, mustCollection(t, second, "notes"), "n1")
	if r1 == r2 || r2.Title != "N1 revised" {
		t.Errorf("changed record not recompiled: %q", r2.Title)
	}
	if got := stamps.calls.Load(); got != callsAfterFirst+1 {
		t.Errorf("stamp lookups = %d, want %d", got, callsAfterFirst+1)
	}

	if err := os.Remove(filepath.Join(root, "notes", "n1.md")); err != nil {
		t.Fatal(err)
	}
	third := mustBuild(t, b)
	if n := mustCollection(t, third, "notes").Len(); n != 0 {
		t.Errorf("notes after delete = %d", n)
	}
	if _, cached := b.Cache().Get("notes", "notes/n1.md", r2.Checksum); cached {
		t.Error("deleted file should be evicted from the cache")
	}
}

func TestBuild_FailPolicyAborts(t *testing.T) {
	b := newTestBuilder(t, contentTree(t), schema.PolicyFail, nil)

	gen, err := b.Build(context.Background())
	if err == nil || gen != nil {
		t.Fatalf("Build = %v, %v; want abort", gen, err)
	}
	var verr *schema.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T %v, want *schema.ValidationError", err, err)
	}
	if verr.File != "posts/bad.md" {
		t.Errorf("file = %q", verr.File)
	}
}

func TestBuild_WarnPolicyKeepsRecordWithDefault(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "posts/a.md", "---\ntitle: A\ndate: 2024-01-01\ndescription: d\ndraft: maybe\n---\nA.\n")
	gen := mustBuild(t, newTestBuilder(t, root, schema.PolicyWarn, nil))

	if a := mustFind(t, mustCollection(t, gen, "posts"), "a"); a.Draft {
		t.Error("invalid draft should reset to false")
	}
	d := mustDiag(t, gen.Diagnostics, models.StageValidate, "posts/a.md")
	if d.Severity != models.SeverityWarning || d.Field != "draft" {
		t.Errorf("diag = %+v", d)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	b := newTestBuilder(t, contentTree(t), schema.PolicyDrop, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := b.Build(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestBuild_EmptyTree(t *testing.T) {
	gen := mustBuild(t, newTestBuilder(t, t.TempDir(), schema.PolicyDrop, nil))
	if n := mustCollection(t, gen, "posts").Len(); n != 0 {
		t.Errorf("posts = %d", n)
	}
	if len(gen.Records()) != 0 {
		t.Errorf("records = %d", len(gen.Records()))
	}
}

func TestBuild_SameSlugInTwoGroups(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "recipes/python/vectors.py", "\"\"\"\ntitle: Vectors\n\"\"\"\nx = [1, 2]\n")
	writeFile(t, root, "recipes/r/vectors.r", "x <- c(1, 2)\n")
	gen := mustBuild(t, newTestBuilder(t, root, schema.PolicyDrop, nil))

	if d, dup := findDiag(gen.Diagnostics, models.StageAssemble, "recipes/r/vectors.r"); dup {
		t.Errorf("unexpected duplicate diagnostic: %+v", d)
	}

	recipes := mustCollection(t, gen, "recipes")
	if recipes.Len() != 2 {
		t.Fatalf("recipes = %d, want 2", recipes.Len())
	}

	py, ok := recipes.FindInGroup("python", "vectors")
	if !ok || py.Href != "/recipes/python/vectors" {
		t.Errorf("python = %v, %v", py, ok)
	}
	r, ok := recipes.FindInGroup("r", "vectors")
	if !ok || r.Href != "/recipes/r/vectors" || r.Path != "recipes/r/vectors.r" {
		t.Errorf("r = %v, %v", r, ok)
	}

	shaped, n := gen.Shape(mustDefinition(t, gen, "recipes"), false)
	if n != 2 {
		t.Errorf("shaped count = %d, want 2", n)
	}
	groups := shaped.(map[string][]*models.Record)
	if len(groups["python"]) != 1 || len(groups["r"]) != 1 {
		t.Errorf("groups = %v", groups)
	}
}

func mustDefinition(t *testing.T, gen *Generation, name string) collection.Definition {
	t.Helper()
	def, ok := gen.Definition(name)
	if !ok {
		t.Fatalf("definition %q missing", name)
	}
	return def
}

func TestStore_RejectsStaleGenerations(t *testing.T) {
	s := NewStore()
	if s.Current() != nil {
		t.Fatal("new store should be empty")
	}

	g2 := &Generation{ID: 2}
	if !s.Publish(g2) {
		t.Error("first publish rejected")
	}
	if s.Publish(&Generation{ID: 1}) || s.Publish(&Generation{ID: 2}) {
		t.Error("stale generation accepted")
	}
	if s.Current() != g2 {
		t.Error("current should stay at generation 2")
	}

	g3 := &Generation{ID: 3}
	if !s.Publish(g3) || s.Current() != g3 {
		t.Error("newer generation not published")
	}
	if s.Publish(nil) {
		t.Error("nil generation accepted")
	}
}

func TestWriter(t *testing.T) {
	gen := mustBuild(t, newTestBuilder(t, contentTree(t), schema.PolicyDrop, nil))

	outDir := t.TempDir()
	out, err := storage.NewFS(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if err := NewWriter(out, true, testLogger()).Write(gen); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var posts []map[string]any
	readJSON(t, outDir, "posts.json", &posts)
	if len(posts) != 1 {
		t.Fatalf("posts = %d, want 1", len(posts))
	}
	if posts[0]["slug"] != "hello" {
		t.Errorf("slug = %v", posts[0]["slug"])
	}
	if content, _ := posts[0]["content"].(string); !strings.Contains(content, "<h2") {
		t.Errorf("content = %q", content)
	}

	var recipes map[string][]map[string]any
	readJSON(t, outDir, "recipes.json", &recipes)
	if len(recipes["pandas"]) != 1 || len(recipes["base"]) != 1 {
		t.Errorf("recipes = %v", recipes)
	}

	var home map[string]any
	readJSON(t, outDir, "home.json", &home)
	if home["slug"] != "home" {
		t.Errorf("home slug = %v", home["slug"])
	}

	var about any
	readJSON(t, outDir, "about.json", &about)
	if about != nil {
		t.Errorf("about = %v, want null", about)
	}

	var m Manifest
	readJSON(t, outDir, ManifestFile, &m)
	if m.Generation != gen.ID || !m.Production || m.Collections["posts"] != 1 {
		t.Errorf("manifest = %+v", m)
	}
	if !slices.Contains(m.Elements, markdown.TagCodeBlock) {
		t.Errorf("manifest elements = %v", m.Elements)
	}
	if m.Errors <= 0 {
		t.Errorf("manifest errors = %d", m.Errors)
	}

	var diags []models.Diagnostic
	readJSON(t, outDir, DiagnosticsFile, &diags)
	if len(diags) != len(gen.Diagnostics) {
		t.Errorf("diagnostics = %d, want %d", len(diags), len(gen.Diagnostics))
	}
}

func readJSON(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("decode %s: %v", name, err)
	}
}
