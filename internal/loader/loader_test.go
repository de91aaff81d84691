package loader

import (
	"testing"
)

func TestLoad_MarkdownFrontmatterAndBody(t *testing.T) {
	f, err := NewSourceFile("posts", "posts/hello.md", []byte("---\ntitle: Hello\ntags:\n  - go\n  - kiln\n---\n# Hello\nBody text.\n"))
	if err != nil {
		t.Fatalf("NewSourceFile: %v", err)
	}
	doc, err := Load(f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if doc.Fields["title"] != "Hello" {
		t.Errorf("title = %v, want Hello", doc.Fields["title"])
	}
	tags, ok := doc.Fields["tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "go" {
		t.Errorf("tags = %v", doc.Fields["tags"])
	}
	if doc.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", doc.Body)
	}
	if len(doc.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", doc.Warnings)
	}
}

func TestLoad_NoFrontmatter(t *testing.T) {
	f, _ := NewSourceFile("posts", "a.md", []byte("# Just a heading\nSome text.\n"))
	doc, err := Load(f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Fields) != 0 {
		t.Errorf("expected empty fields, got %v", doc.Fields)
	}
	if doc.Body != "# Just a heading\nSome text.\n" {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestLoad_InvalidYAMLFallback(t *testing.T) {
	f, _ := NewSourceFile("posts", "bad.md", []byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	doc, err := Load(f)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(doc.Fields) != 0 {
		t.Errorf("expected no fields on invalid YAML")
	}
	if len(doc.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", doc.Warnings)
	}
}

func TestLoad_UnclosedFrontmatterIsBody(t *testing.T) {
	input := "---\ntitle: x\nno closing fence\n"
	f, _ := NewSourceFile("posts", "open.md", []byte(input))
	doc, _ := Load(f)
	if doc.Body != input {
		t.Errorf("body = %q", doc.Body)
	}
}

func TestLoad_PythonDocstring(t *testing.T) {
	src := "\"\"\"\ntitle: Creating data pipelines with generators\n\"\"\"\n\nimport os\nprint(os.sep)\n"
	f, err := NewSourceFile("recipes", "recipes/python/generator-pipelines.py", []byte(src))
	if err != nil {
		t.Fatalf("NewSourceFile: %v", err)
	}
	if f.Format != FormatAnnotatedScript || f.Lang != "python" {
		t.Fatalf("format = %s/%s", f.Format, f.Lang)
	}
	doc, _ := Load(f)
	if doc.Fields["title"] != "Creating data pipelines with generators" {
		t.Errorf("title = %v", doc.Fields["title"])
	}
	if doc.Fields["code"] != "import os\nprint(os.sep)" {
		t.Errorf("code = %q", doc.Fields["code"])
	}
	if doc.Fields["filename"] != "generator-pipelines.py" {
		t.Errorf("filename = %v", doc.Fields["filename"])
	}
	if f.Stem() != "generator-pipelines" {
		t.Errorf("stem = %q", f.Stem())
	}
}

func TestLoad_PythonWithoutDocstring(t *testing.T) {
	src := "print('hi')\n"
	f, _ := NewSourceFile("recipes", "x.py", []byte(src))
	doc, _ := Load(f)
	if _, ok := doc.Fields["title"]; ok {
		t.Errorf("expected no title, got %v", doc.Fields["title"])
	}
	if doc.Fields["code"] != src {
		t.Errorf("code = %q", doc.Fields["code"])
	}
}

func TestLoad_MalformedDocstringDegrades(t *testing.T) {
	src := "\"\"\"\nthis block has: no title line\n\"\"\"\nx = 1\n"
	f, _ := NewSourceFile("recipes", "m.py", []byte(src))
	doc, _ := Load(f)
	if _, ok := doc.Fields["title"]; ok {
		t.Errorf("expected no title")
	}
	if doc.Fields["code"] != "x = 1" {
		t.Errorf("code = %q", doc.Fields["code"])
	}
}

func TestLoad_RScriptIsWholeBody(t *testing.T) {
	src := "\"\"\"\ntitle: ignored\n\"\"\"\nx <- 1\n"
	f, _ := NewSourceFile("recipes", "r/vec.R", []byte(src))
	doc, _ := Load(f)
	if f.Lang != "r" {
		t.Fatalf("lang = %q", f.Lang)
	}
	if doc.Fields["code"] != src {
		t.Errorf("code = %q", doc.Fields["code"])
	}
}

func TestDetect_Unsupported(t *testing.T) {
	if _, _, err := Detect("notes/image.png"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
