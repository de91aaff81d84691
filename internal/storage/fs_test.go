package storage

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func tempRoot(t *testing.T) *FS {
	t.Helper()
	fs, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return fs
}

func TestWriteAndRead(t *testing.T) {
	s := tempRoot(t)
	content := []byte("# Hello\nWorld\n")
	if err := s.Write("post.md", content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("post.md")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != string(content) {
		t.Errorf("content mismatch: got %q", got)
	}
}

func TestWriteCreatesSubdirs(t *testing.T) {
	s := tempRoot(t)
	if err := s.Write("a/b/c.json", []byte("[]")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("a/b/c.json")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(got) != "[]" {
		t.Errorf("content = %q", got)
	}
}

func TestDelete(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("del.json", []byte("{}"))
	if err := s.Delete("del.json"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Read("del.json"); err == nil {
		t.Error("expected error reading deleted file")
	}
}

func TestGlob(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("posts/b.md", []byte("b"))
	_ = s.Write("posts/2024/a.md", []byte("a"))
	_ = s.Write("posts/readme.txt", []byte("not md"))
	_ = s.Write("recipes/python/gen.py", []byte("x"))
	_ = s.Write("recipes/r/vec.r", []byte("y"))
	_ = s.Write("recipes/notes.md", []byte("z"))

	got, err := s.Glob("./posts/**/*.md")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	want := []string{"posts/2024/a.md", "posts/b.md"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("posts = %v, want %v", got, want)
	}

	got, err = s.Glob("recipes/**/*.{py,r}")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	want = []string{"recipes/python/gen.py", "recipes/r/vec.r"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("recipes = %v, want %v", got, want)
	}
}

func TestGlob_NoMatches(t *testing.T) {
	s := tempRoot(t)
	got, err := s.Glob("notes/**/*.md")
	if err != nil {
		t.Fatalf("Glob: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no matches, got %v", got)
	}
}

func TestGlob_InvalidPattern(t *testing.T) {
	s := tempRoot(t)
	if _, err := s.Glob("posts/[.md"); err == nil {
		t.Error("expected error for invalid pattern")
	}
}

func TestMatch(t *testing.T) {
	cases := []struct {
		pattern, rel string
		want         bool
	}{
		{"./posts/**/*.md", "posts/x.md", true},
		{"./posts/**/*.md", "posts/2024/x.md", true},
		{"./posts/**/*.md", "notes/x.md", false},
		{"home.md", "home.md", true},
		{"recipes/**/*.{py,r}", "recipes/r/a.r", true},
	}
	for _, c := range cases {
		if got := Match(c.pattern, c.rel); got != c.want {
			t.Errorf("Match(%q, %q) = %v, want %v", c.pattern, c.rel, got, c.want)
		}
	}
}

func TestRel(t *testing.T) {
	s := tempRoot(t)
	rel, ok := s.Rel(filepath.Join(s.Root(), "posts", "a.md"))
	if !ok || rel != "posts/a.md" {
		t.Errorf("Rel = %q, %v", rel, ok)
	}
	if _, ok := s.Rel(filepath.Dir(s.Root())); ok {
		t.Error("expected parent of root to be outside")
	}
}

func TestTraversalBlocked(t *testing.T) {
	s := tempRoot(t)

	cases := []string{
		"../../etc/passwd",
		"../outside.md",
		"/etc/shadow",
	}
	for _, p := range cases {
		if _, err := s.Read(p); err == nil {
			t.Errorf("expected error for path %q", p)
		}
		if err := s.Write(p, []byte("x")); err == nil {
			t.Errorf("expected error for write to %q", p)
		}
	}
}

func TestAtomicWriteNoLeftovers(t *testing.T) {
	s := tempRoot(t)
	_ = s.Write("posts.json", []byte("[1]"))
	if err := s.Write("posts.json", []byte("[2]")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, _ := s.Read("posts.json")
	if string(got) != "[2]" {
		t.Errorf("expected updated content, got %q", got)
	}
	matches, _ := filepath.Glob(filepath.Join(s.root, ".kiln-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_NonExistentDir(t *testing.T) {
	if _, err := NewFS(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for non-existent dir")
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp(t.TempDir(), "kiln-test-*")
	_ = f.Close()
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}
