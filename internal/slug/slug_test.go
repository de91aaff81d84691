package slug

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello, World!":          "hello-world",
		"  Spaces   everywhere ": "spaces-everywhere",
		"snake_case and-kebab":   "snake_case-and-kebab",
		"Ünïcode Façade":         "ünïcode-façade",
		"C++ / Go?":              "c-go",
		"":                       "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugify_Idempotent(t *testing.T) {
	inputs := []string{"Hello, World!", "a -- b", "  x\ty\nz ", "Ünïcode Façade", "--lead", "1. Intro"}
	for _, in := range inputs {
		once := Slugify(in)
		if twice := Slugify(once); twice != once {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSlugger_DeduplicatesInOrder(t *testing.T) {
	s := New()
	// A literal "intro-1" heading after the generated one still gets a fresh id.
	inputs := []string{"Intro", "Intro", "intro", "Intro 1"}
	want := []string{"intro", "intro-1", "intro-2", "intro-1-1"}
	for i, in := range inputs {
		if got := s.Slug(in); got != want[i] {
			t.Errorf("Slug(%q) #%d = %q, want %q", in, i, got, want[i])
		}
	}
}

func TestSlugger_Reset(t *testing.T) {
	s := New()
	s.Slug("a")
	s.Reset()
	if got := s.Slug("a"); got != "a" {
		t.Errorf("after Reset, Slug(a) = %q", got)
	}
}
