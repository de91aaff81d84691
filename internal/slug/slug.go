// Package slug turns titles and heading text into URL-safe identifiers.
package slug

import (
	"strconv"
	"strings"
	"unicode"
)

// Slugify lowercases s, drops every rune that is not a letter, mark, digit,
// underscore, hyphen or whitespace, and replaces each whitespace run with a
// single hyphen. Leading and trailing whitespace is dropped first.
//
// Slugify is idempotent: Slugify(Slugify(x)) == Slugify(x).
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range strings.TrimSpace(strings.ToLower(s)) {
		switch {
		case unicode.IsSpace(r):
			pendingSpace = true
		case r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
			if pendingSpace {
				b.WriteByte('-')
				pendingSpace = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Slugger hands out unique slugs within one document. It is not safe for
// concurrent use; construct a fresh one per extraction.
type Slugger struct {
	occurrences map[string]int
}

// New returns an empty Slugger.
func New() *Slugger {
	return &Slugger{occurrences: make(map[string]int)}
}

// Slug slugifies s and makes the result unique among the slugs this
// Slugger has already produced.
func (s *Slugger) Slug(text string) string {
	return s.Unique(Slugify(text))
}

// Unique returns id unchanged the first time it is seen and id-1, id-2, …
// on later collisions.
func (s *Slugger) Unique(id string) string {
	result := id
	for {
		if _, taken := s.occurrences[result]; !taken {
			break
		}
		s.occurrences[id]++
		result = id + "-" + strconv.Itoa(s.occurrences[id])
	}
	s.occurrences[result] = 0
	return result
}

// Reset forgets every slug handed out so far.
func (s *Slugger) Reset() {
	clear(s.occurrences)
}
