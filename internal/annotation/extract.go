package annotation

import (
	"regexp"
	"strconv"
	"strings"
)

var markerHeadRe = regexp.MustCompile(`^\s*(//|#|--|;|%|/\*|<!--)\s*!([A-Za-z][\w-]*)`)

// Marker is a parsed, not yet resolved, marker line.
type Marker struct {
	Name    string
	Query   string
	Lines   Range
	Columns *Range
	// Target is the code line the marker's range starts at, used to
	// resolve regex and implicit column spans.
	Target string
}

type pendingMarker struct {
	Marker
	pattern *regexp.Regexp
	// relative line span; 0 means "next line only".
	relFrom, relTo int
	// index of the next code line in the cleaned output.
	next int
	// source line the marker was read from.
	line int
	// verbatim keeps the marker line in the code.
	verbatim bool
}

// start is the first cleaned line the marker addresses.
func (p pendingMarker) start() int {
	if p.relFrom > 0 {
		return p.next + p.relFrom - 1
	}
	return p.next
}

// Extract removes marker lines from code and returns the parsed markers in
// source order. Lines that look like markers but carry an unparsable range
// are kept as code. Markers with an unknown name are recorded but their
// line stays in the code. A marker whose range starts past the last code
// line has nothing to address; it is dropped and its line kept.
func Extract(code string) (string, []Marker) {
	lines := strings.Split(code, "\n")
	parsed := make([]*pendingMarker, len(lines))
	for i, line := range lines {
		if m, ok := parseMarker(line); ok {
			m.line = i
			m.verbatim = KindOf(m.Name) == KindUnknown
			parsed[i] = &m
		}
	}

	kept, pending := layout(lines, parsed)
	dangling := false
	for _, p := range pending {
		if p.start() > len(kept) {
			parsed[p.line] = nil
			dangling = true
		}
	}
	if dangling {
		// Restored lines only shift later targets forward, so every
		// remaining marker stays in range.
		kept, pending = layout(lines, parsed)
	}

	markers := make([]Marker, 0, len(pending))
	for _, p := range pending {
		mk := p.Marker
		from, to := p.start(), p.next
		if p.relFrom > 0 {
			to = p.next + p.relTo - 1
		}
		to = min(to, len(kept))
		mk.Lines = Range{From: from, To: to}
		mk.Target = kept[from-1]
		if p.pattern != nil {
			if loc := p.pattern.FindStringIndex(mk.Target); loc != nil && loc[1] > loc[0] {
				mk.Columns = &Range{
					From: runeCol(mk.Target, loc[0]),
					To:   runeCol(mk.Target, loc[1]) - 1,
				}
			}
		}
		markers = append(markers, mk)
	}
	return strings.Join(kept, "\n"), markers
}

// layout splits lines into the cleaned code and the markers addressing it.
func layout(lines []string, parsed []*pendingMarker) ([]string, []pendingMarker) {
	kept := make([]string, 0, len(lines))
	var pending []pendingMarker
	for i, line := range lines {
		m := parsed[i]
		if m == nil {
			kept = append(kept, line)
			continue
		}
		if m.verbatim {
			kept = append(kept, line)
		}
		p := *m
		p.next = len(kept) + 1
		pending = append(pending, p)
	}
	return kept, pending
}

// parseMarker recognises a marker line. ok is false for ordinary code and
// for marker-shaped lines whose range cannot be parsed.
func parseMarker(line string) (pendingMarker, bool) {
	loc := markerHeadRe.FindStringSubmatchIndex(line)
	if loc == nil {
		return pendingMarker{}, false
	}
	opener := line[loc[2]:loc[3]]
	p := pendingMarker{Marker: Marker{Name: line[loc[4]:loc[5]]}}
	rest := line[loc[1]:]

	switch {
	case strings.HasPrefix(rest, "("):
		end := strings.IndexByte(rest, ')')
		if end < 0 {
			return pendingMarker{}, false
		}
		from, to, ok := parseSpan(rest[1:end])
		if !ok {
			return pendingMarker{}, false
		}
		p.relFrom, p.relTo = from, to
		rest = rest[end+1:]
	case strings.HasPrefix(rest, "[/"):
		end := strings.LastIndex(rest, "/]")
		if end < 2 {
			return pendingMarker{}, false
		}
		re, err := regexp.Compile(rest[2:end])
		if err != nil {
			return pendingMarker{}, false
		}
		p.pattern = re
		rest = rest[end+2:]
	case strings.HasPrefix(rest, "["):
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return pendingMarker{}, false
		}
		from, to, ok := parseSpan(rest[1:end])
		if !ok {
			return pendingMarker{}, false
		}
		p.Columns = &Range{From: from, To: to}
		rest = rest[end+1:]
	}

	if rest != "" && rest[0] != ' ' && rest[0] != '\t' && !isCloser(opener, rest) {
		return pendingMarker{}, false
	}
	rest = strings.TrimSpace(rest)
	switch opener {
	case "/*":
		rest = strings.TrimSpace(strings.TrimSuffix(rest, "*/"))
	case "<!--":
		rest = strings.TrimSpace(strings.TrimSuffix(rest, "-->"))
	}
	p.Query = rest
	return p, true
}

func isCloser(opener, rest string) bool {
	return (opener == "/*" && strings.HasPrefix(rest, "*/")) ||
		(opener == "<!--" && strings.HasPrefix(rest, "-->"))
}

// parseSpan parses "a:b" or "a" into a positive, ordered span.
func parseSpan(s string) (int, int, bool) {
	a, b, found := strings.Cut(s, ":")
	from, err := strconv.Atoi(strings.TrimSpace(a))
	if err != nil {
		return 0, 0, false
	}
	to := from
	if found {
		if to, err = strconv.Atoi(strings.TrimSpace(b)); err != nil {
			return 0, 0, false
		}
	}
	if from < 1 || to < from {
		return 0, 0, false
	}
	return from, to, true
}

// runeCol converts a byte offset into a 1-based rune column.
func runeCol(s string, off int) int {
	return len([]rune(s[:off])) + 1
}
