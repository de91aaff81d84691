package annotation

import (
	"strconv"
	"strings"
	"unicode"
)

// Resolve normalises markers into annotations. References are numbered from
// 1 in marker order and collected into the footnote list. Unknown names pass
// through with Resolved set to false.
func Resolve(markers []Marker, opts Options) ([]Annotation, []Footnote) {
	anns := make([]Annotation, 0, len(markers))
	var notes []Footnote
	collapses := 0
	for _, m := range markers {
		a := Annotation{
			Name:     m.Name,
			Kind:     KindOf(m.Name),
			Lines:    m.Lines,
			Columns:  m.Columns,
			Query:    m.Query,
			Resolved: true,
		}
		switch a.Kind {
		case KindCallout:
			text, dir := splitDirection(m.Query)
			if a.Columns == nil {
				a.Columns = lineExtent(m.Target)
			}
			a.Data = map[string]any{"text": text, "direction": dir}
			if a.Columns != nil {
				a.Data["column"] = anchorColumn(*a.Columns, opts.CalloutAnchor)
			}
		case KindRef:
			n := len(notes) + 1
			notes = append(notes, Footnote{Index: n, Text: m.Query})
			a.Data = map[string]any{"index": n}
		case KindMark:
			if m.Query != "" {
				a.Data = map[string]any{"color": m.Query}
			}
		case KindDiff:
			switch q := strings.TrimSpace(m.Query); {
			case strings.HasPrefix(q, "+"), strings.HasPrefix(q, "-"):
				a.Data = map[string]any{"marker": q[:1]}
			default:
				a.Resolved = false
			}
		case KindCollapse:
			collapses++
			a.Data = map[string]any{
				"id":        "collapse-" + strconv.Itoa(collapses),
				"collapsed": m.Query != "open",
			}
		case KindCollapseTrigger, KindCollapseContent:
			if collapses == 0 {
				collapses++
			}
			a.Data = map[string]any{"id": "collapse-" + strconv.Itoa(collapses)}
		case KindClassName:
			if m.Query == "" {
				a.Resolved = false
			} else {
				a.Data = map[string]any{"className": m.Query}
			}
		case KindHover:
			a.Data = map[string]any{"target": m.Query}
		case KindCaption:
			a.Data = map[string]any{"text": m.Query}
		case KindFilename:
			a.Data = map[string]any{"name": m.Query}
		case KindFocus:
		default:
			a.Resolved = false
		}
		anns = append(anns, a)
	}
	return anns, notes
}

// splitDirection splits a callout query "text:right" into its display text
// and direction. Only known directions are split off; the default is below.
func splitDirection(q string) (string, string) {
	if i := strings.LastIndexByte(q, ':'); i >= 0 {
		switch d := strings.TrimSpace(q[i+1:]); d {
		case "right", "below":
			return strings.TrimSpace(q[:i]), d
		}
	}
	return q, "below"
}

func anchorColumn(r Range, anchor Anchor) int {
	if anchor == AnchorStart {
		return r.From
	}
	return (r.From + r.To) / 2
}

// lineExtent spans a line from its first non-blank rune to its end.
func lineExtent(line string) *Range {
	runes := []rune(line)
	end := len(runes)
	for end > 0 && unicode.IsSpace(runes[end-1]) {
		end--
	}
	start := 0
	for start < end && unicode.IsSpace(runes[start]) {
		start++
	}
	if start >= end {
		return nil
	}
	return &Range{From: start + 1, To: end}
}
