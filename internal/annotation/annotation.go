// Package annotation turns comment-embedded markers inside code blocks into
// structured annotations addressed by line and column ranges.
//
// A marker occupies a whole line: a comment token followed by `!name`, an
// optional range and a free-form query.
//
//	// !callout[5:9] explains this call:right
//	# !mark(1:3) yellow
//	-- !ref see the migration notes
//	// !focus[/fetch\(.*\)/]
//
// Marker lines with a known name are removed from the code; the line
// numbers of the resulting annotations refer to the cleaned code, starting
// at 1. Unknown names are still recorded but their line stays as code.
package annotation

// Kind classifies an annotation by its marker name.
type Kind string

const (
	KindCallout         Kind = "callout"
	KindRef             Kind = "ref"
	KindMark            Kind = "mark"
	KindDiff            Kind = "diff"
	KindCollapse        Kind = "collapse"
	KindCollapseTrigger Kind = "collapse-trigger"
	KindCollapseContent Kind = "collapse-content"
	KindFocus           Kind = "focus"
	KindClassName       Kind = "class-name"
	KindHover           Kind = "hover"
	KindCaption         Kind = "caption"
	KindFilename        Kind = "filename"
	KindUnknown         Kind = "unknown"
)

// KindOf maps a marker name to its kind.
func KindOf(name string) Kind {
	switch k := Kind(name); k {
	case KindCallout, KindRef, KindMark, KindDiff, KindCollapse, KindCollapseTrigger,
		KindCollapseContent, KindFocus, KindClassName, KindHover, KindCaption, KindFilename:
		return k
	default:
		return KindUnknown
	}
}

// Range is an inclusive 1-based span.
type Range struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Annotation is a resolved marker.
type Annotation struct {
	Name     string         `json:"name"`
	Kind     Kind           `json:"kind"`
	Lines    Range          `json:"lines"`
	Columns  *Range         `json:"columns,omitempty"`
	Query    string         `json:"query,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
	Resolved bool           `json:"resolved"`
}

// Footnote is one entry of the reference list rendered after a code block.
type Footnote struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Anchor selects where a callout attaches within its column span.
type Anchor string

const (
	AnchorMidpoint Anchor = "midpoint"
	AnchorStart    Anchor = "start"
)

// Options tune resolution.
type Options struct {
	CalloutAnchor Anchor
}

// Result is the outcome of processing one code block.
type Result struct {
	Code        string
	Annotations []Annotation
	Footnotes   []Footnote
}

// Process extracts the markers of code and resolves them.
func Process(code string, opts Options) Result {
	clean, markers := Extract(code)
	anns, notes := Resolve(markers, opts)
	return Result{Code: clean, Annotations: anns, Footnotes: notes}
}
