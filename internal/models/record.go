// Package models defines the domain types shared across the pipeline.
package models

import (
	"bytes"
	"encoding/json"
	"path"
	"time"
)

// ISOLayout is the millisecond UTC timestamp form used for dates in
// compiled output.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// Heading is one table-of-contents entry.
type Heading struct {
	Depth int    `json:"depth"`
	Slug  string `json:"slug"`
	HTML  string `json:"html"`
}

// ReadingTime is the estimated reading time of a record's rendered content.
type ReadingTime struct {
	Words   int `json:"words"`
	Minutes int `json:"minutes"`
}

// Record is a compiled, validated content record of one collection.
//
// Fields holds the validated collection-specific values (title, date, tags,
// description, code, lang, …). The typed fields next to it are either
// promoted copies of well-known schema fields or derived values.
type Record struct {
	Collection      string
	Path            string
	Slug            string
	Href            string
	Title           string
	Date            string
	Tags            []string
	Draft           bool
	Headings        []Heading
	Content         string
	Raw             string
	DescriptionHTML string
	ReadingTime     ReadingTime
	LastModified    *time.Time
	Links           []string
	Checksum        string
	Fields          map[string]any
}

// Field returns the validated value of a collection field.
func (r *Record) Field(name string) (any, bool) {
	v, ok := r.Fields[name]
	return v, ok
}

// Dir returns the name of the directory holding the source file, or ""
// for files at the content root.
func (r *Record) Dir() string {
	d := path.Dir(r.Path)
	if d == "." || d == "/" {
		return ""
	}
	return path.Base(d)
}

// FieldString returns a collection field rendered as a string, or "".
func (r *Record) FieldString(name string) string {
	switch v := r.Fields[name].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// MarshalJSON flattens the collection fields next to the derived ones, the
// shape consumed by the rendering layer.
func (r *Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Fields)+12)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["slug"] = r.Slug
	out["href"] = r.Href
	out["title"] = r.Title
	out["headings"] = r.Headings
	out["content"] = r.Content
	out["descriptionHtml"] = r.DescriptionHTML
	out["readingTime"] = r.ReadingTime
	out["path"] = r.Path
	if r.Raw != "" {
		out["raw"] = r.Raw
	}
	if r.Date != "" {
		out["date"] = r.Date
	}
	if r.Tags != nil {
		out["tags"] = r.Tags
	}
	if _, ok := r.Fields["draft"]; ok {
		out["draft"] = r.Draft
	}
	if r.LastModified != nil {
		out["lastModified"] = r.LastModified.UTC().Format(ISOLayout)
	}
	if len(r.Links) > 0 {
		out["links"] = r.Links
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
