// Package loader reads content sources and normalises them into a uniform
// (fields, body, format) shape.
package loader

import (
	"fmt"
	"path"
	"strings"
)

// Format tags the syntax of a source file.
type Format string

const (
	FormatMarkdown        Format = "markdown"
	FormatAnnotatedScript Format = "annotated-script"
)

// SourceFile is one raw input of a collection.
type SourceFile struct {
	Path       string
	Collection string
	Content    []byte
	Format     Format
	Lang       string
}

// Basename returns the file name without directories.
func (f SourceFile) Basename() string {
	return path.Base(f.Path)
}

// Stem returns the file name without directories and extension.
func (f SourceFile) Stem() string {
	base := f.Basename()
	return strings.TrimSuffix(base, path.Ext(base))
}

// Document is a loaded source: its metadata fields and remaining body.
type Document struct {
	File   SourceFile
	Fields map[string]any
	Body   string
	// Warnings are recoverable problems found while loading (e.g. invalid
	// frontmatter YAML that was treated as body).
	Warnings []string
}

// Detect resolves the format and script language from a file extension.
func Detect(p string) (Format, string, error) {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown":
		return FormatMarkdown, "", nil
	case ".py":
		return FormatAnnotatedScript, "python", nil
	case ".r":
		return FormatAnnotatedScript, "r", nil
	default:
		return "", "", fmt.Errorf("loader: unsupported source format: %s", p)
	}
}

// NewSourceFile builds a SourceFile with its format detected from path.
func NewSourceFile(collection, p string, content []byte) (SourceFile, error) {
	format, lang, err := Detect(p)
	if err != nil {
		return SourceFile{}, err
	}
	return SourceFile{
		Path:       p,
		Collection: collection,
		Content:    content,
		Format:     format,
		Lang:       lang,
	}, nil
}

// Load dispatches on the file format and returns its fields and body.
func Load(f SourceFile) (*Document, error) {
	switch f.Format {
	case FormatMarkdown:
		return loadMarkdown(f), nil
	case FormatAnnotatedScript:
		return loadScript(f), nil
	default:
		return nil, fmt.Errorf("loader: unknown format %q for %s", f.Format, f.Path)
	}
}

func loadMarkdown(f SourceFile) *Document {
	fm, body, yamlErr := splitFrontmatter(f.Content)
	doc := &Document{File: f, Fields: fm, Body: body}
	if doc.Fields == nil {
		doc.Fields = map[string]any{}
	}
	if yamlErr != nil {
		doc.Warnings = append(doc.Warnings, "invalid frontmatter treated as body: "+yamlErr.Error())
	}
	return doc
}

func loadScript(f SourceFile) *Document {
	content := string(f.Content)
	title, code := "", content
	// R scripts carry no metadata block.
	if f.Lang == "python" {
		title, code = splitDocstring(content)
	}
	fields := map[string]any{
		"code":     code,
		"lang":     f.Lang,
		"filename": f.Basename(),
	}
	if title != "" {
		fields["title"] = title
	}
	return &Document{File: f, Fields: fields, Body: code}
}
