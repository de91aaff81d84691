package build

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/storage"
)

// Output file names written next to the per-collection files.
const (
	ManifestFile    = "manifest.json"
	DiagnosticsFile = "diagnostics.json"
)

// Manifest summarises a written generation.
type Manifest struct {
	Generation  uint64         `json:"generation"`
	StartedAt   string         `json:"startedAt"`
	DurationMS  int64          `json:"durationMs"`
	Production  bool           `json:"production"`
	Collections map[string]int `json:"collections"`
	Elements    []string       `json:"elements"`
	Errors      int            `json:"errors"`
	Warnings    int            `json:"warnings"`
}

// Writer emits a generation as JSON files into an output directory.
type Writer struct {
	out        *storage.FS
	production bool
	logger     *slog.Logger
}

// NewWriter returns a Writer for the output directory fs. In production
// drafts are left out of the written collections.
func NewWriter(out *storage.FS, production bool, logger *slog.Logger) *Writer {
	return &Writer{out: out, production: production, logger: logger}
}

// Dir returns the absolute output directory.
func (w *Writer) Dir() string { return w.out.Root() }

// Write writes one file per collection, then the diagnostics and the
// manifest. Each file is replaced atomically.
func (w *Writer) Write(g *Generation) error {
	counts := make(map[string]int, len(g.Definitions))
	for _, def := range g.Definitions {
		v, n := g.Shape(def, w.production)
		counts[def.Name] = n
		if err := w.writeJSON(def.Name+".json", v); err != nil {
			return err
		}
	}

	diags := g.Diagnostics
	if diags == nil {
		diags = []models.Diagnostic{}
	}
	if err := w.writeJSON(DiagnosticsFile, diags); err != nil {
		return err
	}

	errs, warnings := g.Severities()
	elements := g.Elements
	if elements == nil {
		elements = []string{}
	}
	m := Manifest{
		Generation:  g.ID,
		StartedAt:   g.StartedAt.UTC().Format(time.RFC3339),
		DurationMS:  g.Duration.Milliseconds(),
		Production:  w.production,
		Collections: counts,
		Elements:    elements,
		Errors:      errs,
		Warnings:    warnings,
	}
	if err := w.writeJSON(ManifestFile, m); err != nil {
		return err
	}
	w.logger.Info("output: written",
		slog.Uint64("generation", g.ID),
		slog.String("dir", w.out.Root()))
	return nil
}

func (w *Writer) writeJSON(name string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("output: encode %s: %w", name, err)
	}
	if err := w.out.Write(name, buf.Bytes()); err != nil {
		return fmt.Errorf("output: write %s: %w", name, err)
	}
	return nil
}
