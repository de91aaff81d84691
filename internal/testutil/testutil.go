// Package testutil provides shared test helpers for setting up content
// trees, databases and published generations.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/kiln/internal/build"
	"github.com/starford/kiln/internal/collection"
	"github.com/starford/kiln/internal/index"
	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/storage"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "kiln-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestContent creates a temporary content root with the given files
// (slash-separated relative path → content) and a storage.Provider over it.
func TestContent(t *testing.T, files map[string]string) (string, storage.Provider) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Post returns a minimal compiled record of the posts collection.
func Post(slug, date string, draft bool, tags ...string) *models.Record {
	if tags == nil {
		tags = []string{}
	}
	return &models.Record{
		Collection: "posts",
		Path:       "posts/" + slug + ".md",
		Slug:       slug,
		Href:       "/posts/" + slug,
		Title:      slug,
		Date:       date,
		Tags:       tags,
		Draft:      draft,
		Content:    "<p>" + slug + " body</p>",
		Checksum:   slug + "-sum",
		Fields:     map[string]any{"title": slug, "date": date, "tags": tags, "draft": draft},
	}
}

// Recipe returns a minimal compiled record of the recipes collection,
// stored under recipes/<dir>/.
func Recipe(dir, slug, lang string) *models.Record {
	ext := map[string]string{"python": ".py", "r": ".r"}[lang]
	code := slug + "()"
	return &models.Record{
		Collection: "recipes",
		Path:       "recipes/" + dir + "/" + slug + ext,
		Slug:       slug,
		Href:       "/recipes/" + dir + "/" + slug,
		Title:      slug,
		Tags:       []string{},
		Content:    "<code-block>" + code + "</code-block>",
		Checksum:   dir + "-" + slug + "-sum",
		Fields:     map[string]any{"title": slug, "code": code, "lang": lang},
	}
}

// Generation assembles a published generation from the default collection
// definitions: home gets the given single record (may be nil), every other
// record goes into the collection it names.
func Generation(t *testing.T, id uint64, home *models.Record, records ...*models.Record) *build.Generation {
	t.Helper()
	g := &build.Generation{
		ID:          id,
		Definitions: collection.Defaults(),
		Collections: map[string]*collection.Collection{},
		Singles:     map[string]*models.Record{},
	}
	byName := map[string][]*models.Record{}
	for _, r := range records {
		byName[r.Collection] = append(byName[r.Collection], r)
	}
	for _, def := range g.Definitions {
		if def.Single {
			if def.Name == "home" && home != nil {
				g.Singles[def.Name] = home
			}
			continue
		}
		c, diags := collection.AssembleGrouped(def.Name, def.GroupBy, byName[def.Name])
		g.Collections[def.Name] = c
		g.Diagnostics = append(g.Diagnostics, diags...)
	}
	return g
}
