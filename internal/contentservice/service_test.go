package contentservice

import (
	"context"
	"errors"
	"testing"

	"github.com/starford/kiln/internal/apperr"
	"github.com/starford/kiln/internal/build"
	"github.com/starford/kiln/internal/index"
	"github.com/starford/kiln/internal/models"
	"github.com/starford/kiln/internal/testutil"
)

func fixture(t *testing.T, production, withDB bool) *Service {
	t.Helper()
	home := &models.Record{Collection: "home", Path: "index.md", Slug: "index", Href: "/", Title: "Home", Fields: map[string]any{}}
	a := testutil.Post("alpha", "2024-03-01T00:00:00.000Z", false, "go")
	a.Links = []string{"/posts/beta"}
	b := testutil.Post("beta", "2024-02-01T00:00:00.000Z", false, "go", "web")
	c := testutil.Post("draft", "2024-04-01T00:00:00.000Z", true, "go")
	c.Links = []string{"/posts/beta"}
	g := testutil.Generation(t, 1, home, a, b, c,
		testutil.Recipe("python", "vectors", "python"), testutil.Recipe("r", "vectors", "r"))

	store := build.NewStore()
	store.Publish(g)

	var db index.RecordIndex
	if withDB {
		d := testutil.TestDB(t)
		if _, err := index.Sync(d, g.ID, g.Records(), testutil.Logger()); err != nil {
			t.Fatalf("Sync: %v", err)
		}
		db = d
	}
	return NewService(store, db, production)
}

func TestNotReady(t *testing.T) {
	svc := NewService(build.NewStore(), nil, false)
	if _, _, err := svc.ListCollections(context.Background()); !errors.Is(err, apperr.ErrNotReady) {
		t.Fatalf("err = %v, want ErrNotReady", err)
	}
}

func TestListCollections(t *testing.T) {
	svc := fixture(t, true, false)
	id, list, err := svc.ListCollections(context.Background())
	if err != nil {
		t.Fatalf("ListCollections: %v", err)
	}
	if id != 1 {
		t.Errorf("generation = %d", id)
	}
	counts := map[string]int{}
	for _, c := range list {
		counts[c.Name] = c.Count
	}
	if counts["home"] != 1 || counts["about"] != 0 || counts["posts"] != 2 {
		t.Errorf("counts = %v", counts)
	}
}

func TestRecord(t *testing.T) {
	ctx := context.Background()
	svc := fixture(t, true, false)

	r, err := svc.Record(ctx, "posts", "alpha")
	if err != nil || r.Slug != "alpha" {
		t.Fatalf("Record = %v, %v", r, err)
	}
	if _, err := svc.Record(ctx, "posts", "draft"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("draft in production: err = %v", err)
	}
	if _, err := svc.Record(ctx, "nope", "alpha"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("unknown collection: err = %v", err)
	}
	if r, err := svc.Record(ctx, "home", "index"); err != nil || r.Title != "Home" {
		t.Errorf("single record = %v, %v", r, err)
	}

	dev := fixture(t, false, false)
	if _, err := dev.Record(ctx, "posts", "draft"); err != nil {
		t.Errorf("draft in development: %v", err)
	}
}

func TestRecordInGroup(t *testing.T) {
	ctx := context.Background()
	svc := fixture(t, true, false)

	for _, group := range []string{"python", "r"} {
		r, err := svc.RecordInGroup(ctx, "recipes", group, "vectors")
		if err != nil {
			t.Fatalf("RecordInGroup(%s): %v", group, err)
		}
		if r.Href != "/recipes/"+group+"/vectors" {
			t.Errorf("href = %q", r.Href)
		}
	}
	if _, err := svc.RecordInGroup(ctx, "recipes", "julia", "vectors"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing group: err = %v", err)
	}
	if _, err := svc.RecordInGroup(ctx, "posts", "", "alpha"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("ungrouped collection: err = %v", err)
	}
}

func TestSearch_SameSlugInTwoGroups(t *testing.T) {
	svc := fixture(t, true, true)
	hits, err := svc.Search(context.Background(), "vectors", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	paths := map[string]bool{}
	for _, h := range hits {
		paths[h.Path] = true
	}
	if len(hits) != 2 || !paths["recipes/python/vectors.py"] || !paths["recipes/r/vectors.r"] {
		t.Errorf("hits = %+v", hits)
	}
}

func TestByTag(t *testing.T) {
	ctx := context.Background()
	svc := fixture(t, false, false)
	recs, err := svc.ByTag(ctx, "posts", "go")
	if err != nil {
		t.Fatalf("ByTag: %v", err)
	}
	var got []string
	for _, r := range recs {
		got = append(got, r.Slug)
	}
	if len(got) != 3 || got[0] != "draft" || got[1] != "alpha" || got[2] != "beta" {
		t.Errorf("ByTag(go) = %v", got)
	}

	if _, err := svc.ByTag(ctx, "home", "go"); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("single collection: err = %v", err)
	}
}

func TestQuery(t *testing.T) {
	ctx := context.Background()
	svc := fixture(t, false, false)
	res, err := svc.Query(ctx, "posts", "$[?(@.draft == true)].slug")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res) != 1 || res[0] != "draft" {
		t.Errorf("Query = %v", res)
	}
	if _, err := svc.Query(ctx, "posts", "$[?("); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("malformed query: err = %v", err)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	if _, err := fixture(t, false, false).Search(ctx, "alpha", 0); !errors.Is(err, apperr.ErrUnavailable) {
		t.Errorf("without index: err = %v", err)
	}

	svc := fixture(t, true, true)
	hits, err := svc.Search(ctx, "body", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, h := range hits {
		if h.Slug == "draft" {
			t.Error("draft returned in production search")
		}
	}
	if len(hits) != 2 {
		t.Errorf("hits = %+v", hits)
	}
	if _, err := svc.Search(ctx, " ", 0); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("empty query: err = %v", err)
	}
}

func TestBacklinks(t *testing.T) {
	ctx := context.Background()
	for _, withDB := range []bool{false, true} {
		svc := fixture(t, false, withDB)
		refs, err := svc.Backlinks(ctx, "/posts/beta")
		if err != nil {
			t.Fatalf("Backlinks(db=%v): %v", withDB, err)
		}
		if len(refs) != 2 || refs[0].Slug != "alpha" || refs[1].Slug != "draft" {
			t.Errorf("Backlinks(db=%v) = %+v", withDB, refs)
		}

		prod := fixture(t, true, withDB)
		refs, _ = prod.Backlinks(ctx, "/posts/beta")
		if len(refs) != 1 {
			t.Errorf("production Backlinks(db=%v) = %+v", withDB, refs)
		}
	}
}

func TestDiagnostics(t *testing.T) {
	svc := fixture(t, false, false)
	rep, err := svc.Diagnostics(context.Background())
	if err != nil {
		t.Fatalf("Diagnostics: %v", err)
	}
	if rep.Generation != 1 || rep.Diagnostics == nil {
		t.Errorf("report = %+v", rep)
	}
}
