package meta

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/hazyhaar/domscribe/dom"
	"github.com/hazyhaar/domscribe/dom/htmldoc"
)

func testEngine(t *testing.T) (*syncEngine, *htmldoc.Doc) {
	t.Helper()
	doc := htmldoc.New()
	return newSyncEngine(doc, slog.Default()), doc
}

func docHTML(t *testing.T, doc *htmldoc.Doc) string {
	t.Helper()
	h, err := doc.HTML()
	if err != nil {
		t.Fatalf("render doc: %v", err)
	}
	return h
}

func TestUpsert_CreatesThenUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	e, doc := testEngine(t)

	e.upsert(ctx, "description", Named("description", "D"))
	e.upsert(ctx, "description", Named("description", "D2"))

	h := docHTML(t, doc)
	if n := strings.Count(h, `name="description"`); n != 1 {
		t.Fatalf("found %d description nodes, want 1\n%s", n, h)
	}
	if !strings.Contains(h, `content="D2"`) {
		t.Errorf("content not updated in place:\n%s", h)
	}
	if e.size() != 1 {
		t.Errorf("cache size = %d, want 1", e.size())
	}
}

func TestUpsert_AdoptsServerRenderedNode(t *testing.T) {
	ctx := context.Background()
	doc, err := htmldoc.Parse(strings.NewReader(
		`<html><head><meta name="description" content="server"></head><body></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	e := newSyncEngine(doc, slog.Default())

	e.upsert(ctx, "description", Named("description", "client"))

	h := docHTML(t, doc)
	if n := strings.Count(h, `name="description"`); n != 1 {
		t.Fatalf("found %d description nodes, want 1 (adopted)\n%s", n, h)
	}
	if !strings.Contains(h, `content="client"`) {
		t.Errorf("adopted node not updated:\n%s", h)
	}
}

func TestUpsert_TitleHasNoCacheEntry(t *testing.T) {
	ctx := context.Background()
	e, doc := testEngine(t)

	e.upsert(ctx, "title", Title("My Page"))
	if doc.Title() != "My Page" {
		t.Errorf("Title = %q, want %q", doc.Title(), "My Page")
	}
	if e.size() != 0 {
		t.Errorf("cache size = %d, want 0", e.size())
	}
}

func TestUpsert_ShapeChangeRecreatesNode(t *testing.T) {
	ctx := context.Background()
	e, doc := testEngine(t)

	e.upsert(ctx, "author", Named("author", "J. Doe"))
	e.upsert(ctx, "author", Property("article:author", "J. Doe"))

	h := docHTML(t, doc)
	if strings.Contains(h, `name="author"`) {
		t.Errorf("stale named node survived shape change:\n%s", h)
	}
	if n := strings.Count(h, `property="article:author"`); n != 1 {
		t.Errorf("found %d property nodes, want 1\n%s", n, h)
	}
	if e.size() != 1 {
		t.Errorf("cache size = %d, want 1", e.size())
	}
}

func TestRemove_DetachesAndUncaches(t *testing.T) {
	ctx := context.Background()
	e, doc := testEngine(t)

	rec := Named("robots", "noindex")
	e.upsert(ctx, "robots", rec)
	e.remove(ctx, "robots", rec)

	if strings.Contains(docHTML(t, doc), "robots") {
		t.Error("node still present after remove")
	}
	if e.size() != 0 {
		t.Errorf("cache size = %d, want 0", e.size())
	}
	// Second remove is a no-op.
	e.remove(ctx, "robots", rec)
}

func TestRemove_TitleBlanksSlot(t *testing.T) {
	ctx := context.Background()
	e, doc := testEngine(t)

	e.upsert(ctx, "title", Title("Something"))
	e.remove(ctx, "title", Title("Something"))
	if doc.Title() != "" {
		t.Errorf("Title = %q, want empty", doc.Title())
	}
}

func TestClear_RemovesAllNodes(t *testing.T) {
	ctx := context.Background()
	e, doc := testEngine(t)

	e.upsert(ctx, "a", Named("a", "1"))
	e.upsert(ctx, "b", Property("og:b", "2"))
	e.upsert(ctx, "title", Title("T"))
	e.clear(ctx, true)

	h := docHTML(t, doc)
	if strings.Contains(h, "<meta") {
		t.Errorf("meta nodes survived clear:\n%s", h)
	}
	if doc.Title() != "" {
		t.Errorf("Title = %q, want empty", doc.Title())
	}
	if e.size() != 0 {
		t.Errorf("cache size = %d, want 0", e.size())
	}
}

func TestSameShape(t *testing.T) {
	a := []dom.Attr{{Key: "name", Value: "x"}, {Key: "content", Value: "1"}}
	b := []dom.Attr{{Key: "name", Value: "y"}, {Key: "content", Value: "2"}}
	c := []dom.Attr{{Key: "property", Value: "x"}, {Key: "content", Value: "1"}}

	if !sameShape(a, b) {
		t.Error("same keys, different values: want same shape")
	}
	if sameShape(a, c) {
		t.Error("different keys: want different shape")
	}
	if sameShape(a, a[:1]) {
		t.Error("different lengths: want different shape")
	}
}
