package htmldoc_test

import (
	"context"
	"strings"
	"testing"

	"github.com/hazyhaar/domscribe/dom"
	"github.com/hazyhaar/domscribe/dom/htmldoc"
)

func mustHTML(t *testing.T, d *htmldoc.Doc) string {
	t.Helper()
	s, err := d.HTML()
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestNewSynthesizesSkeleton(t *testing.T) {
	d := htmldoc.New()
	out := mustHTML(t, d)
	if !strings.Contains(out, "<head>") || !strings.Contains(out, "<body>") {
		t.Fatalf("skeleton missing head/body: %s", out)
	}
}

func TestSetTitleCreates(t *testing.T) {
	d := htmldoc.New()
	ctx := context.Background()

	if err := d.SetTitle(ctx, "Dashboard"); err != nil {
		t.Fatal(err)
	}
	if got := d.Title(); got != "Dashboard" {
		t.Fatalf("Title() = %q, want Dashboard", got)
	}
	out := mustHTML(t, d)
	if !strings.Contains(out, "<title>Dashboard</title>") {
		t.Fatalf("missing title element: %s", out)
	}
}

func TestSetTitleReplaces(t *testing.T) {
	d := htmldoc.New()
	ctx := context.Background()

	d.SetTitle(ctx, "One")
	d.SetTitle(ctx, "Two")

	out := mustHTML(t, d)
	if strings.Count(out, "<title>") != 1 {
		t.Fatalf("expected exactly one title element: %s", out)
	}
	if !strings.Contains(out, "<title>Two</title>") {
		t.Fatalf("title not replaced: %s", out)
	}
}

func TestSetTitleSerializesEscaped(t *testing.T) {
	d := htmldoc.New()
	d.SetTitle(context.Background(), "A & B <C>")

	out := mustHTML(t, d)
	if !strings.Contains(out, "A &amp; B &lt;C&gt;") {
		t.Fatalf("title text not escaped on render: %s", out)
	}
}

func TestFindMetaExisting(t *testing.T) {
	src := `<html><head><meta name="description" content="server-rendered"></head><body></body></html>`
	d, err := htmldoc.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}

	n, ok, err := d.FindMeta(context.Background(), "name", "description")
	if err != nil {
		t.Fatal(err)
	}
	if !ok || n == nil {
		t.Fatal("expected to find the server-rendered meta")
	}
}

func TestFindMetaMissing(t *testing.T) {
	d := htmldoc.New()

	_, ok, err := d.FindMeta(context.Background(), "name", "description")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected no match in empty document")
	}
}

func TestCreateMeta(t *testing.T) {
	d := htmldoc.New()
	ctx := context.Background()

	_, err := d.CreateMeta(ctx, []dom.Attr{
		{Key: "property", Value: "og:title"},
		{Key: "content", Value: "X"},
	})
	if err != nil {
		t.Fatal(err)
	}

	out := mustHTML(t, d)
	if !strings.Contains(out, `<meta property="og:title" content="X"/>`) {
		t.Fatalf("created meta not in head: %s", out)
	}
	// Attached inside head, not body.
	headEnd := strings.Index(out, "</head>")
	metaPos := strings.Index(out, "<meta")
	if metaPos > headEnd {
		t.Fatalf("meta attached outside head: %s", out)
	}
}

func TestSetAttrUpdatesInPlace(t *testing.T) {
	d := htmldoc.New()
	ctx := context.Background()

	n, err := d.CreateMeta(ctx, []dom.Attr{
		{Key: "name", Value: "description"},
		{Key: "content", Value: "first"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := n.SetAttr(ctx, "content", "second"); err != nil {
		t.Fatal(err)
	}

	out := mustHTML(t, d)
	if strings.Count(out, "<meta") != 1 {
		t.Fatalf("expected exactly one meta node: %s", out)
	}
	if !strings.Contains(out, `content="second"`) {
		t.Fatalf("content not updated: %s", out)
	}
	if strings.Contains(out, `content="first"`) {
		t.Fatalf("stale content remains: %s", out)
	}
}

func TestRemove(t *testing.T) {
	d := htmldoc.New()
	ctx := context.Background()

	n, _ := d.CreateMeta(ctx, []dom.Attr{{Key: "name", Value: "robots"}, {Key: "content", Value: "noindex"}})
	if err := n.Remove(ctx); err != nil {
		t.Fatal(err)
	}

	out := mustHTML(t, d)
	if strings.Contains(out, "robots") {
		t.Fatalf("removed meta still present: %s", out)
	}

	// Second remove is a no-op.
	if err := n.Remove(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestAdoptServerRenderedNode(t *testing.T) {
	src := `<html><head><meta name="description" content="old"></head><body></body></html>`
	d, err := htmldoc.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	n, ok, err := d.FindMeta(ctx, "name", "description")
	if err != nil || !ok {
		t.Fatalf("find: ok=%v err=%v", ok, err)
	}
	if err := n.SetAttr(ctx, "content", "new"); err != nil {
		t.Fatal(err)
	}

	out := mustHTML(t, d)
	if strings.Count(out, "<meta") != 1 {
		t.Fatalf("adoption must not duplicate the node: %s", out)
	}
	if !strings.Contains(out, `content="new"`) {
		t.Fatalf("adopted node not updated: %s", out)
	}
}
