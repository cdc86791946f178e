package meta

import (
	"context"
	"encoding/json"
	"testing"
)

func TestSerialize_EmptyRegistry(t *testing.T) {
	r := startRegistry(t, Options{})

	b, err := r.Serialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := `{"meta":{},"title":{"main":"","segments":[],"full":""}}`
	if string(b) != want {
		t.Errorf("got %s, want %s", b, want)
	}
}

func TestSerialize_MetaKeepsStoreOrder(t *testing.T) {
	r := startRegistry(t, Options{})

	r.Set("zebra", "1")
	r.Set("alpha", "2")
	r.Set("og:title", "X")
	settle(t, r)

	b, err := r.Serialize(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	var snap struct {
		Meta json.RawMessage `json:"meta"`
	}
	if err := json.Unmarshal(b, &snap); err != nil {
		t.Fatal(err)
	}
	pairs, err := decodeOrderedRaw(snap.Meta)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"zebra", "alpha", "og:title"}
	if len(pairs) != len(want) {
		t.Fatalf("pairs = %d, want %d", len(pairs), len(want))
	}
	for i := range want {
		if pairs[i].key != want[i] {
			t.Errorf("pair %d = %q, want %q", i, pairs[i].key, want[i])
		}
	}
}

func TestRestore_EmptySnapshotStaysEmpty(t *testing.T) {
	ctx := context.Background()
	r := startRegistry(t, Options{})

	snap, err := r.Serialize(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.Restore(snap).Wait(ctx); err != nil {
		t.Fatal(err)
	}
	settle(t, r)

	// An all-empty title block must not materialise a title record.
	if r.Count() != 0 {
		t.Errorf("Count = %d, want 0", r.Count())
	}
	if _, ok := r.Get("title"); ok {
		t.Error("phantom title record after empty restore")
	}
}

func TestDecodeOrderedRaw(t *testing.T) {
	pairs, err := decodeOrderedRaw([]byte(`{"b":{"x":1},"a":"s"}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(pairs) != 2 || pairs[0].key != "b" || pairs[1].key != "a" {
		t.Errorf("pairs = %+v", pairs)
	}
	if string(pairs[0].raw) != `{"x":1}` {
		t.Errorf("raw = %s", pairs[0].raw)
	}

	if _, err := decodeOrderedRaw([]byte(`[1]`)); err == nil {
		t.Error("expected error for array input")
	}
	if _, err := decodeOrderedRaw([]byte(`{"a":`)); err == nil {
		t.Error("expected error for truncated input")
	}
}
