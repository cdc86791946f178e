package meta

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/hazyhaar/domscribe/state"
)

func testBuilder(t *testing.T) (*titleBuilder, state.Store) {
	t.Helper()
	st := state.NewMemory()
	return newTitleBuilder(st, " | ", slog.Default()), st
}

func TestSetTitle_ComposesFull(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	b.setTitle(ctx, "Main", []string{"A", "B"})
	got := b.titles(ctx)
	if got.Main != "Main" {
		t.Errorf("Main = %q", got.Main)
	}
	if len(got.Segments) != 2 || got.Segments[0] != "A" || got.Segments[1] != "B" {
		t.Errorf("Segments = %v", got.Segments)
	}
	if got.Full != "Main | A | B" {
		t.Errorf("Full = %q, want %q", got.Full, "Main | A | B")
	}
}

func TestJoin_BlankSegmentsFiltered(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	b.setTitle(ctx, "Main", []string{"A", "   ", "B"})
	got := b.titles(ctx)
	// The blank keeps its slot but drops out of the join.
	if len(got.Segments) != 3 {
		t.Fatalf("Segments = %v, want 3 entries", got.Segments)
	}
	if got.Full != "Main | A | B" {
		t.Errorf("Full = %q, want %q", got.Full, "Main | A | B")
	}
}

func TestJoin_EmptyMainDropped(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	b.setTitle(ctx, "", []string{"A"})
	if got := b.titles(ctx); got.Full != "A" {
		t.Errorf("Full = %q, want %q", got.Full, "A")
	}
}

func TestScan_StopsAtFirstUnset(t *testing.T) {
	ctx := context.Background()
	b, st := testBuilder(t)

	// Slot 1 and 3 set, 2 unset: the scan must end at the gap.
	st.Set(ctx, state.SegmentPath(1), "one")
	st.Set(ctx, state.SegmentPath(3), "three")
	got := b.segments(ctx)
	if len(got) != 1 || got[0] != "one" {
		t.Errorf("segments = %v, want [one]", got)
	}
}

func TestSetTitle_TruncatesAtMax(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	segs := make([]string, state.MaxSegments+2)
	for i := range segs {
		segs[i] = "s"
	}
	b.setTitle(ctx, "M", segs)
	if got := b.segments(ctx); len(got) != state.MaxSegments {
		t.Errorf("segments = %d, want %d", len(got), state.MaxSegments)
	}
}

func TestSetTitle_ClearsStaleTail(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	b.setTitle(ctx, "M", []string{"A", "B", "C"})
	b.setTitle(ctx, "M", []string{"X"})
	got := b.segments(ctx)
	// B and C are still written at slots 2 and 3, but slot 2 was unset by
	// the second call, so the scan cannot reach them.
	if len(got) != 1 || got[0] != "X" {
		t.Errorf("segments = %v, want [X]", got)
	}
}

func TestAddSegment_AppendsAtFirstUnset(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	b.setTitle(ctx, "M", []string{"A"})
	b.addSegment(ctx, "B")
	got := b.segments(ctx)
	if len(got) != 2 || got[1] != "B" {
		t.Errorf("segments = %v, want [A B]", got)
	}
}

func TestAddSegment_HidesStaleSuccessor(t *testing.T) {
	ctx := context.Background()
	b, st := testBuilder(t)

	// Slots 1..3 set, then 2 unset externally: stale "three" lurks past
	// the gap.
	st.Set(ctx, state.SegmentPath(1), "one")
	st.Set(ctx, state.SegmentPath(2), "two")
	st.Set(ctx, state.SegmentPath(3), "three")
	st.Unset(ctx, state.SegmentPath(2))

	b.addSegment(ctx, "new")
	got := b.segments(ctx)
	if len(got) != 2 || got[0] != "one" || got[1] != "new" {
		t.Errorf("segments = %v, want [one new]", got)
	}
}

func TestAddSegment_FullHierarchyDropped(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	segs := make([]string, state.MaxSegments)
	for i := range segs {
		segs[i] = "s"
	}
	b.setTitle(ctx, "M", segs)
	b.addSegment(ctx, "overflow")
	got := b.segments(ctx)
	if len(got) != state.MaxSegments {
		t.Fatalf("segments = %d, want %d", len(got), state.MaxSegments)
	}
	if got[state.MaxSegments-1] != "s" {
		t.Errorf("last segment = %q, want untouched", got[state.MaxSegments-1])
	}
}

func TestRemoveSegment_Compacts(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	b.setTitle(ctx, "Main", []string{"A", "B", "C"})
	b.removeSegment(ctx, 2)
	got := b.titles(ctx)
	if len(got.Segments) != 2 || got.Segments[0] != "A" || got.Segments[1] != "C" {
		t.Fatalf("Segments = %v, want [A C]", got.Segments)
	}
	if got.Full != "Main | A | C" {
		t.Errorf("Full = %q, want %q", got.Full, "Main | A | C")
	}
}

func TestRemoveSegment_BlanksHoldPositions(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	// The compaction scan must pass over the blank at slot 2, not stop.
	b.setTitle(ctx, "M", []string{"A", "  ", "C"})
	b.removeSegment(ctx, 3)
	got := b.segments(ctx)
	if len(got) != 2 || got[0] != "A" || got[1] != "  " {
		t.Errorf("segments = %v, want [A, blank]", got)
	}
}

func TestRemoveSegment_OutOfRangeNoop(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	b.setTitle(ctx, "M", []string{"A", "B"})
	b.removeSegment(ctx, 5)
	b.removeSegment(ctx, 0)
	if got := b.segments(ctx); len(got) != 2 {
		t.Errorf("segments = %v, want 2 entries", got)
	}
}

func TestCompose_PresenceDetection(t *testing.T) {
	ctx := context.Background()
	b, st := testBuilder(t)

	if _, present := b.compose(ctx); present {
		t.Error("fresh state reported present")
	}
	// An empty main is still present: set, not blank.
	st.Set(ctx, state.TitleMain, "")
	if _, present := b.compose(ctx); !present {
		t.Error("set main not reported present")
	}
}

func TestClear_UnsetsEverything(t *testing.T) {
	ctx := context.Background()
	b, _ := testBuilder(t)

	b.setTitle(ctx, "M", []string{"A", "B"})
	b.clear(ctx)
	got, present := b.compose(ctx)
	if present {
		t.Error("cleared state reported present")
	}
	if got.Full != "" || len(got.Segments) != 0 {
		t.Errorf("titles = %+v, want empty", got)
	}
}

// flakyStore fails reads on one path and delegates the rest.
type flakyStore struct {
	state.Store
	failPath string
}

func (f *flakyStore) Get(ctx context.Context, path string) (string, bool, error) {
	if path == f.failPath {
		return "", false, errors.New("state read failed")
	}
	return f.Store.Get(ctx, path)
}

func TestReadError_TreatedAsBlank(t *testing.T) {
	ctx := context.Background()
	st := state.NewMemory()
	st.Set(ctx, state.TitleMain, "Main")
	st.Set(ctx, state.SegmentPath(1), "A")
	st.Set(ctx, state.SegmentPath(2), "bad")
	st.Set(ctx, state.SegmentPath(3), "C")

	b := newTitleBuilder(&flakyStore{Store: st, failPath: state.SegmentPath(2)}, " | ", slog.Default())
	got := b.titles(ctx)
	// The failing slot counts as present-but-blank: it neither stops the
	// scan nor appears in the join.
	if len(got.Segments) != 3 {
		t.Fatalf("Segments = %v, want 3 entries", got.Segments)
	}
	if got.Segments[1] != "" {
		t.Errorf("failed slot = %q, want empty", got.Segments[1])
	}
	if got.Full != "Main | A | C" {
		t.Errorf("Full = %q, want %q", got.Full, "Main | A | C")
	}
}
