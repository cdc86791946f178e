package meta

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hazyhaar/domscribe/state"
)

// Titles is the composed view of the hierarchical title.
type Titles struct {
	Main     string   `json:"main"`
	Segments []string `json:"segments"`
	Full     string   `json:"full"`
}

// titleBuilder reads and writes the title slots in observable state and
// composes them into a display title. Slot reads that fail are logged and
// treated as present-but-blank, so one bad slot never truncates the scan;
// only a genuinely unset slot terminates it.
type titleBuilder struct {
	store state.Store
	sep   string
	log   *slog.Logger
}

func newTitleBuilder(store state.Store, sep string, log *slog.Logger) *titleBuilder {
	return &titleBuilder{store: store, sep: sep, log: log}
}

// read returns a slot's value and whether the slot is set. Read errors
// count as set.
func (b *titleBuilder) read(ctx context.Context, path string) (string, bool) {
	v, ok, err := b.store.Get(ctx, path)
	if err != nil {
		b.log.Warn("meta: title slot read failed", "path", path, "error", err)
		return "", true
	}
	return v, ok
}

// write sets a slot, logging failures instead of propagating them.
func (b *titleBuilder) write(ctx context.Context, path, value string) {
	if err := b.store.Set(ctx, path, value); err != nil {
		b.log.Warn("meta: title slot write failed", "path", path, "error", err)
	}
}

// unset clears a slot, logging failures instead of propagating them.
func (b *titleBuilder) unset(ctx context.Context, path string) {
	if err := b.store.Unset(ctx, path); err != nil {
		b.log.Warn("meta: title slot unset failed", "path", path, "error", err)
	}
}

// segments scans slots 1..MaxSegments and returns every value up to the
// first unset slot. Blank values stay in the result; they hold their
// position for index-based removal.
func (b *titleBuilder) segments(ctx context.Context) []string {
	out := []string{}
	for i := 1; i <= state.MaxSegments; i++ {
		v, ok := b.read(ctx, state.SegmentPath(i))
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// titles composes the current slot values into the three-field view.
func (b *titleBuilder) titles(ctx context.Context) Titles {
	t, _ := b.compose(ctx)
	return t
}

// compose builds the view and reports whether any slot is set at all. An
// entirely unset hierarchy means no title exists, as opposed to an empty
// one.
func (b *titleBuilder) compose(ctx context.Context) (Titles, bool) {
	main, mainSet := b.read(ctx, state.TitleMain)
	segs := b.segments(ctx)
	t := Titles{Main: main, Segments: segs, Full: joinTitle(main, segs, b.sep)}
	return t, mainSet || len(segs) > 0
}

// joinTitle joins main and segments with sep, dropping an empty main and
// blank segments. Blanks are filtered from the join only; the stored slots
// keep them.
func joinTitle(main string, segments []string, sep string) string {
	parts := make([]string, 0, len(segments)+1)
	if main != "" {
		parts = append(parts, main)
	}
	for _, s := range segments {
		if strings.TrimSpace(s) != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, sep)
}

// setTitle replaces the whole hierarchy: main plus segments 1..n, then
// unsets slot n+1 so stale deeper slots fall out of the scan. Segments
// beyond MaxSegments are dropped with a warning.
func (b *titleBuilder) setTitle(ctx context.Context, main string, segments []string) {
	if len(segments) > state.MaxSegments {
		b.log.Warn("meta: title segments truncated", "got", len(segments), "max", state.MaxSegments)
		segments = segments[:state.MaxSegments]
	}
	b.write(ctx, state.TitleMain, main)
	for i, s := range segments {
		b.write(ctx, state.SegmentPath(i+1), s)
	}
	if len(segments) < state.MaxSegments {
		b.unset(ctx, state.SegmentPath(len(segments)+1))
	}
}

// addSegment appends a value at the first unset slot. A full hierarchy is
// a logged no-op. The slot after the new one is unset so a stale value
// cannot leak into the extended scan.
func (b *titleBuilder) addSegment(ctx context.Context, value string) {
	for i := 1; i <= state.MaxSegments; i++ {
		if _, ok := b.read(ctx, state.SegmentPath(i)); ok {
			continue
		}
		b.write(ctx, state.SegmentPath(i), value)
		if i < state.MaxSegments {
			b.unset(ctx, state.SegmentPath(i+1))
		}
		return
	}
	b.log.Warn("meta: title segments full, segment dropped", "max", state.MaxSegments)
}

// removeSegment deletes the 1-based index from the current scan and
// compacts the survivors down, unsetting the slot past the new end.
// Out-of-range indexes are logged no-ops.
func (b *titleBuilder) removeSegment(ctx context.Context, index int) {
	segs := b.segments(ctx)
	if index < 1 || index > len(segs) {
		b.log.Warn("meta: title segment index out of range", "index", index, "len", len(segs))
		return
	}
	segs = append(segs[:index-1], segs[index:]...)
	for i, s := range segs {
		b.write(ctx, state.SegmentPath(i+1), s)
	}
	if len(segs) < state.MaxSegments {
		b.unset(ctx, state.SegmentPath(len(segs)+1))
	}
}

// clear unsets main and every segment slot.
func (b *titleBuilder) clear(ctx context.Context) {
	b.unset(ctx, state.TitleMain)
	for i := 1; i <= state.MaxSegments; i++ {
		b.unset(ctx, state.SegmentPath(i))
	}
}
