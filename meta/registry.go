// CLAUDE:SUMMARY Main registry facade — queued mutations, synchronous reads, title-state subscriptions, snapshot codec entry points.
// Package meta is the environment-aware registry for HTML document metadata.
//
// It keeps a canonical, insertion-ordered store of title / OpenGraph /
// Twitter Card / freeform records and reflects it into a document. Two
// environments, one behaviour: with a live document every mutation also
// drives the sync engine (one node per key, created once, updated in
// place); without one the store alone is authoritative and HTML() renders
// the head fragment for server-side output.
//
// All mutations are queued: they never run on the caller's stack, they
// apply in FIFO order in bounded batches, and their completion handles
// always resolve; failures inside a mutation degrade to logged warnings.
// Reads are synchronous against the current store and may lag a mutation
// that was just issued.
//
// The display title is composed from observable state (ui.title.main plus
// numbered segment slots); the registry subscribes to those paths and
// rebuilds the composed title whenever one changes, whichever writer
// changed it.
//
// Usage:
//
//	r := meta.New(meta.Options{Document: doc, Defaults: seed})
//	r.Start(ctx)
//	defer r.Close()
//	r.Set("og:title", "Chronique")
//	t := r.SetTitle("Chronique", "Archives")
//	_ = t.Wait(ctx) // optional: chain on the completion handle
package meta

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/domscribe/dom"
	"github.com/hazyhaar/domscribe/idgen"
	"github.com/hazyhaar/domscribe/state"
	"github.com/hazyhaar/domscribe/taskq"
)

// Options configures a Registry.
type Options struct {
	// Document is the live document to sync into. Nil selects no-document
	// mode: mutations touch only the tag store and HTML() renders markup.
	Document dom.Document
	// State holds the title slots. Default: an in-process state.Memory.
	State state.Store
	// TitleSeparator joins main title and segments. Default " | ".
	TitleSeparator string
	// Defaults seed the registry. They are applied asynchronously: queued
	// at construction, executed once the worker runs.
	Defaults map[string]any
	// BatchSize bounds tasks applied per queue drain cycle. Default 5.
	BatchSize int
	// QueueSize bounds pending tasks. Default 256.
	QueueSize int
	// Logger overrides slog.Default().
	Logger *slog.Logger
	// IDs generates task identifiers. Default: Prefixed("op_", NanoID(10)).
	IDs idgen.Generator
}

func (o *Options) defaults() {
	if o.State == nil {
		o.State = state.NewMemory()
	}
	if o.TitleSeparator == "" {
		o.TitleSeparator = " | "
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Environment describes the registry's operating mode and load.
type Environment struct {
	DocumentPresent bool   `json:"isDocumentPresent"`
	TitleSeparator  string `json:"titleSeparator"`
	CacheSize       int    `json:"cacheSize"`
	QueueSize       int    `json:"queueSize"`
}

// Registry is the metadata facade. Create with New, start the worker with
// Start, stop with Close. Mutating methods return a *taskq.Task handle that
// resolves once the mutation has been applied (or rejected); they never
// surface mutation errors. Read methods are safe from any goroutine.
type Registry struct {
	opts   Options
	log    *slog.Logger
	q      *taskq.Q
	title  *titleBuilder
	engine *syncEngine // nil in no-document mode

	mu   sync.RWMutex
	tags *tagStore

	titleDirty atomic.Bool
	cacheSize  atomic.Int64

	cancel    context.CancelFunc
	stopped   chan struct{}
	subs      []func()
	started   atomic.Bool
	closeOnce sync.Once
}

// New builds a Registry, subscribes to the title slots, and queues the
// defaults seed. Nothing applies until Start.
func New(opts Options) *Registry {
	opts.defaults()
	r := &Registry{
		opts: opts,
		log:  opts.Logger,
		tags: newTagStore(),
	}
	r.q = taskq.New(taskq.Options{
		BatchSize: opts.BatchSize,
		QueueSize: opts.QueueSize,
		IDs:       opts.IDs,
		Logger:    opts.Logger,
	})
	r.title = newTitleBuilder(opts.State, opts.TitleSeparator, opts.Logger)
	if opts.Document != nil {
		r.engine = newSyncEngine(opts.Document, opts.Logger)
	}

	paths := []string{state.TitleMain}
	for i := 1; i <= state.MaxSegments; i++ {
		paths = append(paths, state.SegmentPath(i))
	}
	for _, p := range paths {
		r.subs = append(r.subs, opts.State.Subscribe(p, r.scheduleTitleRebuild))
	}

	if len(opts.Defaults) > 0 {
		r.Update()
	}
	return r
}

// Start launches the queue worker. The worker stops when ctx is cancelled
// or Close is called.
func (r *Registry) Start(ctx context.Context) {
	if !r.started.CompareAndSwap(false, true) {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.stopped = make(chan struct{})
	go func() {
		defer close(r.stopped)
		r.q.Run(ctx)
	}()
	r.log.Info("meta: registry started",
		"document_present", r.engine != nil,
		"title_separator", r.opts.TitleSeparator)
}

// Close unsubscribes from title state, drains pending mutations, and stops
// the worker. Safe to call more than once.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		for _, cancel := range r.subs {
			cancel()
		}
		r.subs = nil
		if !r.started.Load() {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.q.Flush(ctx); err != nil {
			r.log.Warn("meta: close: queue flush incomplete", "error", err)
		}
		r.cancel()
		<-r.stopped
		r.log.Info("meta: registry closed")
	})
}

// --- mutation operations ---

// Set normalizes one key/value pair and queues its application.
func (r *Registry) Set(key string, value any) *taskq.Task {
	rec := Normalize(key, value)
	return r.q.Enqueue("set", func(ctx context.Context) error {
		r.applyEntry(ctx, key, rec)
		return nil
	})
}

// SetMeta normalizes a whole map and queues it as one operation. Keys are
// applied in sorted order so repeated calls are deterministic.
func (r *Registry) SetMeta(values map[string]any) *taskq.Task {
	entries := normalizeAll(values)
	return r.q.Enqueue("set_meta", func(ctx context.Context) error {
		for _, e := range entries {
			r.applyEntry(ctx, e.Key, e.Record)
		}
		return nil
	})
}

// SetTitle replaces the whole title hierarchy: main plus segments in order.
// The composed title is rebuilt via the state subscription.
func (r *Registry) SetTitle(main string, segments ...string) *taskq.Task {
	segs := make([]string, len(segments))
	copy(segs, segments)
	return r.q.Enqueue("set_title", func(ctx context.Context) error {
		r.title.setTitle(ctx, main, segs)
		return nil
	})
}

// AddTitleSegment appends a segment at the first free slot. When all slots
// are taken the segment is dropped with a warning.
func (r *Registry) AddTitleSegment(value string) *taskq.Task {
	return r.q.Enqueue("add_title_segment", func(ctx context.Context) error {
		r.title.addSegment(ctx, value)
		return nil
	})
}

// RemoveTitleSegment removes the 1-based segment index and compacts the
// remainder down. Out-of-range indexes are logged no-ops.
func (r *Registry) RemoveTitleSegment(index int) *taskq.Task {
	return r.q.Enqueue("remove_title_segment", func(ctx context.Context) error {
		r.title.removeSegment(ctx, index)
		return nil
	})
}

// Clear empties the tag store and removes every synced node. Title state
// slots are left alone; see Reset.
func (r *Registry) Clear() *taskq.Task {
	return r.q.Enqueue("clear", func(ctx context.Context) error {
		r.clearStore(ctx)
		return nil
	})
}

// Reset is Clear plus unsetting every title slot, returning the registry
// to its just-constructed state. Idempotent.
func (r *Registry) Reset() *taskq.Task {
	return r.q.Enqueue("reset", func(ctx context.Context) error {
		r.clearStore(ctx)
		r.title.clear(ctx)
		return nil
	})
}

// Update re-applies the construction defaults on top of the current store.
func (r *Registry) Update() *taskq.Task {
	entries := normalizeAll(r.opts.Defaults)
	return r.q.Enqueue("update", func(ctx context.Context) error {
		for _, e := range entries {
			r.applyEntry(ctx, e.Key, e.Record)
		}
		return nil
	})
}

// applyEntry routes one normalized mutation. Title records are written to
// the main-title slot in state rather than the tag store: state holds the
// title hierarchy, and the slot subscription recomposes the stored record
// from main plus segments. Everything else lands in the store directly.
// Runs on the worker goroutine only.
func (r *Registry) applyEntry(ctx context.Context, key string, rec Record) {
	if rec.Kind == KindTitle {
		r.title.write(ctx, state.TitleMain, rec.Value)
		return
	}
	r.apply(ctx, key, rec)
}

// apply writes store first, then document. Runs on the worker goroutine
// only. Title records reach here from the rebuild path, already composed.
func (r *Registry) apply(ctx context.Context, key string, rec Record) {
	r.mu.Lock()
	r.tags.set(key, rec)
	r.mu.Unlock()
	if r.engine != nil {
		r.engine.upsert(ctx, key, rec)
		r.cacheSize.Store(int64(r.engine.size()))
	}
}

// clearStore empties the store and the document cache. Runs on the worker
// goroutine only.
func (r *Registry) clearStore(ctx context.Context) {
	r.mu.Lock()
	hadTitle := r.tags.has("title")
	r.tags.clear()
	r.mu.Unlock()
	if r.engine != nil {
		r.engine.clear(ctx, hadTitle)
		r.cacheSize.Store(0)
	}
}

// normalizeAll maps a values map to normalized entries in sorted key order.
func normalizeAll(values map[string]any) []Entry {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Record: Normalize(k, values[k])})
	}
	return entries
}

// --- title rebuild ---

// scheduleTitleRebuild coalesces bursts of title-slot changes into a single
// queued rebuild. Runs on whatever goroutine the state store notifies from.
func (r *Registry) scheduleTitleRebuild() {
	if !r.titleDirty.CompareAndSwap(false, true) {
		return
	}
	t := r.q.Enqueue("title_rebuild", func(ctx context.Context) error {
		r.titleDirty.Store(false)
		r.rebuildTitle(ctx)
		return nil
	})
	select {
	case <-t.Done():
		if t.Err() != nil {
			// Rejected before running; let the next change try again.
			r.titleDirty.Store(false)
		}
	default:
	}
}

// rebuildTitle recomposes the display title from state and pushes it
// through the store and sync engine. When every slot is unset the composed
// record is dropped instead, so Reset leaves no phantom title behind.
func (r *Registry) rebuildTitle(ctx context.Context) {
	t, present := r.title.compose(ctx)
	if !present {
		r.mu.Lock()
		had := r.tags.delete("title")
		r.mu.Unlock()
		if had && r.engine != nil {
			r.engine.remove(ctx, "title", Title(""))
		}
		return
	}
	r.apply(ctx, "title", Title(t.Full))
}

// --- read operations ---

// Get returns the record stored under key.
func (r *Registry) Get(key string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tags.get(key)
}

// GetAll returns every entry in insertion order.
func (r *Registry) GetAll() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tags.entries()
}

// Has reports whether key is stored.
func (r *Registry) Has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tags.has(key)
}

// Count returns the number of stored entries.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tags.len()
}

// OpenGraph returns the og:-namespaced property entries in insertion order.
func (r *Registry) OpenGraph() []Entry {
	return r.filterProperties("og:")
}

// TwitterCard returns the twitter:-namespaced property entries in insertion
// order.
func (r *Registry) TwitterCard() []Entry {
	return r.filterProperties("twitter:")
}

func (r *Registry) filterProperties(prefix string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.tags.entries() {
		if e.Record.Kind == KindProperty && strings.HasPrefix(e.Record.Name, prefix) {
			out = append(out, e)
		}
	}
	return out
}

// GetTitles reads the current title slots and returns the composed view.
// Reads go straight to the state store and may lag queued title mutations.
func (r *Registry) GetTitles(ctx context.Context) Titles {
	return r.title.titles(ctx)
}

// HTML renders the head fragment, one tag per store entry in insertion
// order. Only meaningful without a live document; in live mode markup
// generation is a rendering-context concern, so this warns and returns "".
func (r *Registry) HTML() string {
	if r.engine != nil {
		r.log.Warn("meta: HTML() called in live-document mode")
		return ""
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := r.tags.entries()
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		lines = append(lines, Render(e.Record))
	}
	return strings.Join(lines, "\n")
}

// Environment reports the operating mode and current load.
func (r *Registry) Environment() Environment {
	return Environment{
		DocumentPresent: r.engine != nil,
		TitleSeparator:  r.opts.TitleSeparator,
		CacheSize:       int(r.cacheSize.Load()),
		QueueSize:       r.q.Len(),
	}
}

// QueueStats exposes the operation queue counters.
func (r *Registry) QueueStats() taskq.Stats {
	return r.q.Stats()
}

// Flush blocks until every mutation enqueued before the call has applied.
func (r *Registry) Flush(ctx context.Context) error {
	return r.q.Flush(ctx)
}
