// Package state defines the observable key-value contract behind the title
// builder: a path-addressed store with explicit unset semantics and per-path
// change subscriptions.
//
// The title lives at a fixed main path plus up to MaxSegments numbered
// segment paths. Unsetting a segment writes a null sentinel at its path
// rather than deleting the path; readers see (value="", ok=false) for both
// never-written and unset paths, and the scan over segments stops at the
// first unset index.
package state

import (
	"context"
	"strconv"
	"sync"
)

// TitleMain is the path holding the main (leftmost) title value.
const TitleMain = "ui.title.main"

// MaxSegments is the protocol limit on numbered title segments. Paths beyond
// segment 10 are out of contract.
const MaxSegments = 10

// SegmentPath returns the path for segment i (1-based).
func SegmentPath(i int) string {
	return "ui.title.segment" + strconv.Itoa(i)
}

// Store is the minimal observable state contract consumed by the title
// builder. Implementations must be safe for concurrent use.
//
// Get reports ok=false when the path was never written or holds the unset
// sentinel. Unset writes the sentinel without removing the path. Subscribe
// registers fn to run after every Set or Unset of exactly that path and
// returns a cancel function.
type Store interface {
	Get(ctx context.Context, path string) (value string, ok bool, err error)
	Set(ctx context.Context, path, value string) error
	Unset(ctx context.Context, path string) error
	Subscribe(path string, fn func()) (cancel func())
}

type memEntry struct {
	value string
	null  bool
}

// Memory is an in-process Store. The zero value is not usable; create with
// NewMemory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memEntry
	subs    map[string]map[int]func()
	nextSub int
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memEntry),
		subs:    make(map[string]map[int]func()),
	}
}

// Get returns the value at path. ok is false for unknown or unset paths.
func (m *Memory) Get(_ context.Context, path string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, found := m.entries[path]
	if !found || e.null {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set writes value at path and notifies subscribers.
func (m *Memory) Set(_ context.Context, path, value string) error {
	m.mu.Lock()
	m.entries[path] = memEntry{value: value}
	fns := m.listeners(path)
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// Unset writes the null sentinel at path and notifies subscribers.
func (m *Memory) Unset(_ context.Context, path string) error {
	m.mu.Lock()
	m.entries[path] = memEntry{null: true}
	fns := m.listeners(path)
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return nil
}

// Subscribe registers fn for changes to exactly path.
func (m *Memory) Subscribe(path string, fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subs[path] == nil {
		m.subs[path] = make(map[int]func())
	}
	id := m.nextSub
	m.nextSub++
	m.subs[path][id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs[path], id)
	}
}

// listeners snapshots the callbacks for path. Callers must hold mu.
func (m *Memory) listeners(path string) []func() {
	set := m.subs[path]
	if len(set) == 0 {
		return nil
	}
	fns := make([]func(), 0, len(set))
	for _, fn := range set {
		fns = append(fns, fn)
	}
	return fns
}
