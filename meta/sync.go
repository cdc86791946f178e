package meta

import (
	"context"
	"log/slog"

	"github.com/hazyhaar/domscribe/dom"
)

// cachedNode pairs a document node with the attributes last applied to it.
// The attrs are the diff baseline for the next upsert.
type cachedNode struct {
	node  dom.Node
	attrs []dom.Attr
}

// syncEngine reflects tag store records into a document, one node per key.
// The document is queried only before a key's first creation, to adopt a
// server-rendered node; afterwards the cached handle is authoritative.
// Apply failures are logged and skipped so one bad node never stalls the
// queue; the cache is left so the next write for the key retries the diff.
type syncEngine struct {
	doc   dom.Document
	cache map[string]cachedNode
	log   *slog.Logger
}

func newSyncEngine(doc dom.Document, log *slog.Logger) *syncEngine {
	return &syncEngine{doc: doc, cache: make(map[string]cachedNode), log: log}
}

// upsert applies a record to the document. Title records write the title
// slot directly; everything else goes through the node cache.
func (e *syncEngine) upsert(ctx context.Context, key string, rec Record) {
	if rec.Kind == KindTitle {
		if err := e.doc.SetTitle(ctx, rec.Value); err != nil {
			e.log.Warn("meta: sync title failed", "error", err)
		}
		return
	}
	attrs := rec.renderAttrs()
	if entry, ok := e.cache[key]; ok {
		if sameShape(entry.attrs, attrs) {
			e.update(ctx, key, entry, attrs)
			return
		}
		// Attribute set changed; the old node's shape cannot be patched
		// attribute by attribute without leaving stale keys behind.
		if err := entry.node.Remove(ctx); err != nil {
			e.log.Warn("meta: sync remove failed", "key", key, "error", err)
		}
		delete(e.cache, key)
	}
	e.create(ctx, key, attrs)
}

// update patches only the attribute values that differ from the cached
// baseline. On failure the baseline keeps the old values, so the next
// upsert re-applies the remaining diff.
func (e *syncEngine) update(ctx context.Context, key string, entry cachedNode, attrs []dom.Attr) {
	for i, a := range attrs {
		if entry.attrs[i].Value == a.Value {
			continue
		}
		if err := entry.node.SetAttr(ctx, a.Key, a.Value); err != nil {
			e.log.Warn("meta: sync update failed", "key", key, "attr", a.Key, "error", err)
			return
		}
	}
	e.cache[key] = cachedNode{node: entry.node, attrs: attrs}
}

// create adopts a matching document node, or makes a new one, and caches
// the handle. The first attribute pair is the lookup discriminant.
func (e *syncEngine) create(ctx context.Context, key string, attrs []dom.Attr) {
	if len(attrs) == 0 {
		e.log.Warn("meta: sync skipped, record has no attributes", "key", key)
		return
	}
	node, found, err := e.doc.FindMeta(ctx, attrs[0].Key, attrs[0].Value)
	if err != nil {
		e.log.Warn("meta: sync lookup failed", "key", key, "error", err)
		return
	}
	if found {
		for _, a := range attrs[1:] {
			if err := node.SetAttr(ctx, a.Key, a.Value); err != nil {
				e.log.Warn("meta: sync adopt failed", "key", key, "attr", a.Key, "error", err)
				return
			}
		}
	} else {
		node, err = e.doc.CreateMeta(ctx, attrs)
		if err != nil {
			e.log.Warn("meta: sync create failed", "key", key, "error", err)
			return
		}
	}
	e.cache[key] = cachedNode{node: node, attrs: attrs}
}

// remove deletes a key's node from the document and drops the cache entry.
// A title record has no cached node; its slot is blanked instead.
func (e *syncEngine) remove(ctx context.Context, key string, rec Record) {
	if rec.Kind == KindTitle {
		if err := e.doc.SetTitle(ctx, ""); err != nil {
			e.log.Warn("meta: sync title failed", "error", err)
		}
		return
	}
	entry, ok := e.cache[key]
	if !ok {
		return
	}
	if err := entry.node.Remove(ctx); err != nil {
		e.log.Warn("meta: sync remove failed", "key", key, "error", err)
	}
	delete(e.cache, key)
}

// clear removes every cached node. clearTitle also blanks the document
// title, for callers that had a title record stored.
func (e *syncEngine) clear(ctx context.Context, clearTitle bool) {
	for key, entry := range e.cache {
		if err := entry.node.Remove(ctx); err != nil {
			e.log.Warn("meta: sync remove failed", "key", key, "error", err)
		}
		delete(e.cache, key)
	}
	if clearTitle {
		if err := e.doc.SetTitle(ctx, ""); err != nil {
			e.log.Warn("meta: sync title failed", "error", err)
		}
	}
}

// size reports the number of cached document nodes.
func (e *syncEngine) size() int {
	return len(e.cache)
}

// sameShape reports whether two attribute lists carry the same keys in the
// same order. Values may differ; shape is about which attributes exist.
func sameShape(a, b []dom.Attr) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Key != b[i].Key {
			return false
		}
	}
	return true
}
