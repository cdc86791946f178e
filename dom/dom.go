// Package dom defines the minimal live-document contract the sync engine
// drives. Implementations exist for parsed HTML trees (htmldoc) and attached
// browser pages (roddoc); the engine never sees past this surface.
package dom

import "context"

// Attr is one attribute pair in render order.
type Attr struct {
	Key   string
	Value string
}

// Node is an owned reference to one managed meta element. The sync engine
// holds at most one Node per tag key and is the only writer.
type Node interface {
	// SetAttr sets or replaces one attribute on the node.
	SetAttr(ctx context.Context, key, value string) error
	// Remove detaches the node from its parent. A second Remove is a no-op.
	Remove(ctx context.Context) error
}

// Document is the live-document surface.
type Document interface {
	// SetTitle sets the document title. The title slot is singular; no
	// node handle is involved.
	SetTitle(ctx context.Context, title string) error
	// FindMeta returns an existing meta element whose attribute key equals
	// value, or ok=false when none matches. Used exactly once per tag key,
	// before first creation, to avoid duplicating server-rendered nodes.
	FindMeta(ctx context.Context, key, value string) (node Node, ok bool, err error)
	// CreateMeta creates a meta element carrying attrs, attached to the
	// document's metadata section.
	CreateMeta(ctx context.Context, attrs []Attr) (Node, error)
}
