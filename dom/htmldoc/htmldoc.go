// Package htmldoc implements the dom contract over a parsed x/net/html tree.
//
// A Doc is confined to the sync worker: it is not safe for concurrent use,
// and callers reading the tree (HTML, Title) must quiesce the operation queue
// first.
package htmldoc

import (
	"context"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hazyhaar/domscribe/dom"
)

// Doc wraps a parsed HTML tree.
type Doc struct {
	root *html.Node
	head *html.Node
}

// Parse reads and parses an HTML document. The parser synthesizes html, head
// and body elements when the input omits them.
func Parse(r io.Reader) (*Doc, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("htmldoc: parse: %w", err)
	}
	return &Doc{root: root, head: findElement(root, atom.Head)}, nil
}

// New returns an empty document (html, head, body only).
func New() *Doc {
	d, _ := Parse(strings.NewReader(""))
	return d
}

// SetTitle sets the text of the title element, creating it in head on first
// use.
func (d *Doc) SetTitle(_ context.Context, title string) error {
	t := findElement(d.root, atom.Title)
	if t == nil {
		if d.head == nil {
			return fmt.Errorf("htmldoc: set title: no head element")
		}
		t = &html.Node{Type: html.ElementNode, Data: "title", DataAtom: atom.Title}
		d.head.AppendChild(t)
	}
	for t.FirstChild != nil {
		t.RemoveChild(t.FirstChild)
	}
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	return nil
}

// Title returns the current title text.
func (d *Doc) Title() string {
	t := findElement(d.root, atom.Title)
	if t == nil || t.FirstChild == nil {
		return ""
	}
	return t.FirstChild.Data
}

// FindMeta returns the first meta element whose attribute key equals value.
func (d *Doc) FindMeta(_ context.Context, key, value string) (dom.Node, bool, error) {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.Meta && getAttr(n, key) == value {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(d.root)
	if found == nil {
		return nil, false, nil
	}
	return &node{n: found}, true, nil
}

// CreateMeta creates a meta element with attrs appended to head.
func (d *Doc) CreateMeta(_ context.Context, attrs []dom.Attr) (dom.Node, error) {
	if d.head == nil {
		return nil, fmt.Errorf("htmldoc: create meta: no head element")
	}
	n := &html.Node{Type: html.ElementNode, Data: "meta", DataAtom: atom.Meta}
	for _, a := range attrs {
		n.Attr = append(n.Attr, html.Attribute{Key: a.Key, Val: a.Value})
	}
	d.head.AppendChild(n)
	return &node{n: n}, nil
}

// Render serializes the document to w.
func (d *Doc) Render(w io.Writer) error {
	if err := html.Render(w, d.root); err != nil {
		return fmt.Errorf("htmldoc: render: %w", err)
	}
	return nil
}

// HTML returns the serialized document.
func (d *Doc) HTML() (string, error) {
	var sb strings.Builder
	if err := d.Render(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// node is an owned reference to one element in the tree.
type node struct {
	n *html.Node
}

func (e *node) SetAttr(_ context.Context, key, value string) error {
	for i, a := range e.n.Attr {
		if a.Key == key {
			e.n.Attr[i].Val = value
			return nil
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: key, Val: value})
	return nil
}

func (e *node) Remove(_ context.Context) error {
	if e.n.Parent == nil {
		return nil
	}
	e.n.Parent.RemoveChild(e.n)
	return nil
}

func findElement(root *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = n
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return found
}

func getAttr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
