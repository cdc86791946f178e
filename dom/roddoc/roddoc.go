// CLAUDE:SUMMARY Rod-backed implementation of the dom contract — drives meta tags in an attached Chrome page.
// Package roddoc implements the dom contract against a live browser page.
//
// Node identity is kept with a data-ds-node marker attribute rather than
// element handles: handles go stale when a SPA rewrites the tree, markers
// survive as long as the element does. Every operation is a single Eval
// round-trip addressing the marker.
package roddoc

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"

	"github.com/hazyhaar/domscribe/dom"
	"github.com/hazyhaar/domscribe/idgen"
)

// Options configures a Doc.
type Options struct {
	// IDs generates node markers. Default: NanoID(12).
	IDs idgen.Generator
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.IDs == nil {
		o.IDs = idgen.NanoID(12)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Doc drives one browser page.
type Doc struct {
	page *rod.Page
	opts Options

	// Owned when created through Open; nil when wrapping a caller's page.
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// New wraps an existing page. The caller keeps ownership of the page and
// browser lifecycle.
func New(page *rod.Page, opts Options) *Doc {
	opts.defaults()
	return &Doc{page: page, opts: opts}
}

// OpenOptions configures Open.
type OpenOptions struct {
	// RemoteURL is the WebSocket URL of a running Chrome. Empty launches a
	// local headless Chrome.
	RemoteURL string
	// NavigateTimeout bounds navigation plus load. Default: 30s.
	NavigateTimeout time.Duration
	// IDs and Logger are passed through to the Doc.
	IDs    idgen.Generator
	Logger *slog.Logger
}

// Open connects to Chrome (launching a local headless instance when no
// RemoteURL is given), opens a stealth page at pageURL, and returns a Doc
// that owns the whole stack. Close releases it.
func Open(ctx context.Context, pageURL string, o OpenOptions) (*Doc, error) {
	if o.NavigateTimeout <= 0 {
		o.NavigateTimeout = 30 * time.Second
	}
	log := o.Logger
	if log == nil {
		log = slog.Default()
	}

	var lnch *launcher.Launcher
	wsURL := o.RemoteURL
	if wsURL == "" {
		lnch = launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := lnch.Launch()
		if err != nil {
			return nil, fmt.Errorf("roddoc: launch: %w", err)
		}
		wsURL = u
		log.Info("roddoc: launched local chrome", "url", wsURL)
	} else {
		log.Info("roddoc: connecting to remote chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("roddoc: connect: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		b.Close()
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("roddoc: create page: %w", err)
	}

	navCtx, cancel := context.WithTimeout(ctx, o.NavigateTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		page.Close()
		b.Close()
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, fmt.Errorf("roddoc: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		log.Warn("roddoc: wait load timeout", "url", pageURL, "error", err)
	}

	d := New(page, Options{IDs: o.IDs, Logger: o.Logger})
	d.browser = b
	d.lnch = lnch
	return d, nil
}

// Close closes the page and, when Open created them, the browser and
// launcher.
func (d *Doc) Close() error {
	if d.page != nil {
		d.page.Close()
	}
	if d.browser != nil {
		d.browser.Close()
	}
	if d.lnch != nil {
		d.lnch.Cleanup()
	}
	return nil
}

// Page exposes the underlying rod page.
func (d *Doc) Page() *rod.Page { return d.page }

// SetTitle sets document.title.
func (d *Doc) SetTitle(ctx context.Context, title string) error {
	_, err := d.page.Context(ctx).Eval(`(t) => { document.title = t; }`, title)
	if err != nil {
		return fmt.Errorf("roddoc: set title: %w", err)
	}
	return nil
}

// Title reads document.title.
func (d *Doc) Title(ctx context.Context) (string, error) {
	res, err := d.page.Context(ctx).Eval(`() => document.title`)
	if err != nil {
		return "", fmt.Errorf("roddoc: get title: %w", err)
	}
	return res.Value.Str(), nil
}

// HTML serialises the full document.
func (d *Doc) HTML(ctx context.Context) (string, error) {
	res, err := d.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return "", fmt.Errorf("roddoc: get html: %w", err)
	}
	return res.Value.Str(), nil
}

// FindMeta looks for an existing meta element whose attribute key equals
// value. A match gets a marker assigned (or keeps the one it has) so later
// operations can address it.
func (d *Doc) FindMeta(ctx context.Context, key, value string) (dom.Node, bool, error) {
	marker := d.opts.IDs()
	res, err := d.page.Context(ctx).Eval(`(key, value, marker) => {
		const metas = document.getElementsByTagName('meta');
		for (const m of metas) {
			if (m.getAttribute(key) === value) {
				if (!m.getAttribute('data-ds-node')) {
					m.setAttribute('data-ds-node', marker);
				}
				return m.getAttribute('data-ds-node');
			}
		}
		return '';
	}`, key, value, marker)
	if err != nil {
		return nil, false, fmt.Errorf("roddoc: find meta %s=%s: %w", key, value, err)
	}
	got := res.Value.Str()
	if got == "" {
		return nil, false, nil
	}
	return &node{d: d, marker: got}, true, nil
}

// CreateMeta creates a meta element carrying attrs, appended to head.
func (d *Doc) CreateMeta(ctx context.Context, attrs []dom.Attr) (dom.Node, error) {
	marker := d.opts.IDs()
	pairs := make([][]string, 0, len(attrs))
	for _, a := range attrs {
		pairs = append(pairs, []string{a.Key, a.Value})
	}
	_, err := d.page.Context(ctx).Eval(`(pairs, marker) => {
		const m = document.createElement('meta');
		for (const [k, v] of pairs) m.setAttribute(k, v);
		m.setAttribute('data-ds-node', marker);
		(document.head || document.documentElement).appendChild(m);
	}`, pairs, marker)
	if err != nil {
		return nil, fmt.Errorf("roddoc: create meta: %w", err)
	}
	return &node{d: d, marker: marker}, nil
}

// node addresses one managed element by marker.
type node struct {
	d      *Doc
	marker string
}

func (n *node) SetAttr(ctx context.Context, key, value string) error {
	res, err := n.d.page.Context(ctx).Eval(`(marker, key, value) => {
		const m = document.querySelector('meta[data-ds-node="' + marker + '"]');
		if (!m) return false;
		m.setAttribute(key, value);
		return true;
	}`, n.marker, key, value)
	if err != nil {
		return fmt.Errorf("roddoc: set attr %s: %w", key, err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("roddoc: node %s vanished", n.marker)
	}
	return nil
}

func (n *node) Remove(ctx context.Context) error {
	_, err := n.d.page.Context(ctx).Eval(`(marker) => {
		const m = document.querySelector('meta[data-ds-node="' + marker + '"]');
		if (m && m.parentNode) m.parentNode.removeChild(m);
	}`, n.marker)
	if err != nil {
		return fmt.Errorf("roddoc: remove node %s: %w", n.marker, err)
	}
	return nil
}
