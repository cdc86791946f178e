package meta

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hazyhaar/domscribe/dom"
)

// Kind discriminates the four record shapes. The shape is chosen once at
// normalization time and never re-derived.
type Kind int

const (
	KindTitle Kind = iota
	KindProperty
	KindNamed
	KindFreeform
)

func (k Kind) String() string {
	switch k {
	case KindTitle:
		return "title"
	case KindProperty:
		return "property"
	case KindNamed:
		return "named"
	case KindFreeform:
		return "freeform"
	}
	return "unknown"
}

// Record is the canonical representation of one meta-tag or title entry.
// Exactly one shape is populated, selected by Kind.
type Record struct {
	Kind    Kind
	Value   string     // KindTitle
	Name    string     // KindProperty, KindNamed
	Content string     // KindProperty, KindNamed
	Attrs   []dom.Attr // KindFreeform, in insertion order
}

// Title builds a title record.
func Title(value string) Record {
	return Record{Kind: KindTitle, Value: value}
}

// Property builds a property/content record (OpenGraph, Twitter, article
// namespaces).
func Property(name, content string) Record {
	return Record{Kind: KindProperty, Name: name, Content: content}
}

// Named builds a standard name/content record.
func Named(name, content string) Record {
	return Record{Kind: KindNamed, Name: name, Content: content}
}

// Freeform builds a record carrying arbitrary attributes in the given order.
func Freeform(attrs []dom.Attr) Record {
	cp := make([]dom.Attr, len(attrs))
	copy(cp, attrs)
	return Record{Kind: KindFreeform, Attrs: cp}
}

// renderAttrs returns the record's attributes in render order. The first
// pair is the discriminant used to query the document before first creation.
// Title records have no attributes: the title slot is singular.
func (r Record) renderAttrs() []dom.Attr {
	switch r.Kind {
	case KindProperty:
		return []dom.Attr{{Key: "property", Value: r.Name}, {Key: "content", Value: r.Content}}
	case KindNamed:
		return []dom.Attr{{Key: "name", Value: r.Name}, {Key: "content", Value: r.Content}}
	case KindFreeform:
		return r.Attrs
	}
	return nil
}

// Equal reports deep equality of two records.
func (r Record) Equal(o Record) bool {
	if r.Kind != o.Kind {
		return false
	}
	switch r.Kind {
	case KindTitle:
		return r.Value == o.Value
	case KindProperty, KindNamed:
		return r.Name == o.Name && r.Content == o.Content
	case KindFreeform:
		if len(r.Attrs) != len(o.Attrs) {
			return false
		}
		for i := range r.Attrs {
			if r.Attrs[i] != o.Attrs[i] {
				return false
			}
		}
		return true
	}
	return false
}

// propertyPrefixes are the key namespaces normalized to Property records.
var propertyPrefixes = []string{"og:", "twitter:", "article:"}

// Normalize maps a raw key/value pair to its canonical record.
//
// A value that is already structured (a Record, a map, or an attribute
// list) passes through on its own shape; the key plays no part. Otherwise
// the key decides: "title" yields a title record, a namespaced key yields a
// property record, anything else a named record. There are no error cases;
// values are coerced to strings.
func Normalize(key string, value any) Record {
	switch v := value.(type) {
	case Record:
		return v
	case *Record:
		if v != nil {
			return *v
		}
		value = nil
	case map[string]any:
		return fromStructured(v)
	case map[string]string:
		m := make(map[string]any, len(v))
		for k, s := range v {
			m[k] = s
		}
		return fromStructured(m)
	case []dom.Attr:
		return Freeform(v)
	}

	switch {
	case key == "title":
		return Title(coerceString(value))
	case hasPropertyPrefix(key):
		return Property(key, coerceString(value))
	default:
		return Named(key, coerceString(value))
	}
}

func hasPropertyPrefix(key string) bool {
	for _, p := range propertyPrefixes {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

// fromStructured dispatches a caller-supplied structured record on its duck
// keys, priority title > property > name > freeform. Freeform attributes
// from a map are sorted by key because Go maps carry no insertion order.
func fromStructured(m map[string]any) Record {
	if t, ok := m["title"]; ok {
		return Title(coerceString(t))
	}
	if p, ok := m["property"]; ok {
		return Property(coerceString(p), coerceString(m["content"]))
	}
	if n, ok := m["name"]; ok {
		return Named(coerceString(n), coerceString(m["content"]))
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]dom.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, dom.Attr{Key: k, Value: coerceString(m[k])})
	}
	return Record{Kind: KindFreeform, Attrs: attrs}
}

func coerceString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}

// MarshalJSON emits the record's raw wire shape: {"title":v},
// {"property":n,"content":c}, {"name":n,"content":c}, or the freeform
// attribute object with insertion order preserved.
func (r Record) MarshalJSON() ([]byte, error) {
	switch r.Kind {
	case KindTitle:
		return json.Marshal(map[string]string{"title": r.Value})
	case KindProperty:
		return orderedObject([]dom.Attr{{Key: "property", Value: r.Name}, {Key: "content", Value: r.Content}})
	case KindNamed:
		return orderedObject([]dom.Attr{{Key: "name", Value: r.Name}, {Key: "content", Value: r.Content}})
	case KindFreeform:
		return orderedObject(r.Attrs)
	}
	return nil, fmt.Errorf("meta: marshal record: unknown kind %d", r.Kind)
}

// UnmarshalJSON restores a record from its raw wire shape, dispatching on
// the same duck keys as Normalize.
func (r *Record) UnmarshalJSON(data []byte) error {
	pairs, err := decodeOrderedObject(data)
	if err != nil {
		return fmt.Errorf("meta: unmarshal record: %w", err)
	}
	m := make(map[string]any, len(pairs))
	for _, p := range pairs {
		m[p.Key] = p.Value
	}
	if _, ok := m["title"]; ok || hasKey(m, "property") || hasKey(m, "name") {
		*r = fromStructured(m)
		return nil
	}
	*r = Record{Kind: KindFreeform, Attrs: pairs}
	return nil
}

func hasKey(m map[string]any, k string) bool {
	_, ok := m[k]
	return ok
}

// orderedObject writes attrs as a JSON object preserving pair order.
func orderedObject(attrs []dom.Attr) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, a := range attrs {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(a.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(a.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// decodeOrderedObject reads a JSON object's pairs in document order,
// coercing values to strings.
func decodeOrderedObject(data []byte) ([]dom.Attr, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var pairs []dom.Attr
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		var val any
		if err := dec.Decode(&val); err != nil {
			return nil, err
		}
		pairs = append(pairs, dom.Attr{Key: key, Value: coerceString(val)})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return pairs, nil
}
