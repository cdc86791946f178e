package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/hazyhaar/domscribe/taskq"
)

// Serialize captures the registry as one JSON document:
//
//	{"meta": {key: record, ...}, "title": {"main", "segments", "full"}}
//
// The meta block keeps store insertion order so a restore rebuilds an
// identical store.
func (r *Registry) Serialize(ctx context.Context) ([]byte, error) {
	r.mu.RLock()
	entries := r.tags.entries()
	r.mu.RUnlock()

	var meta bytes.Buffer
	meta.WriteByte('{')
	for i, e := range entries {
		if i > 0 {
			meta.WriteByte(',')
		}
		k, err := json.Marshal(e.Key)
		if err != nil {
			return nil, fmt.Errorf("meta: serialize: key %q: %w", e.Key, err)
		}
		v, err := json.Marshal(e.Record)
		if err != nil {
			return nil, fmt.Errorf("meta: serialize: record %q: %w", e.Key, err)
		}
		meta.Write(k)
		meta.WriteByte(':')
		meta.Write(v)
	}
	meta.WriteByte('}')

	out := struct {
		Meta  json.RawMessage `json:"meta"`
		Title Titles          `json:"title"`
	}{Meta: meta.Bytes(), Title: r.title.titles(ctx)}

	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("meta: serialize: %w", err)
	}
	return b, nil
}

// Restore queues the reverse of Serialize: every meta entry re-enters
// through the normal write path in snapshot order, then the title hierarchy
// is re-issued (the composed title is rebuilt, not trusted from the
// snapshot). Malformed input is logged and ignored; the returned handle
// still resolves and the registry stays usable.
func (r *Registry) Restore(data []byte) *taskq.Task {
	return r.q.Enqueue("restore", func(ctx context.Context) error {
		var snap struct {
			Meta  json.RawMessage `json:"meta"`
			Title struct {
				Main     string   `json:"main"`
				Segments []string `json:"segments"`
			} `json:"title"`
		}
		if err := json.Unmarshal(data, &snap); err != nil {
			r.log.Warn("meta: restore: invalid snapshot, ignoring", "error", err)
			return nil
		}

		if len(snap.Meta) > 0 {
			pairs, err := decodeOrderedRaw(snap.Meta)
			if err != nil {
				r.log.Warn("meta: restore: invalid meta block, ignoring", "error", err)
				return nil
			}
			for _, p := range pairs {
				var rec Record
				if err := json.Unmarshal(p.raw, &rec); err != nil {
					r.log.Warn("meta: restore: record skipped", "key", p.key, "error", err)
					continue
				}
				r.applyEntry(ctx, p.key, rec)
			}
		}

		if snap.Title.Main != "" || len(snap.Title.Segments) > 0 {
			r.title.setTitle(ctx, snap.Title.Main, snap.Title.Segments)
		}
		return nil
	})
}

type rawPair struct {
	key string
	raw json.RawMessage
}

// decodeOrderedRaw reads an object's pairs in document order, values left
// as raw JSON.
func decodeOrderedRaw(data []byte) ([]rawPair, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}

	var pairs []rawPair
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
		pairs = append(pairs, rawPair{key: key, raw: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return pairs, nil
}
