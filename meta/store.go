package meta

// tagStore holds the canonical records keyed by logical name, preserving
// first-insertion order for iteration and serialization. Not safe for
// concurrent use; the registry guards it.
type tagStore struct {
	records map[string]Record
	order   []string
}

func newTagStore() *tagStore {
	return &tagStore{records: make(map[string]Record)}
}

// set inserts or replaces a record. Replacing keeps the key's original
// position.
func (s *tagStore) set(key string, r Record) {
	if _, ok := s.records[key]; !ok {
		s.order = append(s.order, key)
	}
	s.records[key] = r
}

func (s *tagStore) get(key string) (Record, bool) {
	r, ok := s.records[key]
	return r, ok
}

func (s *tagStore) has(key string) bool {
	_, ok := s.records[key]
	return ok
}

// delete removes a record and its position. Unknown keys are no-ops.
func (s *tagStore) delete(key string) bool {
	if _, ok := s.records[key]; !ok {
		return false
	}
	delete(s.records, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

func (s *tagStore) len() int {
	return len(s.records)
}

// keys returns the stored keys in insertion order.
func (s *tagStore) keys() []string {
	cp := make([]string, len(s.order))
	copy(cp, s.order)
	return cp
}

// entries returns key/record pairs in insertion order.
func (s *tagStore) entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, Entry{Key: k, Record: s.records[k]})
	}
	return out
}

func (s *tagStore) clear() {
	s.records = make(map[string]Record)
	s.order = s.order[:0]
}

// Entry pairs a registry key with its canonical record.
type Entry struct {
	Key    string `json:"key"`
	Record Record `json:"record"`
}
