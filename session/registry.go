package session

import "sort"

// registry maps session ids to their records. It is guarded by Manager.mu.
type registry struct {
	records map[string]*record
}

func newRegistry() *registry {
	return &registry{records: make(map[string]*record)}
}

func (r *registry) get(id string) (*record, bool) {
	rec, ok := r.records[id]
	return rec, ok
}

func (r *registry) put(rec *record) {
	r.records[rec.id] = rec
}

func (r *registry) delete(id string) {
	delete(r.records, id)
}

func (r *registry) len() int {
	return len(r.records)
}

// ids returns the registered ids, sorted.
func (r *registry) ids() []string {
	ids := make([]string, 0, len(r.records))
	for id := range r.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
