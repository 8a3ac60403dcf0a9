package database

import "sync"

// Registry holds the live set of Records, keyed by database name
// (§3's "map keyed by name with unique keys"). All methods are safe
// for concurrent use, but in practice only the single discovery/
// reconciliation goroutine (C7) calls them.
type Registry struct {
	mu     sync.Mutex
	byName map[string]*Record
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Record)}
}

// Launch implements launch_db(name): if a record with this name
// exists, its Dropped tag is cleared and the existing record is
// returned with created=false; otherwise a new record is allocated,
// registered, and returned with created=true. The caller is
// responsible for launching the ticker on a newly created record —
// Launch itself never opens a connection (idempotence property, §8).
func (reg *Registry) Launch(name string) (rec *Record, created bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.byName[name]; ok {
		existing.Dropped = false
		return existing, false
	}
	rec = NewRecord(name)
	reg.byName[name] = rec
	return rec, true
}

// Get looks up a record by name.
func (reg *Registry) Get(name string) (*Record, bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	rec, ok := reg.byName[name]
	return rec, ok
}

// Len returns the number of managed records.
func (reg *Registry) Len() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.byName)
}

// Names returns a snapshot of the managed database names.
func (reg *Registry) Names() []string {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	names := make([]string, 0, len(reg.byName))
	for name := range reg.byName {
		names = append(names, name)
	}
	return names
}

// TagAllDropped marks every record as dropped, phase one of the
// tag-then-sweep reconciliation (§3, §4.6).
func (reg *Registry) TagAllDropped() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	for _, rec := range reg.byName {
		rec.Dropped = true
	}
}

// SweepDropped removes and returns every record still tagged dropped
// — phase two of reconciliation. The caller must call Free on each
// returned record (drop_db, §4.6) after it has stopped their worker
// goroutines.
func (reg *Registry) SweepDropped() []*Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	var dropped []*Record
	for name, rec := range reg.byName {
		if rec.Dropped {
			dropped = append(dropped, rec)
			delete(reg.byName, name)
		}
	}
	return dropped
}

// Drop removes a record unconditionally (used for shutdown) and frees
// its connections and lists (drop_db, §4.6). Safe for any record in
// any state.
func (reg *Registry) Drop(rec *Record) {
	reg.mu.Lock()
	delete(reg.byName, rec.Name)
	reg.mu.Unlock()
	rec.Free()
}

// All returns a snapshot of every managed record.
func (reg *Registry) All() []*Record {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	recs := make([]*Record, 0, len(reg.byName))
	for _, rec := range reg.byName {
		recs = append(recs, rec)
	}
	return recs
}
