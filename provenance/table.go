package provenance

import (
	"sort"
	"sync"
)

// Entry is one lookup-table row: a composition key and the databases it
// appears in.
type Entry struct {
	Key       string
	Databases []string
}

// Source resolves canonical composition keys to lookup-table entries.
// Implementations must be safe for concurrent use.
type Source interface {
	Lookup(key string) (Entry, bool)
}

// Table is an in-memory Source.
type Table struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Entry)}
}

// Add records that key appears in the given databases.
func (t *Table) Add(key string, databases ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[key]
	if !ok {
		e = &Entry{Key: key}
		t.entries[key] = e
	}
	for _, db := range databases {
		i := sort.SearchStrings(e.Databases, db)
		if i < len(e.Databases) && e.Databases[i] == db {
			continue
		}
		e.Databases = append(e.Databases, "")
		copy(e.Databases[i+1:], e.Databases[i:])
		e.Databases[i] = db
	}
}

// Lookup implements Source.
func (t *Table) Lookup(key string) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key]
	if !ok {
		return Entry{}, false
	}
	return Entry{Key: e.Key, Databases: append([]string(nil), e.Databases...)}, true
}

// Len returns the number of keys.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
