package loctab

import (
	"database/sql/driver"
	"strings"
	"sync"

	"github.com/viant/sqlite-loc/index"
	sqlite "modernc.org/sqlite"
)

// Global shared cache of indexes keyed by db path/table/dataset for
// cross-connection reuse.
var sharedCache = struct {
	mu    sync.RWMutex
	byKey map[string]*cacheEntry
}{byKey: make(map[string]*cacheEntry)}

// builtIndex is a dataset index together with the neighbour count used when
// a query gives neither k nor radius.
type builtIndex struct {
	index.Index[row]
	kind     string
	defaultK int
}

type cacheEntry struct {
	mu       sync.RWMutex
	idx      *builtIndex
	building bool
	cond     *sync.Cond
}

func newCacheEntry() *cacheEntry {
	e := &cacheEntry{}
	e.cond = sync.NewCond(&e.mu)
	return e
}

func (e *cacheEntry) get() *builtIndex {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.idx
}

func (e *cacheEntry) set(idx *builtIndex) {
	e.mu.Lock()
	e.idx = idx
	e.mu.Unlock()
}

func (e *cacheEntry) waitForBuild() *builtIndex {
	e.mu.Lock()
	for e.building {
		e.cond.Wait()
	}
	idx := e.idx
	e.mu.Unlock()
	return idx
}

func (e *cacheEntry) startBuild() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.idx != nil || e.building {
		return false
	}
	e.building = true
	return true
}

func (e *cacheEntry) finishBuild() {
	e.mu.Lock()
	e.building = false
	e.cond.Broadcast()
	e.mu.Unlock()
}

func cacheKey(dbPath, tableName, dataset string) string {
	return dbPath + "|" + tableName + "|" + dataset
}

func getCacheEntry(key string) *cacheEntry {
	sharedCache.mu.RLock()
	entry := sharedCache.byKey[key]
	sharedCache.mu.RUnlock()
	if entry != nil {
		return entry
	}
	sharedCache.mu.Lock()
	defer sharedCache.mu.Unlock()
	if entry = sharedCache.byKey[key]; entry == nil {
		entry = newCacheEntry()
		sharedCache.byKey[key] = entry
	}
	return entry
}

// InvalidateCache clears cached indexes for a shadow table across active
// connections. An empty dataset clears every dataset of the table. It
// returns the number of entries cleared.
func InvalidateCache(shadow, dataset string) int {
	sharedCache.mu.Lock()
	defer sharedCache.mu.Unlock()
	tableName := tableNameFromShadow(shadow)
	if tableName == "" {
		tableName = shadow
	}
	match := func(k string) bool { return strings.HasSuffix(k, "|"+tableName+"|"+dataset) }
	if dataset == "" {
		match = func(k string) bool { return strings.Contains(k, "|"+tableName+"|") }
	}
	count := 0
	for k, entry := range sharedCache.byKey {
		if match(k) && entry.get() != nil {
			entry.set(nil)
			count++
		}
	}
	return count
}

// invalidateFunc implements SQL scalar loc_invalidate(shadow TEXT, dataset TEXT) -> INT.
func invalidateFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return int64(0), nil
	}
	shadow, err := asString(args[0])
	if err != nil {
		return int64(0), nil
	}
	dataset, _ := asString(args[1])
	return int64(InvalidateCache(shadow, dataset)), nil
}
