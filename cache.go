package assetcache

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// AssetCache is the process-wide, type-erased table described by the
// package: a single map keyed by (concrete type, id), behind one
// read-write mutex that protects only the table's shape (insertion,
// removal, lookup), never an entry's value; that is cacheEntry's own
// sync.RWMutex's job. This split is what lets a read of asset A proceed
// while asset B is being inserted.
type AssetCache struct {
	mu    sync.RWMutex
	table map[entryKey]*cacheEntry

	source Source
	group  singleflight.Group

	logger  *zap.Logger
	metrics *cacheMetrics

	reloadMu  sync.Mutex
	reloadReg map[entryKey]*registeredReload

	depMu           sync.Mutex
	dependents      map[entryKey]map[entryKey]bool // dependency -> dependent compounds
	compoundRebuild map[entryKey]reloadFunc

	reloader *HotReloader
}

// New constructs an AssetCache backed by source. Options configure
// optional logging, metrics, and hot-reload support; see options.go.
func New(source Source, opts ...Option) *AssetCache {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	c := &AssetCache{
		table:           make(map[entryKey]*cacheEntry),
		source:          source,
		logger:          cfg.logger,
		reloadReg:       make(map[entryKey]*registeredReload),
		dependents:      make(map[entryKey]map[entryKey]bool),
		compoundRebuild: make(map[entryKey]reloadFunc),
	}
	if cfg.registry != nil {
		c.metrics = newCacheMetrics(cfg.registry, cfg.namespace, c.Len)
	}

	if cfg.hotReload {
		c.reloader = newHotReloader(c, cfg)
	}
	return c
}

// Close stops any background hot-reload watcher, then runs every
// remaining entry's destructor thunk exactly once. Safe to call on a
// cache built without hot reload.
func (c *AssetCache) Close() error {
	var err error
	if c.reloader != nil {
		err = c.reloader.Close()
	}

	c.mu.Lock()
	table := c.table
	c.table = make(map[entryKey]*cacheEntry)
	c.mu.Unlock()

	for _, e := range table {
		e.destroyValue()
	}
	return err
}

func (c *AssetCache) getEntry(key entryKey) (*cacheEntry, bool) {
	c.mu.RLock()
	e, ok := c.table[key]
	c.mu.RUnlock()
	return e, ok
}

// getOrCreateEntry returns the entry for key, creating and installing a
// fresh blocked one if absent. created reports whether this call is the
// one that installed it: exactly one concurrent caller sees created ==
// true for a given key. destroy is captured on the entry at creation time
// only; it is ignored when an existing entry is returned.
func (c *AssetCache) getOrCreateEntry(key entryKey, destroy func(any)) (e *cacheEntry, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.table[key]; ok {
		return existing, false
	}
	e = newCacheEntry(destroy)
	c.table[key] = e
	return e, true
}

func (c *AssetCache) removeEntry(key entryKey) (*cacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.table[key]
	if ok {
		delete(c.table, key)
	}
	return e, ok
}

func (c *AssetCache) hasEntry(key entryKey) bool {
	c.mu.RLock()
	_, ok := c.table[key]
	c.mu.RUnlock()
	return ok
}

// Len returns the number of entries currently in the table, populated or
// not.
func (c *AssetCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.table)
}

// registeredReload is the bookkeeping a HotReloader needs to act on a
// source change: which extensions to watch and the closure that redoes
// the Source+Loader pipeline for this (type, id) pair.
type registeredReload struct {
	extensions []string
	fn         reloadFunc
}

func (c *AssetCache) registerReload(key entryKey, extensions []string, fn reloadFunc) {
	if c.reloader == nil {
		return
	}
	c.reloadMu.Lock()
	c.reloadReg[key] = &registeredReload{extensions: extensions, fn: fn}
	c.reloadMu.Unlock()
	c.reloader.watch(key, extensions)
}

func (c *AssetCache) unregisterReload(key entryKey) {
	if c.reloader == nil {
		return
	}
	c.reloadMu.Lock()
	delete(c.reloadReg, key)
	c.reloadMu.Unlock()
}

func (c *AssetCache) lookupReload(key entryKey) (*registeredReload, bool) {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()
	r, ok := c.reloadReg[key]
	return r, ok
}

// addDependency records that dependent (a compound) was built using
// dependency's current value, so that dependency's next reload triggers
// dependent's rebuild.
func (c *AssetCache) addDependency(dependency, dependent entryKey) {
	c.depMu.Lock()
	defer c.depMu.Unlock()
	set, ok := c.dependents[dependency]
	if !ok {
		set = make(map[entryKey]bool)
		c.dependents[dependency] = set
	}
	set[dependent] = true
}

// clearDependencies drops every edge recorded for dependent, ahead of a
// rebuild that will re-derive a fresh set from scratch.
func (c *AssetCache) clearDependencies(dependent entryKey) {
	c.depMu.Lock()
	defer c.depMu.Unlock()
	for _, set := range c.dependents {
		delete(set, dependent)
	}
}

// dependentsOf returns the compounds that were last built using
// dependency's value, i.e. the entries that must rebuild when dependency
// reloads.
func (c *AssetCache) dependentsOf(dependency entryKey) []entryKey {
	c.depMu.Lock()
	defer c.depMu.Unlock()
	set := c.dependents[dependency]
	out := make([]entryKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func (c *AssetCache) registerCompoundRebuild(key entryKey, fn reloadFunc) {
	c.depMu.Lock()
	c.compoundRebuild[key] = fn
	c.depMu.Unlock()
}

func (c *AssetCache) compoundRebuildFunc(key entryKey) (reloadFunc, bool) {
	c.depMu.Lock()
	defer c.depMu.Unlock()
	fn, ok := c.compoundRebuild[key]
	return fn, ok
}
