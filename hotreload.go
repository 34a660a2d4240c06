package assetcache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	uuid "github.com/satori/go.uuid"
)

// reloadFunc repopulates one entry in place. Built by AssetType.reloadFunc
// or CompoundType.rebuildFunc and invoked by HotReloader once its debounce
// window settles.
type reloadFunc func(ctx context.Context) error

// HotReloader watches a cache's Source for changes and reloads affected
// entries in place, cascading into any compound that was built from them.
// One goroutine consumes source events and runs the debounce tick; worker
// goroutines drain the resulting job queue. Debouncing itself is delegated
// to reloadQueue, so a single periodic scan replaces per-key timers.
type HotReloader struct {
	cache    *AssetCache
	source   HotReloadable
	debounce time.Duration
	workers  int
	logger   *zap.Logger

	mu       sync.Mutex
	idIndex  map[ID][]entryKey  // registered asset/compound keys, by id
	dirIndex map[ID]*watchedDir // ids explicitly watched as directories

	queue   *reloadQueue
	queueMu sync.Mutex

	jobs chan ID

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// watchedDir is the bookkeeping an AddDir registration needs to turn a
// directory-change notification into a membership diff: rescan re-lists
// the directory through the owning AssetType's Source+extension filter,
// create loads (and so installs a fresh entry for) one newly-discovered
// leaf, and known is the last snapshot observed, so a later rescan can
// tell which leaves are new and which disappeared.
type watchedDir struct {
	mu     sync.Mutex
	known  map[string]bool
	rescan func(ctx context.Context) ([]string, error)
	create func(ctx context.Context, leaf string)
}

func newHotReloader(c *AssetCache, cfg config) *HotReloader {
	hr, ok := c.source.(HotReloadable)
	if !ok {
		c.logger.Warn("hot reload requested but source does not implement HotReloadable; disabling")
		return nil
	}

	h := &HotReloader{
		cache:    c,
		source:   hr,
		debounce: cfg.debounce,
		workers:  cfg.reloadWorkers,
		logger:   cfg.logger,
		idIndex:  make(map[ID][]entryKey),
		dirIndex: make(map[ID]*watchedDir),
		queue:    newReloadQueue(),
		jobs:     make(chan ID, 1024),
		stopCh:   make(chan struct{}),
	}

	h.wg.Add(1)
	go h.watchLoop()
	for i := 0; i < h.workers; i++ {
		h.wg.Add(1)
		go h.worker()
	}
	h.logger.Info("hot reload started", zap.Int("workers", h.workers))
	return h
}

// Close stops the watch loop and worker goroutines and releases the
// Source's watch registrations.
func (h *HotReloader) Close() error {
	if h == nil {
		return nil
	}
	close(h.stopCh)
	h.wg.Wait()
	h.logger.Info("hot reload stopped")
	return h.source.ClearWatches()
}

// watch registers an (id, extensions) pair so that a future change to any
// of its matching files triggers a reload. Called automatically after the
// successful AssetType load that first populates an entry, when the owning
// cache has hot reload enabled.
func (h *HotReloader) watch(key entryKey, extensions []string) {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.idIndex[key.id] = append(h.idIndex[key.id], key)
	h.mu.Unlock()

	for _, ext := range extensions {
		if err := h.source.WatchAsset(key.id, ext); err != nil {
			h.logger.Warn("failed to register asset watch",
				zap.String("id", string(key.id)), zap.String("ext", ext), zap.Error(err))
		}
	}
}

// AddDir explicitly registers interest in a directory's membership: when
// a later change notification arrives for dir, the worker re-lists it
// through at's Source+extension filter and calls at.Load for every newly
// discovered leaf, installing a fresh entry for it.
// Unlike single-asset watching this cannot be inferred automatically from
// a Load call, since directory listings are not individually keyed cache
// entries.
func AddDir[T any](h *HotReloader, at *AssetType[T], dir ID) error {
	if h == nil {
		return nil
	}

	w := &watchedDir{
		known: make(map[string]bool),
		rescan: func(ctx context.Context) ([]string, error) {
			return h.cache.source.ReadDir(ctx, dir, at.Extensions())
		},
		create: func(ctx context.Context, leaf string) {
			if _, err := at.Load(ctx, h.cache, dir.Child(leaf)); err != nil {
				h.logger.Warn("failed to load newly discovered directory member",
					zap.String("dir", string(dir)), zap.String("leaf", leaf), zap.Error(err))
			}
		},
	}
	if leaves, err := w.rescan(context.Background()); err == nil {
		for _, leaf := range leaves {
			w.known[leaf] = true
		}
	}

	h.mu.Lock()
	h.dirIndex[dir] = w
	h.mu.Unlock()
	return h.source.WatchDir(dir, at.Extensions())
}

func (h *HotReloader) watchLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return

		case ev, ok := <-h.source.Events():
			if !ok {
				return
			}
			if ev.Err != nil {
				h.logger.Warn("source watch error", zap.Error(ev.Err))
				continue
			}
			h.queueMu.Lock()
			h.queue.Schedule(ID(ev.Path), time.Now().Add(h.debounce))
			h.queueMu.Unlock()

		case <-ticker.C:
			h.queueMu.Lock()
			ready := h.queue.Ready(time.Now())
			h.queueMu.Unlock()
			for _, id := range ready {
				select {
				case h.jobs <- id:
				case <-h.stopCh:
					return
				}
			}
		}
	}
}

// dispatch looks up every entryKey (across possibly multiple asset types
// sharing the same id) registered for id and reloads each, cascading into
// dependent compounds. Run by worker goroutines draining h.jobs.
func (h *HotReloader) dispatch(id ID) {
	h.mu.Lock()
	keys := append([]entryKey(nil), h.idIndex[id]...)
	dir, isDir := h.dirIndex[id]
	h.mu.Unlock()

	batch := uuid.NewV4()

	ctx := context.Background()
	for _, key := range keys {
		h.reload(ctx, key, batch)
	}
	if isDir {
		h.rescanDir(ctx, id, dir, batch)
	}
}

// rescanDir re-lists a watched directory and diffs it against the last
// known membership: every added leaf is loaded (and so installed as a
// fresh entry) via w.create; removed leaves are logged but left in the
// cache, since eviction is never implicit.
func (h *HotReloader) rescanDir(ctx context.Context, id ID, w *watchedDir, batch uuid.UUID) {
	leaves, err := w.rescan(ctx)
	if err != nil {
		h.logger.Warn("directory rescan failed",
			zap.String("id", string(id)), zap.String("batch", batch.String()), zap.Error(err))
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]bool, len(leaves))
	var added, removed []string
	for _, leaf := range leaves {
		current[leaf] = true
		if !w.known[leaf] {
			added = append(added, leaf)
		}
	}
	for leaf := range w.known {
		if !current[leaf] {
			removed = append(removed, leaf)
		}
	}
	w.known = current

	for _, leaf := range added {
		w.create(ctx, leaf)
	}
	if len(added) > 0 || len(removed) > 0 {
		h.logger.Info("directory membership changed",
			zap.String("id", string(id)), zap.String("batch", batch.String()),
			zap.Strings("added", added), zap.Strings("removed", removed))
	}
}

// reload repopulates key in place, then cascades into any compound that
// depends on it. visited guards against re-visiting a key twice within one
// cascade, which would otherwise be possible for a diamond dependency
// graph.
func (h *HotReloader) reload(ctx context.Context, key entryKey, batch uuid.UUID) {
	h.cascade(ctx, key, batch, make(map[entryKey]bool))
}

func (h *HotReloader) cascade(ctx context.Context, key entryKey, batch uuid.UUID, visited map[entryKey]bool) {
	if visited[key] {
		return
	}
	visited[key] = true

	if reg, ok := h.cache.lookupReload(key); ok {
		if err := reg.fn(ctx); err != nil {
			h.cache.observeReload(reloadResultError)
			h.logger.Warn("asset reload failed",
				zap.String("id", string(key.id)), zap.String("batch", batch.String()), zap.Error(err))
		} else {
			h.cache.observeReload(reloadResultOK)
			h.logger.Info("asset reloaded",
				zap.String("id", string(key.id)), zap.String("batch", batch.String()))
		}
	}

	for _, dep := range h.cache.dependentsOf(key) {
		if fn, ok := h.cache.compoundRebuildFunc(dep); ok {
			if err := fn(ctx); err != nil {
				h.cache.observeReload(reloadResultError)
				h.logger.Warn("compound rebuild failed",
					zap.String("id", string(dep.id)), zap.String("batch", batch.String()), zap.Error(err))
			} else {
				h.cache.observeReload(reloadResultOK)
			}
		}
		h.cascade(ctx, dep, batch, visited)
	}
}

func (h *HotReloader) worker() {
	defer h.wg.Done()
	for {
		select {
		case <-h.stopCh:
			return
		case id := <-h.jobs:
			h.dispatch(id)
		}
	}
}
