package assetcache

import (
	"context"
	"errors"
	"iter"
	"reflect"
)

// AssetType binds a concrete asset type T to the machinery needed to
// produce it: an ordered, non-empty list of extensions tried in
// declaration order, and the Loader that turns matched bytes into T.
// Created once per type, reused across many ids and caches.
type AssetType[T any] struct {
	loader     Loader[T]
	extensions []string
	destroy    func(T)
}

// NewAssetType declares an asset type. extensions must be non-empty,
// lowercase, and without a leading dot; they are tried against the Source
// in the given order, first match wins.
func NewAssetType[T any](loader Loader[T], extensions ...string) *AssetType[T] {
	if len(extensions) == 0 {
		panic("assetcache: asset type must declare at least one extension")
	}
	cp := make([]string, len(extensions))
	copy(cp, extensions)
	return &AssetType[T]{loader: loader, extensions: cp}
}

// WithDestructor installs fn as this type's destructor thunk: it runs
// against an entry's value when the entry is dropped from the cache via
// Remove or AssetCache.Close. Take hands the value back without running
// it. Returns at for chaining at construction.
func (at *AssetType[T]) WithDestructor(fn func(T)) *AssetType[T] {
	at.destroy = fn
	return at
}

// destroyThunk erases at.destroy, if set, into the func(any) shape
// cacheEntry stores, reinterpreting the boxed *T back to T at call time.
func (at *AssetType[T]) destroyThunk() func(any) {
	if at.destroy == nil {
		return nil
	}
	fn := at.destroy
	return func(v any) {
		if p, ok := v.(*T); ok && p != nil {
			fn(*p)
		}
	}
}

// Extensions returns the declared extension list, in declaration order.
func (at *AssetType[T]) Extensions() []string {
	return at.extensions
}

func (at *AssetType[T]) typ() reflect.Type {
	return reflect.TypeFor[T]()
}

func (at *AssetType[T]) key(id ID) entryKey {
	return entryKey{typ: at.typ(), id: id}
}

// fetch runs the extension-trial loop: extensions are tried in
// declaration order, first successful (bytes, ext) pair wins;
// NotFound on every extension is itself NotFound; any other Source error
// is surfaced immediately as an *IOError; a Loader failure is wrapped in
// *LoaderError.
func (at *AssetType[T]) fetch(ctx context.Context, src Source, id ID) (T, error) {
	var zero T
	for _, ext := range at.extensions {
		data, err := src.Read(ctx, id, ext)
		if err == nil {
			v, lerr := at.loader.Load(data, ext)
			if lerr != nil {
				return zero, &LoaderError{ID: id, Ext: ext, Err: lerr}
			}
			return v, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return zero, &IOError{ID: id, Ext: ext, Err: err}
	}
	return zero, ErrNotFound
}

// Load returns a handle for id, loading it via the Source+Loader pipeline
// on first access. Concurrent misses for the same (T, id) are coalesced;
// see cache.go's singleflight use.
func (at *AssetType[T]) Load(ctx context.Context, c *AssetCache, id ID) (AssetRefLock[T], error) {
	return at.load(ctx, c, id, nil)
}

// load is the shared implementation behind Load and LoadAsset: bc
// is non-nil when called on behalf of a Compound under construction, so
// the dependency can be recorded.
func (at *AssetType[T]) load(ctx context.Context, c *AssetCache, id ID, bc *BuildContext) (AssetRefLock[T], error) {
	if err := id.Validate(); err != nil {
		return AssetRefLock[T]{}, err
	}
	key := at.key(id)

	if bc != nil {
		bc.record(key)
	}

	if e, ok := c.getEntry(key); ok {
		c.observeLoad(loadResultHit)
		return AssetRefLock[T]{entry: e}, nil
	}

	sfKey := key.singleflightKey()
	result, err, _ := c.group.Do(sfKey, func() (any, error) {
		e, created := c.getOrCreateEntry(key, at.destroyThunk())
		if !created {
			return e, nil
		}

		value, loadErr := at.fetch(ctx, c.source, id)
		if loadErr != nil {
			c.removeEntry(key)
			e.release(nil, loadErr)
			return nil, loadErr
		}

		boxed := value
		e.release(any(&boxed), nil)
		c.registerReload(key, at.extensions, at.reloadFunc(c, id))
		return e, nil
	})
	if err != nil {
		c.observeLoad(loadResultError)
		return AssetRefLock[T]{}, err
	}
	c.observeLoad(loadResultMiss)
	return AssetRefLock[T]{entry: result.(*cacheEntry)}, nil
}

// reloadFunc builds the closure the HotReloader invokes to repopulate this
// asset's entry in place after a matching filesystem event.
func (at *AssetType[T]) reloadFunc(c *AssetCache, id ID) reloadFunc {
	return func(ctx context.Context) error {
		key := at.key(id)
		e, ok := c.getEntry(key)
		if !ok {
			// Entry was removed/taken since registration; nothing to
			// refresh.
			return nil
		}
		value, err := at.fetch(ctx, c.source, id)
		if err != nil {
			return err
		}
		boxed := value
		e.overwrite(any(&boxed))
		return nil
	}
}

// LoadCached performs a lookup only, never touching the Source.
func (at *AssetType[T]) LoadCached(c *AssetCache, id ID) (AssetRefLock[T], bool) {
	key := at.key(id)
	e, ok := c.getEntry(key)
	if !ok {
		return AssetRefLock[T]{}, false
	}
	return AssetRefLock[T]{entry: e}, true
}

// LoadExpect is a convenience wrapper around Load that panics on failure.
func (at *AssetType[T]) LoadExpect(ctx context.Context, c *AssetCache, id ID) AssetRefLock[T] {
	l, err := at.Load(ctx, c, id)
	if err != nil {
		panic(err)
	}
	return l
}

// Insert bypasses the Loader and installs value directly under id,
// overwriting any existing entry in place.
func (at *AssetType[T]) Insert(c *AssetCache, id ID, value T) AssetRefLock[T] {
	key := at.key(id)
	e, created := c.getOrCreateEntry(key, at.destroyThunk())
	boxed := value
	if created {
		e.release(any(&boxed), nil)
	} else {
		e.overwrite(any(&boxed))
	}
	return AssetRefLock[T]{entry: e}
}

// Remove evicts the entry for id, if present, running its destructor
// thunk (if one was set via WithDestructor) against the evicted value.
// No-op if absent.
func (at *AssetType[T]) Remove(c *AssetCache, id ID) {
	key := at.key(id)
	e, ok := c.removeEntry(key)
	c.unregisterReload(key)
	if ok {
		e.destroyValue()
	}
}

// Take evicts the entry for id and returns its inner value, transferring
// ownership to the caller. Unlike Remove, Take never runs the type's
// destructor thunk: the value is handed back alive, not dropped, so the
// caller is responsible for any resource it holds from here on.
func (at *AssetType[T]) Take(c *AssetCache, id ID) (T, bool) {
	var zero T
	key := at.key(id)
	e, ok := c.removeEntry(key)
	if !ok {
		return zero, false
	}
	c.unregisterReload(key)
	raw, err := e.read()
	// Empty the entry so handles still held to it read ErrNotFound.
	e.overwrite(nil)
	if err != nil || raw == nil {
		return zero, false
	}
	return *raw.(*T), true
}

// Contains reports whether id is currently present for this asset type.
func (at *AssetType[T]) Contains(c *AssetCache, id ID) bool {
	return c.hasEntry(at.key(id))
}

// DirEntry is one child of a LoadDir result.
type DirEntry[T any] struct {
	ID  ID
	Ref AssetRefLock[T]
	Err error
}

// DirHandle is the result of a LoadDir call: a snapshot, taken at the
// moment the Source's directory listing was read, of every matching
// child's load outcome.
type DirHandle[T any] struct {
	entries []DirEntry[T]
}

// All iterates every child in source order, successful or not.
func (d DirHandle[T]) All() iter.Seq[DirEntry[T]] {
	return func(yield func(DirEntry[T]) bool) {
		for _, e := range d.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Successful iterates only the children that loaded without error.
func (d DirHandle[T]) Successful() iter.Seq[AssetRefLock[T]] {
	return func(yield func(AssetRefLock[T]) bool) {
		for _, e := range d.entries {
			if e.Err == nil {
				if !yield(e.Ref) {
					return
				}
			}
		}
	}
}

// Len returns the number of children in the snapshot, successful or not.
func (d DirHandle[T]) Len() int {
	return len(d.entries)
}

// LoadDir lists dir's children matching at's extensions via the Source,
// once, then loads each child. The listing is not atomic with respect to
// concurrent directory mutation: it is a snapshot of the ReadDir moment.
func (at *AssetType[T]) LoadDir(ctx context.Context, c *AssetCache, dir ID) (DirHandle[T], error) {
	leaves, err := c.source.ReadDir(ctx, dir, at.extensions)
	if err != nil {
		return DirHandle[T]{}, err
	}

	entries := make([]DirEntry[T], 0, len(leaves))
	for _, leaf := range leaves {
		childID := dir.Child(leaf)
		ref, loadErr := at.Load(ctx, c, childID)
		entries = append(entries, DirEntry[T]{ID: childID, Ref: ref, Err: loadErr})
	}
	return DirHandle[T]{entries: entries}, nil
}
