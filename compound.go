package assetcache

import (
	"context"
	"fmt"
	"reflect"
)

// BuildContext is passed into a CompoundType's build function and records
// every dependency loaded through it, so the cache can later walk the
// reverse-dependency graph and rebuild this compound in place when one of
// its dependencies hot-reloads.
//
// Dependency capture is explicit: only loads made through LoadAsset and
// LoadCompound are recorded, regardless of what the builder does with the
// returned values. There is no implicit goroutine-local tracking.
type BuildContext struct {
	ctx  context.Context
	self entryKey
	deps []entryKey
}

func newBuildContext(ctx context.Context, self entryKey) *BuildContext {
	return &BuildContext{ctx: ctx, self: self}
}

// Context returns the context.Context the load was started with, for
// builders that need to thread it into further I/O.
func (bc *BuildContext) Context() context.Context {
	return bc.ctx
}

func (bc *BuildContext) record(dep entryKey) {
	if dep == bc.self {
		// A compound that depends on itself would deadlock on first load
		// (its own entry is not yet populated) and cannot ever legitimately
		// depend on its own output.
		panic("assetcache: compound cannot depend on itself")
	}
	bc.deps = append(bc.deps, dep)
}

// LoadAsset loads a leaf asset as a dependency of the compound currently
// being built, recording the dependency edge. Use this instead of
// AssetType.Load from inside a CompoundBuilder.
func LoadAsset[T any](bc *BuildContext, at *AssetType[T], c *AssetCache, id ID) (AssetRefLock[T], error) {
	return at.load(bc.ctx, c, id, bc)
}

// LoadCompound loads another compound as a dependency of the compound
// currently being built, recording the dependency edge. Nested compounds
// cascade transitively: if the inner compound reloads, so does the outer
// one.
func LoadCompound[T any](bc *BuildContext, ct *CompoundType[T], c *AssetCache, id ID) (AssetRefLock[T], error) {
	return ct.load(bc.ctx, c, id, bc)
}

// CompoundBuilder constructs a T from its dependencies, recording each one
// read through bc. It must not retain bc past its own return.
type CompoundBuilder[T any] func(ctx context.Context, bc *BuildContext) (T, error)

// CompoundType is the Compound analogue of AssetType: declares how to
// build a derived value of type T from other cached assets/compounds,
// rather than from Source bytes directly.
type CompoundType[T any] struct {
	build    CompoundBuilder[T]
	fallback *T
	destroy  func(T)
}

// CompoundOption configures a CompoundType at construction.
type CompoundOption[T any] func(*CompoundType[T])

// WithFallback installs a default value served when build fails and no
// prior successful value exists to fall back on in place. A compound whose
// first build fails without a fallback errors with ErrNoDefaultValue; a
// compound whose rebuild fails keeps serving its old value either way.
func WithFallback[T any](value T) CompoundOption[T] {
	return func(ct *CompoundType[T]) {
		v := value
		ct.fallback = &v
	}
}

// WithDestructor installs fn as this compound type's destructor thunk: it
// runs against an entry's built value when the entry is dropped from the
// cache via Remove or AssetCache.Close. Take hands the value back without
// running it.
func WithDestructor[T any](fn func(T)) CompoundOption[T] {
	return func(ct *CompoundType[T]) {
		ct.destroy = fn
	}
}

// NewCompoundType declares a compound asset type backed by build.
func NewCompoundType[T any](build CompoundBuilder[T], opts ...CompoundOption[T]) *CompoundType[T] {
	ct := &CompoundType[T]{build: build}
	for _, o := range opts {
		o(ct)
	}
	return ct
}

func (ct *CompoundType[T]) key(id ID) entryKey {
	return entryKey{typ: reflect.TypeFor[T](), id: id}
}

// destroyThunk erases ct.destroy, if set, into the func(any) shape
// cacheEntry stores, reinterpreting the boxed *T back to T at call time.
func (ct *CompoundType[T]) destroyThunk() func(any) {
	if ct.destroy == nil {
		return nil
	}
	fn := ct.destroy
	return func(v any) {
		if p, ok := v.(*T); ok && p != nil {
			fn(*p)
		}
	}
}

// Load returns a handle for the compound id, building it on first access
// via ct.build. Concurrent misses are coalesced exactly like AssetType.Load.
func (ct *CompoundType[T]) Load(ctx context.Context, c *AssetCache, id ID) (AssetRefLock[T], error) {
	return ct.load(ctx, c, id, nil)
}

func (ct *CompoundType[T]) load(ctx context.Context, c *AssetCache, id ID, parent *BuildContext) (AssetRefLock[T], error) {
	if err := id.Validate(); err != nil {
		return AssetRefLock[T]{}, err
	}
	key := ct.key(id)

	if parent != nil {
		parent.record(key)
	}

	if e, ok := c.getEntry(key); ok {
		c.observeLoad(loadResultHit)
		return AssetRefLock[T]{entry: e}, nil
	}

	sfKey := key.singleflightKey()
	result, err, _ := c.group.Do(sfKey, func() (any, error) {
		e, created := c.getOrCreateEntry(key, ct.destroyThunk())
		if !created {
			return e, nil
		}

		value, buildErr := ct.buildOnce(ctx, c, key)
		if buildErr != nil {
			if ct.fallback != nil {
				// No prior successful build exists for this entry, so
				// there is nothing to "keep serving" the way a failed
				// reload does: install the configured default in its
				// place instead of leaving the entry absent.
				fb := *ct.fallback
				e.release(any(&fb), nil)
				c.registerCompoundRebuild(key, ct.rebuildFunc(c, id))
				return e, nil
			}
			c.removeEntry(key)
			loadErr := fmt.Errorf("%w: %v", ErrNoDefaultValue, buildErr)
			e.release(nil, loadErr)
			return nil, loadErr
		}
		boxed := value
		e.release(any(&boxed), nil)
		c.registerCompoundRebuild(key, ct.rebuildFunc(c, id))
		return e, nil
	})
	if err != nil {
		c.observeLoad(loadResultError)
		return AssetRefLock[T]{}, err
	}
	c.observeLoad(loadResultMiss)
	return AssetRefLock[T]{entry: result.(*cacheEntry)}, nil
}

func (ct *CompoundType[T]) buildOnce(ctx context.Context, c *AssetCache, key entryKey) (T, error) {
	bc := newBuildContext(ctx, key)
	value, err := ct.build(ctx, bc)
	// Edges are recorded even for a failed build, so that a later change
	// to a dependency still triggers a rebuild.
	for _, dep := range bc.deps {
		c.addDependency(dep, key)
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}

// LoadCached performs a lookup only, never invoking build.
func (ct *CompoundType[T]) LoadCached(c *AssetCache, id ID) (AssetRefLock[T], bool) {
	key := ct.key(id)
	e, ok := c.getEntry(key)
	if !ok {
		return AssetRefLock[T]{}, false
	}
	return AssetRefLock[T]{entry: e}, true
}

// Remove evicts the entry for id, if present, running its destructor
// thunk (if one was set via WithDestructor) against the evicted value,
// along with the dependency edges recorded for it. No-op if absent.
func (ct *CompoundType[T]) Remove(c *AssetCache, id ID) {
	key := ct.key(id)
	e, ok := c.removeEntry(key)
	c.clearDependencies(key)
	if ok {
		e.destroyValue()
	}
}

// Take evicts the entry for id and returns its inner value, transferring
// ownership to the caller. Unlike Remove, Take never runs the type's
// destructor thunk: the value is handed back alive, not dropped, so the
// caller is responsible for any resource it holds from here on.
func (ct *CompoundType[T]) Take(c *AssetCache, id ID) (T, bool) {
	var zero T
	key := ct.key(id)
	e, ok := c.removeEntry(key)
	if !ok {
		return zero, false
	}
	c.clearDependencies(key)
	raw, err := e.read()
	// Empty the entry so handles still held to it read ErrNotFound.
	e.overwrite(nil)
	if err != nil || raw == nil {
		return zero, false
	}
	return *raw.(*T), true
}

// Contains reports whether id is currently present for this compound type.
func (ct *CompoundType[T]) Contains(c *AssetCache, id ID) bool {
	return c.hasEntry(ct.key(id))
}

// rebuildFunc is invoked by the cascade walk in hotreload.go when a
// dependency of this compound reloads. It rebuilds in place, preserving
// the entry's address. A failed rebuild does not touch the entry at all:
// the previous value remains authoritative until a subsequent successful
// rebuild. ct.fallback has no role here: it only substitutes for a value
// that was never built in the first place (see load).
func (ct *CompoundType[T]) rebuildFunc(c *AssetCache, id ID) reloadFunc {
	return func(ctx context.Context) error {
		key := ct.key(id)
		e, ok := c.getEntry(key)
		if !ok {
			return nil
		}
		c.clearDependencies(key)
		value, err := ct.buildOnce(ctx, c, key)
		if err != nil {
			return err
		}
		boxed := value
		e.overwrite(any(&boxed))
		return nil
	}
}
