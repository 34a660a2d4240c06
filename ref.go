package assetcache

import "fmt"

// AssetRefLock is a shared, cheaply-copyable handle to one cache entry's
// lock slot. Two AssetRefLock values are pointer-equal (PtrEq) iff they
// refer to the same entry, i.e. the same (type, id) pair, created once and
// possibly overwritten many times since.
//
// AssetRefLock is safe to share across goroutines and to copy freely.
type AssetRefLock[T any] struct {
	entry *cacheEntry
}

// Read acquires a shared read guard over the entry's current value,
// blocking until any in-flight population or overwrite completes. The
// returned AssetRef must have Release called on it (typically via defer)
// once the caller is done reading.
func (l AssetRefLock[T]) Read() (AssetRef[T], error) {
	l.entry.awaitPopulated()
	l.entry.mu.RLock()

	if l.entry.loadErr != nil {
		l.entry.mu.RUnlock()
		var zero AssetRef[T]
		return zero, l.entry.loadErr
	}
	if l.entry.value == nil {
		l.entry.mu.RUnlock()
		var zero AssetRef[T]
		return zero, ErrNotFound
	}

	ptr, ok := l.entry.value.(*T)
	if !ok {
		l.entry.mu.RUnlock()
		panic("assetcache: entry type tag and stored value disagree, cache key invariant broken")
	}
	return AssetRef[T]{entry: l.entry, value: ptr}, nil
}

// PtrEq reports whether l and other refer to the same underlying entry.
func (l AssetRefLock[T]) PtrEq(other AssetRefLock[T]) bool {
	return l.entry == other.entry
}

// String formats the referenced entry's current value under a momentary
// read lock.
func (l AssetRefLock[T]) String() string {
	if l.entry == nil {
		return "AssetRefLock(nil)"
	}
	v, err := l.entry.read()
	if err != nil {
		return fmt.Sprintf("AssetRefLock(error: %v)", err)
	}
	if p, ok := v.(*T); ok && p != nil {
		return fmt.Sprintf("%v", *p)
	}
	return "AssetRefLock(empty)"
}

// AssetRef is a read guard dereferencing to *T. It holds the entry's read
// lock until Release is called; callers must `defer ref.Release()` after
// a successful Read.
type AssetRef[T any] struct {
	entry *cacheEntry
	value *T
}

// Get returns the guarded value. Valid only between acquisition and
// Release.
func (r AssetRef[T]) Get() *T {
	return r.value
}

// Release drops the read guard, permitting pending writers (reload,
// overwrite) to proceed.
func (r AssetRef[T]) Release() {
	r.entry.mu.RUnlock()
}
