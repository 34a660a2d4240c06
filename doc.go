// Package assetcache is a process-wide, concurrently accessed cache for
// typed runtime assets keyed by (Go type, dotted id). Entries have a
// stable address for their lifetime: once created, an entry's lock and
// storage slot never move, even when its value is replaced wholesale
// (hot reload, explicit Insert), so outstanding AssetRef handles never
// observe a torn or relocated value.
//
// A Source supplies raw bytes (filesystem, embedded table, or a remote
// store); a Loader converts bytes of a matched extension into a typed
// value; an AssetType binds the two together for one Go type. Compound
// assets are built from other cached assets via a CompoundType, which
// records dependencies through a BuildContext so a HotReloader can
// cascade reloads along the dependency graph.
//
// The package deliberately has no eviction policy: entries live until
// explicitly removed via Remove or Take. It has no persistence beyond
// the lifetime of the process and no cross-machine distribution; those
// are left to the Source implementation, if needed.
package assetcache
