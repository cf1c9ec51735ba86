// Package querycache stores query results together with the logical tables
// they depend on, and invalidates them en masse when those tables change.
//
// # Overview
//
// Two cooperating pieces:
//
//   - EntryStore persists an opaque result payload alongside its dependency
//     tags, computes the effective time-to-live, and registers the storage
//     key in the per-tag dependency index.
//   - Invalidator walks that index the other way: touching a tag collects
//     every dependent storage key, deletes the entries, and lazily cleans
//     the index as it goes.
//
// The dependency index is derived state. Its invariant (a key is a member
// of tag t's set iff the live entry at that key lists t) holds eventually,
// not always: the backing store expires entries without telling the index,
// so stale members are tolerated and skipped during invalidation. TTL, not
// index freshness, is what guarantees stale data is never served.
//
// # Typical flow
//
//	pol := resolver.Resolve(stmt, entities)
//	if pol == nil {
//		// execute the statement, do not cache
//	}
//	key := keys.BuildKey(stmt, pol.SaltKey(), args...)
//	if entry, ok := entries.Get(ctx, key); ok {
//		// decode entry.Value
//	}
//	// ... execute, then:
//	entries.Put(ctx, key, payload, pol.Dependencies(), querycache.TTLOptionsFor(*pol))
//
// and on the write path:
//
//	invalidator.InvalidateSets(ctx, affectedTables)
//
// # Best-effort semantics
//
// Index membership writes are issued fire-and-forget: a delayed or lost
// index update only risks a slower future invalidation, never wrong data,
// because entry TTL is the backstop. Reads and entry deletes are awaited.
// Backing-store failures on the read path are logged and surface as cache
// misses; failures on writes and invalidation are returned to the caller.
// Whether to log and continue is decided at the call site, not inside this
// package.
package querycache
