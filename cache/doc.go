// Package cache provides the shared building blocks of the query cache:
// the backing-store protocol, storage-key hashing, and configuration.
//
// # Overview
//
// This package exports three main concerns:
//
//   - Store: the key-value protocol the cache requires from a backing store
//     (plain get/set/delete plus the set operations backing the dependency
//     index). Two adapters ship with this module: a Redis adapter for
//     distributed deployments and an in-process adapter for single-node or
//     test deployments. Both are selected through the cachecfg package,
//     which sits above this one.
//   - KeyHasher: maps logical cache keys to bounded storage keys. Short keys
//     are stored verbatim under the configured prefix for inspectability;
//     long keys are replaced by a base64-encoded SHA-256 digest.
//   - KeyBuilder: builds a logical cache key from statement text, a salt
//     key, and the bound parameter values.
//
// # Basic Usage
//
//	store, err := cachecfg.NewStore(cachecfg.DefaultConfig())
//	if err != nil {
//		// handle configuration error
//	}
//	hasher := cache.NewKeyHasher("qc:")
//	storageKey := hasher.StorageKey(logicalKey)
//
// # Error Handling
//
// Store implementations return explicit errors; they never log and swallow.
// The policy of treating a transport failure as a cache miss lives in the
// querycache package, at the call site, where it is a documented choice
// rather than hidden control flow. A missing key is reported as ErrNotFound
// so callers can tell "absent" apart from "broken".
//
// # See Also
//
// The policy package decides whether a statement should be cached at all.
// The querycache package combines a Store with dependency tracking and
// cascading invalidation.
package cache
