package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Store implementations when a key does not exist.
// It distinguishes a genuine miss from a transport or serialization failure.
var ErrNotFound = errors.New("cache: key not found")

// NoExpiry is the duration returned by Store.TTL for keys that exist but
// have no expiration set.
const NoExpiry = time.Duration(-1)

// Store is the backing-store protocol the query cache requires: standard
// key-value operations plus the set operations that back the dependency
// index. Every method is a single round trip to the backing store; the
// store's per-key atomicity is the only atomicity the cache relies on.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the raw bytes stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value at key with the given time-to-live. A ttl of zero or
	// less stores the value without expiration.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes the given keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// SetAdd adds members to the set stored at key, creating it if absent.
	SetAdd(ctx context.Context, key string, members ...string) error

	// SetRemove removes members from the set stored at key.
	SetRemove(ctx context.Context, key string, members ...string) error

	// SetMembers returns all members of the set stored at key. A missing
	// set yields an empty slice, not ErrNotFound.
	SetMembers(ctx context.Context, key string) ([]string, error)

	// TTL reports the remaining time-to-live of key. It returns ErrNotFound
	// for missing keys and NoExpiry for keys without an expiration.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Expire sets the time-to-live of an existing key.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Scan returns every key matching the glob-style pattern.
	Scan(ctx context.Context, pattern string) ([]string, error)

	// FlushDB removes every key in the logical database the store operates on.
	FlushDB(ctx context.Context) error
}

// DatabaseScoped is implemented by stores that address one of several
// logical databases on the same server. The invalidator uses it to decide
// between a prefix-scoped clear and a full database flush.
type DatabaseScoped interface {
	// LogicalDB returns the logical database index, with 0 as the default.
	LogicalDB() int
}
