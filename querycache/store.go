package querycache

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/policy"
)

const (
	// DefaultTTL applies when TTLOptions carries neither a usable absolute
	// expiration nor a usable sliding expiration.
	DefaultTTL = time.Hour

	// tagTTLMargin is added to an entry's TTL when extending its tag sets,
	// so the index outlives transient entries it must still invalidate.
	tagTTLMargin = 5 * time.Minute

	defaultDetachTimeout = 5 * time.Second
)

// Infinite disables a sliding expiration.
const Infinite = time.Duration(math.MaxInt64)

// Entry is a cached value together with the logical tables or entities it
// depends on. Entries are owned by EntryStore; they are serialized with
// msgpack on write and deserialized on read.
type Entry struct {
	// Value is the opaque result payload the caller stored.
	Value []byte `msgpack:"v"`

	// EntitySets lists the dependency tags; touching any of them through
	// the Invalidator removes this entry.
	EntitySets []string `msgpack:"e"`

	// Sliding, when positive, re-arms the entry's expiration on every read.
	Sliding time.Duration `msgpack:"s,omitempty"`
}

// TTLOptions selects how long an entry lives. The effective TTL prefers a
// usable absolute expiration instant, then a usable sliding duration, then
// DefaultTTL.
type TTLOptions struct {
	// AbsoluteExpiration is the instant the entry must be gone by. The zero
	// time means unset; an instant at or before now is unusable and falls
	// through to the sliding expiration.
	AbsoluteExpiration time.Time

	// SlidingExpiration re-arms on every read. Zero means unset; Infinite
	// is treated as unset.
	SlidingExpiration time.Duration
}

// TTLOptionsFor derives TTLOptions from a resolved policy.
func TTLOptionsFor(p policy.Policy) TTLOptions {
	if p.Mode() == policy.Sliding {
		return TTLOptions{SlidingExpiration: p.Timeout()}
	}
	return TTLOptions{AbsoluteExpiration: time.Now().Add(p.Timeout())}
}

// StoreConfig configures an EntryStore.
type StoreConfig struct {
	// Store is the backing store. Required.
	Store cache.Store

	// KeyPrefix namespaces storage keys and tag-set keys.
	KeyPrefix string

	// Logger receives best-effort failure reports. Nil selects slog.Default.
	Logger *slog.Logger

	// DetachTimeout bounds each fire-and-forget store call. Zero selects
	// five seconds.
	DetachTimeout time.Duration
}

// EntryStore reads and writes cache entries and keeps the dependency index
// registered on the way in.
type EntryStore struct {
	store  cache.Store
	hasher *cache.KeyHasher
	prefix string
	logger *slog.Logger

	// detach issues a store call without awaiting it; swapped for a
	// synchronous version in tests.
	detach func(op string, fn func(context.Context) error)

	detachTimeout time.Duration
	now           func() time.Time
}

// NewEntryStore constructs an EntryStore.
func NewEntryStore(cfg StoreConfig) (*EntryStore, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("querycache: StoreConfig.Store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.DetachTimeout
	if timeout <= 0 {
		timeout = defaultDetachTimeout
	}

	s := &EntryStore{
		store:         cfg.Store,
		hasher:        cache.NewKeyHasher(cfg.KeyPrefix),
		prefix:        cfg.KeyPrefix,
		logger:        logger,
		detachTimeout: timeout,
		now:           time.Now,
	}
	s.detach = s.detached
	return s, nil
}

// Get returns the entry stored under the logical key. Transport and
// deserialization failures are logged and reported as a miss; the primary
// data path never fails because the cache is unhealthy.
func (s *EntryStore) Get(ctx context.Context, key string) (*Entry, bool) {
	storageKey := s.hasher.StorageKey(key)

	raw, err := s.store.Get(ctx, storageKey)
	if err != nil {
		if err != cache.ErrNotFound {
			s.logger.Warn("cache read failed, treating as miss",
				"key_hash", cache.Fingerprint(key), "error", err)
		}
		return nil, false
	}

	var entry Entry
	if err := msgpack.Unmarshal(raw, &entry); err != nil {
		s.logger.Warn("cache entry corrupt, treating as miss",
			"key_hash", cache.Fingerprint(key), "error", err)
		return nil, false
	}

	if entry.Sliding > 0 {
		ttl := entry.Sliding
		s.detach("slide-expiration", func(ctx context.Context) error {
			return s.store.Expire(ctx, storageKey, ttl)
		})
	}

	return &entry, true
}

// Put stores value under the logical key with the given dependency tags and
// registers the storage key in each tag's index set. The entry write is
// awaited; index registration is fire-and-forget, with each tag set's TTL
// extended to at least the entry TTL plus a safety margin.
func (s *EntryStore) Put(ctx context.Context, key string, value []byte, tags []string, opts TTLOptions) error {
	ttl := s.effectiveTTL(opts)

	entry := Entry{Value: value, EntitySets: normalizeTags(append(append([]string(nil), tags...), DependencyTagsFromContext(ctx)...))}
	if opts.SlidingExpiration > 0 && opts.SlidingExpiration != Infinite && opts.AbsoluteExpiration.IsZero() {
		entry.Sliding = opts.SlidingExpiration
	}

	payload, err := msgpack.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("querycache: marshal entry: %w", err)
	}

	storageKey := s.hasher.StorageKey(key)
	if err := s.store.Set(ctx, storageKey, payload, ttl); err != nil {
		return fmt.Errorf("querycache: write entry: %w", err)
	}

	for _, tag := range entry.EntitySets {
		setKey := tagKey(s.prefix, tag)
		s.detach("register-dependency", func(ctx context.Context) error {
			return s.registerDependency(ctx, setKey, storageKey, ttl)
		})
	}

	return nil
}

// Remove deletes the entry stored under the logical key. It does not clean
// tag-set memberships; the stale members are skipped by the next
// invalidation pass.
func (s *EntryStore) Remove(ctx context.Context, key string) error {
	return s.store.Delete(ctx, s.hasher.StorageKey(key))
}

// StorageKey exposes the storage key for a logical key, mainly for
// diagnostics and tests.
func (s *EntryStore) StorageKey(key string) string {
	return s.hasher.StorageKey(key)
}

// registerDependency adds the storage key to a tag set and stretches the
// set's TTL so the index cannot expire before the entries it covers.
func (s *EntryStore) registerDependency(ctx context.Context, setKey, storageKey string, entryTTL time.Duration) error {
	if err := s.store.SetAdd(ctx, setKey, storageKey); err != nil {
		return err
	}

	want := entryTTL + tagTTLMargin
	current, err := s.store.TTL(ctx, setKey)
	if err != nil && err != cache.ErrNotFound {
		return err
	}
	// A freshly created set reports NoExpiry; it still needs the backstop.
	if err == cache.ErrNotFound || current == cache.NoExpiry || current < want {
		return s.store.Expire(ctx, setKey, want)
	}
	return nil
}

func (s *EntryStore) effectiveTTL(opts TTLOptions) time.Duration {
	if !opts.AbsoluteExpiration.IsZero() {
		if remaining := opts.AbsoluteExpiration.Sub(s.now()); remaining > 0 {
			return remaining
		}
	}
	if opts.SlidingExpiration > 0 && opts.SlidingExpiration != Infinite {
		return opts.SlidingExpiration
	}
	return DefaultTTL
}

func (s *EntryStore) detached(op string, fn func(context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.detachTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			s.logger.Warn("detached cache operation failed", "op", op, "error", err)
		}
	}()
}
