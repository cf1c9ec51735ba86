// Package cacheinfra adapts an in-process sturdyc cache to the cache.Store
// protocol, for single-node deployments and tests where a networked store is
// not worth the round trips.
package cacheinfra

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/viccon/sturdyc"

	"github.com/goliatone/go-query-cache/cache"
)

// Config holds the configuration for the in-process store.
type Config struct {
	// Capacity defines the maximum number of entries the cache can store.
	// Must be greater than 0.
	Capacity int

	// NumShards determines the number of cache shards for concurrent
	// access. Must be greater than 0.
	NumShards int

	// TTL is the maximum residency of any entry, an upper bound on the
	// per-key expirations requested through Set. Must be greater than 0.
	TTL time.Duration

	// EvictionPercentage specifies what percentage of entries to evict when
	// the cache reaches capacity. Must be between 1-100.
	EvictionPercentage int

	// EvictionInterval sets how often expired entries are collected. Zero
	// uses the sturdyc default.
	EvictionInterval time.Duration
}

// DefaultConfig returns a Config with sensible defaults for most use cases.
func DefaultConfig() Config {
	return Config{
		Capacity:           10000,
		NumShards:          256,
		TTL:                24 * time.Hour,
		EvictionPercentage: 10,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "Capacity", Message: "must be greater than 0"}
	}
	if c.NumShards <= 0 {
		return &ConfigError{Field: "NumShards", Message: "must be greater than 0"}
	}
	if c.TTL <= 0 {
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}
	if c.EvictionPercentage < 1 || c.EvictionPercentage > 100 {
		return &ConfigError{Field: "EvictionPercentage", Message: "must be between 1 and 100"}
	}
	return nil
}

func (c Config) toSturdycOptions() []sturdyc.Option {
	var options []sturdyc.Option
	if c.EvictionInterval > 0 {
		options = append(options, sturdyc.WithEvictionInterval(c.EvictionInterval))
	}
	return options
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// memEntry is a payload with its own logical expiration; sturdyc's client
// TTL only bounds residency.
type memEntry struct {
	payload   []byte
	expiresAt time.Time // zero means no expiry
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// memSet is one dependency-index set with its own expiration.
type memSet struct {
	mu        sync.Mutex
	members   map[string]struct{}
	expiresAt time.Time
}

// MemoryStore implements cache.Store in process. Entries live in a sturdyc
// client so capacity eviction and background cleanup come for free; the set
// operations are backed by an xsync map since sturdyc has no set type.
type MemoryStore struct {
	client *sturdyc.Client[memEntry]
	sets   *xsync.MapOf[string, *memSet]
	now    func() time.Time
}

var _ cache.Store = (*MemoryStore)(nil)

// NewMemoryStore validates the configuration and initializes the store.
func NewMemoryStore(cfg Config) (*MemoryStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := sturdyc.New[memEntry](
		cfg.Capacity,
		cfg.NumShards,
		cfg.TTL,
		cfg.EvictionPercentage,
		cfg.toSturdycOptions()...,
	)

	return &MemoryStore{
		client: client,
		sets:   xsync.NewMapOf[string, *memSet](),
		now:    time.Now,
	}, nil
}

// Get implements cache.Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	entry, ok := s.client.Get(key)
	if !ok {
		return nil, cache.ErrNotFound
	}
	if entry.expired(s.now()) {
		s.client.Delete(key)
		return nil, cache.ErrNotFound
	}
	return entry.payload, nil
}

// Set implements cache.Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memEntry{payload: value}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	s.client.Set(key, entry)
	return nil
}

// Delete implements cache.Store.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.client.Delete(key)
		s.sets.Delete(key)
	}
	return nil
}

// SetAdd implements cache.Store.
func (s *MemoryStore) SetAdd(_ context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	set, _ := s.sets.LoadOrCompute(key, func() *memSet {
		return &memSet{members: make(map[string]struct{})}
	})

	set.mu.Lock()
	defer set.mu.Unlock()
	for _, m := range members {
		set.members[m] = struct{}{}
	}
	return nil
}

// SetRemove implements cache.Store.
func (s *MemoryStore) SetRemove(_ context.Context, key string, members ...string) error {
	set, ok := s.liveSet(key)
	if !ok {
		return nil
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	for _, m := range members {
		delete(set.members, m)
	}
	return nil
}

// SetMembers implements cache.Store.
func (s *MemoryStore) SetMembers(_ context.Context, key string) ([]string, error) {
	set, ok := s.liveSet(key)
	if !ok {
		return nil, nil
	}

	set.mu.Lock()
	defer set.mu.Unlock()
	out := make([]string, 0, len(set.members))
	for m := range set.members {
		out = append(out, m)
	}
	return out, nil
}

// TTL implements cache.Store.
func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	now := s.now()

	if entry, ok := s.client.Get(key); ok && !entry.expired(now) {
		if entry.expiresAt.IsZero() {
			return cache.NoExpiry, nil
		}
		return entry.expiresAt.Sub(now), nil
	}

	if set, ok := s.liveSet(key); ok {
		set.mu.Lock()
		defer set.mu.Unlock()
		if set.expiresAt.IsZero() {
			return cache.NoExpiry, nil
		}
		return set.expiresAt.Sub(now), nil
	}

	return 0, cache.ErrNotFound
}

// Expire implements cache.Store.
func (s *MemoryStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	deadline := s.now().Add(ttl)

	if entry, ok := s.client.Get(key); ok && !entry.expired(s.now()) {
		entry.expiresAt = deadline
		s.client.Set(key, entry)
		return nil
	}

	if set, ok := s.liveSet(key); ok {
		set.mu.Lock()
		set.expiresAt = deadline
		set.mu.Unlock()
	}
	return nil
}

// Scan implements cache.Store. Only '*' wildcards are honored, which covers
// the prefix patterns the invalidator issues.
func (s *MemoryStore) Scan(_ context.Context, pattern string) ([]string, error) {
	var keys []string
	for _, key := range s.client.ScanKeys() {
		if matchPattern(pattern, key) {
			keys = append(keys, key)
		}
	}
	s.sets.Range(func(key string, set *memSet) bool {
		if matchPattern(pattern, key) {
			keys = append(keys, key)
		}
		return true
	})
	return keys, nil
}

// FlushDB implements cache.Store.
func (s *MemoryStore) FlushDB(_ context.Context) error {
	for _, key := range s.client.ScanKeys() {
		s.client.Delete(key)
	}
	s.sets.Range(func(key string, _ *memSet) bool {
		s.sets.Delete(key)
		return true
	})
	return nil
}

// liveSet loads a set, dropping it when it has expired.
func (s *MemoryStore) liveSet(key string) (*memSet, bool) {
	set, ok := s.sets.Load(key)
	if !ok {
		return nil, false
	}
	set.mu.Lock()
	expired := !set.expiresAt.IsZero() && s.now().After(set.expiresAt)
	set.mu.Unlock()
	if expired {
		s.sets.Delete(key)
		return nil, false
	}
	return set, true
}

// matchPattern supports the glob subset the cache uses: literal segments
// separated by '*', with backslash escaping metacharacters as Redis MATCH
// does.
func matchPattern(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	segments := splitPattern(pattern)
	if len(segments) == 1 {
		return key == segments[0]
	}

	rest := key
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		idx := strings.Index(rest, segment)
		if idx < 0 {
			return false
		}
		if i == 0 && idx != 0 {
			return false
		}
		rest = rest[idx+len(segment):]
	}

	if last := segments[len(segments)-1]; last != "" && !strings.HasSuffix(key, last) {
		return false
	}
	return true
}

// splitPattern splits a glob into literal segments around unescaped '*',
// resolving backslash escapes inside each segment.
func splitPattern(pattern string) []string {
	var segments []string
	var b strings.Builder

	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '\\':
			if i+1 < len(pattern) {
				i++
				b.WriteByte(pattern[i])
			}
		case '*':
			segments = append(segments, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	return append(segments, b.String())
}
