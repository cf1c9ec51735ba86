// Package testsupport provides the fakes and statement fixtures the cache
// packages test against.
package testsupport

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-query-cache/cache"
	"github.com/goliatone/go-query-cache/policy"
)

// FakeStore is a synchronous in-memory cache.Store that records every
// operation, so tests can assert on store traffic without a server. Timing
// is controlled through Clock rather than the wall clock.
type FakeStore struct {
	mu      sync.Mutex
	values  map[string]fakeValue
	sets    map[string]map[string]struct{}
	setTTLs map[string]time.Time
	ops     []string
	db      int

	// Clock returns "now" for TTL bookkeeping. Defaults to time.Now.
	Clock func() time.Time

	// Fail, when non-nil, is returned from every operation whose name it
	// maps to true, to exercise failure handling.
	Fail map[string]error
}

type fakeValue struct {
	payload   []byte
	expiresAt time.Time
}

var _ cache.Store = (*FakeStore)(nil)
var _ cache.DatabaseScoped = (*FakeStore)(nil)

// NewFakeStore creates an empty FakeStore on the default logical database.
func NewFakeStore() *FakeStore {
	return &FakeStore{
		values:  make(map[string]fakeValue),
		sets:    make(map[string]map[string]struct{}),
		setTTLs: make(map[string]time.Time),
		Clock:   time.Now,
	}
}

// WithLogicalDB moves the store to another logical database index.
func (s *FakeStore) WithLogicalDB(db int) *FakeStore {
	s.db = db
	return s
}

// LogicalDB implements cache.DatabaseScoped.
func (s *FakeStore) LogicalDB() int { return s.db }

// Ops returns the recorded operation log.
func (s *FakeStore) Ops() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ops...)
}

// ExpireNow drops a key as if its TTL had elapsed. The dependency sets keep
// their now-stale member, matching how a real backing store expires values.
func (s *FakeStore) ExpireNow(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// TTLOf reports the remaining TTL recorded for a key or set.
func (s *FakeStore) TTLOf(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.values[key]; ok && !v.expiresAt.IsZero() {
		return v.expiresAt.Sub(s.Clock()), true
	}
	if deadline, ok := s.setTTLs[key]; ok {
		return deadline.Sub(s.Clock()), true
	}
	return 0, false
}

func (s *FakeStore) record(op string) error {
	s.ops = append(s.ops, op)
	if s.Fail != nil {
		if err, ok := s.Fail[strings.SplitN(op, " ", 2)[0]]; ok {
			return err
		}
	}
	return nil
}

// Get implements cache.Store.
func (s *FakeStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("get " + key); err != nil {
		return nil, err
	}

	v, ok := s.values[key]
	if !ok || (!v.expiresAt.IsZero() && s.Clock().After(v.expiresAt)) {
		return nil, cache.ErrNotFound
	}
	return v.payload, nil
}

// Set implements cache.Store.
func (s *FakeStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("set " + key); err != nil {
		return err
	}

	v := fakeValue{payload: value}
	if ttl > 0 {
		v.expiresAt = s.Clock().Add(ttl)
	}
	s.values[key] = v
	return nil
}

// Delete implements cache.Store.
func (s *FakeStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("delete " + strings.Join(keys, ",")); err != nil {
		return err
	}

	for _, key := range keys {
		delete(s.values, key)
		delete(s.sets, key)
		delete(s.setTTLs, key)
	}
	return nil
}

// SetAdd implements cache.Store.
func (s *FakeStore) SetAdd(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("sadd " + key); err != nil {
		return err
	}

	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]struct{})
		s.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

// SetRemove implements cache.Store.
func (s *FakeStore) SetRemove(_ context.Context, key string, members ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("srem " + key); err != nil {
		return err
	}

	for _, m := range members {
		delete(s.sets[key], m)
	}
	return nil
}

// SetMembers implements cache.Store.
func (s *FakeStore) SetMembers(_ context.Context, key string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("smembers " + key); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

// TTL implements cache.Store.
func (s *FakeStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ttl " + key); err != nil {
		return 0, err
	}

	if v, ok := s.values[key]; ok {
		if v.expiresAt.IsZero() {
			return cache.NoExpiry, nil
		}
		return v.expiresAt.Sub(s.Clock()), nil
	}
	if _, ok := s.sets[key]; ok {
		deadline, ok := s.setTTLs[key]
		if !ok {
			return cache.NoExpiry, nil
		}
		return deadline.Sub(s.Clock()), nil
	}
	return 0, cache.ErrNotFound
}

// Expire implements cache.Store.
func (s *FakeStore) Expire(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("expire " + key); err != nil {
		return err
	}

	deadline := s.Clock().Add(ttl)
	if v, ok := s.values[key]; ok {
		v.expiresAt = deadline
		s.values[key] = v
		return nil
	}
	if _, ok := s.sets[key]; ok {
		s.setTTLs[key] = deadline
	}
	return nil
}

// Scan implements cache.Store; only trailing-'*' prefix patterns are
// supported, which is all the invalidator issues. Backslash escapes in the
// prefix are resolved, as a Redis MATCH would.
func (s *FakeStore) Scan(_ context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("scan " + pattern); err != nil {
		return nil, err
	}

	prefix := unescapePrefix(strings.TrimSuffix(pattern, "*"))
	var keys []string
	for key := range s.values {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	for key := range s.sets {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// FlushDB implements cache.Store.
func (s *FakeStore) FlushDB(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("flushdb"); err != nil {
		return err
	}

	s.values = make(map[string]fakeValue)
	s.sets = make(map[string]map[string]struct{})
	s.setTTLs = make(map[string]time.Time)
	return nil
}

func unescapePrefix(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// Len reports how many values (not sets) the store holds.
func (s *FakeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

// FakeExtractor is a canned policy.Extractor for resolver tests.
type FakeExtractor struct {
	Mutating bool
	Tables   []string
	Entities []policy.EntityDescriptor
}

var _ policy.Extractor = (*FakeExtractor)(nil)

// IsMutatingCommand implements policy.Extractor.
func (f *FakeExtractor) IsMutatingCommand(string) bool { return f.Mutating }

// TableNames implements policy.Extractor.
func (f *FakeExtractor) TableNames(string) []string {
	return append([]string(nil), f.Tables...)
}

// EntityDescriptors implements policy.Extractor.
func (f *FakeExtractor) EntityDescriptors(string, []policy.EntityDescriptor) []policy.EntityDescriptor {
	return append([]policy.EntityDescriptor(nil), f.Entities...)
}
