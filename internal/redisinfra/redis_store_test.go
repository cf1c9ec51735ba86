package redisinfra

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"

	"github.com/goliatone/go-query-cache/cache"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewStoreFromClient(client, 0), srv
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
	if err := (Config{}).Validate(); err == nil {
		t.Error("expected error for config without addresses")
	}
	if err := (Config{Addrs: []string{"x:6379"}, DB: -1}).Validate(); err == nil {
		t.Error("expected error for negative DB")
	}
}

func TestStore_GetSetDelete(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); err != cache.ErrNotFound {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Get = %q", got)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "k"); err != cache.ErrNotFound {
		t.Errorf("Get after delete error = %v, want ErrNotFound", err)
	}

	if err := s.Delete(ctx); err != nil {
		t.Errorf("Delete with no keys: %v", err)
	}
}

func TestStore_TTLNormalization(t *testing.T) {
	s, srv := newTestStore(t)
	ctx := context.Background()

	if _, err := s.TTL(ctx, "missing"); err != cache.ErrNotFound {
		t.Errorf("TTL(missing) error = %v, want ErrNotFound", err)
	}

	if err := s.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ttl, err := s.TTL(ctx, "forever")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl != cache.NoExpiry {
		t.Errorf("TTL without expiry = %v, want NoExpiry", ttl)
	}

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	ttl, err = s.TTL(ctx, "k")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("TTL = %v", ttl)
	}

	srv.FastForward(2 * time.Minute)
	if _, err := s.TTL(ctx, "k"); err != cache.ErrNotFound {
		t.Errorf("TTL after expiry error = %v, want ErrNotFound", err)
	}
}

func TestStore_Expire(t *testing.T) {
	s, srv := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Expire(ctx, "k", time.Hour); err != nil {
		t.Fatalf("Expire: %v", err)
	}

	srv.FastForward(30 * time.Minute)
	if _, err := s.Get(ctx, "k"); err != nil {
		t.Errorf("entry gone before the extended deadline: %v", err)
	}
}

func TestStore_SetOperations(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	members, err := s.SetMembers(ctx, "tag:users")
	if err != nil || len(members) != 0 {
		t.Errorf("empty set: members=%v err=%v", members, err)
	}

	if err := s.SetAdd(ctx, "tag:users", "a", "b", "b"); err != nil {
		t.Fatalf("SetAdd: %v", err)
	}
	members, err = s.SetMembers(ctx, "tag:users")
	if err != nil {
		t.Fatalf("SetMembers: %v", err)
	}
	sort.Strings(members)
	if diff := cmp.Diff([]string{"a", "b"}, members); diff != "" {
		t.Errorf("members mismatch (-want +got):\n%s", diff)
	}

	if err := s.SetRemove(ctx, "tag:users", "a"); err != nil {
		t.Fatalf("SetRemove: %v", err)
	}
	members, _ = s.SetMembers(ctx, "tag:users")
	if diff := cmp.Diff([]string{"b"}, members); diff != "" {
		t.Errorf("members after remove (-want +got):\n%s", diff)
	}

	// Set TTL backstop: the index set itself can expire.
	if err := s.Expire(ctx, "tag:users", time.Minute); err != nil {
		t.Fatalf("Expire: %v", err)
	}
	ttl, err := s.TTL(ctx, "tag:users")
	if err != nil {
		t.Fatalf("TTL: %v", err)
	}
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("set TTL = %v", ttl)
	}
}

func TestStore_ScanAndFlush(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for _, key := range []string{"qc:a", "qc:b", "other:c"} {
		if err := s.Set(ctx, key, []byte("v"), 0); err != nil {
			t.Fatalf("Set: %v", err)
		}
	}

	keys, err := s.Scan(ctx, "qc:*")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"qc:a", "qc:b"}, keys); diff != "" {
		t.Errorf("scan mismatch (-want +got):\n%s", diff)
	}

	if err := s.FlushDB(ctx); err != nil {
		t.Fatalf("FlushDB: %v", err)
	}
	keys, _ = s.Scan(ctx, "*")
	if len(keys) != 0 {
		t.Errorf("keys survived flush: %v", keys)
	}
}

func TestStore_ScanEscapedMetacharacters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "qc[1]:a", []byte("v"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// Unescaped, '[1]' is a character class and matches something else.
	keys, err := s.Scan(ctx, "qc[1]:*")
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(keys) != 0 {
		t.Errorf("character class matched literally: %v", keys)
	}

	keys, err = s.Scan(ctx, `qc\[1\]:*`)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if diff := cmp.Diff([]string{"qc[1]:a"}, keys); diff != "" {
		t.Errorf("escaped scan mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_LogicalDB(t *testing.T) {
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr(), DB: 3})
	t.Cleanup(func() { client.Close() })

	s := NewStoreFromClient(client, 3)
	if s.LogicalDB() != 3 {
		t.Errorf("LogicalDB = %d", s.LogicalDB())
	}
}
