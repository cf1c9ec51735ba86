package querycache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/goliatone/go-query-cache/pkg/testsupport"
)

func newTestInvalidator(t *testing.T, fake *testsupport.FakeStore, aliases map[string]string) *Invalidator {
	t.Helper()

	inv, err := NewInvalidator(InvalidatorConfig{
		Store:      fake,
		KeyPrefix:  "qc:",
		TagAliases: aliases,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewInvalidator: %v", err)
	}

	inv.detach = func(_ string, fn func(context.Context) error) {
		_ = fn(context.Background())
	}
	return inv
}

// seedEntry writes an entry through an EntryStore wired to the same fake, so
// the invalidator sees exactly what production writes produce.
func seedEntry(t *testing.T, fake *testsupport.FakeStore, key string, tags []string) string {
	t.Helper()

	s := newTestEntryStore(t, fake)
	opts := TTLOptions{AbsoluteExpiration: time.Now().Add(time.Hour)}
	if err := s.Put(context.Background(), key, []byte("v"), tags, opts); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
	return s.StorageKey(key)
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"qc:", "qc:"},
		{"qc[1]:", `qc\[1\]:`},
		{"a*b?c", `a\*b\?c`},
		{`back\slash`, `back\\slash`},
	}
	for _, tt := range tests {
		if got := escapeGlob(tt.in); got != tt.want {
			t.Errorf("escapeGlob(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNewInvalidator_RequiresStore(t *testing.T) {
	if _, err := NewInvalidator(InvalidatorConfig{}); err == nil {
		t.Error("expected error for missing store")
	}
}

func TestInvalidator_InvalidateSets(t *testing.T) {
	fake := testsupport.NewFakeStore()
	inv := newTestInvalidator(t, fake, nil)
	ctx := context.Background()

	keyA := seedEntry(t, fake, "a", []string{"Users", "Orders"})
	keyB := seedEntry(t, fake, "b", []string{"Orders"})
	keyC := seedEntry(t, fake, "c", []string{"Products"})

	if err := inv.InvalidateSets(ctx, []string{"Orders"}); err != nil {
		t.Fatalf("InvalidateSets: %v", err)
	}

	for _, key := range []string{keyA, keyB} {
		if _, err := fake.Get(ctx, key); err == nil {
			t.Errorf("entry %s survived invalidation", key)
		}
	}
	if _, err := fake.Get(ctx, keyC); err != nil {
		t.Error("unrelated entry was invalidated")
	}

	// The orders set is gone and keyA was cleaned out of the users set too.
	if members, _ := fake.SetMembers(ctx, "qc:tag:orders"); len(members) != 0 {
		t.Errorf("orders set not emptied: %v", members)
	}
	if members, _ := fake.SetMembers(ctx, "qc:tag:users"); len(members) != 0 {
		t.Errorf("users set still references the removed entry: %v", members)
	}
}

func TestInvalidator_ExpiredMemberSkipped(t *testing.T) {
	fake := testsupport.NewFakeStore()
	inv := newTestInvalidator(t, fake, nil)
	ctx := context.Background()

	keyA := seedEntry(t, fake, "a", []string{"Orders"})
	keyB := seedEntry(t, fake, "b", []string{"Orders"})

	// keyB's TTL lapses; the index still lists it.
	fake.ExpireNow(keyB)

	if err := inv.InvalidateSets(ctx, []string{"Orders"}); err != nil {
		t.Fatalf("InvalidateSets: %v", err)
	}
	if _, err := fake.Get(ctx, keyA); err == nil {
		t.Error("live entry survived invalidation")
	}
}

func TestInvalidator_EmptySetIsNoOp(t *testing.T) {
	fake := testsupport.NewFakeStore()
	inv := newTestInvalidator(t, fake, nil)

	if err := inv.InvalidateSets(context.Background(), []string{"Never_Written"}); err != nil {
		t.Errorf("InvalidateSets on empty set: %v", err)
	}
}

func TestInvalidator_UnreadableSetSkipped(t *testing.T) {
	fake := testsupport.NewFakeStore()
	fake.Fail = map[string]error{"smembers": errors.New("connection refused")}
	inv := newTestInvalidator(t, fake, nil)

	// The per-tag read failure is logged and skipped, not returned.
	if err := inv.InvalidateSets(context.Background(), []string{"Orders"}); err != nil {
		t.Errorf("InvalidateSets: %v", err)
	}
}

func TestInvalidator_Aliases(t *testing.T) {
	fake := testsupport.NewFakeStore()
	inv := newTestInvalidator(t, fake, map[string]string{"ResultEntity": "Result_Result"})
	ctx := context.Background()

	keyCurrent := seedEntry(t, fake, "current", []string{"ResultEntity"})
	keyLegacy := seedEntry(t, fake, "legacy", []string{"Result_Result"})

	// Invalidating either name reaches entries registered under both.
	if err := inv.InvalidateSets(ctx, []string{"ResultEntity"}); err != nil {
		t.Fatalf("InvalidateSets: %v", err)
	}
	for _, key := range []string{keyCurrent, keyLegacy} {
		if _, err := fake.Get(ctx, key); err == nil {
			t.Errorf("entry %s survived aliased invalidation", key)
		}
	}
}

func TestInvalidator_InvalidateItem(t *testing.T) {
	fake := testsupport.NewFakeStore()
	inv := newTestInvalidator(t, fake, nil)
	ctx := context.Background()

	storageKey := seedEntry(t, fake, "a", []string{"Users"})

	if err := inv.InvalidateItem(ctx, storageKey); err != nil {
		t.Fatalf("InvalidateItem: %v", err)
	}
	if _, err := fake.Get(ctx, storageKey); err == nil {
		t.Error("entry survived InvalidateItem")
	}
	if members, _ := fake.SetMembers(ctx, "qc:tag:users"); len(members) != 0 {
		t.Errorf("index not cleaned: %v", members)
	}

	// A second pass over the now-missing key is a no-op.
	if err := inv.InvalidateItem(ctx, storageKey); err != nil {
		t.Errorf("InvalidateItem on missing key: %v", err)
	}
}

func TestInvalidator_InvalidateItemCorruptEntry(t *testing.T) {
	fake := testsupport.NewFakeStore()
	inv := newTestInvalidator(t, fake, nil)
	ctx := context.Background()

	if err := fake.Set(ctx, "qc:broken", []byte("\xc1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := inv.InvalidateItem(ctx, "qc:broken"); err != nil {
		t.Fatalf("InvalidateItem: %v", err)
	}
	if _, err := fake.Get(ctx, "qc:broken"); err == nil {
		t.Error("corrupt entry survived invalidation")
	}
}

func TestInvalidator_ClearAll(t *testing.T) {
	ctx := context.Background()

	t.Run("pattern", func(t *testing.T) {
		fake := testsupport.NewFakeStore()
		inv := newTestInvalidator(t, fake, nil)

		seedEntry(t, fake, "users:1", nil)
		other := seedEntry(t, fake, "orders:1", nil)

		if err := inv.ClearAll(ctx, "qc:users:*"); err != nil {
			t.Fatalf("ClearAll: %v", err)
		}
		if fake.Len() != 1 {
			t.Errorf("store holds %d values, want 1", fake.Len())
		}
		if _, err := fake.Get(ctx, other); err != nil {
			t.Error("non-matching entry was cleared")
		}
	})

	t.Run("default database cleared by prefix", func(t *testing.T) {
		fake := testsupport.NewFakeStore()
		inv := newTestInvalidator(t, fake, nil)

		seedEntry(t, fake, "users:1", []string{"Users"})
		if err := fake.Set(ctx, "other-app:key", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}

		if err := inv.ClearAll(ctx, ""); err != nil {
			t.Fatalf("ClearAll: %v", err)
		}
		if _, err := fake.Get(ctx, "other-app:key"); err != nil {
			t.Error("foreign key removed by prefix clear")
		}
		if fake.Len() != 1 {
			t.Errorf("store holds %d values, want only the foreign key", fake.Len())
		}
	})

	t.Run("prefix with glob metacharacters cleared literally", func(t *testing.T) {
		fake := testsupport.NewFakeStore()
		inv, err := NewInvalidator(InvalidatorConfig{
			Store:     fake,
			KeyPrefix: "qc[1]:",
			Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		if err != nil {
			t.Fatalf("NewInvalidator: %v", err)
		}

		if err := fake.Set(ctx, "qc[1]:users:1", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}
		if err := fake.Set(ctx, "qcX:users:1", []byte("v"), time.Minute); err != nil {
			t.Fatalf("Set: %v", err)
		}

		if err := inv.ClearAll(ctx, ""); err != nil {
			t.Fatalf("ClearAll: %v", err)
		}
		if _, err := fake.Get(ctx, "qc[1]:users:1"); err == nil {
			t.Error("prefixed entry survived clear")
		}
		if _, err := fake.Get(ctx, "qcX:users:1"); err != nil {
			t.Error("entry outside the literal prefix was cleared")
		}
	})

	t.Run("dedicated database flushed", func(t *testing.T) {
		fake := testsupport.NewFakeStore().WithLogicalDB(3)
		inv := newTestInvalidator(t, fake, nil)

		seedEntry(t, fake, "users:1", nil)
		if err := inv.ClearAll(ctx, ""); err != nil {
			t.Fatalf("ClearAll: %v", err)
		}
		if fake.Len() != 0 {
			t.Errorf("store holds %d values after flush", fake.Len())
		}
	})
}
