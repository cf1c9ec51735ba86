package cache

import (
	"strings"
	"testing"
)

func TestDefaultKeyBuilder_BuildKey(t *testing.T) {
	b := NewDefaultKeyBuilder()

	t.Run("salt segment always present", func(t *testing.T) {
		unsalted := b.BuildKey("SELECT 1", "")
		salted := b.BuildKey("SELECT 1", "tenant-1")

		if unsalted == salted {
			t.Error("salted and unsalted keys collide")
		}
		if unsalted != "SELECT 1"+KeySeparator {
			t.Errorf("unsalted key = %q", unsalted)
		}
	})

	t.Run("parameters change the key", func(t *testing.T) {
		a := b.BuildKey("SELECT * FROM users WHERE id = ?", "", 1)
		c := b.BuildKey("SELECT * FROM users WHERE id = ?", "", 2)
		if a == c {
			t.Error("different parameters produced the same key")
		}
	})

	t.Run("deterministic for the same inputs", func(t *testing.T) {
		first := b.BuildKey("q", "s", 1, "x", []int{1, 2})
		second := b.BuildKey("q", "s", 1, "x", []int{1, 2})
		if first != second {
			t.Errorf("keys differ: %q vs %q", first, second)
		}
	})

	t.Run("map parameters independent of iteration order", func(t *testing.T) {
		m := map[string]int{"a": 1, "b": 2, "c": 3, "d": 4, "e": 5}
		want := b.BuildKey("q", "", m)
		for i := 0; i < 50; i++ {
			if got := b.BuildKey("q", "", m); got != want {
				t.Fatalf("map serialization unstable: %q vs %q", got, want)
			}
		}
	})

	t.Run("nil variants", func(t *testing.T) {
		key := b.BuildKey("q", "", nil, (*int)(nil), []int(nil))
		if !strings.Contains(key, "nil") {
			t.Errorf("nil not represented: %q", key)
		}
	})

	t.Run("pointer dereferenced to its value", func(t *testing.T) {
		v := 42
		direct := b.BuildKey("q", "", 42)
		viaPtr := b.BuildKey("q", "", &v)
		if direct != viaPtr {
			t.Errorf("pointer and value diverge: %q vs %q", direct, viaPtr)
		}
	})

	t.Run("struct parameters include exported fields", func(t *testing.T) {
		type filter struct {
			Name string
			Min  int
		}
		a := b.BuildKey("q", "", filter{Name: "x", Min: 1})
		c := b.BuildKey("q", "", filter{Name: "x", Min: 2})
		if a == c {
			t.Error("struct field change did not change the key")
		}
	})
}
