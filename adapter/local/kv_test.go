package local

import (
	"context"
	"path/filepath"
	"testing"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := OpenDB(path)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestKVStoreGetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(newTestDB(t))

	if _, found, err := store.Get(ctx, "myapp:foo"); err != nil || found {
		t.Fatalf("expected miss, got found=%v err=%v", found, err)
	}

	if err := store.Put(ctx, "myapp:foo", "bar"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, found, err := store.Get(ctx, "myapp:foo")
	if err != nil || !found || v != "bar" {
		t.Fatalf("Get after Put: v=%q found=%v err=%v", v, found, err)
	}

	if err := store.Delete(ctx, "myapp:foo"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, "myapp:foo"); found {
		t.Fatal("expected miss after delete")
	}

	// Delete of an absent key must be a no-op, not an error.
	if err := store.Delete(ctx, "myapp:never-existed"); err != nil {
		t.Fatalf("Delete of absent key: %v", err)
	}
}

func TestKVStoreListPrefixOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(newTestDB(t))

	for _, k := range []string{"myapp:c", "myapp:a", "myapp:b", "other:x"} {
		if err := store.Put(ctx, k, "v"); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}

	keys, _, err := store.List(ctx, "myapp:", "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"myapp:a", "myapp:b", "myapp:c"}
	if len(keys) != len(want) {
		t.Fatalf("List returned %v, want %v", keys, want)
	}
	for i, k := range want {
		if keys[i] != k {
			t.Fatalf("List[%d] = %q, want %q", i, keys[i], k)
		}
	}
}

func TestKVStoreColonValueRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewKVStore(newTestDB(t))

	value := "foo:bar:baz-éè"
	if err := store.Put(ctx, "myapp:weird-key", value); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, found, err := store.Get(ctx, "myapp:weird-key")
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	if got != value {
		t.Fatalf("round-trip mismatch: got %q want %q", got, value)
	}
}
