package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/NVIDIA/storegate/adapter/local"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := local.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(local.NewKVStore(db))
}

func TestSetGetColonKeyRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if err := s.Set(ctx, "myapp", "foo:bar:baz", "test"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, found, err := s.Get(ctx, "myapp", "foo:bar:baz")
	if err != nil || !found || v != "test" {
		t.Fatalf("Get: v=%q found=%v err=%v", v, found, err)
	}
}

func TestListKeysStripsNamespacePrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	for _, k := range []string{"b", "a", "c"} {
		if err := s.Set(ctx, "myapp", k, "v"); err != nil {
			t.Fatalf("Set(%s): %v", k, err)
		}
	}
	keys, err := s.ListKeys(ctx, "myapp")
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	want := []string{"a", "b", "c"}
	if len(keys) != len(want) {
		t.Fatalf("ListKeys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("ListKeys[%d] = %q, want %q", i, keys[i], want[i])
		}
	}
}

func TestListNamespacesExcludesInternal(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if err := s.Set(ctx, "myapp", "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.Set(ctx, "other", "k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.store.Put(ctx, "__PRINCIPAL:abc", "{}"); err != nil {
		t.Fatalf("Put internal: %v", err)
	}

	namespaces, err := s.ListNamespaces(ctx)
	if err != nil {
		t.Fatalf("ListNamespaces: %v", err)
	}
	want := []string{"myapp", "other"}
	if len(namespaces) != len(want) {
		t.Fatalf("ListNamespaces = %v, want %v", namespaces, want)
	}
	for i := range want {
		if namespaces[i] != want[i] {
			t.Fatalf("ListNamespaces[%d] = %q, want %q", i, namespaces[i], want[i])
		}
	}
}

func TestBulkGetSkipsMissingKeys(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if err := s.Set(ctx, "myapp", "present", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	entries, err := s.BulkGet(ctx, "myapp", []string{"present", "absent"})
	if err != nil {
		t.Fatalf("BulkGet: %v", err)
	}
	if len(entries) != 1 || entries[0].Key != "present" {
		t.Fatalf("BulkGet = %+v, want exactly one entry for 'present'", entries)
	}
}

func TestBulkSetReturnsCountWritten(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	count, err := s.BulkSet(ctx, "myapp", []Entry{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}})
	if err != nil {
		t.Fatalf("BulkSet: %v", err)
	}
	if count != 2 {
		t.Fatalf("BulkSet count = %d, want 2", count)
	}
}

func TestInternalNamespacesAreRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if err := s.Set(ctx, "__PRINCIPAL", "forged", `{"namespace":"evil"}`); err == nil {
		t.Fatal("expected Set to reject an internal namespace")
	}
	if _, _, err := s.Get(ctx, "__PRINCIPAL", "forged"); err == nil {
		t.Fatal("expected Get to reject an internal namespace")
	}
	if err := s.Delete(ctx, "__PRINCIPAL", "forged"); err == nil {
		t.Fatal("expected Delete to reject an internal namespace")
	}
	if _, err := s.ListKeys(ctx, "__PRINCIPAL"); err == nil {
		t.Fatal("expected ListKeys to reject an internal namespace")
	}
	if _, err := s.BulkGet(ctx, "__PRINCIPAL", []string{"forged"}); err == nil {
		t.Fatal("expected BulkGet to reject an internal namespace")
	}
	if _, err := s.BulkSet(ctx, "__PRINCIPAL", []Entry{{Key: "forged", Value: "v"}}); err == nil {
		t.Fatal("expected BulkSet to reject an internal namespace")
	}
}

func TestDumpExcludesInternalPrefixes(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if err := s.Set(ctx, "myapp", "a", "1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := s.store.Put(ctx, "__PRINCIPAL:abc", "{}"); err != nil {
		t.Fatalf("Put internal: %v", err)
	}

	dump, err := s.Dump(ctx)
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if len(dump) != 1 || dump[0].Namespace != "myapp" {
		t.Fatalf("Dump = %+v, want one namespace 'myapp'", dump)
	}
	if len(dump[0].Entries) != 1 || dump[0].Entries[0].Key != "a" {
		t.Fatalf("Dump entries = %+v", dump[0].Entries)
	}
}
