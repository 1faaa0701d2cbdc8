package local

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NVIDIA/storegate/adapter"
)

func newTestBlobStore(t *testing.T) *BlobStore {
	t.Helper()
	store, err := NewBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}
	return store
}

func TestBlobStorePutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestBlobStore(t)

	if err := store.Put(ctx, "myapp:foo.bin", strings.NewReader("hello"), "application/octet-stream"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	obj, found, err := store.Get(ctx, "myapp:foo.bin", nil)
	if err != nil || !found {
		t.Fatalf("Get: found=%v err=%v", found, err)
	}
	defer obj.Body.Close()
	if obj.Size != 5 {
		t.Fatalf("Size = %d, want 5", obj.Size)
	}

	if err := store.Delete(ctx, "myapp:foo.bin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, found, _ := store.Get(ctx, "myapp:foo.bin", nil); found {
		t.Fatal("expected miss after delete")
	}
}

func TestBlobStoreGetRejectsOutOfBoundsRange(t *testing.T) {
	ctx := context.Background()
	store := newTestBlobStore(t)

	if err := store.Put(ctx, "myapp:foo.bin", strings.NewReader("hello"), "application/octet-stream"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, _, err := store.Get(ctx, "myapp:foo.bin", &adapter.ByteRange{Offset: 10, Length: -1}); err != adapter.ErrInvalidRange {
		t.Fatalf("Get with out-of-bounds offset: err=%v, want ErrInvalidRange", err)
	}
}

// TestBlobStoreListExcludesInFlightTempFiles proves that a temp file
// left behind by an interrupted Put (named "<base>.tmp.<random>", per
// os.CreateTemp's pattern) never shows up in List, even though it
// doesn't end in the bare ".tmp" suffix.
func TestBlobStoreListExcludesInFlightTempFiles(t *testing.T) {
	ctx := context.Background()
	store := newTestBlobStore(t)

	if err := store.Put(ctx, "myapp:real.bin", strings.NewReader("hello"), "application/octet-stream"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tmpPath := filepath.Join(store.root, "myapp", "abandoned.bin.tmp.123456")
	if err := os.MkdirAll(filepath.Dir(tmpPath), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(tmpPath, []byte("partial"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	keys, _, err := store.List(ctx, "", "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(keys) != 1 || keys[0] != "myapp:real.bin" {
		t.Fatalf("List = %v, want only [myapp:real.bin]", keys)
	}
}
