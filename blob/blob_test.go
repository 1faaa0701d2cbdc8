package blob

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/adapter/local"
	"github.com/NVIDIA/storegate/presign"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := local.OpenDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store, err := local.NewBlobStore(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("NewBlobStore: %v", err)
	}
	signer := presign.NewSigner([]byte("test-signing-secret"))
	return NewService(local.NewKVStore(db), store, signer, time.Hour, 7*24*time.Hour, "example.test")
}

func TestUploadRejectsZeroBytes(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)
	if _, err := s.Upload(ctx, "myapp", "img.png", "image/png", "public", false, strings.NewReader(""), 0); err == nil {
		t.Fatal("expected error uploading 0 bytes")
	}
}

func TestUploadThenGetPublicVisibility(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	body := "hello world"
	if _, err := s.Upload(ctx, "myapp", "img.png", "image/png", "public", false, strings.NewReader(body), int64(len(body))); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	result, err := s.Get(ctx, "myapp", "img.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if result.Metadata.Visibility != VisibilityPublic {
		t.Fatalf("visibility = %q, want public", result.Metadata.Visibility)
	}
	if result.ExpiresAt != nil {
		t.Fatal("public download must carry no expiresAt")
	}
	if !strings.HasPrefix(result.URL, "/blob/f/") {
		t.Fatalf("public url = %q, want /blob/f/ prefix", result.URL)
	}
}

func TestPresignUploadSizeMismatchRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	presigned, err := s.PresignUpload(ctx, "myapp", "big.bin", "application/octet-stream", 10, "private", false)
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	token := strings.TrimPrefix(presigned.UploadURL, "/blob/presigned-put?token=")

	body := strings.Repeat("x", 28)
	if err := s.CompletePresignedUpload(ctx, token, strings.NewReader(body), int64(len(body))); err == nil {
		t.Fatal("expected error on content-length mismatch")
	}
}

func TestPresignUploadThenCompleteAndGet(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	body := "0123456789"
	presigned, err := s.PresignUpload(ctx, "myapp", "ten.bin", "application/octet-stream", int64(len(body)), "public", false)
	if err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	token := strings.TrimPrefix(presigned.UploadURL, "/blob/presigned-put?token=")

	if err := s.CompletePresignedUpload(ctx, token, strings.NewReader(body), int64(len(body))); err != nil {
		t.Fatalf("CompletePresignedUpload: %v", err)
	}

	result, err := s.Get(ctx, "myapp", "ten.bin")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if result.Metadata.Size != int64(len(body)) {
		t.Fatalf("Size = %d, want %d", result.Metadata.Size, len(body))
	}
}

func TestGetOrphanedPresignReturnsNotFound(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if _, err := s.PresignUpload(ctx, "myapp", "never-uploaded.bin", "application/octet-stream", 5, "private", false); err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}

	if _, err := s.Get(ctx, "myapp", "never-uploaded.bin"); err == nil {
		t.Fatal("expected NotFound for orphaned metadata with no bytes uploaded")
	}
}

func TestDeleteRemovesMetadataAndBytes(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if _, err := s.Upload(ctx, "myapp", "x.bin", "application/octet-stream", "private", false, strings.NewReader("data"), 4); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if err := s.Delete(ctx, "myapp", "x.bin"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "myapp", "x.bin"); err == nil {
		t.Fatal("expected NotFound after delete")
	}
}

func TestOpenRangedRead(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if _, err := s.Upload(ctx, "myapp", "range.bin", "application/octet-stream", "private", false, strings.NewReader("0123456789"), 10); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	_, obj, err := s.Open(ctx, "myapp", "range.bin", nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer obj.Body.Close()
	full, _ := io.ReadAll(obj.Body)
	if string(full) != "0123456789" {
		t.Fatalf("full body = %q", full)
	}

	_, ranged, err := s.Open(ctx, "myapp", "range.bin", &adapter.ByteRange{Offset: 3, Length: 4})
	if err != nil {
		t.Fatalf("Open ranged: %v", err)
	}
	defer ranged.Body.Close()
	part, _ := io.ReadAll(ranged.Body)
	if string(part) != "3456" {
		t.Fatalf("ranged body = %q, want %q", part, "3456")
	}
}

func TestCompactRemovesOrphanedMetadataAndReportsOrphanedBytes(t *testing.T) {
	ctx := context.Background()
	s := newTestService(t)

	if _, err := s.Upload(ctx, "myapp", "kept.bin", "application/octet-stream", "private", false, strings.NewReader("data"), 4); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if _, err := s.PresignUpload(ctx, "myapp", "orphan-meta.bin", "application/octet-stream", 5, "private", false); err != nil {
		t.Fatalf("PresignUpload: %v", err)
	}
	if err := s.store.Put(ctx, "myapp:orphan-bytes.bin", strings.NewReader("stray"), "application/octet-stream"); err != nil {
		t.Fatalf("store.Put: %v", err)
	}

	report, err := s.Compact(ctx)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(report.OrphanedMetadata) != 1 || report.OrphanedMetadata[0] != "myapp:orphan-meta.bin" {
		t.Fatalf("OrphanedMetadata = %v, want [myapp:orphan-meta.bin]", report.OrphanedMetadata)
	}
	if len(report.OrphanedBytes) != 1 || report.OrphanedBytes[0] != "myapp:orphan-bytes.bin" {
		t.Fatalf("OrphanedBytes = %v, want [myapp:orphan-bytes.bin]", report.OrphanedBytes)
	}

	if _, err := s.Get(ctx, "myapp", "orphan-meta.bin"); err == nil {
		t.Fatal("expected orphaned metadata to be deleted by Compact")
	}
	if _, err := s.Get(ctx, "myapp", "kept.bin"); err != nil {
		t.Fatalf("Compact must not disturb healthy blobs: %v", err)
	}

	report2, err := s.Compact(ctx)
	if err != nil {
		t.Fatalf("second Compact: %v", err)
	}
	if len(report2.OrphanedMetadata) != 0 {
		t.Fatalf("second pass OrphanedMetadata = %v, want none", report2.OrphanedMetadata)
	}
}

func TestInlineContentType(t *testing.T) {
	cases := map[string]bool{
		"image/png":       true,
		"video/mp4":       true,
		"text/plain":      true,
		"application/pdf": true,
		"application/json": true,
		"application/zip": false,
		"application/octet-stream": false,
	}
	for ct, want := range cases {
		if got := InlineContentType(ct); got != want {
			t.Errorf("InlineContentType(%q) = %v, want %v", ct, got, want)
		}
	}
}
