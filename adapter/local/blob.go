package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"

	"github.com/NVIDIA/storegate/adapter"
)

// BlobStore stores object bytes as plain files under root, one file per
// key with ':' mapped to a path separator so namespaces become
// directories.
type BlobStore struct {
	root string
}

func NewBlobStore(root string) (*BlobStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &BlobStore{root: root}, nil
}

func (s *BlobStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(strings.ReplaceAll(key, ":", "/")))
}

func (s *BlobStore) Get(_ context.Context, key string, rng *adapter.ByteRange) (*adapter.BlobObject, bool, error) {
	p := s.path(key)
	f, err := os.Open(p)
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, false, err
	}
	size := info.Size()
	if rng == nil {
		return &adapter.BlobObject{Body: f, Size: size}, true, nil
	}
	offset := rng.Offset
	if offset < 0 {
		offset = size + offset
	}
	if offset < 0 || offset >= size {
		f.Close()
		return nil, false, adapter.ErrInvalidRange
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		f.Close()
		return nil, false, err
	}
	length := rng.Length
	if length < 0 {
		length = size - offset
	}
	return &adapter.BlobObject{Body: &limitedReadCloser{f, length}, Size: length}, true, nil
}

type limitedReadCloser struct {
	f *os.File
	n int64
}

func (l *limitedReadCloser) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.f.Read(p)
	l.n -= int64(n)
	return n, err
}

func (l *limitedReadCloser) Close() error { return l.f.Close() }

func (s *BlobStore) Put(_ context.Context, key string, body io.Reader, _ string) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), filepath.Base(p)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, p)
}

func (s *BlobStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *BlobStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// List walks root with godirwalk (faster than filepath.Walk for large
// trees since it avoids a Lstat per entry) and returns file paths
// rewritten back to ':'-separated keys, filtered by prefix.
func (s *BlobStore) List(_ context.Context, prefix, cursor string) ([]string, string, error) {
	var keys []string
	err := godirwalk.Walk(s.root, &godirwalk.Options{
		Unsorted: true,
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			if strings.Contains(filepath.Base(osPathname), ".tmp.") {
				return nil
			}
			rel, err := filepath.Rel(s.root, osPathname)
			if err != nil {
				return err
			}
			key := strings.ReplaceAll(filepath.ToSlash(rel), "/", ":")
			if strings.HasPrefix(key, prefix) {
				keys = append(keys, key)
			}
			return nil
		},
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", err
	}
	sort.Strings(keys)
	if cursor == "" {
		return keys, "", nil
	}
	idx := sort.SearchStrings(keys, cursor)
	for idx < len(keys) && keys[idx] <= cursor {
		idx++
	}
	return keys[idx:], "", nil
}
