package edge

import (
	"context"
	"errors"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/NVIDIA/storegate/adapter"
)

// GCSBlob implements adapter.Blob against one Google Cloud Storage
// bucket.
type GCSBlob struct {
	client *storage.Client
	bucket string
}

func NewGCSBlob(ctx context.Context, bucket string) (*GCSBlob, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &GCSBlob{client: client, bucket: bucket}, nil
}

func (g *GCSBlob) obj(key string) *storage.ObjectHandle {
	return g.client.Bucket(g.bucket).Object(key)
}

func (g *GCSBlob) Get(ctx context.Context, key string, rng *adapter.ByteRange) (*adapter.BlobObject, bool, error) {
	var r *storage.Reader
	var err error
	if rng == nil {
		r, err = g.obj(key).NewReader(ctx)
	} else {
		r, err = g.obj(key).NewRangeReader(ctx, rng.Offset, rng.Length)
	}
	if err == storage.ErrObjectNotExist {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &adapter.BlobObject{Body: r, Size: r.Attrs.Size}, true, nil
}

func (g *GCSBlob) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	w := g.obj(key).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, body); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (g *GCSBlob) Delete(ctx context.Context, key string) error {
	err := g.obj(key).Delete(ctx)
	if err == storage.ErrObjectNotExist {
		return nil
	}
	return err
}

func (g *GCSBlob) Exists(ctx context.Context, key string) (bool, error) {
	_, err := g.obj(key).Attrs(ctx)
	if err == storage.ErrObjectNotExist {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (g *GCSBlob) List(ctx context.Context, prefix, cursor string) ([]string, string, error) {
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, "", err
		}
		if cursor == "" || attrs.Name > cursor {
			keys = append(keys, attrs.Name)
		}
	}
	return keys, "", nil
}

// PresignGet mints a V4 signed GET URL valid for expiresIn.
func (g *GCSBlob) PresignGet(key string, expiresIn time.Duration, serviceAccountJSON []byte) (string, error) {
	return storage.SignedURL(g.bucket, key, &storage.SignedURLOptions{
		Method:         "GET",
		Expires:        time.Now().Add(expiresIn),
		GoogleAccessID: "",
		PrivateKey:     serviceAccountJSON,
		Scheme:         storage.SigningSchemeV4,
	})
}

// PresignPut mints a V4 signed PUT URL valid for expiresIn.
func (g *GCSBlob) PresignPut(key, contentType string, expiresIn time.Duration, serviceAccountJSON []byte) (string, error) {
	return storage.SignedURL(g.bucket, key, &storage.SignedURLOptions{
		Method:         "PUT",
		ContentType:    contentType,
		Expires:        time.Now().Add(expiresIn),
		GoogleAccessID: "",
		PrivateKey:     serviceAccountJSON,
		Scheme:         storage.SigningSchemeV4,
	})
}
