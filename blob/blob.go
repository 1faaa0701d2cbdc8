// Package blob implements the content-addressed blob service: direct
// and presigned upload, visibility-aware download, range reads, and
// namespace alias resolution, over an adapter.Blob plus adapter.KV for
// metadata.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package blob

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/sync/singleflight"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/cmn"
	"github.com/NVIDIA/storegate/presign"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Visibility controls who may download a blob and by what route.
type Visibility string

const (
	VisibilityPrivate   Visibility = "private"
	VisibilityPresigned Visibility = "presigned"
	VisibilityPublic    Visibility = "public"
)

// normalizeVisibility folds the legacy boolean isPublic flag (still
// accepted on inbound requests) into the three-state form.
func normalizeVisibility(raw string, legacyIsPublic bool) Visibility {
	switch Visibility(raw) {
	case VisibilityPrivate, VisibilityPresigned, VisibilityPublic:
		return Visibility(raw)
	}
	if legacyIsPublic {
		return VisibilityPublic
	}
	return VisibilityPrivate
}

// Metadata is what's persisted at __BLOB:<namespace>:<key>.
type Metadata struct {
	Namespace   string     `json:"namespace"`
	Key         string     `json:"key"`
	ContentType string     `json:"content_type"`
	Size        int64      `json:"size"`
	Visibility  Visibility `json:"visibility"`
	CreatedAt   int64      `json:"created_at"`
}

// Service implements the blob routes.
type Service struct {
	kv      adapter.KV
	store   adapter.Blob
	signer  *presign.Signer
	nsGroup singleflight.Group

	presignExpiresIn time.Duration
	publicPresignTTL time.Duration
	publicDomain     string
}

func NewService(kv adapter.KV, store adapter.Blob, signer *presign.Signer, presignExpiresIn, publicPresignTTL time.Duration, publicDomain string) *Service {
	return &Service{
		kv:               kv,
		store:            store,
		signer:           signer,
		presignExpiresIn: presignExpiresIn,
		publicPresignTTL: publicPresignTTL,
		publicDomain:     publicDomain,
	}
}

// Signer exposes the service's presign signer for routes that verify
// download-URL signatures directly (the public download handler).
func (s *Service) Signer() *presign.Signer { return s.signer }

func (s *Service) metaGet(ctx context.Context, namespace, key string) (*Metadata, bool, error) {
	raw, found, err := s.kv.Get(ctx, cmn.BlobMetaKey(namespace, key))
	if err != nil || !found {
		return nil, found, err
	}
	meta := &Metadata{}
	if err := json.Unmarshal([]byte(raw), meta); err != nil {
		return nil, false, err
	}
	return meta, true, nil
}

func (s *Service) metaPut(ctx context.Context, meta *Metadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return s.kv.Put(ctx, cmn.BlobMetaKey(meta.Namespace, meta.Key), string(raw))
}

// EnsureAlias resolves namespace to its durable public alias, minting
// one on first use. Concurrent first-use calls for the same namespace
// are deduplicated via singleflight so only one alias is ever written.
func (s *Service) EnsureAlias(ctx context.Context, namespace string) (string, error) {
	raw, found, err := s.kv.Get(ctx, cmn.NSFullKey(namespace))
	if err != nil {
		return "", err
	}
	if found {
		return raw, nil
	}
	alias, err, _ := s.nsGroup.Do(namespace, func() (interface{}, error) {
		raw, found, err := s.kv.Get(ctx, cmn.NSFullKey(namespace))
		if err != nil {
			return "", err
		}
		if found {
			return raw, nil
		}
		alias := cmn.GenShortID() + "-" + namespace
		if err := s.kv.Put(ctx, cmn.NSFullKey(namespace), alias); err != nil {
			return "", err
		}
		if err := s.kv.Put(ctx, cmn.NSAliasKey(alias), namespace); err != nil {
			return "", err
		}
		return alias, nil
	})
	if err != nil {
		return "", err
	}
	return alias.(string), nil
}

// ResolveAlias maps a public alias back to its namespace.
func (s *Service) ResolveAlias(ctx context.Context, alias string) (string, bool, error) {
	return s.kv.Get(ctx, cmn.NSAliasKey(alias))
}

// Upload stores body directly under namespace:key, then writes
// metadata and ensures a namespace alias exists.
func (s *Service) Upload(ctx context.Context, namespace, key, contentType string, visibilityRaw string, legacyIsPublic bool, body io.Reader, size int64) (*Metadata, error) {
	if size <= 0 {
		return nil, cmn.Errorf(cmn.BadRequest, "upload body must be non-empty")
	}
	if err := s.store.Put(ctx, cmn.BlobBytesKey(namespace, key), body, contentType); err != nil {
		return nil, err
	}
	meta := &Metadata{
		Namespace:   namespace,
		Key:         key,
		ContentType: contentType,
		Size:        size,
		Visibility:  normalizeVisibility(visibilityRaw, legacyIsPublic),
		CreatedAt:   time.Now().Unix(),
	}
	if err := s.metaPut(ctx, meta); err != nil {
		return nil, err
	}
	if _, err := s.EnsureAlias(ctx, namespace); err != nil {
		return nil, err
	}
	return meta, nil
}

// PresignUploadResult is the response to a presign-upload request.
type PresignUploadResult struct {
	UploadURL string    `json:"uploadUrl"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// PresignUpload pre-writes metadata (so visibility is resolvable even
// if the client never uploads) and issues a PUT token valid for
// presignExpiresIn, or for publicPresignTTL when the visibility is
// public.
func (s *Service) PresignUpload(ctx context.Context, namespace, key, contentType string, size int64, visibilityRaw string, legacyIsPublic bool) (*PresignUploadResult, error) {
	meta := &Metadata{
		Namespace:   namespace,
		Key:         key,
		ContentType: contentType,
		Size:        size,
		Visibility:  normalizeVisibility(visibilityRaw, legacyIsPublic),
		CreatedAt:   time.Now().Unix(),
	}
	if err := s.metaPut(ctx, meta); err != nil {
		return nil, err
	}
	if _, err := s.EnsureAlias(ctx, namespace); err != nil {
		return nil, err
	}

	ttl := s.presignExpiresIn
	if meta.Visibility == VisibilityPublic {
		ttl = s.publicPresignTTL
	}
	token, expiresAt, err := s.signer.Issue(namespace, key, contentType, size, presign.OpPut, ttl)
	if err != nil {
		return nil, err
	}
	return &PresignUploadResult{UploadURL: "/blob/presigned-put?token=" + token, ExpiresAt: expiresAt}, nil
}

// CompletePresignedUpload verifies a presign PUT token against the
// observed content length, then stores the body.
func (s *Service) CompletePresignedUpload(ctx context.Context, token string, body io.Reader, observedContentLength int64) error {
	claims, err := s.signer.Verify(token, presign.OpPut, observedContentLength)
	if err != nil {
		return err
	}
	return s.store.Put(ctx, cmn.BlobBytesKey(claims.Namespace, claims.Key), body, claims.ContentType)
}

// GetResult is the response to a blob/get request.
type GetResult struct {
	Metadata  *Metadata `json:"metadata"`
	URL       string    `json:"url"`
	ExpiresAt *int64    `json:"expiresAt,omitempty"`
}

// Get resolves namespace:key to a download URL, shaped by visibility:
// public returns a durable public route with no expiry; presigned
// returns a signed link; private returns a gateway-mediated link.
// It returns NotFound if metadata is missing or if bytes are absent
// (an orphaned presigned upload that was never completed).
func (s *Service) Get(ctx context.Context, namespace, key string) (*GetResult, error) {
	meta, found, err := s.metaGet(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, cmn.Errorf(cmn.NotFound, "blob %s:%s not found", namespace, key)
	}
	if exists, err := s.store.Exists(ctx, cmn.BlobBytesKey(namespace, key)); err != nil {
		return nil, err
	} else if !exists {
		return nil, cmn.Errorf(cmn.NotFound, "blob %s:%s bytes not uploaded", namespace, key)
	}

	switch meta.Visibility {
	case VisibilityPublic:
		alias, err := s.EnsureAlias(ctx, namespace)
		if err != nil {
			return nil, err
		}
		return &GetResult{Metadata: meta, URL: "/blob/f/" + alias + "/" + key}, nil
	case VisibilityPresigned:
		alias, err := s.EnsureAlias(ctx, namespace)
		if err != nil {
			return nil, err
		}
		expiresAt := time.Now().Add(s.presignExpiresIn)
		sig, exp := s.signer.SignDownloadURL(alias, key, expiresAt)
		url := "/blob/f/" + alias + "/" + key + "?sig=" + sig + "&exp=" + strconv.FormatInt(exp, 10)
		return &GetResult{Metadata: meta, URL: url, ExpiresAt: &exp}, nil
	default:
		return &GetResult{Metadata: meta, URL: "/blob/download/" + namespace + "/" + key}, nil
	}
}

// SetVisibility updates a blob's visibility, rejecting if it does not
// exist.
func (s *Service) SetVisibility(ctx context.Context, namespace, key, visibilityRaw string) (*Metadata, error) {
	meta, found, err := s.metaGet(ctx, namespace, key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, cmn.Errorf(cmn.NotFound, "blob %s:%s not found", namespace, key)
	}
	meta.Visibility = normalizeVisibility(visibilityRaw, false)
	if err := s.metaPut(ctx, meta); err != nil {
		return nil, err
	}
	return meta, nil
}

// Delete removes metadata first, then the bytes; metadata is the
// source of truth, so a later bytes-delete failure leaves orphaned
// bytes that are invisible to every subsequent Get/List.
func (s *Service) Delete(ctx context.Context, namespace, key string) error {
	_, found, err := s.metaGet(ctx, namespace, key)
	if err != nil {
		return err
	}
	if !found {
		return cmn.Errorf(cmn.NotFound, "blob %s:%s not found", namespace, key)
	}
	if err := s.kv.Delete(ctx, cmn.BlobMetaKey(namespace, key)); err != nil {
		return err
	}
	return s.store.Delete(ctx, cmn.BlobBytesKey(namespace, key))
}

// List returns every blob's metadata under namespace (or every blob if
// namespace is empty).
func (s *Service) List(ctx context.Context, namespace string) ([]*Metadata, error) {
	prefix := cmn.PrefixBlob
	if namespace != "" {
		prefix += namespace + ":"
	}
	keys, _, err := s.kv.List(ctx, prefix, "", 0)
	if err != nil {
		return nil, err
	}
	out := make([]*Metadata, 0, len(keys))
	for _, k := range keys {
		raw, found, err := s.kv.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		meta := &Metadata{}
		if err := json.Unmarshal([]byte(raw), meta); err != nil {
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// Open streams a blob's bytes (optionally ranged) with its metadata.
// It checks no visibility, authentication or signature: callers
// enforce those before calling Open.
func (s *Service) Open(ctx context.Context, namespace, key string, rng *adapter.ByteRange) (*Metadata, *adapter.BlobObject, error) {
	meta, found, err := s.metaGet(ctx, namespace, key)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, cmn.Errorf(cmn.NotFound, "blob %s:%s not found", namespace, key)
	}
	obj, found, err := s.store.Get(ctx, cmn.BlobBytesKey(namespace, key), rng)
	if err == adapter.ErrInvalidRange {
		return nil, nil, cmn.Wrap(cmn.BadRequest, err, "requested range not satisfiable")
	}
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, cmn.Errorf(cmn.NotFound, "blob %s:%s bytes not uploaded", namespace, key)
	}
	return meta, obj, nil
}

// CompactionReport summarizes one Compact pass.
type CompactionReport struct {
	OrphanedMetadata []string `json:"orphaned_metadata"` // metadata present, bytes missing
	OrphanedBytes    []string `json:"orphaned_bytes"`    // bytes present, metadata missing
}

// Compact reconciles metadata and bytes that have drifted apart:
// metadata left behind by a presigned upload that was never completed,
// and bytes with no metadata, such as those left behind when Delete
// removes metadata and the bytes-delete then fails, or when Upload
// stores bytes and the metadata write then fails. Orphaned metadata is
// deleted; orphaned bytes are
// only reported, since deleting them destructively assumes the caller
// has already confirmed they're unwanted.
func (s *Service) Compact(ctx context.Context) (*CompactionReport, error) {
	report := &CompactionReport{}

	metaKeys, _, err := s.kv.List(ctx, cmn.PrefixBlob, "", 0)
	if err != nil {
		return nil, err
	}
	metaByBytesKey := make(map[string]bool, len(metaKeys))
	for _, mk := range metaKeys {
		namespace, key, ok := cmn.SplitKVKey(strings.TrimPrefix(mk, cmn.PrefixBlob))
		if !ok {
			continue
		}
		bytesKey := cmn.BlobBytesKey(namespace, key)
		metaByBytesKey[bytesKey] = true

		exists, err := s.store.Exists(ctx, bytesKey)
		if err != nil {
			return nil, err
		}
		if !exists {
			report.OrphanedMetadata = append(report.OrphanedMetadata, bytesKey)
			if err := s.kv.Delete(ctx, mk); err != nil {
				return nil, err
			}
		}
	}

	byteKeys, _, err := s.store.List(ctx, "", "")
	if err != nil {
		return nil, err
	}
	for _, bk := range byteKeys {
		if !metaByBytesKey[bk] {
			report.OrphanedBytes = append(report.OrphanedBytes, bk)
		}
	}

	return report, nil
}

// InlineContentType reports whether a content-type should be served
// inline rather than as an attachment.
func InlineContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"), strings.HasPrefix(ct, "video/"), strings.HasPrefix(ct, "audio/"), strings.HasPrefix(ct, "text/"):
		return true
	case ct == "application/pdf", ct == "application/json":
		return true
	default:
		return false
	}
}
