package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/auth"
	"github.com/NVIDIA/storegate/blob"
	"github.com/NVIDIA/storegate/cmn"
)

func (d *Daemon) handleBlob(w http.ResponseWriter, r *http.Request) {
	op := strings.TrimPrefix(r.URL.Path, cmn.RouteBlob)
	ctx := r.Context()

	ident, err := d.classify(r, false, false)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := auth.RequirePrincipal(ident); err != nil {
		writeError(w, err)
		return
	}

	switch op {
	case "upload":
		namespace := r.Header.Get("X-Namespace")
		key := r.Header.Get("X-Key")
		visibility := r.Header.Get("X-Visibility")
		contentType := r.Header.Get(cmn.HeaderContentType)
		size := r.ContentLength
		meta, err := d.blobSvc.Upload(ctx, namespace, key, contentType, visibility, false, r.Body, size)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"metadata": meta})

	case "presign-upload":
		var body struct {
			Namespace   string `json:"namespace"`
			Key         string `json:"key"`
			ContentType string `json:"content_type"`
			Size        int64  `json:"size"`
			Visibility  string `json:"visibility"`
			IsPublic    bool   `json:"isPublic"`
		}
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		result, err := d.blobSvc.PresignUpload(ctx, body.Namespace, body.Key, body.ContentType, body.Size, body.Visibility, body.IsPublic)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case "get":
		var body struct{ Namespace, Key string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		result, err := d.blobSvc.Get(ctx, body.Namespace, body.Key)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, result)

	case "visibility":
		var body struct{ Namespace, Key, Visibility string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		meta, err := d.blobSvc.SetVisibility(ctx, body.Namespace, body.Key, body.Visibility)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, meta)

	case "delete":
		var body struct{ Namespace, Key string }
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
		if err := d.blobSvc.Delete(ctx, body.Namespace, body.Key); err != nil {
			writeError(w, err)
			return
		}
		writeNoContent(w)

	case "list":
		var body struct{ Namespace string }
		_ = decodeJSON(r, &body)
		list, err := d.blobSvc.List(ctx, body.Namespace)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		writeError(w, cmn.Errorf(cmn.NotFound, "unknown blob route %q", op))
	}
}

// handleBlobPresignedPut serves PUT /blob/presigned-put?token=...: the
// self-hosted presign completion route. The body must be exactly
// content-length bytes, matching the size signed at issuance.
func (d *Daemon) handleBlobPresignedPut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeError(w, cmn.Errorf(cmn.BadRequest, "presigned-put requires PUT"))
		return
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, cmn.Errorf(cmn.BadRequest, "missing token"))
		return
	}
	if err := d.blobSvc.CompletePresignedUpload(r.Context(), token, r.Body, r.ContentLength); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}

// handleBlobPublicDownload serves GET /blob/f/<alias>/<key>.
func (d *Daemon) handleBlobPublicDownload(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/blob/f/")
	alias, key, ok := splitFirstSlash(rest)
	if !ok {
		writeError(w, cmn.Errorf(cmn.NotFound, "malformed public download path"))
		return
	}
	ctx := r.Context()

	namespace, found, err := d.blobSvc.ResolveAlias(ctx, alias)
	if err != nil {
		writeError(w, err)
		return
	}
	if !found {
		writeError(w, cmn.Errorf(cmn.NotFound, "unknown alias %q", alias))
		return
	}

	meta, obj, rng, err := d.openForDownload(ctx, namespace, key, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Body.Close()

	switch meta.Visibility {
	case blob.VisibilityPublic:
		w.Header().Set(cmn.HeaderCacheControl, "public, max-age=31536000, immutable")
	case blob.VisibilityPresigned:
		sig := r.URL.Query().Get("sig")
		if sig == "" {
			writeError(w, cmn.Errorf(cmn.AuthMalformed, "missing sig parameter"))
			return
		}
		exp, err := presignExp(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if err := d.blobSvc.Signer().VerifyDownloadURL(alias, key, sig, exp); err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set(cmn.HeaderCacheControl, "private, no-store")
	default:
		writeError(w, cmn.Errorf(cmn.AuthUnknown, "blob is not publicly downloadable"))
		return
	}

	streamBlob(w, r, meta.ContentType, meta.Size, obj, rng)
}

// handleBlobAuthenticatedDownload serves GET /blob/download/<ns-or-alias>/<key>.
func (d *Daemon) handleBlobAuthenticatedDownload(w http.ResponseWriter, r *http.Request) {
	ident, err := d.classify(r, false, false)
	if err != nil {
		writeError(w, err)
		return
	}
	if _, err := auth.RequirePrincipal(ident); err != nil {
		writeError(w, err)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/blob/download/")
	namespace, key, ok := splitFirstSlash(rest)
	if !ok {
		writeError(w, cmn.Errorf(cmn.NotFound, "malformed download path"))
		return
	}

	meta, obj, rng, err := d.openForDownload(r.Context(), namespace, key, r)
	if err != nil {
		writeError(w, err)
		return
	}
	defer obj.Body.Close()
	w.Header().Set(cmn.HeaderCacheControl, "private, no-store")
	streamBlob(w, r, meta.ContentType, meta.Size, obj, rng)
}

// openForDownload resolves metadata and bytes for namespace:key,
// parsing any Range header into the byte range the blob store should
// serve.
func (d *Daemon) openForDownload(ctx context.Context, namespace, key string, r *http.Request) (*blob.Metadata, *adapter.BlobObject, *adapter.ByteRange, error) {
	var rng *adapter.ByteRange
	if header := r.Header.Get(cmn.HeaderRange); header != "" {
		parsed, err := parseRange(header)
		if err != nil {
			return nil, nil, nil, err
		}
		rng = parsed
	}
	meta, obj, err := d.blobSvc.Open(ctx, namespace, key, rng)
	if err != nil {
		return nil, nil, nil, err
	}
	return meta, obj, rng, nil
}

// parseRange parses a single-range "bytes=a-b", "bytes=a-", or
// "bytes=-s" header into an adapter.ByteRange; length is resolved
// against the object size by the caller when rendering Content-Range.
func parseRange(header string) (*adapter.ByteRange, error) {
	const prefix = "bytes="
	if !strings.HasPrefix(header, prefix) {
		return nil, cmn.Errorf(cmn.BadRequest, "unsupported range unit")
	}
	spec := strings.TrimPrefix(header, prefix)
	if strings.Contains(spec, ",") {
		return nil, cmn.Errorf(cmn.BadRequest, "multi-range requests are not supported")
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return nil, cmn.Errorf(cmn.BadRequest, "malformed range header")
	}
	if parts[0] == "" {
		suffix, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || suffix <= 0 {
			return nil, cmn.Errorf(cmn.BadRequest, "malformed range header")
		}
		return &adapter.ByteRange{Offset: -suffix, Length: -1}, nil
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || start < 0 {
		return nil, cmn.Errorf(cmn.BadRequest, "malformed range header")
	}
	if parts[1] == "" {
		return &adapter.ByteRange{Offset: start, Length: -1}, nil
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return nil, cmn.Errorf(cmn.BadRequest, "malformed range header")
	}
	return &adapter.ByteRange{Offset: start, Length: end - start + 1}, nil
}

// streamBlob writes obj's bytes to w, setting status 206 and
// Content-Range when rng was requested, 200 otherwise, and choosing
// inline vs. attachment disposition from contentType.
func streamBlob(w http.ResponseWriter, r *http.Request, contentType string, size int64, obj *adapter.BlobObject, rng *adapter.ByteRange) {
	w.Header().Set(cmn.HeaderContentType, contentType)
	w.Header().Set(cmn.HeaderAcceptRanges, "bytes")
	disposition := "attachment"
	if blob.InlineContentType(contentType) {
		disposition = "inline"
	}
	w.Header().Set("Content-Disposition", disposition)

	if rng == nil {
		w.Header().Set(cmn.HeaderContentLength, strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		io.Copy(w, obj.Body)
		return
	}

	// start's bounds were already validated by blob.Service.Open (which
	// translates adapter.ErrInvalidRange to a 400 before this runs); only
	// the negative-offset-to-absolute resolution is still needed here,
	// to render Content-Range.
	start := rng.Offset
	if start < 0 {
		start = size + start
	}
	end := start + obj.Size - 1
	w.Header().Set(cmn.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set(cmn.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	w.WriteHeader(http.StatusPartialContent)
	io.Copy(w, obj.Body)
}

// splitFirstSlash splits "a/b/c" into ("a", "b/c").
func splitFirstSlash(path string) (first, rest string, ok bool) {
	idx := strings.IndexByte(path, '/')
	if idx < 0 {
		return "", "", false
	}
	return path[:idx], path[idx+1:], true
}

func presignExp(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("exp")
	if raw == "" {
		return 0, cmn.Errorf(cmn.BadRequest, "missing exp parameter")
	}
	exp, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, cmn.Errorf(cmn.BadRequest, "malformed exp parameter")
	}
	return exp, nil
}
