// Package presign implements the gateway's own HMAC-signed presigned
// URL scheme, used by the blob service for every adapter: a token carrying
// {bucket-or-path, key, content-type, content-length, expires-at, op}
// plus a MAC over those fields, verified on the PUT/GET path rather
// than delegated to a cloud provider.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package presign

import (
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/NVIDIA/storegate/cmn"
	"github.com/NVIDIA/storegate/crypto"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Op distinguishes a PUT-presign from a GET-presign; a token minted for
// one must not authorize the other.
type Op string

const (
	OpPut Op = "put"
	OpGet Op = "get"
)

// Claims is the signed payload carried by a presigned URL token.
type Claims struct {
	Namespace     string `json:"ns"`
	Key           string `json:"key"`
	ContentType   string `json:"content_type"`
	ContentLength int64  `json:"content_length"`
	ExpiresAt     int64  `json:"expires_at"`
	Op            Op     `json:"op"`
}

// Signer mints and verifies presign tokens under one process-wide
// signing secret.
type Signer struct {
	secret []byte
}

func NewSigner(secret []byte) *Signer { return &Signer{secret: secret} }

// Issue builds a token authorizing op on namespace:key, expiring after
// ttl. For a PUT, contentLength pins the exact byte count the upload
// must match.
func (s *Signer) Issue(namespace, key, contentType string, contentLength int64, op Op, ttl time.Duration) (token string, expiresAt time.Time, err error) {
	expiresAt = time.Now().Add(ttl)
	claims := Claims{
		Namespace:     namespace,
		Key:           key,
		ContentType:   contentType,
		ContentLength: contentLength,
		ExpiresAt:     expiresAt.Unix(),
		Op:            op,
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	mac := crypto.HMACSHA256(s.secret, payload)
	encoded := crypto.Base64URLEncode(payload)
	sig := crypto.Base64URLEncode(mac[:])
	return encoded + "." + sig, expiresAt, nil
}

// Verify decodes and checks token against op and, for PUT, the exact
// content length observed on the wire.
func (s *Signer) Verify(token string, op Op, observedContentLength int64) (*Claims, error) {
	claims, err := s.verify(token)
	if err != nil {
		return nil, err
	}
	if claims.Op != op {
		return nil, cmn.Errorf(cmn.TokenInvalid, "presign token issued for op %q, used for %q", claims.Op, op)
	}
	if op == OpPut && claims.ContentLength != observedContentLength {
		return nil, cmn.Errorf(cmn.BadRequest, "content-length %d does not match signed size %d", observedContentLength, claims.ContentLength)
	}
	return claims, nil
}

func (s *Signer) verify(token string) (*Claims, error) {
	encoded, sig, ok := splitToken(token)
	if !ok {
		return nil, cmn.Errorf(cmn.TokenInvalid, "malformed presign token")
	}
	payload, err := crypto.Base64URLDecode(encoded)
	if err != nil {
		return nil, cmn.Errorf(cmn.TokenInvalid, "malformed presign token payload")
	}
	gotMAC, err := crypto.Base64URLDecode(sig)
	if err != nil {
		return nil, cmn.Errorf(cmn.TokenInvalid, "malformed presign token signature")
	}
	wantMAC := crypto.HMACSHA256(s.secret, payload)
	if !crypto.ConstantTimeCompare(gotMAC, wantMAC[:]) {
		return nil, cmn.Errorf(cmn.TokenInvalid, "presign token signature mismatch")
	}
	claims := &Claims{}
	if err := json.Unmarshal(payload, claims); err != nil {
		return nil, cmn.Errorf(cmn.TokenInvalid, "malformed presign token payload")
	}
	if time.Now().Unix() > claims.ExpiresAt {
		return nil, cmn.Errorf(cmn.TokenExpired, "presign token expired")
	}
	return claims, nil
}

func splitToken(token string) (payload, sig string, ok bool) {
	for i := len(token) - 1; i >= 0; i-- {
		if token[i] == '.' {
			return token[:i], token[i+1:], true
		}
	}
	return "", "", false
}

// SignDownloadURL builds the query-string signature for the
// presigned-visibility public download form: sig = base64url(HMAC-SHA256(
// alias|key|exp, signing-secret)), verified against the alias form so
// re-aliasing a namespace never invalidates an already-issued link.
func (s *Signer) SignDownloadURL(alias, key string, expiresAt time.Time) (sig string, expUnix int64) {
	expUnix = expiresAt.Unix()
	mac := crypto.HMACSHA256(s.secret, []byte(alias+"|"+key+"|"+strconv.FormatInt(expUnix, 10)))
	return crypto.Base64URLEncode(mac[:]), expUnix
}

// VerifyDownloadURL checks a query-supplied sig/exp pair for the
// presigned-visibility public download route.
func (s *Signer) VerifyDownloadURL(alias, key, sig string, expUnix int64) error {
	if time.Now().Unix() > expUnix {
		return cmn.Errorf(cmn.TokenExpired, "download link expired")
	}
	gotMAC, err := crypto.Base64URLDecode(sig)
	if err != nil {
		return cmn.Errorf(cmn.BadRequest, "malformed download signature")
	}
	wantMAC := crypto.HMACSHA256(s.secret, []byte(alias+"|"+key+"|"+strconv.FormatInt(expUnix, 10)))
	if !crypto.ConstantTimeCompare(gotMAC, wantMAC[:]) {
		return cmn.Errorf(cmn.BadRequest, "invalid download signature")
	}
	return nil
}

// ParseExp parses the exp query parameter used by download-URL
// verification.
func ParseExp(values url.Values) (int64, error) {
	raw := values.Get("exp")
	if raw == "" {
		return 0, cmn.Errorf(cmn.BadRequest, "missing exp parameter")
	}
	exp, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, cmn.Errorf(cmn.BadRequest, "malformed exp parameter")
	}
	return exp, nil
}
