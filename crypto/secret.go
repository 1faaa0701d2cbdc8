package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

// NewSecretHex returns n cryptographically random bytes rendered as hex,
// used for principal secrets (32 bytes -> 64 hex chars) and for the
// process-wide HMAC signing secret and per-channel secrets (32 bytes).
func NewSecretHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// broken, which is unrecoverable; propagating a zero-value
		// secret would be silently insecure, so fail loudly instead.
		panic("crypto: failed to read random bytes: " + err.Error())
	}
	return hex.EncodeToString(b)
}

// DeriveSecret expands a root key into a 32-byte sub-secret scoped to
// info, using HKDF-SHA256. The daemon uses it to derive the presign
// signing key from the process signing secret. Channel secrets are not
// derived through it; each channel gets a fresh random secret.
func DeriveSecret(rootKeyHex, info string) ([]byte, error) {
	root, err := hex.DecodeString(rootKeyHex)
	if err != nil {
		return nil, err
	}
	r := hkdf.New(sha256.New, root, nil, []byte(info))
	out := make([]byte, 32)
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
