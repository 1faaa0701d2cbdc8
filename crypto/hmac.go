package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
)

// HMACSHA256 computes HMAC-SHA-256(data, key) in full (32 bytes). Callers
// that need a truncated MAC (the capability token's 16-byte MAC)
// slice the result themselves so the full-length digest stays available
// wherever a caller wants it.
func HMACSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

// ConstantTimeCompare reports whether a and b are byte-for-byte equal,
// comparing their full length unconditionally so that a mismatch at
// byte 0 takes exactly as long to detect as a mismatch at the last byte.
func ConstantTimeCompare(a, b []byte) bool {
	if len(a) != len(b) {
		// Still run a constant-time comparison against a same-length
		// buffer so callers cannot distinguish a length mismatch from a
		// content mismatch by timing; the overall verify path further
		// up (captoken.Verify) already rejects unexpected lengths before
		// this is reached, so this branch exists only to keep the
		// function total for any byte slices.
		return subtle.ConstantTimeCompare(a, a) == 1 && len(a) == 0 && len(b) == 0
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
