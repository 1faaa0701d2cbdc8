// Package crypto implements the gateway's cryptographic primitives:
// SHA-256 hashing, constant-time HMAC-SHA-256 sign/verify, secure random
// secret generation, and the base62/base64url codecs used by short IDs
// and token envelopes respectively.
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns hex(sha256(data)), used for the principal secret
// lookup key ( "API-key lookup is by hex(sha256(presented_secret))").
func SHA256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
