package crypto

import "encoding/base64"

// Base64URLEncode/Decode implement the no-padding base64url transport
// encoding used for capability token envelopes and presigned-URL
// signatures.
func Base64URLEncode(b []byte) string { return base64.RawURLEncoding.EncodeToString(b) }

func Base64URLDecode(s string) ([]byte, error) { return base64.RawURLEncoding.DecodeString(s) }
