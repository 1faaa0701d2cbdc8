package crypto

import (
	"math/big"
)

// base62Alphabet is the same [0-9A-Za-z] alphabet the gateway uses for
// short IDs and namespace aliases.
const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var base62Index = func() map[byte]int64 {
	m := make(map[byte]int64, len(base62Alphabet))
	for i := 0; i < len(base62Alphabet); i++ {
		m[base62Alphabet[i]] = int64(i)
	}
	return m
}()

// Base62Encode encodes b as a base62 string. Leading zero bytes are
// preserved as leading '0' characters (mirroring base58/base62 codecs
// used for content-addressed identifiers) so that Base62Decode can
// recover the exact original byte count for round-tripping, including the empty array and an all-zero array.
func Base62Encode(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	zeros := 0
	for zeros < len(b) && b[zeros] == 0 {
		zeros++
	}
	n := new(big.Int).SetBytes(b)
	base := big.NewInt(62)
	mod := new(big.Int)
	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, base, mod)
		out = append(out, base62Alphabet[mod.Int64()])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	prefix := make([]byte, zeros)
	for i := range prefix {
		prefix[i] = base62Alphabet[0]
	}
	return string(prefix) + string(out)
}

// Base62Decode inverts Base62Encode. Empty input decodes to an empty
// (not nil-but-zero-length-mismatched) byte slice.
func Base62Decode(s string) ([]byte, error) {
	if s == "" {
		return []byte{}, nil
	}
	zeros := 0
	for zeros < len(s) && s[zeros] == base62Alphabet[0] {
		zeros++
	}
	n := new(big.Int)
	base := big.NewInt(62)
	for i := zeros; i < len(s); i++ {
		v, ok := base62Index[s[i]]
		if !ok {
			return nil, &invalidBase62Error{s}
		}
		n.Mul(n, base)
		n.Add(n, big.NewInt(v))
	}
	body := n.Bytes()
	out := make([]byte, zeros+len(body))
	copy(out[zeros:], body)
	return out, nil
}

type invalidBase62Error struct{ s string }

func (e *invalidBase62Error) Error() string { return "crypto: invalid base62 string: " + e.s }
