package cmn

import (
	"math/rand"

	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

// base62Alphabet backs both namespace aliases and the shortid generator
// seeded below: one alphabet for every short, human-typeable identifier.
const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

var sid *shortid.Shortid

func init() {
	// worker id 1, random seed: ids only need to be unique per-process,
	// not reproducible across restarts.
	s, err := shortid.New(1, base62Alphabet, uint64(rand.Int63()))
	if err != nil {
		panic(err)
	}
	sid = s
}

// GenShortID returns a short, URI-safe, base62-alphabet identifier, used
// for namespace aliases and fallback author-ids.
func GenShortID() string {
	id, err := sid.Generate()
	if err != nil {
		// shortid only errors when the internal worker/tick space is
		// exhausted, which cannot happen at our volumes; fall back to a
		// pure-random base62 string of the same rough length.
		return randBase62(9)
	}
	return id
}

// GenAuthorID returns 4 base62 characters.
func GenAuthorID() string { return randBase62(4) }

func randBase62(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = base62Alphabet[rand.Intn(len(base62Alphabet))]
	}
	return string(b)
}

// GenUUID returns a new random (v4) UUID, used for channel-ids and
// event-ids.
func GenUUID() string { return uuid.NewString() }

// ParseUUID validates s is a well-formed UUID and returns its canonical
// 16-byte form, used by the capability token codec.
func ParseUUID(s string) ([16]byte, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}, err
	}
	return [16]byte(u), nil
}

// UUIDFromBytes renders a 16-byte array back to its canonical string form.
func UUIDFromBytes(b [16]byte) string {
	return uuid.UUID(b).String()
}
