package captoken

import (
	"encoding/binary"
	"errors"
	"math"
	"time"

	"github.com/NVIDIA/storegate/cmn"
	"github.com/NVIDIA/storegate/cmn/debug"
	"github.com/NVIDIA/storegate/crypto"
)

// Binary layout, all multi-byte integers big-endian:
//
//	[version:u8=1][channel-id:16][perm-bitmap:u16][author-len:u8][author:utf-8 (<=32)]
//	[expires-at-hours:u32][mac: first 16 bytes of HMAC-SHA-256(all preceding | channel-secret)]
const (
	Version1    = 1
	maxAuthor   = 32
	macLen      = 16
	channelLen  = 16
	headerFixed = 1 + channelLen + 2 + 1 // version + channel-id + perms + author-len
	trailerLen  = 4                      // expires-at-hours
)

var (
	ErrMalformed     = errors.New("captoken: malformed token")
	ErrUnknownVersion = errors.New("captoken: unknown token version")
	ErrAuthorTooLong = errors.New("captoken: author-id exceeds 32 UTF-8 bytes")
	ErrBadMAC        = errors.New("captoken: MAC verification failed")
	ErrExpired       = errors.New("captoken: token expired")
)

// Claims is what Verify returns on success.
type Claims struct {
	ChannelID   string
	Permissions Permissions
	AuthorID    string
	ExpiresAt   time.Time
}

// Create builds and base64url-encodes a capability token scoped to one
// channel. If authorID is empty, a 4-character base62
// author-id is generated. expiresIn may be zero or negative, in which
// case the resulting token's expires-at hour may already be in the past
// — useful for exercising expiry handling in tests.
func Create(channelID string, perms Permissions, authorID string, expiresIn time.Duration, channelSecret []byte) (string, error) {
	debug.Assert(len(channelSecret) > 0, "captoken: Create called with empty channel secret")
	chID, err := cmn.ParseUUID(channelID)
	if err != nil {
		return "", err
	}
	if authorID == "" {
		authorID = cmn.GenAuthorID()
	}
	if len(authorID) > maxAuthor {
		return "", ErrAuthorTooLong
	}

	expiresAtHours := expiresAtHour(time.Now(), expiresIn)

	buf := make([]byte, 0, headerFixed+maxAuthor+trailerLen+macLen)
	buf = append(buf, Version1)
	buf = append(buf, chID[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(perms))
	buf = append(buf, byte(len(authorID)))
	buf = append(buf, []byte(authorID)...)
	buf = binary.BigEndian.AppendUint32(buf, expiresAtHours)

	mac := crypto.HMACSHA256(channelSecret, buf)
	buf = append(buf, mac[:macLen]...)

	return crypto.Base64URLEncode(buf), nil
}

// expiresAtHour computes ceil((now+expiresIn)/3600h) expressed as whole
// hours since the Unix epoch. A non-positive expiresIn is
// permitted and simply yields an hour value that may already be <= the
// current hour.
func expiresAtHour(now time.Time, expiresIn time.Duration) uint32 {
	target := now.Add(expiresIn).Unix()
	hours := math.Ceil(float64(target) / 3600.0)
	if hours < 0 {
		hours = 0
	}
	return uint32(hours)
}

// Parse extracts only the channel-id from a token, without verifying its
// MAC, so a caller can look up the channel and retrieve
// its secret before calling Verify.
func Parse(token string) (channelID string, err error) {
	raw, err := crypto.Base64URLDecode(token)
	if err != nil {
		return "", ErrMalformed
	}
	if len(raw) < headerFixed {
		return "", ErrMalformed
	}
	if raw[0] != Version1 {
		return "", ErrUnknownVersion
	}
	var chID [16]byte
	copy(chID[:], raw[1:1+channelLen])
	return cmn.UUIDFromBytes(chID), nil
}

// Verify decodes and fully validates token against channelSecret,
// rejecting malformed encodings, unknown versions, bad MACs (checked in
// constant time/ property 5), and expired tokens.
func Verify(token string, channelSecret []byte) (*Claims, error) {
	debug.Assert(len(channelSecret) > 0, "captoken: Verify called with empty channel secret")
	raw, err := crypto.Base64URLDecode(token)
	if err != nil {
		return nil, ErrMalformed
	}
	if len(raw) < headerFixed {
		return nil, ErrMalformed
	}
	if raw[0] != Version1 {
		return nil, ErrUnknownVersion
	}

	authorLen := int(raw[1+channelLen+2])
	if authorLen > maxAuthor {
		return nil, ErrMalformed
	}
	need := headerFixed + authorLen + trailerLen + macLen
	if len(raw) != need {
		return nil, ErrMalformed
	}

	header := raw[:headerFixed+authorLen+trailerLen]
	gotMAC := raw[headerFixed+authorLen+trailerLen:]

	wantMAC := crypto.HMACSHA256(channelSecret, header)
	if !crypto.ConstantTimeCompare(gotMAC, wantMAC[:macLen]) {
		return nil, ErrBadMAC
	}

	var chID [16]byte
	copy(chID[:], raw[1:1+channelLen])
	perms := Permissions(binary.BigEndian.Uint16(raw[1+channelLen : 1+channelLen+2]))
	author := string(raw[headerFixed : headerFixed+authorLen])
	expiresHours := binary.BigEndian.Uint32(raw[headerFixed+authorLen : headerFixed+authorLen+trailerLen])

	expiresAt := time.Unix(int64(expiresHours)*3600, 0)
	if expiresAt.Before(time.Now()) {
		return nil, ErrExpired
	}

	return &Claims{
		ChannelID:   cmn.UUIDFromBytes(chID),
		Permissions: perms,
		AuthorID:    author,
		ExpiresAt:   expiresAt,
	}, nil
}
