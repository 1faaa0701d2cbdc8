package captoken_test

import (
	"strings"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/NVIDIA/storegate/captoken"
	"github.com/NVIDIA/storegate/cmn"
	"github.com/NVIDIA/storegate/crypto"
)

var _ = Describe("capability tokens", func() {
	var (
		channelID string
		secret    []byte
	)

	BeforeEach(func() {
		channelID = cmn.GenUUID()
		secret = []byte("a-32-byte-ish-channel-secret!!!!")
	})

	It("round-trips a freshly created token", func() {
		tok, err := captoken.Create(channelID, captoken.Read|captoken.Append, "alice", time.Hour, secret)
		Expect(err).NotTo(HaveOccurred())

		claims, err := captoken.Verify(tok, secret)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.ChannelID).To(Equal(channelID))
		Expect(claims.AuthorID).To(Equal("alice"))
		Expect(claims.Permissions.Has(captoken.Read)).To(BeTrue())
		Expect(claims.Permissions.Has(captoken.Append)).To(BeTrue())
		Expect(claims.Permissions.Has(captoken.DeleteAny)).To(BeFalse())
	})

	It("generates a 4-character author-id when none is given", func() {
		tok, err := captoken.Create(channelID, captoken.Read, "", time.Hour, secret)
		Expect(err).NotTo(HaveOccurred())

		claims, err := captoken.Verify(tok, secret)
		Expect(err).NotTo(HaveOccurred())
		Expect(claims.AuthorID).To(HaveLen(4))
	})

	It("lets Parse recover the channel-id without verifying the MAC", func() {
		tok, err := captoken.Create(channelID, captoken.Read, "bob", time.Hour, secret)
		Expect(err).NotTo(HaveOccurred())

		got, err := captoken.Parse(tok)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(channelID))

		// Parse takes no secret and never touches the MAC, so a second
		// parse of the same token succeeds as well.
		_, err = captoken.Parse(tok)
		Expect(err).NotTo(HaveOccurred())
	})

	It("rejects an author-id longer than 32 UTF-8 bytes", func() {
		_, err := captoken.Create(channelID, captoken.Read, strings.Repeat("x", 33), time.Hour, secret)
		Expect(err).To(MatchError(captoken.ErrAuthorTooLong))
	})

	It("rejects a token verified against the wrong secret", func() {
		tok, err := captoken.Create(channelID, captoken.Read, "alice", time.Hour, secret)
		Expect(err).NotTo(HaveOccurred())

		_, err = captoken.Verify(tok, []byte("a-different-channel-secret-here!"))
		Expect(err).To(MatchError(captoken.ErrBadMAC))
	})

	It("rejects a token whose payload has been tampered with", func() {
		tok, err := captoken.Create(channelID, captoken.Read, "alice", time.Hour, secret)
		Expect(err).NotTo(HaveOccurred())

		tampered := []byte(tok)
		// Flip a byte in the middle of the encoding (within the author-id
		// field), which changes the payload without changing its length.
		mid := len(tampered) / 2
		if tampered[mid] == 'A' {
			tampered[mid] = 'B'
		} else {
			tampered[mid] = 'A'
		}

		_, err = captoken.Verify(string(tampered), secret)
		Expect(err).To(HaveOccurred())
	})

	It("rejects a token that already expired", func() {
		tok, err := captoken.Create(channelID, captoken.Read, "alice", -2*time.Hour, secret)
		Expect(err).NotTo(HaveOccurred())

		_, err = captoken.Verify(tok, secret)
		Expect(err).To(MatchError(captoken.ErrExpired))
	})

	It("rejects malformed base64url input", func() {
		_, err := captoken.Verify("not valid base64url!!", secret)
		Expect(err).To(MatchError(captoken.ErrMalformed))

		_, err = captoken.Parse("not valid base64url!!")
		Expect(err).To(MatchError(captoken.ErrMalformed))
	})

	It("rejects a token with an unknown version byte", func() {
		tok, err := captoken.Create(channelID, captoken.Read, "alice", time.Hour, secret)
		Expect(err).NotTo(HaveOccurred())

		raw, err := crypto.Base64URLDecode(tok)
		Expect(err).NotTo(HaveOccurred())
		raw[0] = captoken.Version1 + 1
		bumped := crypto.Base64URLEncode(raw)

		_, err = captoken.Verify(bumped, secret)
		Expect(err).To(MatchError(captoken.ErrUnknownVersion))

		_, err = captoken.Parse(bumped)
		Expect(err).To(MatchError(captoken.ErrUnknownVersion))
	})
})
