package cmn

import "strings"

// Reserved internal KV key prefixes. Any
// namespace component starting with "__" is internal and excluded from
// user-facing listings.
const (
	PrefixPrincipal    = "__PRINCIPAL:"
	PrefixBlob         = "__BLOB:"
	PrefixChannelIndex = "__CHANNEL_INDEX:"
	PrefixChannelOwner = "__CHANNEL_OWNER:"
	PrefixNSAlias      = "__NS_ALIAS:"
	PrefixNSFull       = "__NS_FULL:"
	PrefixOrgPerms     = "__ORG:permissions"

	internalMarker = "__"
)

// IsInternalNamespace reports whether ns is a reserved, non-user-facing
// namespace.
func IsInternalNamespace(ns string) bool {
	return strings.HasPrefix(ns, internalMarker)
}

// KVKey joins a namespace and key into the underlying store's key form
// "<namespace>:<key>".
func KVKey(namespace, key string) string {
	return namespace + ":" + key
}

// SplitKVKey splits a raw underlying-store key on the first colon only,
// since keys themselves may contain colons.
func SplitKVKey(raw string) (namespace, key string, ok bool) {
	idx := strings.IndexByte(raw, ':')
	if idx < 0 {
		return "", "", false
	}
	return raw[:idx], raw[idx+1:], true
}

// BlobMetaKey is the KV key under which a blob's metadata is stored.
func BlobMetaKey(namespace, key string) string {
	return PrefixBlob + namespace + ":" + key
}

// BlobBytesKey is the blob-store key for the object bytes themselves.
func BlobBytesKey(namespace, key string) string {
	return namespace + ":" + key
}

// PrincipalKey is the KV key for a principal record, keyed by the hex
// sha256 of its secret.
func PrincipalKey(secretHashHex string) string {
	return PrefixPrincipal + secretHashHex
}

// ChannelIndexKey maps (namespace, channel-id) -> {name, createdAt}
// for listing.
func ChannelIndexKey(namespace, channelID string) string {
	return PrefixChannelIndex + namespace + ":" + channelID
}

// NSAliasKey/NSFullKey implement the bidirectional namespace<->alias
// mapping.
func NSAliasKey(alias string) string     { return PrefixNSAlias + alias }
func NSFullKey(namespace string) string  { return PrefixNSFull + namespace }
