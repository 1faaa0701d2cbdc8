// Package adapter defines the three storage-backend contracts the rest
// of storegate is parameterized over: KV, Blob, and Channel. Concrete
// implementations live in adapter/local (single-process, buntdb +
// filesystem) and adapter/edge (cloud KV/object-store/table backends).
/*
 * Copyright (c) 2024, NVIDIA CORPORATION. All rights reserved.
 */
package adapter

import (
	"context"
	"errors"
	"io"
)

// ErrInvalidRange is returned by Blob.Get when a requested range's
// resolved start falls outside [0, size).
var ErrInvalidRange = errors.New("adapter: requested range not satisfiable")

// KV is a namespaced string-to-string store. Keys passed to this
// interface are already the fully-qualified underlying-store key
// ("<namespace>:<key>" or an internal "__PREFIX:..." form); KV itself
// knows nothing about namespaces.
type KV interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// List returns keys with the given prefix in lexicographic order,
	// resuming from cursor and returning at most limit keys plus a
	// next cursor when more remain.
	List(ctx context.Context, prefix, cursor string, limit int) (keys []string, nextCursor string, err error)
}

// ByteRange requests a sub-range of a blob's bytes: Length bytes
// starting at Offset. A negative Offset counts back from the end of
// the blob.
type ByteRange struct {
	Offset int64
	Length int64 // -1 means "to end"
}

// BlobObject is a retrieved blob's bytes plus transport metadata.
type BlobObject struct {
	Body  io.ReadCloser
	ETag  string
	Size  int64
}

// Blob is a content-addressed byte store keyed by opaque strings.
type Blob interface {
	Get(ctx context.Context, key string, rng *ByteRange) (*BlobObject, bool, error)
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix, cursor string) (keys []string, nextCursor string, err error)
	// Exists is a cheap existence check used to detect orphaned
	// metadata (bytes missing though metadata was written).
	Exists(ctx context.Context, key string) (bool, error)
}

// ChannelMeta is a channel's persisted metadata.
type ChannelMeta struct {
	ChannelID     string `json:"channel_id"`
	Name          string `json:"name"`
	OwnerNS       string `json:"owner_namespace"`
	CreatedAt     int64  `json:"created_at"`
	Secret        string `json:"secret"`
}

// EventKind distinguishes an ordinary content event from a tombstone
// marking an earlier event as deleted.
type EventKind string

const (
	EventContent  EventKind = ""
	EventDeletion EventKind = "deletion"
)

// Event is one append-only log record.
type Event struct {
	ID        string    `json:"id"`
	Seq       int64     `json:"seq"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt int64     `json:"created_at"`
	Kind      EventKind `json:"kind,omitempty"`
	TargetSeq int64     `json:"target_seq,omitempty"`
}

// NewEvent carries the caller-supplied fields for Channel.Append; Seq,
// ID, and CreatedAt are assigned by the adapter.
type NewEvent struct {
	AuthorID  string
	Content   string
	Kind      EventKind
	TargetSeq int64
}

// ReadOpts controls Channel.Read's pagination and deletion-filtering.
type ReadOpts struct {
	AfterSeq       int64
	Limit          int
	IncludeDeleted bool
}

// Channel abstracts one append-only event log per channel-id. All
// operations for a given channel-id must be serialized by the
// implementation: Append in particular must never interleave with
// another Append for the same channel-id, and must assign dense,
// strictly increasing sequence numbers.
type Channel interface {
	CreateChannel(ctx context.Context, channelID string, meta *ChannelMeta) error
	GetMetadata(ctx context.Context, channelID string) (*ChannelMeta, bool, error)
	Append(ctx context.Context, channelID string, ev NewEvent) (*Event, error)
	GetEvent(ctx context.Context, channelID string, seq int64) (*Event, bool, error)
	Read(ctx context.Context, channelID string, opts ReadOpts) (events []*Event, hasMore bool, err error)
	DeleteChannel(ctx context.Context, channelID string) error
}

// Adapters bundles the three backend instances the service layer is
// constructed over.
type Adapters struct {
	KV      KV
	Blob    Blob
	Channel Channel
}
