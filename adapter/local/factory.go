package local

import (
	"fmt"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/cmn"
)

// NewAdapters wires up the single-process adapter.Adapters: one buntdb
// file backing both KV and channel state, and a filesystem tree for
// blob bytes.
func NewAdapters(conf cmn.LocalConf) (*adapter.Adapters, error) {
	db, err := OpenDB(conf.DBPath)
	if err != nil {
		return nil, fmt.Errorf("local: buntdb: %w", err)
	}
	blobStore, err := NewBlobStore(conf.BlobRoot)
	if err != nil {
		return nil, fmt.Errorf("local: blob root: %w", err)
	}
	return &adapter.Adapters{
		KV:      NewKVStore(db),
		Blob:    blobStore,
		Channel: NewChannelStore(db),
	}, nil
}
