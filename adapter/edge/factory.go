package edge

import (
	"context"
	"fmt"

	"github.com/NVIDIA/storegate/adapter"
	"github.com/NVIDIA/storegate/cmn"
)

// NewAdapters wires up the edge-hosted adapter.Adapters: a DynamoDB KV
// store, a channel coordinator pool over the same table, and a blob
// backend selected by conf.Backend.
func NewAdapters(ctx context.Context, conf cmn.EdgeConf) (*adapter.Adapters, error) {
	kv, err := NewDynamoKV(conf.Region, conf.DynamoTable)
	if err != nil {
		return nil, fmt.Errorf("edge: dynamodb: %w", err)
	}

	var blob adapter.Blob
	switch conf.Backend {
	case cmn.BackendAWS:
		blob, err = NewS3Blob(conf.Region, conf.S3Bucket)
	case cmn.BackendAzure:
		blob, err = NewAzureBlob(conf.AzureAccount, conf.AzureKey, conf.AzureContainer)
	case cmn.BackendGCP:
		blob, err = NewGCSBlob(ctx, conf.GCSBucket)
	default:
		return nil, fmt.Errorf("edge: unknown backend %q", conf.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("edge: blob backend %s: %w", conf.Backend, err)
	}

	return &adapter.Adapters{
		KV:      kv,
		Blob:    blob,
		Channel: NewChannelStore(kv, 32),
	}, nil
}
