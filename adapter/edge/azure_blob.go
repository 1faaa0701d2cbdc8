package edge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/NVIDIA/storegate/adapter"
)

// AzureBlob implements adapter.Blob against one Azure Storage container.
type AzureBlob struct {
	containerURL azblob.ContainerURL
	credential   azblob.SharedKeyCredential
}

func NewAzureBlob(account, accountKey, container string) (*AzureBlob, error) {
	cred, err := azblob.NewSharedKeyCredential(account, accountKey)
	if err != nil {
		return nil, err
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", account, container))
	if err != nil {
		return nil, err
	}
	return &AzureBlob{
		containerURL: azblob.NewContainerURL(*u, pipeline),
		credential:   *cred,
	}, nil
}

func (a *AzureBlob) blobURL(key string) azblob.BlockBlobURL {
	return a.containerURL.NewBlockBlobURL(key)
}

func azureNotFound(err error) bool {
	var stgErr azblob.StorageError
	if errors.As(err, &stgErr) {
		return stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound
	}
	return false
}

func (a *AzureBlob) Get(ctx context.Context, key string, rng *adapter.ByteRange) (*adapter.BlobObject, bool, error) {
	httpRange := azblob.HTTPRange{}
	if rng != nil {
		offset := rng.Offset
		if offset < 0 {
			// azblob.HTTPRange has no suffix-range notion, so a
			// negative offset must be resolved against the blob's
			// actual size first.
			props, err := a.blobURL(key).GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
			if err != nil {
				if azureNotFound(err) {
					return nil, false, nil
				}
				return nil, false, err
			}
			offset = props.ContentLength() + offset
		}
		if offset < 0 {
			return nil, false, adapter.ErrInvalidRange
		}
		httpRange.Offset = offset
		if rng.Length >= 0 {
			httpRange.Count = rng.Length
		}
	}
	resp, err := a.blobURL(key).Download(ctx, httpRange.Offset, httpRange.Count, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if azureNotFound(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	body := resp.Body(azblob.RetryReaderOptions{})
	return &adapter.BlobObject{
		Body: body,
		ETag: string(resp.ETag()),
		Size: resp.ContentLength(),
	}, true, nil
}

func (a *AzureBlob) Put(ctx context.Context, key string, body io.Reader, contentType string) error {
	_, err := azblob.UploadStreamToBlockBlob(ctx, body, a.blobURL(key), azblob.UploadStreamToBlockBlobOptions{
		BufferSize: 4 << 20,
		MaxBuffers: 4,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{
			ContentType: contentType,
		},
	})
	return err
}

func (a *AzureBlob) Delete(ctx context.Context, key string) error {
	_, err := a.blobURL(key).Delete(ctx, azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if err != nil && azureNotFound(err) {
		return nil
	}
	return err
}

func (a *AzureBlob) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.blobURL(key).GetProperties(ctx, azblob.BlobAccessConditions{}, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if azureNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (a *AzureBlob) List(ctx context.Context, prefix, cursor string) ([]string, string, error) {
	marker := azblob.Marker{}
	if cursor != "" {
		marker = azblob.Marker{Val: &cursor}
	}
	resp, err := a.containerURL.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{Prefix: prefix})
	if err != nil {
		return nil, "", err
	}
	keys := make([]string, 0, len(resp.Segment.BlobItems))
	for _, item := range resp.Segment.BlobItems {
		keys = append(keys, item.Name)
	}
	next := ""
	if resp.NextMarker.NotDone() {
		next = *resp.NextMarker.Val
	}
	return keys, next, nil
}

// PresignGet mints a SAS URL for key valid for expiresIn, using Azure's
// own shared-access-signature machinery rather than a hand-rolled
// signer.
func (a *AzureBlob) PresignGet(key string, expiresIn time.Duration) (string, error) {
	sas, err := azblob.BlobSASSignatureValues{
		Protocol:      azblob.SASProtocolHTTPS,
		ExpiryTime:    time.Now().Add(expiresIn),
		ContainerName: a.containerURL.String(),
		BlobName:      key,
		Permissions:   azblob.BlobSASPermissions{Read: true}.String(),
	}.NewSASQueryParameters(&a.credential)
	if err != nil {
		return "", err
	}
	u := a.blobURL(key).URL()
	u.RawQuery = sas.Encode()
	return u.String(), nil
}

// PresignPut mints a write-capable SAS URL for key valid for expiresIn.
func (a *AzureBlob) PresignPut(key string, expiresIn time.Duration) (string, error) {
	sas, err := azblob.BlobSASSignatureValues{
		Protocol:      azblob.SASProtocolHTTPS,
		ExpiryTime:    time.Now().Add(expiresIn),
		ContainerName: a.containerURL.String(),
		BlobName:      key,
		Permissions:   azblob.BlobSASPermissions{Write: true, Create: true}.String(),
	}.NewSASQueryParameters(&a.credential)
	if err != nil {
		return "", err
	}
	u := a.blobURL(key).URL()
	u.RawQuery = sas.Encode()
	return u.String(), nil
}
