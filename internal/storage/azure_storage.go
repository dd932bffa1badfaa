package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobDownloader is the slice of the azblob client the fetcher needs
type BlobDownloader interface {
	DownloadStream(ctx context.Context, containerName, blobName string, o *azblob.DownloadStreamOptions) (azblob.DownloadStreamResponse, error)
}

// AzureBlobFetcher reads documents addressed as azblob://container/path/to/blob
type AzureBlobFetcher struct {
	client  BlobDownloader
	maxSize int64
}

// NewAzureBlobFetcher authenticates with a shared account key
func NewAzureBlobFetcher(accountName, accountKey string) (*AzureBlobFetcher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("azure client: %w", err)
	}

	return NewAzureBlobFetcherWithClient(client), nil
}

// NewAzureBlobFetcherWithClient wraps an existing client
func NewAzureBlobFetcherWithClient(client BlobDownloader) *AzureBlobFetcher {
	return &AzureBlobFetcher{client: client, maxSize: DefaultMaxDocumentSize}
}

// ParseBlobURL splits azblob://container/blob into its parts
func ParseBlobURL(blobURL string) (container, blob string, err error) {
	u, err := url.Parse(blobURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid blob URL: %w", err)
	}
	if u.Scheme != "azblob" {
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	container = u.Host
	blob = strings.TrimPrefix(u.Path, "/")
	if container == "" || blob == "" {
		return "", "", fmt.Errorf("invalid blob URL %q: want azblob://container/blob", blobURL)
	}
	return container, blob, nil
}

// FetchDocument implements DocumentFetcher
func (s *AzureBlobFetcher) FetchDocument(ctx context.Context, blobURL string) ([]byte, error) {
	container, blob, err := ParseBlobURL(blobURL)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.DownloadStream(ctx, container, blob, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, container, blob)
		}
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) {
			return nil, fmt.Errorf("download failed with status %d: %w", respErr.StatusCode, err)
		}
		return nil, fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	return readLimited(resp.Body, s.maxSize)
}
