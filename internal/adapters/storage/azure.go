package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/jobrunner/geotrans/internal/domain"
	"github.com/jobrunner/geotrans/internal/ports/output"
)

// AzureStorage reads batch files from and writes results to an Azure Blob
// Storage container.
type AzureStorage struct {
	client    *azblob.Client
	container string
	keys      keyspace
	filter    Filter
}

// AzureConfig holds Azure Blob Storage configuration.
type AzureConfig struct {
	Container        string
	AccountName      string
	AccountKey       string
	ConnectionString string // Takes precedence over account name and key
	Prefix           string
	Extensions       []string
}

// NewAzureStorage creates a new Azure Blob Storage adapter.
func NewAzureStorage(cfg AzureConfig) (*AzureStorage, error) {
	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, &domain.StorageError{Operation: "connect", Key: cfg.Container, Err: err}
	}

	return &AzureStorage{
		client:    client,
		container: cfg.Container,
		keys:      newKeyspace(cfg.Prefix),
		filter:    NewFilter(cfg.Extensions...),
	}, nil
}

func newAzureClient(cfg AzureConfig) (*azblob.Client, error) {
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, nil)
	}
	cred, err := azblob.NewSharedKeyCredential(cfg.AccountName, cfg.AccountKey)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AccountName)
	return azblob.NewClientWithSharedKeyCredential(url, cred, nil)
}

// List returns the batch files below the prefix.
func (s *AzureStorage) List(ctx context.Context) ([]output.StorageObject, error) {
	var objects []output.StorageObject

	prefix := s.keys.listPrefix()
	pager := s.client.NewListBlobsFlatPager(s.container, &azblob.ListBlobsFlatOptions{
		Prefix: &prefix,
	})
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, &domain.StorageError{Operation: "list", Key: s.keys.prefix, Err: err}
		}
		for _, item := range page.Segment.BlobItems {
			if obj, ok := s.storageObject(item); ok {
				objects = append(objects, obj)
			}
		}
	}

	return objects, nil
}

// storageObject converts a listed blob, false if it is not a batch file.
func (s *AzureStorage) storageObject(item *container.BlobItem) (output.StorageObject, bool) {
	if item.Name == nil {
		return output.StorageObject{}, false
	}
	key, ok := s.keys.key(*item.Name)
	if !ok || !s.filter.Match(key) {
		return output.StorageObject{}, false
	}

	obj := output.StorageObject{Key: key}
	if p := item.Properties; p != nil {
		if p.ContentLength != nil {
			obj.Size = *p.ContentLength
		}
		if p.LastModified != nil {
			obj.LastModified = p.LastModified.Unix()
		}
		if p.ETag != nil {
			obj.ETag = string(*p.ETag)
		}
	}
	return obj, true
}

// Download copies a batch file to dest.
func (s *AzureStorage) Download(ctx context.Context, key string, dest string) error {
	rc, err := s.GetReader(ctx, key)
	if err != nil {
		return err
	}
	if err := saveTo(dest, rc); err != nil {
		return &domain.StorageError{Operation: "download", Key: key, Err: err}
	}
	return nil
}

// GetReader opens a batch file. A missing blob wraps os.ErrNotExist.
func (s *AzureStorage) GetReader(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, s.keys.object(key), nil)
	if err != nil {
		return nil, &domain.StorageError{Operation: "read", Key: key, Err: blobNotFound(err)}
	}
	return resp.Body, nil
}

// Put uploads a result file.
func (s *AzureStorage) Put(ctx context.Context, key string, body io.Reader) error {
	ct := contentType(key)
	_, err := s.client.UploadStream(ctx, s.container, s.keys.object(key), body, &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &ct},
	})
	if err != nil {
		return &domain.StorageError{Operation: "put", Key: key, Err: err}
	}
	return nil
}

// Exists reports whether key exists. Errors other than a missing blob are
// returned.
func (s *AzureStorage) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.client.ServiceClient().
		NewContainerClient(s.container).
		NewBlobClient(s.keys.object(key)).
		GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return false, nil
	}
	return false, &domain.StorageError{Operation: "exists", Key: key, Err: err}
}

// blobNotFound maps the missing blob errors to os.ErrNotExist.
func blobNotFound(err error) error {
	if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
		return fmt.Errorf("%w: %w", os.ErrNotExist, err)
	}
	return err
}
