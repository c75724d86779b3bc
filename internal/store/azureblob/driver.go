// Package azureblob implements store.Store against an Azure Blob
// Storage container, using the same Azure SDK ghjramos-aistore's
// go.mod lists for its own cloud backend (spec §4.D).
package azureblob

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"github.com/aiserve/modelserver/internal/store"
)

// Options configures the driver.
type Options struct {
	Account   string
	Container string
	AccessKey string
}

// Driver lists and fetches blobs from a single container.
type Driver struct {
	client    *azblob.Client
	container string
}

// New builds a Driver from account + access key credentials (spec §6
// STORAGE_ACCOUNT / STORAGE_ACCESS_KEY).
func New(opts Options) (*Driver, error) {
	if opts.Account == "" || opts.Container == "" {
		return nil, errors.New("azure blob store: account and container are required")
	}

	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", opts.Account)

	var (
		client *azblob.Client
		err    error
	)
	if opts.AccessKey != "" {
		cred, credErr := service.NewSharedKeyCredential(opts.Account, opts.AccessKey)
		if credErr != nil {
			return nil, fmt.Errorf("azure shared key credential: %w", credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		var cred azcore.TokenCredential
		client, err = azblob.NewClient(serviceURL, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("new azure blob client: %w", err)
	}

	return &Driver{client: client, container: opts.Container}, nil
}

// List enumerates every blob in the container as a store.Artifact.
func (d *Driver) List(ctx context.Context) ([]store.Artifact, error) {
	var out []store.Artifact
	pager := d.client.NewListBlobsFlatPager(d.container, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list container %q: %w", d.container, err)
		}
		for _, item := range page.Segment.BlobItems {
			art := store.Artifact{Key: deref(item.Name)}
			if item.Properties != nil {
				if item.Properties.ETag != nil {
					art.ETagOrMTime = string(*item.Properties.ETag)
				}
				if item.Properties.ContentLength != nil {
					art.Size = *item.Properties.ContentLength
				}
			}
			out = append(out, art)
		}
	}
	return out, nil
}

// Fetch downloads the full blob body for key.
func (d *Driver) Fetch(ctx context.Context, key string) ([]byte, error) {
	resp, err := d.client.DownloadStream(ctx, d.container, key, nil)
	if err != nil {
		return nil, fmt.Errorf("download blob %q: %w", key, err)
	}
	defer resp.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read blob %q: %w", key, err)
	}
	return buf.Bytes(), nil
}

// Exists reports whether a blob named key is present in the container.
func (d *Driver) Exists(ctx context.Context, key string) (bool, error) {
	_, err := d.client.ServiceClient().
		NewContainerClient(d.container).
		NewBlobClient(key).
		GetProperties(ctx, nil)
	if err == nil {
		return true, nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == 404 {
		return false, nil
	}
	return false, fmt.Errorf("get blob properties %q: %w", key, err)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
