package zwave

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"
)

// blobConfigCache mirrors the local file cache to Azure Blob Storage:
// one block blob per home id inside a single container, so a fleet of
// controllers can publish their learned node tables to a shared store
// for a management service to read.
type blobConfigCache struct {
	client    *service.Client
	container *container.Client
}

const cacheBlobContainer = "zwave-config-cache"

func init() {
	RegisterCacheFactory("azblob", blobCacheFactory{})
}

type blobCacheFactory struct{}

// NewConfigCache parses azblob://<account>:<key>@<account>.blob.core.windows.net
// (account and key from userinfo, the host the standard service URL)
// into a blobConfigCache using the fixed cacheBlobContainer container.
// A bare azblob://<account>.blob.core.windows.net with no embedded key
// gets a client with no credential at all.
func (blobCacheFactory) NewConfigCache(u *url.URL) (ConfigCache, error) {
	serviceURL := "https://" + u.Host
	var client *azblob.Client
	var err error

	if u.User != nil {
		account := u.User.Username()
		key, _ := u.User.Password()
		cred, credErr := azblob.NewSharedKeyCredential(account, key)
		if credErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheUnsupportedScheme, credErr)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		client, err = azblob.NewClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, err
	}

	svc := client.ServiceClient()
	cc := svc.NewContainerClient(cacheBlobContainer)
	if _, cerr := cc.Create(context.Background(), nil); cerr != nil && !bloberror.HasCode(cerr, bloberror.ContainerAlreadyExists) {
		return nil, cerr
	}
	return &blobConfigCache{client: svc, container: cc}, nil
}

func blobNameForHome(homeID uint32) string {
	return fmt.Sprintf("%08x.xml", homeID)
}

func (c *blobConfigCache) Load(homeID uint32) (CachedConfig, error) {
	ctx := context.Background()
	resp, err := c.container.NewBlobClient(blobNameForHome(homeID)).DownloadStream(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return CachedConfig{}, ErrCacheNotFound
		}
		return CachedConfig{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return CachedConfig{}, err
	}
	var x xmlCachedConfig
	if err := xml.Unmarshal(data, &x); err != nil {
		return CachedConfig{}, err
	}
	return fromXML(x), nil
}

func (c *blobConfigCache) Save(cfg CachedConfig) error {
	data, err := xml.Marshal(toXML(cfg))
	if err != nil {
		return err
	}
	ctx := context.Background()
	_, err = c.container.NewBlockBlobClient(blobNameForHome(cfg.HomeID)).UploadBuffer(ctx, data, nil)
	return err
}
