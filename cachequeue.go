package zwave

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue/queueerror"
)

// queueConfigCache is not itself a store of record: a 64 KB queue
// message is too small a budget to hold a large node table reliably
// (a node table runs up to 232 entries), so unlike the blob and
// table backends this one wraps a delegate ConfigCache for the actual
// bytes and uses the queue purely as a lightweight "something changed"
// notification a second process (a dashboard, a backup job) can drain
// without polling the delegate store.
type queueConfigCache struct {
	delegate ConfigCache
	client   *azqueue.QueueClient
}

const cacheQueueName = "zwave-config-cache-updates"

func init() {
	RegisterCacheFactory("azqueue", queueCacheFactory{})
}

type queueCacheFactory struct{}

// NewConfigCache parses azqueue://<account>:<key>@<host>?mirror=<delegate-url>.
// The account/host portion addresses the queue; the URL path is not
// used. The query's "mirror"
// parameter names the URL of the ConfigCache that actually holds the
// bytes (defaulting to an in-process file cache under the current
// directory when omitted, for local experimentation).
func (queueCacheFactory) NewConfigCache(u *url.URL) (ConfigCache, error) {
	serviceURL := "https://" + u.Host
	var client *azqueue.ServiceClient
	var err error

	if u.User != nil {
		account := u.User.Username()
		key, _ := u.User.Password()
		cred, credErr := azqueue.NewSharedKeyCredential(account, key)
		if credErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheUnsupportedScheme, credErr)
		}
		client, err = azqueue.NewServiceClientWithSharedKeyCredential(serviceURL, cred, nil)
	} else {
		client, err = azqueue.NewServiceClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if _, cerr := client.CreateQueue(ctx, cacheQueueName, nil); cerr != nil && !queueerror.HasCode(cerr, queueerror.QueueAlreadyExists) {
		return nil, cerr
	}

	mirrorURL := u.Query().Get("mirror")
	var delegate ConfigCache
	if mirrorURL != "" {
		delegate, err = OpenConfigCache(mirrorURL)
	} else {
		delegate, err = NewFileConfigCache(".")
	}
	if err != nil {
		return nil, err
	}

	return &queueConfigCache{delegate: delegate, client: client.NewQueueClient(cacheQueueName)}, nil
}

func (c *queueConfigCache) Load(homeID uint32) (CachedConfig, error) {
	return c.delegate.Load(homeID)
}

func (c *queueConfigCache) Save(cfg CachedConfig) error {
	if err := c.delegate.Save(cfg); err != nil {
		return err
	}

	var msg [4]byte
	binary.BigEndian.PutUint32(msg[:], cfg.HomeID)
	encoded := base64.StdEncoding.EncodeToString(msg[:])
	_, err := c.client.EnqueueMessage(context.Background(), encoded, nil)
	return err
}
