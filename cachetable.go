package zwave

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"

	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
)

// MaxTableBinaryPropertySize is the maximum size of a single Edm.Binary
// property in an Azure Table entity.
const MaxTableBinaryPropertySize = 64 * 1024

// MaxTableProperties bounds how many chunks a single cache entity spreads
// a config snapshot across; bigger than that and Save fails rather than
// silently truncating a node table.
const MaxTableProperties = 15

var cacheDataKeys = [MaxTableProperties]string{
	"Data", "Data01", "Data02", "Data03", "Data04", "Data05", "Data06",
	"Data07", "Data08", "Data09", "Data10", "Data11", "Data12", "Data13", "Data14",
}

const cacheTableName = "zwaveconfigcache"

func init() {
	RegisterCacheFactory("aztable", tableCacheFactory{})
}

type tableCacheFactory struct{}

func (tableCacheFactory) NewConfigCache(u *url.URL) (ConfigCache, error) {
	serviceURL := "https://" + u.Host
	var client *aztables.ServiceClient
	var err error

	if u.User != nil {
		account := u.User.Username()
		key, _ := u.User.Password()
		cred, credErr := aztables.NewSharedKeyCredential(account, key)
		if credErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCacheUnsupportedScheme, credErr)
		}
		client, err = aztables.NewServiceClientWithSharedKey(serviceURL, cred, nil)
	} else {
		client, err = aztables.NewServiceClientWithNoCredential(serviceURL, nil)
	}
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	if _, cerr := client.CreateTable(ctx, cacheTableName, nil); cerr != nil {
		// table-already-exists is not distinguishable here without the
		// aztables error-code helper used by the blob/queue siblings;
		// Save/Load below tolerate a pre-existing table regardless.
		_ = cerr
	}

	return &tableConfigCache{table: client.NewClient(cacheTableName)}, nil
}

// tableConfigCache stores one entity per home id, chunking the encoded
// XML payload across up to MaxTableProperties Edm.Binary properties to
// fit Azure Table Storage's per-property size limit.
type tableConfigCache struct {
	table *aztables.Client
}

func tableRowKey(homeID uint32) string { return fmt.Sprintf("%08x", homeID) }

const cachePartitionKey = "config"

func buildCacheEntity(homeID uint32, data []byte) ([]byte, error) {
	if len(data) > MaxTableProperties*MaxTableBinaryPropertySize {
		return nil, fmt.Errorf("zwave: cached config for home %08x too large for table storage", homeID)
	}
	m := map[string]any{
		"PartitionKey": cachePartitionKey,
		"RowKey":       tableRowKey(homeID),
	}
	for i := 0; i < MaxTableProperties && len(data) > 0; i++ {
		take := len(data)
		if take > MaxTableBinaryPropertySize {
			take = MaxTableBinaryPropertySize
		}
		m[cacheDataKeys[i]] = data[:take]
		m[cacheDataKeys[i]+"@odata.type"] = "Edm.Binary"
		data = data[take:]
	}
	return json.Marshal(m)
}

func extractCacheEntity(raw []byte) []byte {
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	var res []byte
	for i := 0; i < MaxTableProperties; i++ {
		v, ok := m[cacheDataKeys[i]]
		if !ok {
			break
		}
		s, ok := v.(string)
		if !ok {
			break
		}
		chunk, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			break
		}
		res = append(res, chunk...)
	}
	return res
}

func (c *tableConfigCache) Load(homeID uint32) (CachedConfig, error) {
	ctx := context.Background()
	resp, err := c.table.GetEntity(ctx, cachePartitionKey, tableRowKey(homeID), nil)
	if err != nil {
		return CachedConfig{}, ErrCacheNotFound
	}
	data := extractCacheEntity(resp.Value)
	if data == nil {
		return CachedConfig{}, ErrCacheNotFound
	}
	var x xmlCachedConfig
	if err := xml.Unmarshal(data, &x); err != nil {
		return CachedConfig{}, err
	}
	return fromXML(x), nil
}

func (c *tableConfigCache) Save(cfg CachedConfig) error {
	data, err := xml.Marshal(toXML(cfg))
	if err != nil {
		return err
	}
	entity, err := buildCacheEntity(cfg.HomeID, data)
	if err != nil {
		return err
	}
	ctx := context.Background()
	_, err = c.table.UpsertEntity(ctx, entity, nil)
	return err
}
