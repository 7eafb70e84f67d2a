package zwave

import (
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
)

// fileConfigCache is the default ConfigCache: one XML file per home id,
// in a directory on local disk. It registers itself under the "file"
// scheme so OpenConfigCache("file:///var/lib/zwave") dispatches here the
// same way it would dispatch to an azblob or aztable backend.
type fileConfigCache struct {
	mu  sync.Mutex
	dir string
}

func init() {
	RegisterCacheFactory("file", fileCacheFactory{})
}

type fileCacheFactory struct{}

func (fileCacheFactory) NewConfigCache(u *url.URL) (ConfigCache, error) {
	dir := u.Path
	if dir == "" {
		dir = u.Opaque
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileConfigCache{dir: dir}, nil
}

// NewFileConfigCache is a direct constructor for callers that already
// have a directory path and don't want to go through a URL.
func NewFileConfigCache(dir string) (ConfigCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileConfigCache{dir: dir}, nil
}

func (c *fileConfigCache) path(homeID uint32) string {
	return filepath.Join(c.dir, fmt.Sprintf("%08x.xml", homeID))
}

// xmlCachedConfig mirrors CachedConfig with XML tags; kept separate so
// CachedConfig itself stays free of encoding concerns.
type xmlCachedConfig struct {
	XMLName xml.Name      `xml:"ZWaveConfig"`
	HomeID  uint32        `xml:"HomeID,attr"`
	Nodes   []xmlCachedNode `xml:"Node"`
}

type xmlCachedNode struct {
	ID             byte   `xml:"id,attr"`
	Listening      bool   `xml:"Listening"`
	Routing        bool   `xml:"Routing"`
	Basic          byte   `xml:"Basic"`
	Generic        byte   `xml:"Generic"`
	Specific       byte   `xml:"Specific"`
	ManufacturerID uint16 `xml:"ManufacturerID"`
	ProductType    uint16 `xml:"ProductType"`
	ProductID      uint16 `xml:"ProductID"`
	Name           string `xml:"Name,omitempty"`
	Location       string `xml:"Location,omitempty"`
	Version        byte   `xml:"Version"`
	CommandClasses xmlByteList `xml:"CommandClasses>CC"`
}

// xmlByteList encodes a byte list as hex text, so byte values that are
// not valid UTF-8 on their own survive an XML round trip unchanged.
type xmlByteList []byte

func (b xmlByteList) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(b)), nil
}

func (b *xmlByteList) UnmarshalText(text []byte) error {
	v, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	*b = v
	return nil
}

func toXML(cfg CachedConfig) xmlCachedConfig {
	out := xmlCachedConfig{HomeID: cfg.HomeID}
	for _, n := range cfg.Nodes {
		out.Nodes = append(out.Nodes, xmlCachedNode{
			ID: n.ID, Listening: n.Listening, Routing: n.Routing,
			Basic: n.Basic, Generic: n.Generic, Specific: n.Specific,
			ManufacturerID: n.ManufacturerID, ProductType: n.ProductType, ProductID: n.ProductID,
			Name: n.Name, Location: n.Location,
			Version: n.Version, CommandClasses: n.CommandClasses,
		})
	}
	return out
}

func fromXML(x xmlCachedConfig) CachedConfig {
	out := CachedConfig{HomeID: x.HomeID}
	for _, n := range x.Nodes {
		out.Nodes = append(out.Nodes, CachedNode{
			ID: n.ID, Listening: n.Listening, Routing: n.Routing,
			Basic: n.Basic, Generic: n.Generic, Specific: n.Specific,
			ManufacturerID: n.ManufacturerID, ProductType: n.ProductType, ProductID: n.ProductID,
			Name: n.Name, Location: n.Location,
			Version: n.Version, CommandClasses: n.CommandClasses,
		})
	}
	return out
}

func (c *fileConfigCache) Load(homeID uint32) (CachedConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path(homeID))
	if os.IsNotExist(err) {
		return CachedConfig{}, ErrCacheNotFound
	}
	if err != nil {
		return CachedConfig{}, err
	}
	var x xmlCachedConfig
	if err := xml.Unmarshal(data, &x); err != nil {
		return CachedConfig{}, err
	}
	return fromXML(x), nil
}

func (c *fileConfigCache) Save(cfg CachedConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := xml.MarshalIndent(toXML(cfg), "", "  ")
	if err != nil {
		return err
	}
	tmp := c.path(cfg.HomeID) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path(cfg.HomeID))
}
