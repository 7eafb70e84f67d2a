package zwave

import (
	"net/url"
	"sort"
	"sync"
)

// CachedNode is the durable subset of a Node's interrogation results:
// everything a config cache backend persists so a restart can skip
// re-querying a device that hasn't changed.
type CachedNode struct {
	ID             byte
	Listening      bool
	Routing        bool
	Basic          byte
	Generic        byte
	Specific       byte
	ManufacturerID uint16
	ProductType    uint16
	ProductID      uint16
	Name           string
	Location       string
	Version        byte
	CommandClasses []byte
}

// CachedConfig is everything a config-cache backend stores for one
// controller, keyed by home id.
type CachedConfig struct {
	HomeID uint32
	Nodes  []CachedNode
}

// ConfigCache persists and retrieves a controller's learned
// configuration, keyed by home id, so the driver's init handshake can
// skip re-interrogating nodes that were already fully queried on a
// previous run. Backends register behind a URL scheme, so deployments
// choose local-file or remote persistence without code changes.
type ConfigCache interface {
	Load(homeID uint32) (CachedConfig, error)
	Save(cfg CachedConfig) error
}

// CacheFactory constructs a ConfigCache for a parsed cache URL.
type CacheFactory interface {
	NewConfigCache(u *url.URL) (ConfigCache, error)
}

var (
	cacheFactoriesMu sync.Mutex
	cacheFactories   = make(map[string]CacheFactory)
)

// RegisterCacheFactory registers factory under scheme (e.g. "file",
// "azblob", "azqueue", "aztable"). Registering the same scheme twice
// panics: a silently-shadowed backend could clobber another's data.
func RegisterCacheFactory(scheme string, factory CacheFactory) {
	cacheFactoriesMu.Lock()
	defer cacheFactoriesMu.Unlock()
	if _, dup := cacheFactories[scheme]; dup {
		panic("zwave: cache factory already registered for scheme " + scheme)
	}
	cacheFactories[scheme] = factory
}

// CacheFactorySchemes returns every currently registered scheme name, in
// sorted order.
func CacheFactorySchemes() []string {
	cacheFactoriesMu.Lock()
	defer cacheFactoriesMu.Unlock()
	schemes := make([]string, 0, len(cacheFactories))
	for s := range cacheFactories {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

func lookupCacheFactory(scheme string) (CacheFactory, bool) {
	cacheFactoriesMu.Lock()
	defer cacheFactoriesMu.Unlock()
	f, ok := cacheFactories[scheme]
	return f, ok
}

// OpenConfigCache parses rawURL and dispatches to whichever CacheFactory
// is registered for its scheme.
func OpenConfigCache(rawURL string) (ConfigCache, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	factory, ok := lookupCacheFactory(u.Scheme)
	if !ok {
		return nil, ErrCacheUnsupportedScheme
	}
	return factory.NewConfigCache(u)
}

// memConfigCache is a trivial in-process ConfigCache, useful for tests
// and for callers who don't want cross-restart persistence at all.
type memConfigCache struct {
	mu    sync.Mutex
	byHome map[uint32]CachedConfig
}

// NewMemConfigCache returns a ConfigCache backed by nothing but process
// memory.
func NewMemConfigCache() ConfigCache {
	return &memConfigCache{byHome: make(map[uint32]CachedConfig)}
}

func (c *memConfigCache) Load(homeID uint32) (CachedConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cfg, ok := c.byHome[homeID]
	if !ok {
		return CachedConfig{}, ErrCacheNotFound
	}
	return cfg, nil
}

func (c *memConfigCache) Save(cfg CachedConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byHome[cfg.HomeID] = cfg
	return nil
}
