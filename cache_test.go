package zwave

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func sampleCachedConfig() CachedConfig {
	return CachedConfig{
		HomeID: 0xc95a1234,
		Nodes: []CachedNode{
			{
				ID: 2, Listening: true, Routing: true,
				Basic: 0x04, Generic: 0x10, Specific: 0x01,
				ManufacturerID: 0x0086, ProductType: 0x0002, ProductID: 0x0064,
				Name: "hall dimmer", Location: "hallway",
				Version: 4, CommandClasses: []byte{0x25, 0x26, 0x72},
			},
			{
				ID: 7, Listening: false,
				Basic: 0x04, Generic: 0x20, Specific: 0x01,
				CommandClasses: []byte{0x30, 0x80, 0x84},
			},
		},
	}
}

func TestMemConfigCacheRoundTrip(t *testing.T) {
	cache := NewMemConfigCache()

	_, err := cache.Load(0xc95a1234)
	require.ErrorIs(t, err, ErrCacheNotFound)

	want := sampleCachedConfig()
	require.NoError(t, cache.Save(want))

	got, err := cache.Load(want.HomeID)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestFileConfigCacheRoundTrip(t *testing.T) {
	cache, err := NewFileConfigCache(t.TempDir())
	require.NoError(t, err)

	_, err = cache.Load(0xdeadbeef)
	require.ErrorIs(t, err, ErrCacheNotFound)

	want := sampleCachedConfig()
	require.NoError(t, cache.Save(want))

	got, err := cache.Load(want.HomeID)
	require.NoError(t, err)
	require.Equal(t, want.HomeID, got.HomeID)
	require.Equal(t, want.Nodes, got.Nodes)
}

func TestFileConfigCacheSaveOverwrites(t *testing.T) {
	cache, err := NewFileConfigCache(t.TempDir())
	require.NoError(t, err)

	first := sampleCachedConfig()
	require.NoError(t, cache.Save(first))

	second := first
	second.Nodes = second.Nodes[:1]
	require.NoError(t, cache.Save(second))

	got, err := cache.Load(first.HomeID)
	require.NoError(t, err)
	require.Len(t, got.Nodes, 1)
}

func TestFileConfigCacheSeparateHomeIDs(t *testing.T) {
	cache, err := NewFileConfigCache(t.TempDir())
	require.NoError(t, err)

	a := sampleCachedConfig()
	b := sampleCachedConfig()
	b.HomeID = 0x11112222
	b.Nodes = b.Nodes[:1]
	require.NoError(t, cache.Save(a))
	require.NoError(t, cache.Save(b))

	gotA, err := cache.Load(a.HomeID)
	require.NoError(t, err)
	require.Len(t, gotA.Nodes, 2)

	gotB, err := cache.Load(b.HomeID)
	require.NoError(t, err)
	require.Len(t, gotB.Nodes, 1)
}

func TestOpenConfigCacheDispatchesByScheme(t *testing.T) {
	cache, err := OpenConfigCache("file://" + t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, cache)
}

func TestOpenConfigCacheUnsupportedScheme(t *testing.T) {
	_, err := OpenConfigCache("carrier-pigeon://loft")
	require.ErrorIs(t, err, ErrCacheUnsupportedScheme)
}

func TestCacheFactorySchemesIncludesRegisteredBackends(t *testing.T) {
	schemes := CacheFactorySchemes()
	require.Contains(t, schemes, "file")
	require.Contains(t, schemes, "azblob")
	require.Contains(t, schemes, "azqueue")
	require.Contains(t, schemes, "aztable")
}
