package zwave

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemValueStoreSetReportsChange(t *testing.T) {
	s := NewMemValueStore()
	id := ValueID{NodeID: 1, CommandClass: 0x25}

	require.True(t, s.Set(id, []byte{1}), "first write is always a change")
	require.False(t, s.Set(id, []byte{1}), "identical payload is not a change")
	require.True(t, s.Set(id, []byte{2}), "different payload is a change")

	v, ok := s.Get(id)
	require.True(t, ok)
	require.Equal(t, []byte{2}, v.Payload)
}

func TestMemValueStoreGetMissing(t *testing.T) {
	s := NewMemValueStore()
	_, ok := s.Get(ValueID{NodeID: 9})
	require.False(t, ok)
}

func TestMemValueStoreRemove(t *testing.T) {
	s := NewMemValueStore()
	id := ValueID{NodeID: 1}
	s.Set(id, []byte{1})
	s.Remove(id)
	_, ok := s.Get(id)
	require.False(t, ok)
}

func TestMemValueStoreRemoveNode(t *testing.T) {
	s := NewMemValueStore()
	a := ValueID{NodeID: 1, Index: 1}
	b := ValueID{NodeID: 1, Index: 2}
	c := ValueID{NodeID: 2, Index: 1}
	s.Set(a, []byte{1})
	s.Set(b, []byte{2})
	s.Set(c, []byte{3})

	s.RemoveNode(1)
	require.Len(t, s.All(), 1)
	_, ok := s.Get(c)
	require.True(t, ok)
}

func TestValueIDString(t *testing.T) {
	id := ValueID{NodeID: 5, CommandClass: 0x25, Instance: 1, Index: 2}
	require.Equal(t, "5:25:1:2", id.String())
}
