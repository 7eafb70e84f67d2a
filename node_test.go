package zwave

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNodeTableGetOrCreate(t *testing.T) {
	table := NewNodeTable()
	n, err := table.GetOrCreate(10)
	require.NoError(t, err)
	require.Equal(t, byte(10), n.ID)
	require.True(t, n.Awake())

	same, err := table.GetOrCreate(10)
	require.NoError(t, err)
	require.Same(t, n, same)
}

func TestNodeTableGetOrCreateInvalidID(t *testing.T) {
	table := NewNodeTable()
	_, err := table.GetOrCreate(0)
	require.ErrorIs(t, err, ErrInvalidNodeID)
	_, err = table.GetOrCreate(MaxNodeID + 1)
	require.ErrorIs(t, err, ErrInvalidNodeID)
}

func TestNodeTableGetMissing(t *testing.T) {
	table := NewNodeTable()
	require.Nil(t, table.Get(5))
	require.Nil(t, table.Get(0))
	require.Nil(t, table.Get(255))
}

func TestNodeTableRemove(t *testing.T) {
	table := NewNodeTable()
	_, err := table.GetOrCreate(4)
	require.NoError(t, err)
	table.Remove(4)
	require.Nil(t, table.Get(4))
}

func TestNodeTableRange(t *testing.T) {
	table := NewNodeTable()
	ids := []byte{3, 1, 200}
	for _, id := range ids {
		_, err := table.GetOrCreate(id)
		require.NoError(t, err)
	}

	var seen []byte
	table.Range(func(n *Node) { seen = append(seen, n.ID) })
	require.Equal(t, []byte{1, 3, 200}, seen, "Range must visit in ascending id order")
}

func TestNodeTableAwakeNodesQueried(t *testing.T) {
	table := NewNodeTable()
	listening, err := table.GetOrCreate(1)
	require.NoError(t, err)
	listening.Listening = true

	sleeping, err := table.GetOrCreate(2)
	require.NoError(t, err)
	sleeping.Listening = false

	require.False(t, table.AwakeNodesQueried(), "listening node not yet queried")

	listening.QueryStage = QueryStageComplete
	require.True(t, table.AwakeNodesQueried(), "sleeping node's query state doesn't block AwakeNodesQueried")
	require.False(t, table.AllNodesQueried(), "sleeping node still blocks AllNodesQueried")

	sleeping.QueryStage = QueryStageComplete
	require.True(t, table.AllNodesQueried())
}

func TestNodeCommandClasses(t *testing.T) {
	n := newNode(1)
	require.False(t, n.HasCommandClass(0x25))
	n.AddCommandClass(0x25)
	require.True(t, n.HasCommandClass(0x25))
}

func TestNodeSetAwake(t *testing.T) {
	n := newNode(1)
	require.True(t, n.Awake())
	n.SetAwake(false)
	require.False(t, n.Awake())
}
