package zwave

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueryStageNext(t *testing.T) {
	require.Equal(t, QueryStageProtocolInfo, QueryStageNone.next())
	require.Equal(t, QueryStageComplete, QueryStageComplete.next())
}

func TestAdvanceQueriesAdvancesAndInvokesEnqueue(t *testing.T) {
	n := newNode(3)
	n.QueryStage = QueryStageProtocolInfo
	queues := NewSendQueues()

	var gotNode *Node
	var gotStage QueryStage
	advanceQueries(n, QueryStageProtocolInfo, queues, func(node *Node, stage QueryStage) {
		gotNode = node
		gotStage = stage
	})

	require.Equal(t, QueryStageProbe, n.Stage())
	require.Same(t, n, gotNode)
	require.Equal(t, QueryStageProbe, gotStage)
	require.Equal(t, uint32(QueryStageProbe), n.stats.QueryStage.Load())
}

func TestAdvanceQueriesIgnoresStaleMarker(t *testing.T) {
	n := newNode(3)
	n.QueryStage = QueryStageVersion
	queues := NewSendQueues()

	called := false
	advanceQueries(n, QueryStageProtocolInfo, queues, func(*Node, QueryStage) { called = true })

	require.Equal(t, QueryStageVersion, n.Stage(), "stale marker must not move the cursor")
	require.False(t, called)
}

func TestAdvanceQueriesAtCompleteDoesNotEnqueue(t *testing.T) {
	n := newNode(3)
	n.QueryStage = QueryStageConfiguration
	queues := NewSendQueues()

	called := false
	advanceQueries(n, QueryStageConfiguration, queues, func(*Node, QueryStage) { called = true })

	require.Equal(t, QueryStageComplete, n.Stage())
	require.False(t, called, "reaching Complete must not call enqueueStage")
}
