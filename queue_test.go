package zwave

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func msgTo(node byte, payload byte) Message {
	return Message{TargetNodeID: node, Frame: Frame{FunctionID: FuncZWSendData, Payload: []byte{payload}}}
}

func TestSendQueuesPopPriorityOrder(t *testing.T) {
	q := NewSendQueues()
	q.SendMessage(BandPoll, msgTo(1, 1))
	q.SendMessage(BandQuery, msgTo(1, 2))
	q.SendMessage(BandCommand, msgTo(1, 3))
	q.SendMessage(BandWakeUp, msgTo(1, 4))
	q.SendMessage(BandSend, msgTo(1, 5))

	order := []Band{BandCommand, BandWakeUp, BandSend, BandQuery, BandPoll}
	for _, want := range order {
		item, band, ok := q.Pop(nil)
		require.True(t, ok)
		require.Equal(t, want, band)
		require.False(t, item.isQueryComplete)
	}
	_, _, ok := q.Pop(nil)
	require.False(t, ok)
}

func TestSendQueuesEnqueueDedup(t *testing.T) {
	q := NewSendQueues()
	q.SendMessage(BandSend, msgTo(5, 9))
	q.SendMessage(BandSend, msgTo(5, 9))
	require.Equal(t, 1, q.Len(BandSend))

	q.SendMessage(BandSend, msgTo(5, 10))
	require.Equal(t, 2, q.Len(BandSend))
}

func TestSendQueuesEnqueueQueryCompleteDedup(t *testing.T) {
	q := NewSendQueues()
	q.EnqueueQueryComplete(3, QueryStageProtocolInfo)
	q.EnqueueQueryComplete(3, QueryStageProtocolInfo)
	require.Equal(t, 1, q.Len(BandQuery))

	q.EnqueueQueryComplete(3, QueryStageNodeInfo)
	require.Equal(t, 2, q.Len(BandQuery))
}

func TestSendQueuesSleepingNodeGate(t *testing.T) {
	q := NewSendQueues()
	q.SendMessage(BandSend, msgTo(7, 1))
	q.SendMessage(BandWakeUp, msgTo(7, 2))
	q.SendMessage(BandCommand, msgTo(7, 3))

	asleep := func(nodeID byte) bool { return nodeID == 7 }

	// Administration still reaches a sleeping node; everything else for
	// it is held.
	item, band, ok := q.Pop(asleep)
	require.True(t, ok)
	require.Equal(t, BandCommand, band)
	require.Equal(t, byte(3), item.msg.Frame.Payload[0])

	_, _, ok = q.Pop(asleep)
	require.False(t, ok, "Send and WakeUp items for a sleeping node must stay held")

	// Markers are cursor bookkeeping, never gated by sleep state.
	q.EnqueueQueryComplete(7, QueryStageProtocolInfo)
	item, band, ok = q.Pop(asleep)
	require.True(t, ok)
	require.Equal(t, BandQuery, band)
	require.True(t, item.isQueryComplete)
}

func TestSendQueuesEmptyAndLen(t *testing.T) {
	q := NewSendQueues()
	require.True(t, q.Empty())
	q.SendMessage(BandPoll, msgTo(1, 1))
	require.False(t, q.Empty())
	require.Equal(t, 1, q.Len(BandPoll))
	require.Equal(t, 0, q.Len(BandSend))
}

func TestMigrateNodeToWakeUpPreservesOrderAndBandPriority(t *testing.T) {
	q := NewSendQueues()
	q.SendMessage(BandSend, msgTo(9, 1))
	q.SendMessage(BandQuery, msgTo(9, 2))
	q.SendMessage(BandPoll, msgTo(9, 3))
	q.SendMessage(BandSend, msgTo(9, 4))
	q.SendMessage(BandSend, msgTo(2, 99)) // different node, must stay put

	moved := q.MigrateNodeToWakeUp(9)
	require.Equal(t, 4, moved)
	require.Equal(t, 1, q.Len(BandSend))
	require.Equal(t, 0, q.Len(BandQuery))
	require.Equal(t, 0, q.Len(BandPoll))
	require.Equal(t, 4, q.Len(BandWakeUp))

	wantOrder := []byte{1, 4, 2, 3}
	for _, want := range wantOrder {
		item, band, ok := q.Pop(nil)
		require.True(t, ok)
		require.Equal(t, BandWakeUp, band)
		require.Equal(t, want, item.msg.Frame.Payload[0])
	}
}

func TestMigrateNodeToWakeUpNoMatchingTraffic(t *testing.T) {
	q := NewSendQueues()
	q.SendMessage(BandSend, msgTo(2, 1))
	moved := q.MigrateNodeToWakeUp(9)
	require.Equal(t, 0, moved)
	require.Equal(t, 1, q.Len(BandSend))
	require.Equal(t, 0, q.Len(BandWakeUp))
}

func TestFlushWakeUpToCommand(t *testing.T) {
	q := NewSendQueues()
	q.SendMessage(BandWakeUp, msgTo(4, 1))
	q.SendMessage(BandWakeUp, msgTo(5, 2))
	q.SendMessage(BandWakeUp, msgTo(4, 3))

	moved := q.FlushWakeUpToCommand(4)
	require.Equal(t, 2, moved)
	require.Equal(t, 1, q.Len(BandWakeUp))
	require.Equal(t, 2, q.Len(BandCommand))

	item, band, ok := q.Pop(nil)
	require.True(t, ok)
	require.Equal(t, BandCommand, band)
	require.Equal(t, byte(1), item.msg.Frame.Payload[0])
}

func TestSendQueuesReadySignal(t *testing.T) {
	q := NewSendQueues()
	q.SendMessage(BandSend, msgTo(1, 1))
	select {
	case <-q.Ready():
	default:
		t.Fatal("expected Ready() to be signalled after Enqueue")
	}
}
