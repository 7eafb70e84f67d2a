package zwave

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQueueItemEqualitySendMsg(t *testing.T) {
	a := sendItem(Message{Frame: Frame{Type: FrameTypeRequest, FunctionID: FuncZWSendData, Payload: []byte{1, 2}}})
	b := sendItem(Message{Frame: Frame{Type: FrameTypeRequest, FunctionID: FuncZWSendData, Payload: []byte{1, 2}}})
	c := sendItem(Message{Frame: Frame{Type: FrameTypeRequest, FunctionID: FuncZWSendData, Payload: []byte{1, 3}}})

	require.True(t, a.equal(b))
	require.True(t, b.equal(a))
	require.False(t, a.equal(c))
}

func TestQueueItemEqualityIgnoresSendMetadata(t *testing.T) {
	// Dedup equality is bytewise over the encoded frame: two messages
	// with identical frames but distinct callback ids are duplicates.
	a := sendItem(Message{
		Frame:              Frame{FunctionID: FuncZWSendData, Payload: []byte{5, 1, 0x25}},
		ExpectedCallbackID: 0x10,
	})
	b := sendItem(Message{
		Frame:              Frame{FunctionID: FuncZWSendData, Payload: []byte{5, 1, 0x25}},
		ExpectedCallbackID: 0x11,
	})
	require.True(t, a.equal(b))
}

func TestQueueItemEqualityQueryComplete(t *testing.T) {
	a := queryCompleteItem(4, QueryStageProtocolInfo)
	b := queryCompleteItem(4, QueryStageProtocolInfo)
	c := queryCompleteItem(4, QueryStageNodeInfo)
	d := queryCompleteItem(5, QueryStageProtocolInfo)

	require.True(t, a.equal(b))
	require.False(t, a.equal(c))
	require.False(t, a.equal(d))
}

func TestQueueItemEqualityTagMismatch(t *testing.T) {
	msg := sendItem(Message{Frame: Frame{FunctionID: FuncZWSendData}})
	marker := queryCompleteItem(1, QueryStageNone)
	require.False(t, msg.equal(marker))
	require.False(t, marker.equal(msg))
}

func TestQueueItemTargetNode(t *testing.T) {
	require.Equal(t, byte(7), sendItem(Message{TargetNodeID: 7}).targetNode())
	require.Equal(t, byte(9), queryCompleteItem(9, QueryStageStatic).targetNode())
	require.Equal(t, byte(0), sendItem(Message{}).targetNode())
}

func TestBandString(t *testing.T) {
	cases := map[Band]string{
		BandCommand: "Command",
		BandWakeUp:  "WakeUp",
		BandSend:    "Send",
		BandQuery:   "Query",
		BandPoll:    "Poll",
	}
	for band, want := range cases {
		require.Equal(t, want, band.String())
	}
}
