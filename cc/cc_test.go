package cc

import (
	"testing"

	zwave "github.com/cpchain-network/gozwave"
	"github.com/stretchr/testify/require"
)

func lookup(t *testing.T, class byte) zwave.CommandClassHandler {
	t.Helper()
	h, ok := zwave.LookupCommandClassHandler(class)
	require.True(t, ok, "handler for 0x%02x not registered", class)
	return h
}

func TestHandlersRegisterOnImport(t *testing.T) {
	for _, class := range []byte{Basic, SwitchBinary, Meter} {
		lookup(t, class)
	}
}

func TestBasicHandleReportStoresValue(t *testing.T) {
	h := lookup(t, Basic)
	store := zwave.NewMemValueStore()

	changed, err := h.HandleReport(4, []byte{basicReport, 0x63}, store)
	require.NoError(t, err)
	require.Len(t, changed, 1)

	v, ok := store.Get(changed[0])
	require.True(t, ok)
	require.Equal(t, []byte{0x63}, v.Payload)

	// The same level again is not a change.
	changed, err = h.HandleReport(4, []byte{basicReport, 0x63}, store)
	require.NoError(t, err)
	require.Empty(t, changed)
}

func TestBasicHandleReportRejectsWrongOpcode(t *testing.T) {
	h := lookup(t, Basic)
	_, err := h.HandleReport(4, []byte{basicSet, 0x63}, zwave.NewMemValueStore())
	require.Error(t, err)
}

func TestSwitchBinaryHandleReport(t *testing.T) {
	h := lookup(t, SwitchBinary)
	store := zwave.NewMemValueStore()

	changed, err := h.HandleReport(7, []byte{switchBinaryReport, 0xff}, store)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	require.Equal(t, byte(7), changed[0].NodeID)
	require.Equal(t, SwitchBinary, changed[0].CommandClass)
}

func TestMeterHandleReportIndexesByScale(t *testing.T) {
	h := lookup(t, Meter)
	store := zwave.NewMemValueStore()

	// Scale bits (payload[1] >> 3) & 0x03 select the value index, so two
	// scales report into two distinct values.
	changed, err := h.HandleReport(9, []byte{meterReport, 0x00, 0x12}, store)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	require.Equal(t, byte(0), changed[0].Index)

	changed, err = h.HandleReport(9, []byte{meterReport, 0x08, 0x34}, store)
	require.NoError(t, err)
	require.Len(t, changed, 1)
	require.Equal(t, byte(1), changed[0].Index)
}

func TestBuildGetShapesSendDataFrame(t *testing.T) {
	for _, class := range []byte{Basic, SwitchBinary, Meter} {
		h := lookup(t, class)
		id := zwave.ValueID{NodeID: 12, CommandClass: class, Instance: 1}

		msg, err := h.BuildGet(id)
		require.NoError(t, err)
		require.Equal(t, zwave.FuncZWSendData, msg.Frame.FunctionID)
		require.Equal(t, byte(12), msg.TargetNodeID)
		require.Equal(t, byte(12), msg.Frame.Payload[0])
		require.Equal(t, class, msg.Frame.Payload[2], "first command-class byte must be the class id")
		require.Equal(t, class, msg.ExpectedCommandClass)
		require.True(t, msg.CanSleep)
	}
}
