package cc

import (
	"fmt"

	zwave "github.com/cpchain-network/gozwave"
)

// Meter is command class 0x32: cumulative/instantaneous power and energy
// readings. Unlike Basic and SwitchBinary, a meter report packs a scale
// and precision into its first payload byte; this handler stores the
// raw bytes and leaves interpreting them to the caller, per the
// opaque-value contract.
const Meter byte = 0x32

const (
	meterGet    byte = 0x01
	meterReport byte = 0x02
)

func init() {
	zwave.RegisterCommandClassHandler(meterHandler{})
}

type meterHandler struct{}

func (meterHandler) CommandClass() byte { return Meter }

func (meterHandler) HandleReport(nodeID byte, payload []byte, store zwave.ValueStore) ([]zwave.ValueID, error) {
	if len(payload) < 2 || payload[0] != meterReport {
		return nil, fmt.Errorf("cc/meter: unexpected report payload from node %d", nodeID)
	}
	scale := (payload[1] >> 3) & 0x03
	id := zwave.ValueID{NodeID: nodeID, CommandClass: Meter, Instance: 1, Index: scale}
	if store.Set(id, payload[1:]) {
		return []zwave.ValueID{id}, nil
	}
	return nil, nil
}

func (meterHandler) BuildGet(id zwave.ValueID) (zwave.Message, error) {
	const callbackID = 3
	ccPayload := []byte{Meter, meterGet}
	payload := append([]byte{id.NodeID, byte(len(ccPayload))}, ccPayload...)
	payload = append(payload, byte(zwave.DefaultTXOptions), callbackID)

	return zwave.Message{
		Frame: zwave.Frame{
			Type:       zwave.FrameTypeRequest,
			FunctionID: zwave.FuncZWSendData,
			Payload:    payload,
		},
		TargetNodeID:         id.NodeID,
		ExpectedReply:        zwave.FuncZWSendData,
		ExpectedCommandClass: Meter,
		ExpectedCallbackID:   callbackID,
		CanSleep:             true,
	}, nil
}
