package cc

import (
	"fmt"

	zwave "github.com/cpchain-network/gozwave"
)

// SwitchBinary is command class 0x25: on/off actuators (relays, plugs).
const SwitchBinary byte = 0x25

const (
	switchBinaryGet    byte = 0x02
	switchBinaryReport byte = 0x03
)

func init() {
	zwave.RegisterCommandClassHandler(switchBinaryHandler{})
}

type switchBinaryHandler struct{}

func (switchBinaryHandler) CommandClass() byte { return SwitchBinary }

func (switchBinaryHandler) HandleReport(nodeID byte, payload []byte, store zwave.ValueStore) ([]zwave.ValueID, error) {
	if len(payload) < 2 || payload[0] != switchBinaryReport {
		return nil, fmt.Errorf("cc/switchbinary: unexpected report payload from node %d", nodeID)
	}
	id := zwave.ValueID{NodeID: nodeID, CommandClass: SwitchBinary, Instance: 1, Index: 0}
	if store.Set(id, payload[1:2]) {
		return []zwave.ValueID{id}, nil
	}
	return nil, nil
}

func (switchBinaryHandler) BuildGet(id zwave.ValueID) (zwave.Message, error) {
	const callbackID = 2
	ccPayload := []byte{SwitchBinary, switchBinaryGet}
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
		ExpectedCommandClass: SwitchBinary,
		ExpectedCallbackID:   callbackID,
		CanSleep:             true,
	}, nil
}
