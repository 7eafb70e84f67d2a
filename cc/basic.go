// Package cc provides CommandClassHandler implementations for a handful
// of the most common Z-Wave command classes, registered with the driver
// core's plugin registry on import. Host applications that need classes
// beyond these import this package for the common ones and register
// their own zwave.CommandClassHandler for anything exotic.
package cc

import (
	"fmt"

	zwave "github.com/cpchain-network/gozwave"
)

// Basic is command class 0x20: the lowest-common-denominator on/off or
// level report every Z-Wave device implements in some form.
const Basic byte = 0x20

const (
	basicGet    byte = 0x02
	basicReport byte = 0x03
	basicSet    byte = 0x01
)

func init() {
	zwave.RegisterCommandClassHandler(basicHandler{})
}

type basicHandler struct{}

func (basicHandler) CommandClass() byte { return Basic }

func (basicHandler) HandleReport(nodeID byte, payload []byte, store zwave.ValueStore) ([]zwave.ValueID, error) {
	if len(payload) < 2 || payload[0] != basicReport {
		return nil, fmt.Errorf("cc/basic: unexpected report payload from node %d", nodeID)
	}
	id := zwave.ValueID{NodeID: nodeID, CommandClass: Basic, Instance: 1, Index: 0}
	if store.Set(id, payload[1:2]) {
		return []zwave.ValueID{id}, nil
	}
	return nil, nil
}

func (basicHandler) BuildGet(id zwave.ValueID) (zwave.Message, error) {
	const callbackID = 1
	ccPayload := []byte{Basic, basicGet}
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
		ExpectedCommandClass: Basic,
		ExpectedCallbackID:   callbackID,
		CanSleep:             true,
	}, nil
}
