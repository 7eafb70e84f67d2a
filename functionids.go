package zwave

// Control bytes and frame-lead-in markers for the Z-Wave serial API.
// The codec treats FunctionID as an opaque byte;
// this closed enumeration exists only so callers and dispatch code have
// names instead of magic numbers. Unrecognized function ids are still
// carried end to end by the codec; the driver's dispatch counts them and
// drops them. FuncUnknown is a name only and is not used in dispatch.
const (
	SOF byte = 0x01
	ACK byte = 0x06
	NAK byte = 0x15
	CAN byte = 0x18
)

// FrameType occupies the first payload byte of a SOF frame.
type FrameType byte

const (
	FrameTypeRequest  FrameType = 0x00
	FrameTypeResponse FrameType = 0x01
)

// FunctionID identifies the Z-Wave serial API call or callback carried by
// a frame's payload. The codec is symbol-agnostic — it carries the
// byte — but the driver's dispatch table needs names for the subset of
// functions it understands.
type FunctionID byte

const (
	FuncDiscovery                    FunctionID = 0x01
	FuncSerialAPIGetInitData         FunctionID = 0x02
	FuncApplicationControllerUpdate  FunctionID = 0x49
	FuncApplicationCommandHandler    FunctionID = 0x04
	FuncGetControllerCapabilities    FunctionID = 0x05
	FuncSerialAPISetTimeouts         FunctionID = 0x06
	FuncSerialAPIGetCapabilities     FunctionID = 0x07
	FuncSerialAPISoftReset           FunctionID = 0x08
	FuncZWSendNodeInformation        FunctionID = 0x12
	FuncZWSendData                   FunctionID = 0x13
	FuncZWGetVersion                 FunctionID = 0x15
	FuncZWRFPowerLevelSet            FunctionID = 0x17
	FuncZWGetRandom                  FunctionID = 0x1c
	FuncMemoryGetID                  FunctionID = 0x20
	FuncZWGetNodeProtocolInfo        FunctionID = 0x41
	FuncZWRequestNodeInfo            FunctionID = 0x60
	FuncZWAddNodeToNetwork           FunctionID = 0x4a
	FuncZWRemoveNodeFromNetwork      FunctionID = 0x4b
	FuncZWCreateNewPrimary           FunctionID = 0x4c
	FuncZWControllerChange           FunctionID = 0x4d
	FuncZWSetLearnMode               FunctionID = 0x50
	FuncZWAssignReturnRoute          FunctionID = 0x46
	FuncZWDeleteReturnRoute          FunctionID = 0x47
	FuncZWRequestNodeNeighborUpdate  FunctionID = 0x48
	FuncZWRequestNetworkUpdate       FunctionID = 0x53
	FuncZWRemoveFailedNode           FunctionID = 0x61
	FuncZWIsFailedNode               FunctionID = 0x62
	FuncZWReplaceFailedNode          FunctionID = 0x63
	FuncZWSetSlaveLearnMode          FunctionID = 0xa4
	FuncZWSetSUCNodeID               FunctionID = 0x54
	FuncZWGetSUCNodeID               FunctionID = 0x56
	FuncZWEnableSUC                  FunctionID = 0x52
	FuncZWSendDataAbort              FunctionID = 0x16
	FuncZWSetDefault                 FunctionID = 0x42
	FuncUnknown                      FunctionID = 0xff
)

// SendDataStatus is the callback status byte carried by a ZWSendData
// completion callback.
type SendDataStatus byte

const (
	SendDataOK         SendDataStatus = 0x00
	SendDataNoAck      SendDataStatus = 0x01
	SendDataFail       SendDataStatus = 0x02
	SendDataNotIdle    SendDataStatus = 0x03
	SendDataNoRoute    SendDataStatus = 0x04
	SendDataRoutedBusy SendDataStatus = 0x05
)

// Add/remove-node callback status bytes, shared by AddNodeToNetwork,
// RemoveNodeFromNetwork, CreateNewPrimary and ControllerChange.
const (
	nodeStatusLearnReady       byte = 0x01
	nodeStatusNodeFound        byte = 0x02
	nodeStatusAddingSlave      byte = 0x03
	nodeStatusAddingController byte = 0x04
	nodeStatusProtocolDone     byte = 0x05
	nodeStatusDone             byte = 0x06
	nodeStatusFailed           byte = 0x07
)

// Add/remove-node mode bytes and their option flags.
const (
	nodeModeAny         byte = 0x01
	nodeModeController  byte = 0x02
	nodeModeStop        byte = 0x05
	nodeModeNetworkWide byte = 0x40
	nodeModeHighPower   byte = 0x80
)

// RequestNodeNeighborUpdate callback statuses.
const (
	neighborUpdateStarted byte = 0x21
	neighborUpdateDone    byte = 0x22
	neighborUpdateFailed  byte = 0x23
)

// Failed-node removal/replacement callback statuses.
const (
	failedNodeRemoved        byte = 0x01
	failedNodeNotRemoved     byte = 0x02
	failedNodeReplaceWaiting byte = 0x03
	failedNodeReplaceDone    byte = 0x04
	failedNodeReplaceFailed  byte = 0x05
)

// Learn-mode (ReceiveConfiguration) callback statuses.
const (
	learnModeStarted byte = 0x01
	learnModeDone    byte = 0x06
	learnModeFailed  byte = 0x07
)

// TXOption bits sent with every ZW_SEND_DATA.
type TXOption byte

const (
	TXOptionACK       TXOption = 0x01
	TXOptionLowPower  TXOption = 0x02
	TXOptionAutoRoute TXOption = 0x04
	TXOptionExplore   TXOption = 0x20
)

// DefaultTXOptions is ACK|AUTO_ROUTE, the baseline transmit option set
// for every outbound ZW_SEND_DATA.
const DefaultTXOptions = TXOptionACK | TXOptionAutoRoute
