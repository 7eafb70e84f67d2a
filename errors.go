package zwave

import (
	"errors"
	"fmt"
)

// Sentinel errors returned across the driver's public surface. Callers
// match on these with errors.Is; anything else is a wrapped, non-matchable
// detail error.
var (
	// ErrPortClosed is returned when an operation is attempted against a
	// serial transport that has already been closed.
	ErrPortClosed = errors.New("zwave: serial port closed")
	// ErrBadChecksum is a FrameError: the inbound frame's checksum byte
	// did not match the computed XOR over length+payload.
	ErrBadChecksum = errors.New("zwave: bad frame checksum")
	// ErrUnexpectedControlByte is a FrameError: a control byte was seen
	// outside of any context that expected one.
	ErrUnexpectedControlByte = errors.New("zwave: unexpected control byte")
	// ErrReadTimeout is a FrameError surfaced when the transport read
	// deadline elapses with no complete frame decoded.
	ErrReadTimeout = errors.New("zwave: read timeout")
	// ErrNotInFlight is returned when a reply or callback is fed to the
	// expected-reply state machine while it is Idle.
	ErrNotInFlight = errors.New("zwave: no message in flight")
	// ErrDropped is a TransactionError: the in-flight message exhausted
	// its retry budget and was dropped.
	ErrDropped = errors.New("zwave: message dropped after retries")
	// ErrControllerCommandBusy is a ControllerCommandError: a controller
	// command was requested while another was already active.
	ErrControllerCommandBusy = errors.New("zwave: controller command already in progress")
	// ErrControllerCommandNone is returned by Cancel when no controller
	// command is active.
	ErrControllerCommandNone = errors.New("zwave: no controller command in progress")
	// ErrUnknownNode is returned by node lookups against an id with no
	// entry in the node table.
	ErrUnknownNode = errors.New("zwave: unknown node id")
	// ErrInvalidNodeID is returned for node ids outside the 1..232 range.
	ErrInvalidNodeID = errors.New("zwave: node id out of range")
	// ErrDriverClosed is returned by public operations invoked after
	// Driver.Close has torn the main loop down.
	ErrDriverClosed = errors.New("zwave: driver closed")
	// ErrCacheUnsupportedScheme is returned when no config-cache backend
	// factory is registered for a requested URL scheme.
	ErrCacheUnsupportedScheme = errors.New("zwave: unsupported config-cache scheme")
	// ErrCacheNotFound is returned by a config-cache Load when no cache
	// exists yet for the requested home id.
	ErrCacheNotFound = errors.New("zwave: no cached config for home id")
)

// ProtocolError marks a decoded frame as malformed or out of the expected
// function-id sequence. It never perturbs the expected-reply state
// machine; the frame is dropped and the driver's Callbacks statistic is
// bumped.
type ProtocolError struct {
	FunctionID byte
	Reason     string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("zwave: protocol error: function 0x%02x: %s", e.FunctionID, e.Reason)
}

// isRecoverableFrameError reports whether a codec read error is a
// framing error — corrupt or malformed bytes the driver answers with a
// NAK and keeps running through — as opposed to a transport failure
// that tears the driver down.
func isRecoverableFrameError(err error) bool {
	var pe *ProtocolError
	return errors.Is(err, ErrBadChecksum) || errors.As(err, &pe)
}

// NodeUnreachableError marks repeated no-ack delivery failure against a
// node the driver believed was awake.
type NodeUnreachableError struct {
	NodeID byte
}

func (e *NodeUnreachableError) Error() string {
	return fmt.Sprintf("zwave: node %d unreachable", e.NodeID)
}

// ControllerCommandError wraps a failed administrative sequence together
// with the command that failed.
type ControllerCommandError struct {
	Command ControllerCommand
	Reason  string
}

func (e *ControllerCommandError) Error() string {
	return fmt.Sprintf("zwave: controller command %s failed: %s", e.Command, e.Reason)
}
