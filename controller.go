package zwave

import (
	"sync"

	"github.com/google/uuid"
)

// ControllerCommand enumerates the multi-step administrative sequences
// the controller can run. Exactly one may be active at a time.
type ControllerCommand int

const (
	ControllerCommandNone ControllerCommand = iota
	ControllerCommandAddController
	ControllerCommandAddDevice
	ControllerCommandCreateNewPrimary
	ControllerCommandReceiveConfiguration
	ControllerCommandRemoveController
	ControllerCommandRemoveDevice
	ControllerCommandRemoveFailedNode
	ControllerCommandHasNodeFailed
	ControllerCommandReplaceFailedNode
	ControllerCommandTransferPrimaryRole
	ControllerCommandRequestNetworkUpdate
	ControllerCommandRequestNodeNeighborUpdate
	ControllerCommandAssignReturnRoute
	ControllerCommandDeleteAllReturnRoutes
	ControllerCommandCreateButton
	ControllerCommandDeleteButton
)

func (c ControllerCommand) String() string {
	switch c {
	case ControllerCommandNone:
		return "None"
	case ControllerCommandAddController:
		return "AddController"
	case ControllerCommandAddDevice:
		return "AddDevice"
	case ControllerCommandCreateNewPrimary:
		return "CreateNewPrimary"
	case ControllerCommandReceiveConfiguration:
		return "ReceiveConfiguration"
	case ControllerCommandRemoveController:
		return "RemoveController"
	case ControllerCommandRemoveDevice:
		return "RemoveDevice"
	case ControllerCommandRemoveFailedNode:
		return "RemoveFailedNode"
	case ControllerCommandHasNodeFailed:
		return "HasNodeFailed"
	case ControllerCommandReplaceFailedNode:
		return "ReplaceFailedNode"
	case ControllerCommandTransferPrimaryRole:
		return "TransferPrimaryRole"
	case ControllerCommandRequestNetworkUpdate:
		return "RequestNetworkUpdate"
	case ControllerCommandRequestNodeNeighborUpdate:
		return "RequestNodeNeighborUpdate"
	case ControllerCommandAssignReturnRoute:
		return "AssignReturnRoute"
	case ControllerCommandDeleteAllReturnRoutes:
		return "DeleteAllReturnRoutes"
	case ControllerCommandCreateButton:
		return "CreateButton"
	case ControllerCommandDeleteButton:
		return "DeleteButton"
	default:
		return "ControllerCommand(?)"
	}
}

// ControllerState is the reported progress of the active controller
// command.
type ControllerState int

const (
	ControllerStateNormal ControllerState = iota
	ControllerStateStarting
	ControllerStateWaiting
	ControllerStateInProgress
	ControllerStateCompleted
	ControllerStateFailed
	ControllerStateCancel
	ControllerStateError
	// ControllerStateNodeOK and ControllerStateNodeFailed are the two
	// extra terminal states HasNodeFailed reports instead of
	// Completed/Failed.
	ControllerStateNodeOK
	ControllerStateNodeFailed
)

func (s ControllerState) String() string {
	switch s {
	case ControllerStateNormal:
		return "Normal"
	case ControllerStateStarting:
		return "Starting"
	case ControllerStateWaiting:
		return "Waiting"
	case ControllerStateInProgress:
		return "InProgress"
	case ControllerStateCompleted:
		return "Completed"
	case ControllerStateFailed:
		return "Failed"
	case ControllerStateCancel:
		return "Cancel"
	case ControllerStateError:
		return "Error"
	case ControllerStateNodeOK:
		return "NodeOK"
	case ControllerStateNodeFailed:
		return "NodeFailed"
	default:
		return "ControllerState(?)"
	}
}

// ControllerCallback is invoked exactly once per controller command, when
// it reaches a terminal state (Completed, Failed, Cancel, Error, NodeOK
// or NodeFailed).
type ControllerCallback func(cmd ControllerCommand, state ControllerState, err error)

// ControllerCommandArgs carries the per-command parameters several
// administrative sequences need: the node being operated on, an optional
// second node (AssignReturnRoute's route target), whether to transmit at
// high RF power during inclusion/exclusion, and a command-specific extra
// byte (CreateButton's button id, for example).
type ControllerCommandArgs struct {
	NodeID    byte
	TargetID  byte
	HighPower bool
	Arg       byte
}

// ControllerStateMachine enforces the single-active-command constraint
// and guarantees each command's callback fires exactly once.
type ControllerStateMachine struct {
	mu sync.Mutex

	active   ControllerCommand
	id       string
	state    ControllerState
	args     ControllerCommandArgs
	callback ControllerCallback
	fired    bool

	routes *UpdateNodeRoutesMachine
}

// NewControllerStateMachine returns a machine with no active command.
func NewControllerStateMachine() *ControllerStateMachine {
	return &ControllerStateMachine{active: ControllerCommandNone, routes: newUpdateNodeRoutesMachine()}
}

// Begin starts cmd if no command is currently active. It returns
// ErrControllerCommandBusy otherwise. The returned id is a fresh
// correlation id for this run of cmd, useful for tying log lines and
// notifications back to the request that caused them.
func (m *ControllerStateMachine) Begin(cmd ControllerCommand, cb ControllerCallback) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != ControllerCommandNone {
		return "", ErrControllerCommandBusy
	}
	m.active = cmd
	m.id = uuid.New().String()
	m.state = ControllerStateStarting
	m.args = ControllerCommandArgs{}
	m.callback = cb
	m.fired = false
	return m.id, nil
}

// Active returns the currently active command, its correlation id and
// its last reported state (ControllerCommandNone, "", ControllerStateNormal
// if none).
func (m *ControllerStateMachine) Active() (ControllerCommand, string, ControllerState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.id, m.state
}

// setArgs records the per-command parameters for the active command.
func (m *ControllerStateMachine) setArgs(a ControllerCommandArgs) {
	m.mu.Lock()
	m.args = a
	m.mu.Unlock()
}

// Args returns the parameters the active command was begun with.
func (m *ControllerStateMachine) Args() ControllerCommandArgs {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.args
}

// UpdateState records a new reported state for the active command and,
// if it is terminal, fires the callback exactly once and releases the
// single-active-command slot.
func (m *ControllerStateMachine) UpdateState(state ControllerState, err error) {
	m.mu.Lock()
	if m.active == ControllerCommandNone {
		m.mu.Unlock()
		return
	}
	m.state = state
	terminal := isTerminalControllerState(state)
	cmd := m.active
	cb := m.callback
	already := m.fired
	if terminal {
		m.fired = true
	}
	m.mu.Unlock()

	if terminal && !already && cb != nil {
		cb(cmd, state, err)
	}
	if terminal {
		m.mu.Lock()
		m.active = ControllerCommandNone
		m.id = ""
		m.state = ControllerStateNormal
		m.callback = nil
		m.mu.Unlock()
	}
}

// Cancel aborts the active command, if any, firing its callback with
// ControllerStateCancel.
func (m *ControllerStateMachine) Cancel() error {
	m.mu.Lock()
	if m.active == ControllerCommandNone {
		m.mu.Unlock()
		return ErrControllerCommandNone
	}
	m.mu.Unlock()
	m.UpdateState(ControllerStateCancel, nil)
	return nil
}

func isTerminalControllerState(s ControllerState) bool {
	switch s {
	case ControllerStateCompleted, ControllerStateFailed, ControllerStateCancel,
		ControllerStateError, ControllerStateNodeOK, ControllerStateNodeFailed:
		return true
	default:
		return false
	}
}

// Routes returns the UpdateNodeRoutes sub-machine, the nested sequence
// the AssignReturnRoute controller command runs. DeleteAllReturnRoutes
// does not use it.
func (m *ControllerStateMachine) Routes() *UpdateNodeRoutesMachine { return m.routes }

// UpdateNodeRouteStage is the nested sequence several controller
// commands run after association changes: Begin -> Deleted ->
// Assigning -> Assigning1..4 -> End.
type UpdateNodeRouteStage int

const (
	RouteStageBegin UpdateNodeRouteStage = iota
	RouteStageDeleted
	RouteStageAssigning
	RouteStageAssigning1
	RouteStageAssigning2
	RouteStageAssigning3
	RouteStageAssigning4
	RouteStageEnd
)

func (s UpdateNodeRouteStage) String() string {
	switch s {
	case RouteStageBegin:
		return "Begin"
	case RouteStageDeleted:
		return "Deleted"
	case RouteStageAssigning:
		return "Assigning"
	case RouteStageAssigning1:
		return "Assigning1"
	case RouteStageAssigning2:
		return "Assigning2"
	case RouteStageAssigning3:
		return "Assigning3"
	case RouteStageAssigning4:
		return "Assigning4"
	case RouteStageEnd:
		return "End"
	default:
		return "UpdateNodeRouteStage(?)"
	}
}

// UpdateNodeRoutesMachine tracks the nested route-reassignment sequence
// for whichever node is currently being processed.
type UpdateNodeRoutesMachine struct {
	mu     sync.Mutex
	active bool
	nodeID byte
	stage  UpdateNodeRouteStage
}

func newUpdateNodeRoutesMachine() *UpdateNodeRoutesMachine { return &UpdateNodeRoutesMachine{} }

// Begin starts the sequence for nodeID at RouteStageBegin.
func (m *UpdateNodeRoutesMachine) Begin(nodeID byte) {
	m.mu.Lock()
	m.active = true
	m.nodeID = nodeID
	m.stage = RouteStageBegin
	m.mu.Unlock()
}

// Advance moves to the next stage in sequence. Advancing past End is a
// no-op and clears Active.
func (m *UpdateNodeRoutesMachine) Advance() UpdateNodeRouteStage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return RouteStageEnd
	}
	if m.stage >= RouteStageEnd {
		m.active = false
		return RouteStageEnd
	}
	m.stage++
	if m.stage >= RouteStageEnd {
		m.active = false
	}
	return m.stage
}

// Snapshot returns whether the sub-machine is active, and if so, the
// node id and current stage.
func (m *UpdateNodeRoutesMachine) Snapshot() (active bool, nodeID byte, stage UpdateNodeRouteStage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active, m.nodeID, m.stage
}
