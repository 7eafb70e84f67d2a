package zwave

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControllerStateMachineBeginBusy(t *testing.T) {
	m := NewControllerStateMachine()
	id, err := m.Begin(ControllerCommandAddDevice, nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	_, err = m.Begin(ControllerCommandRemoveDevice, nil)
	require.ErrorIs(t, err, ErrControllerCommandBusy)
}

func TestControllerStateMachineCallbackFiresOnceOnTerminalState(t *testing.T) {
	m := NewControllerStateMachine()
	calls := 0
	var lastState ControllerState
	_, err := m.Begin(ControllerCommandAddDevice, func(cmd ControllerCommand, state ControllerState, _ error) {
		calls++
		lastState = state
	})
	require.NoError(t, err)

	m.UpdateState(ControllerStateInProgress, nil)
	require.Equal(t, 0, calls, "non-terminal states must not fire the callback")

	m.UpdateState(ControllerStateCompleted, nil)
	require.Equal(t, 1, calls)
	require.Equal(t, ControllerStateCompleted, lastState)

	// A second terminal update (shouldn't happen in practice) must not
	// fire the callback again.
	m.UpdateState(ControllerStateFailed, nil)
	require.Equal(t, 1, calls)
}

func TestControllerStateMachineReleasesSlotAfterTerminal(t *testing.T) {
	m := NewControllerStateMachine()
	_, err := m.Begin(ControllerCommandAddDevice, func(ControllerCommand, ControllerState, error) {})
	require.NoError(t, err)
	m.UpdateState(ControllerStateCompleted, nil)

	cmd, id, state := m.Active()
	require.Equal(t, ControllerCommandNone, cmd)
	require.Empty(t, id)
	require.Equal(t, ControllerStateNormal, state)

	_, err = m.Begin(ControllerCommandRemoveDevice, nil)
	require.NoError(t, err, "slot must be free for a new command after the prior one finished")
}

func TestControllerStateMachineCancelWithNoneActive(t *testing.T) {
	m := NewControllerStateMachine()
	err := m.Cancel()
	require.ErrorIs(t, err, ErrControllerCommandNone)
}

func TestControllerStateMachineCancelFiresCallbackWithCancelState(t *testing.T) {
	m := NewControllerStateMachine()
	var gotState ControllerState
	var gotErr error
	_, err := m.Begin(ControllerCommandAddDevice, func(_ ControllerCommand, state ControllerState, cmdErr error) {
		gotState = state
		gotErr = cmdErr
	})
	require.NoError(t, err)

	err = m.Cancel()
	require.NoError(t, err)
	require.Equal(t, ControllerStateCancel, gotState)
	require.NoError(t, gotErr)
}

func TestControllerStateMachineBeginGeneratesDistinctIDs(t *testing.T) {
	m := NewControllerStateMachine()
	id1, err := m.Begin(ControllerCommandAddDevice, nil)
	require.NoError(t, err)
	m.UpdateState(ControllerStateCompleted, nil)

	id2, err := m.Begin(ControllerCommandAddDevice, nil)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)
}

func TestUpdateNodeRoutesMachineAdvancesThroughStages(t *testing.T) {
	m := NewControllerStateMachine().Routes()
	m.Begin(12)

	active, nodeID, stage := m.Snapshot()
	require.True(t, active)
	require.Equal(t, byte(12), nodeID)
	require.Equal(t, RouteStageBegin, stage)

	want := []UpdateNodeRouteStage{
		RouteStageDeleted, RouteStageAssigning, RouteStageAssigning1,
		RouteStageAssigning2, RouteStageAssigning3, RouteStageAssigning4,
		RouteStageEnd,
	}
	for _, w := range want {
		require.Equal(t, w, m.Advance())
	}

	active, _, _ = m.Snapshot()
	require.False(t, active)
	require.Equal(t, RouteStageEnd, m.Advance(), "advancing past End is a no-op")
}

func TestUpdateNodeRoutesMachineAdvanceWithoutBeginIsNoOp(t *testing.T) {
	m := newUpdateNodeRoutesMachine()
	require.Equal(t, RouteStageEnd, m.Advance())
}

func TestControllerCommandErrorFormatting(t *testing.T) {
	var err error = &ControllerCommandError{Command: ControllerCommandAddDevice, Reason: "timed out"}
	require.Contains(t, err.Error(), "AddDevice")
	require.Contains(t, err.Error(), "timed out")

	var target *ControllerCommandError
	require.True(t, errors.As(err, &target))
}
