package zwave

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPollEngineEnableAndDisable(t *testing.T) {
	e := NewPollEngine(DispatchIntervalBetweenPolls, time.Second, nil)
	id := ValueID{NodeID: 1, CommandClass: 0x25, Instance: 1}

	require.False(t, e.IsPolled(id))
	e.Enable(id, PollNormal)
	require.True(t, e.IsPolled(id))
	require.Equal(t, 1, e.Len())

	e.Enable(id, PollNone)
	require.False(t, e.IsPolled(id))
	require.Equal(t, 0, e.Len())
}

func TestPollEngineNextRotates(t *testing.T) {
	e := NewPollEngine(DispatchIntervalBetweenPolls, time.Second, nil)
	a := ValueID{NodeID: 1, Index: 1}
	b := ValueID{NodeID: 1, Index: 2}
	e.Enable(a, PollNormal)
	e.Enable(b, PollNormal)

	first, ok := e.Next()
	require.True(t, ok)
	require.Equal(t, a, first)
	require.False(t, e.AtCycleStart())

	second, ok := e.Next()
	require.True(t, ok)
	require.Equal(t, b, second)
	require.True(t, e.AtCycleStart())

	third, ok := e.Next()
	require.True(t, ok)
	require.Equal(t, a, third)
}

func TestPollEngineIntensityPacesEntry(t *testing.T) {
	e := NewPollEngine(DispatchIntervalBetweenPolls, time.Second, nil)
	a := ValueID{NodeID: 1, Index: 1}
	b := ValueID{NodeID: 1, Index: 2}
	e.Enable(a, PollNormal)
	e.Enable(b, PollIntensity(2))

	// First pass: a fires, b's counter only runs down to 1.
	id, ok := e.Next()
	require.True(t, ok)
	require.Equal(t, a, id)
	_, ok = e.Next()
	require.False(t, ok, "an intensity-2 entry must not fire on its first pass")

	// Second pass: both due.
	id, ok = e.Next()
	require.True(t, ok)
	require.Equal(t, a, id)
	id, ok = e.Next()
	require.True(t, ok)
	require.Equal(t, b, id)

	// Third pass: b is pacing again.
	id, ok = e.Next()
	require.True(t, ok)
	require.Equal(t, a, id)
	_, ok = e.Next()
	require.False(t, ok)
}

func TestPollEngineEnableResetsCounterOnIntensityChange(t *testing.T) {
	e := NewPollEngine(DispatchIntervalBetweenPolls, time.Second, nil)
	a := ValueID{NodeID: 1, Index: 1}
	e.Enable(a, PollIntensity(3))

	_, ok := e.Next()
	require.False(t, ok)

	// Re-enabling at a new intensity restarts the countdown from it.
	e.Enable(a, PollNormal)
	id, ok := e.Next()
	require.True(t, ok)
	require.Equal(t, a, id)
}

func TestPollEngineNextEmpty(t *testing.T) {
	e := NewPollEngine(DispatchIntervalBetweenPolls, time.Second, nil)
	_, ok := e.Next()
	require.False(t, ok)
}

func TestPollEngineTickEnqueuesOntoPollBand(t *testing.T) {
	id := ValueID{NodeID: 1, CommandClass: 0x20, Index: 0}
	built := Message{TargetNodeID: 1, Frame: Frame{FunctionID: FuncZWSendData}}
	e := NewPollEngine(DispatchIntervalBetweenPolls, time.Second, func(got ValueID) (Message, error) {
		require.Equal(t, id, got)
		return built, nil
	})
	e.Enable(id, PollNormal)

	queues := NewSendQueues()
	err := e.Tick(queues)
	require.NoError(t, err)
	require.Equal(t, 1, queues.Len(BandPoll))
}

func TestPollEngineTickEmptyRotationIsNoOp(t *testing.T) {
	e := NewPollEngine(DispatchIntervalBetweenPolls, time.Second, func(ValueID) (Message, error) {
		t.Fatal("buildPoll must not be called with an empty rotation")
		return Message{}, nil
	})
	queues := NewSendQueues()
	require.NoError(t, e.Tick(queues))
	require.True(t, queues.Empty())
}

func TestPollEngineTickPropagatesBuildError(t *testing.T) {
	boom := errors.New("boom")
	e := NewPollEngine(DispatchIntervalBetweenPolls, time.Second, func(ValueID) (Message, error) {
		return Message{}, boom
	})
	e.Enable(ValueID{NodeID: 1}, PollNormal)

	queues := NewSendQueues()
	err := e.Tick(queues)
	require.ErrorIs(t, err, boom)
}

func TestAdaptivePollDoublesTowardSteady(t *testing.T) {
	p := NewAdaptivePoll(time.Millisecond, 4*time.Millisecond)
	require.Equal(t, time.Millisecond, p.Cur)
	p.Sleep()
	require.Equal(t, 2*time.Millisecond, p.Cur)
	p.Sleep()
	require.Equal(t, 4*time.Millisecond, p.Cur)
	p.Sleep()
	require.Equal(t, 4*time.Millisecond, p.Cur, "must cap at Steady")
}

func TestAdaptivePollReset(t *testing.T) {
	p := NewAdaptivePoll(time.Millisecond, 4*time.Millisecond)
	p.Sleep()
	p.Sleep()
	require.NotEqual(t, p.Fast, p.Cur)
	p.Reset()
	require.Equal(t, p.Fast, p.Cur)
}
