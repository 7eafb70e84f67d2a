package zwave

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newMachine() (*ExpectedReplyMachine, *SendQueues, *DriverStats) {
	queues := NewSendQueues()
	stats := &DriverStats{}
	return NewExpectedReplyMachine(queues, stats), queues, stats
}

func TestExpectedReplyAckOnlyCompletesImmediately(t *testing.T) {
	m, _, _ := newMachine()
	require.True(t, m.IsIdle())

	msg := Message{TargetNodeID: 3}
	now := time.Now()
	m.Begin(msg, now, BandSend)
	require.False(t, m.IsIdle())
	require.Equal(t, StateAwaitingAck, m.Snapshot().State)

	m.OnAck()
	require.Equal(t, StateDone, m.Snapshot().State)

	m.Finish()
	require.True(t, m.IsIdle())
}

func TestExpectedReplyWaitsForReplyThenCallback(t *testing.T) {
	m, _, _ := newMachine()
	msg := Message{TargetNodeID: 3, ExpectedReply: FuncZWSendData, ExpectedCallbackID: 7}
	m.Begin(msg, time.Now(), BandSend)

	m.OnAck()
	require.Equal(t, StateAwaitingReply, m.Snapshot().State)

	require.True(t, m.MatchesReply(Frame{FunctionID: FuncZWSendData}, 0, 0))
	m.OnReply()
	require.Equal(t, StateAwaitingCallback, m.Snapshot().State)

	require.False(t, m.MatchesCallback(6))
	require.True(t, m.MatchesCallback(7))
	m.OnCallback()
	require.Equal(t, StateDone, m.Snapshot().State)
}

func TestExpectedReplyMatchesReplyRequiresNodeAndCommandClassForApplicationCommand(t *testing.T) {
	m, _, _ := newMachine()
	msg := Message{TargetNodeID: 5, ExpectedReply: FuncApplicationCommandHandler, ExpectedCommandClass: 0x25}
	m.Begin(msg, time.Now(), BandSend)
	m.OnAck()

	require.False(t, m.MatchesReply(Frame{FunctionID: FuncApplicationCommandHandler}, 5, 0x20))
	require.False(t, m.MatchesReply(Frame{FunctionID: FuncApplicationCommandHandler}, 6, 0x25))
	require.True(t, m.MatchesReply(Frame{FunctionID: FuncApplicationCommandHandler}, 5, 0x25))
}

func TestExpectedReplyOnNakRequeuesWithoutCountingAttempt(t *testing.T) {
	m, queues, stats := newMachine()
	msg := Message{TargetNodeID: 3, Frame: Frame{Payload: []byte{1}}}
	m.Begin(msg, time.Now(), BandQuery)
	require.Equal(t, 1, m.Snapshot().Msg.attempts)

	m.OnNakOrCan(true)
	require.True(t, m.IsIdle())
	require.Equal(t, uint64(1), stats.Nak.Load())

	item, band, ok := queues.Pop(nil)
	require.True(t, ok)
	require.Equal(t, BandQuery, band, "NAK must requeue into the message's original band")
	require.Equal(t, 0, item.msg.attempts, "NAK must not count as a retry attempt")
}

func TestExpectedReplyOnCanBumpsCanStat(t *testing.T) {
	m, _, stats := newMachine()
	m.Begin(Message{TargetNodeID: 3}, time.Now(), BandCommand)
	m.OnNakOrCan(false)
	require.Equal(t, uint64(1), stats.Can.Load())
}

func TestExpectedReplyTickResendsBeforeMaxAttempts(t *testing.T) {
	m, queues, stats := newMachine()
	msg := Message{TargetNodeID: 4, Frame: Frame{Payload: []byte{1}}}
	start := time.Now()
	m.Begin(msg, start, BandPoll)

	o, _ := m.Tick(start.Add(ackTimeout + time.Millisecond))
	require.Equal(t, outcomeResent, o)
	require.Equal(t, uint64(1), stats.Retries.Load())
	require.True(t, m.IsIdle())

	item, band, ok := queues.Pop(nil)
	require.True(t, ok)
	require.Equal(t, BandPoll, band)
	require.Equal(t, 1, item.msg.attempts)
}

func TestExpectedReplyTickDropsAfterMaxAttempts(t *testing.T) {
	m, queues, stats := newMachine()
	msg := Message{TargetNodeID: 4, Frame: Frame{Payload: []byte{1}}}
	start := time.Now()

	// Drive through maxAttempts-1 resends, then expect a drop.
	for i := 0; i < maxAttempts-1; i++ {
		m.Begin(msg, start, BandSend)
		o, _ := m.Tick(start.Add(ackTimeout + time.Millisecond))
		require.Equal(t, outcomeResent, o)
		item, _, ok := queues.Pop(nil)
		require.True(t, ok)
		msg = item.msg
	}

	m.Begin(msg, start, BandSend)
	o, dropped := m.Tick(start.Add(ackTimeout + time.Millisecond))
	require.Equal(t, outcomeDropped, o)
	require.Equal(t, uint64(1), stats.Dropped.Load())
	require.Equal(t, byte(1), dropped.Frame.Payload[0])
	require.True(t, m.IsIdle())
}

func TestExpectedReplyTickOverallTimeoutDropsRegardlessOfAckTimer(t *testing.T) {
	m, _, stats := newMachine()
	start := time.Now()
	msg := Message{TargetNodeID: 4}
	// Exhaust attempts so the next Tick drops rather than resends.
	msg.attempts = maxAttempts
	m.inFlight = InFlight{State: StateAwaitingCallback, Msg: msg, overallDeadline: start.Add(overallTimeout)}

	o, _ := m.Tick(start.Add(overallTimeout + time.Millisecond))
	require.Equal(t, outcomeDropped, o)
	require.Equal(t, uint64(1), stats.Dropped.Load())
}

func TestExpectedReplyTickNoneBeforeDeadlines(t *testing.T) {
	m, _, _ := newMachine()
	start := time.Now()
	m.Begin(Message{TargetNodeID: 1}, start, BandSend)
	o, _ := m.Tick(start)
	require.Equal(t, outcomeNone, o)
}

func TestExpectedReplyOnStrayCallbackBumpsCallbacks(t *testing.T) {
	m, _, stats := newMachine()
	m.OnStrayCallback()
	require.Equal(t, uint64(1), stats.Callbacks.Load())
}

func TestExpectedReplyOnNonMatchingReplyBumpsAckWaiting(t *testing.T) {
	m, _, stats := newMachine()
	m.Begin(Message{TargetNodeID: 1, ExpectedReply: FuncZWSendData}, time.Now(), BandSend)
	m.OnAck()
	m.OnNonMatchingReply()
	require.Equal(t, uint64(1), stats.AckWaiting.Load())
}
