package zwave

import "time"

// ReplyState tracks the in-flight transaction through its lifecycle.
// Collecting it into one tagged value keeps every transition explicit
// and the Idle state unambiguous.
type ReplyState int

const (
	StateIdle ReplyState = iota
	StateAwaitingAck
	StateAwaitingReply
	StateAwaitingCallback
	StateDone
)

func (s ReplyState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAwaitingAck:
		return "AwaitingAck"
	case StateAwaitingReply:
		return "AwaitingReply"
	case StateAwaitingCallback:
		return "AwaitingCallback"
	case StateDone:
		return "Done"
	default:
		return "ReplyState(?)"
	}
}

// ackTimeout and overallTimeout are the serial API's two timer budgets:
// a 1s ACK timer per attempt, and a 5s overall timeout that Begin also
// restarts on every attempt.
const (
	ackTimeout     = 1 * time.Second
	overallTimeout = 5 * time.Second
	maxAttempts    = 3
)

// InFlight is the expected-reply snapshot: non-idle iff exactly one
// message is in flight. The zero value is Idle.
type InFlight struct {
	State ReplyState
	Msg   Message
	Band  Band

	sentAt          time.Time
	ackDeadline     time.Time
	overallDeadline time.Time
}

// SentAt returns when the in-flight message was written, for round-trip
// timing.
func (f InFlight) SentAt() time.Time { return f.sentAt }

// ExpectedReplyMachine drives InFlight through its transitions. It is
// owned exclusively by the driver thread; there is no internal locking
// because nothing but the main loop touches it.
type ExpectedReplyMachine struct {
	inFlight InFlight

	ackTimeout     time.Duration
	overallTimeout time.Duration
	maxAttempts    int

	queues *SendQueues
	stats  *DriverStats
}

// NewExpectedReplyMachine builds a machine that retries/drops against
// queues and bumps stats as transitions dictate, with the default
// timer budgets.
func NewExpectedReplyMachine(queues *SendQueues, stats *DriverStats) *ExpectedReplyMachine {
	return &ExpectedReplyMachine{
		ackTimeout:     ackTimeout,
		overallTimeout: overallTimeout,
		maxAttempts:    maxAttempts,
		queues:         queues,
		stats:          stats,
	}
}

// setTimeouts overrides the default timer budgets, e.g. from
// WithRetryTimeouts.
func (m *ExpectedReplyMachine) setTimeouts(ack, overall time.Duration, attempts int) {
	m.ackTimeout = ack
	m.overallTimeout = overall
	m.maxAttempts = attempts
}

// IsIdle reports whether no message is currently in flight.
func (m *ExpectedReplyMachine) IsIdle() bool { return m.inFlight.State == StateIdle }

// Snapshot returns the current in-flight state, e.g. for host-facing
// diagnostics.
func (m *ExpectedReplyMachine) Snapshot() InFlight { return m.inFlight }

// Begin transitions Idle -> AwaitingAck for msg: the driver has just
// written the frame to the transport. It starts the 1s ACK timer and
// bumps the attempt counter. band records which queue this message came
// from, so a later resend or drop can put it back in the right place.
func (m *ExpectedReplyMachine) Begin(msg Message, now time.Time, band Band) {
	msg.attempts++
	m.inFlight = InFlight{
		State:           StateAwaitingAck,
		Msg:             msg,
		Band:            band,
		sentAt:          now,
		ackDeadline:     now.Add(m.ackTimeout),
		overallDeadline: now.Add(m.overallTimeout),
	}
}

// OnAck transitions AwaitingAck -> AwaitingReply (if a reply is expected)
// else AwaitingCallback (if a callback is expected) else Done.
func (m *ExpectedReplyMachine) OnAck() {
	if m.inFlight.State != StateAwaitingAck {
		return
	}
	switch {
	case m.inFlight.Msg.ExpectedReply != 0:
		m.inFlight.State = StateAwaitingReply
	case m.inFlight.Msg.ExpectedCallbackID != 0:
		m.inFlight.State = StateAwaitingCallback
	default:
		m.inFlight.State = StateDone
	}
}

// OnNakOrCan transitions AwaitingAck -> Idle and requeues the message for
// resend at the head of its original band. NAK/CAN never count as a
// retry attempt; they bump the nak/can statistic instead.
func (m *ExpectedReplyMachine) OnNakOrCan(isNak bool) {
	if m.inFlight.State != StateAwaitingAck {
		return
	}
	if isNak {
		m.stats.Nak.Add(1)
	} else {
		m.stats.Can.Add(1)
	}
	msg := m.inFlight.Msg
	band := m.inFlight.Band
	msg.attempts-- // undo Begin's bump: this attempt never completed
	m.inFlight = InFlight{}
	m.queues.requeueFront(band, sendItem(msg))
}

// MatchesReply reports whether f completes the in-flight AwaitingReply
// transaction: same function-id, and for application-command frames,
// the same target node and command-class id.
func (m *ExpectedReplyMachine) MatchesReply(f Frame, nodeID, commandClass byte) bool {
	if m.inFlight.State != StateAwaitingReply {
		return false
	}
	exp := m.inFlight.Msg
	if exp.ExpectedReply != f.FunctionID {
		return false
	}
	if f.FunctionID == FuncApplicationCommandHandler {
		return exp.TargetNodeID == nodeID && exp.ExpectedCommandClass == commandClass
	}
	return true
}

// OnReply transitions AwaitingReply -> AwaitingCallback (if a callback is
// still expected) else Done, for a matching reply frame.
func (m *ExpectedReplyMachine) OnReply() {
	if m.inFlight.State != StateAwaitingReply {
		return
	}
	if m.inFlight.Msg.ExpectedCallbackID != 0 {
		m.inFlight.State = StateAwaitingCallback
	} else {
		m.inFlight.State = StateDone
	}
}

// OnNonMatchingReply bumps ack_waiting and leaves the state unchanged, for
// a reply-shaped frame that doesn't match the in-flight transaction.
func (m *ExpectedReplyMachine) OnNonMatchingReply() {
	if m.inFlight.State == StateAwaitingReply {
		m.stats.AckWaiting.Add(1)
	}
}

// MatchesCallback reports whether callbackID completes the in-flight
// AwaitingCallback transaction.
func (m *ExpectedReplyMachine) MatchesCallback(callbackID byte) bool {
	return m.inFlight.State == StateAwaitingCallback && m.inFlight.Msg.ExpectedCallbackID == callbackID
}

// OnCallback transitions AwaitingCallback -> Done for a matching
// callback.
func (m *ExpectedReplyMachine) OnCallback() {
	if m.inFlight.State == StateAwaitingCallback {
		m.inFlight.State = StateDone
	}
}

// OnStrayCallback bumps the callbacks statistic for a callback id that
// doesn't match anything in flight.
func (m *ExpectedReplyMachine) OnStrayCallback() { m.stats.Callbacks.Add(1) }

// Finish transitions Done -> Idle, releasing the in-flight slot so the
// next queued item may be sent.
func (m *ExpectedReplyMachine) Finish() {
	if m.inFlight.State == StateDone {
		m.inFlight = InFlight{}
	}
}

// AbortRequeue abandons the in-flight transaction and puts its message
// back at the front of its band, for conditions where the controller
// told us to come back later (transmit queue full, net busy). The
// attempt still counts toward the budget Tick checks when a timer later
// fires; AbortRequeue itself never drops the message.
func (m *ExpectedReplyMachine) AbortRequeue() {
	if m.inFlight.State == StateIdle {
		return
	}
	msg := m.inFlight.Msg
	band := m.inFlight.Band
	m.inFlight = InFlight{}
	m.queues.requeueFront(band, sendItem(msg))
}

// outcome enumerates what Tick decided to do, so the driver loop knows
// whether to run WakeUp migration for a dropped node.
type outcome int

const (
	outcomeNone outcome = iota
	outcomeResent
	outcomeDropped
)

// Tick evaluates the ACK timer and the overall timeout against now. It
// returns what happened and the message concerned; on a drop, whether
// the target node has its remaining traffic migrated to WakeUp is left
// to the caller (it decides that from the message's CanSleep and performs
// the migration itself, since ExpectedReplyMachine doesn't own the node
// table).
func (m *ExpectedReplyMachine) Tick(now time.Time) (outcome, Message) {
	if m.inFlight.State == StateIdle {
		return outcomeNone, Message{}
	}

	ackFired := m.inFlight.State == StateAwaitingAck && !m.inFlight.ackDeadline.IsZero() && !now.Before(m.inFlight.ackDeadline)
	overallFired := !now.Before(m.inFlight.overallDeadline)

	if !ackFired && !overallFired {
		return outcomeNone, Message{}
	}

	msg := m.inFlight.Msg
	band := m.inFlight.Band
	if msg.attempts < m.maxAttempts {
		m.stats.Retries.Add(1)
		m.inFlight = InFlight{}
		m.queues.requeueFront(band, sendItem(msg))
		return outcomeResent, msg
	}

	m.stats.Dropped.Add(1)
	m.inFlight = InFlight{}
	return outcomeDropped, msg
}

// requeueFront pushes item back onto the front of band so a resend goes
// out ahead of anything enqueued since. This bypasses the dedup check
// deliberately: a resend of the exact in-flight message must not be
// suppressed just because an identical-looking new request was also
// queued behind it.
func (q *SendQueues) requeueFront(band Band, item queueItem) {
	q.mu.Lock()
	q.bands[band] = append([]queueItem{item}, q.bands[band]...)
	q.mu.Unlock()
	q.signal()
}
