package zwave

import "bytes"

// Band identifies one of the five priority send queues, ordered highest
// to lowest priority.
type Band int

const (
	BandCommand Band = iota
	BandWakeUp
	BandSend
	BandQuery
	BandPoll

	bandCount = int(BandPoll) + 1
)

func (b Band) String() string {
	switch b {
	case BandCommand:
		return "Command"
	case BandWakeUp:
		return "WakeUp"
	case BandSend:
		return "Send"
	case BandQuery:
		return "Query"
	case BandPoll:
		return "Poll"
	default:
		return "Band(?)"
	}
}

// Message is a self-describing outbound frame together with the send
// metadata the expected-reply state machine needs to track it to
// completion.
type Message struct {
	Frame Frame

	// TargetNodeID is 0 for messages with no specific node target (pure
	// controller calls like GetVersion).
	TargetNodeID byte

	// ExpectedReply is the function-id of the response frame that
	// completes this transaction; zero means "no reply expected beyond
	// ACK".
	ExpectedReply FunctionID
	// ExpectedCallbackID is the rotating integer the controller echoes
	// in an eventual asynchronous callback; zero means "no callback
	// expected".
	ExpectedCallbackID byte
	// ExpectedCommandClass narrows "matching frame" for application
	// commands to the same command-class id.
	ExpectedCommandClass byte

	// CanSleep marks this message as addressed to a node that may be a
	// sleeping battery device; on terminal failure it is eligible for
	// WakeUp migration.
	CanSleep bool

	// queryRequest marks messages issued by the query-stage machinery;
	// their completion posts a QueryStageComplete marker for the target
	// node no matter which band the message was ultimately sent from.
	queryRequest bool

	// attempts counts prior sends of this exact message; bumped on each
	// AwaitingAck entry.
	attempts int
}

// bytesEqual reports whether two Messages carry byte-identical encoded
// frames, the dedup equality used for queued SendMsg items.
func (m Message) bytesEqual(other Message) bool {
	return m.Frame.Type == other.Frame.Type &&
		m.Frame.FunctionID == other.Frame.FunctionID &&
		bytes.Equal(m.Frame.Payload, other.Frame.Payload)
}

// queryCompleteMarker is the marker queue item variant: posted after a
// node finishes one query stage so that advancing to the next stage
// happens at the item's natural turn in the Query band rather than
// immediately inline.
type queryCompleteMarker struct {
	NodeID byte
	Stage  QueryStage
}

// queueItem is a tagged union: either an outbound SendMsg or a
// QueryStageComplete marker. Equality for dedup purposes is: same tag,
// and for SendMsg bytewise equality of the frame, for
// QueryStageComplete equality of (node_id, stage).
type queueItem struct {
	isQueryComplete bool

	msg   Message
	query queryCompleteMarker
}

func sendItem(m Message) queueItem { return queueItem{msg: m} }

func queryCompleteItem(nodeID byte, stage QueryStage) queueItem {
	return queueItem{isQueryComplete: true, query: queryCompleteMarker{NodeID: nodeID, Stage: stage}}
}

// equal implements the dedup equality relation.
func (i queueItem) equal(other queueItem) bool {
	if i.isQueryComplete != other.isQueryComplete {
		return false
	}
	if i.isQueryComplete {
		return i.query == other.query
	}
	return i.msg.bytesEqual(other.msg)
}

// targetNode returns the node id this item is addressed to, or 0 for
// controller-wide items with no single-node target.
func (i queueItem) targetNode() byte {
	if i.isQueryComplete {
		return i.query.NodeID
	}
	return i.msg.TargetNodeID
}
