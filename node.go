package zwave

import "sync"

// MaxNodeID is the highest node id the Z-Wave serial API addresses;
// valid node ids run 1..MaxNodeID.
const MaxNodeID = 232

// Node is the per-device aggregate: protocol metadata
// learned during interrogation, a command-class map, a neighbor bitmap,
// and the awake/asleep flag the send-queue sendability gate and WakeUp
// migration both read.
//
// A Node's fields are guarded by its own mutex rather than the table's,
// so a long-running read of one node's command-class map never blocks
// lookups of a different node.
type Node struct {
	mu sync.Mutex

	ID byte

	QueryStage QueryStage

	Listening   bool
	Routing     bool
	FrequentListening bool
	Beaming     bool
	Security    bool
	MaxBaudRate uint32

	Basic    byte
	Generic  byte
	Specific byte

	ManufacturerID uint16
	ProductType    uint16
	ProductID      uint16

	Name     string
	Location string

	Version byte

	CommandClasses map[byte]bool

	Neighbors [29]byte // 232-bit neighbor bitmap, one bit per node id

	awake bool

	// noAckStreak counts consecutive no-ack delivery failures; two in a
	// row against a can-sleep node triggers WakeUp migration.
	noAckStreak int

	stats NodeStats
}

// newNode returns a freshly allocated Node for id, not yet interrogated.
func newNode(id byte) *Node {
	return &Node{ID: id, CommandClasses: make(map[byte]bool), awake: true}
}

// Awake reports whether the node is currently believed awake. A new node
// starts out awake; the flag changes only through SetAwake, whatever the
// node's listening capability.
func (n *Node) Awake() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.awake
}

// SetAwake updates the believed awake/asleep state. The caller (the
// driver's WakeUp notification handler, or the initial ProtocolInfo
// stage for listening nodes) is responsible for triggering queue
// migration; Node itself never touches SendQueues.
func (n *Node) SetAwake(awake bool) {
	n.mu.Lock()
	n.awake = awake
	n.mu.Unlock()
}

// HasCommandClass reports whether the node's interrogated command-class
// set includes cc.
func (n *Node) HasCommandClass(cc byte) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.CommandClasses[cc]
}

// AddCommandClass records that the node supports cc, learned from a
// NodeInfo or ManufacturerSpecific query response.
func (n *Node) AddCommandClass(cc byte) {
	n.mu.Lock()
	n.CommandClasses[cc] = true
	n.mu.Unlock()
}

// Stage returns the node's current query-progression cursor.
func (n *Node) Stage() QueryStage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.QueryStage
}

// setStage positions the cursor directly, used when interrogation starts
// (None -> ProtocolInfo) or when a cached node skips already-answered
// stages. Ordinary advancement goes through advanceQueries.
func (n *Node) setStage(s QueryStage) {
	n.mu.Lock()
	n.QueryStage = s
	n.stats.QueryStage.Store(uint32(s))
	n.mu.Unlock()
}

// bumpNoAck records one more consecutive no-ack failure and returns the
// streak length.
func (n *Node) bumpNoAck() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.noAckStreak++
	return n.noAckStreak
}

// clearNoAck resets the consecutive-failure streak after any successful
// delivery or wakeup report.
func (n *Node) clearNoAck() {
	n.mu.Lock()
	n.noAckStreak = 0
	n.mu.Unlock()
}

// seedFromCache fills in interrogation results loaded from a config
// cache, so the query progression can skip straight past the expensive
// wire stages for a device seen on a previous run. A cached
// non-listening node starts out believed asleep.
func (n *Node) seedFromCache(c CachedNode) {
	n.mu.Lock()
	n.Listening = c.Listening
	n.Routing = c.Routing
	n.Basic = c.Basic
	n.Generic = c.Generic
	n.Specific = c.Specific
	n.ManufacturerID = c.ManufacturerID
	n.ProductType = c.ProductType
	n.ProductID = c.ProductID
	n.Name = c.Name
	n.Location = c.Location
	n.Version = c.Version
	for _, cc := range c.CommandClasses {
		n.CommandClasses[cc] = true
	}
	n.awake = c.Listening
	n.mu.Unlock()
}

// Stats returns the node's traffic/error counters.
func (n *Node) Stats() *NodeStats { return &n.stats }

// NodeTable is the fixed-size node arena: indexed
// 1..MaxNodeID, guarded by a single mutex (individual Node field access
// is then guarded by the Node's own mutex, so table-wide operations like
// Range don't serialize against in-flight per-node work).
type NodeTable struct {
	mu    sync.Mutex
	nodes [MaxNodeID + 1]*Node // index 0 unused
}

// NewNodeTable returns an empty table.
func NewNodeTable() *NodeTable { return &NodeTable{} }

// Get returns the Node for id, or nil if id is out of range or has no
// entry yet.
func (t *NodeTable) Get(id byte) *Node {
	if int(id) < 1 || int(id) > MaxNodeID {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.nodes[id]
}

// GetOrCreate returns the existing Node for id, allocating one if this
// is the first time id has been seen (inclusion, init-data bitmap, or a
// node-info broadcast from an unknown sender).
func (t *NodeTable) GetOrCreate(id byte) (*Node, error) {
	if int(id) < 1 || int(id) > MaxNodeID {
		return nil, ErrInvalidNodeID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.nodes[id] == nil {
		t.nodes[id] = newNode(id)
	}
	return t.nodes[id], nil
}

// Remove deletes id's entry, e.g. after RemoveFailedNode completes.
func (t *NodeTable) Remove(id byte) {
	if int(id) < 1 || int(id) > MaxNodeID {
		return
	}
	t.mu.Lock()
	t.nodes[id] = nil
	t.mu.Unlock()
}

// Range calls fn for every currently-present node, in ascending id
// order. fn must not call back into the table.
func (t *NodeTable) Range(fn func(*Node)) {
	t.mu.Lock()
	nodes := make([]*Node, 0, MaxNodeID)
	for _, n := range t.nodes {
		if n != nil {
			nodes = append(nodes, n)
		}
	}
	t.mu.Unlock()

	for _, n := range nodes {
		fn(n)
	}
}

// AwakeNodesQueried reports whether every listening node (whatever its
// current awake flag) has reached QueryStageComplete, the trigger for the
// AwakeNodesQueried notification.
func (t *NodeTable) AwakeNodesQueried() bool {
	all := true
	t.Range(func(n *Node) {
		if n.Listening && n.Stage() != QueryStageComplete {
			all = false
		}
	})
	return all
}

// AllNodesQueried reports whether every node in the table, awake or
// asleep, has reached QueryStageComplete.
func (t *NodeTable) AllNodesQueried() bool {
	all := true
	t.Range(func(n *Node) {
		if n.Stage() != QueryStageComplete {
			all = false
		}
	})
	return all
}
