package zwave

// QueryStage enumerates the per-node interrogation progression: a
// monotonically advancing cursor that never goes backward except when a
// node is explicitly reset for re-interrogation.
type QueryStage int

const (
	QueryStageNone QueryStage = iota
	QueryStageProtocolInfo
	QueryStageProbe
	QueryStageWakeUp
	QueryStageManufacturer
	QueryStageNodeInfo
	QueryStageManufacturerSpecific
	QueryStageVersion
	QueryStageEndpoints
	QueryStageStatic
	QueryStageAssociations
	QueryStageNeighbors
	QueryStageSession
	QueryStageDynamic
	QueryStageConfiguration
	QueryStageComplete
)

func (s QueryStage) String() string {
	switch s {
	case QueryStageNone:
		return "None"
	case QueryStageProtocolInfo:
		return "ProtocolInfo"
	case QueryStageProbe:
		return "Probe"
	case QueryStageWakeUp:
		return "WakeUp"
	case QueryStageManufacturer:
		return "Manufacturer"
	case QueryStageNodeInfo:
		return "NodeInfo"
	case QueryStageManufacturerSpecific:
		return "ManufacturerSpecific"
	case QueryStageVersion:
		return "Version"
	case QueryStageEndpoints:
		return "Endpoints"
	case QueryStageStatic:
		return "Static"
	case QueryStageAssociations:
		return "Associations"
	case QueryStageNeighbors:
		return "Neighbors"
	case QueryStageSession:
		return "Session"
	case QueryStageDynamic:
		return "Dynamic"
	case QueryStageConfiguration:
		return "Configuration"
	case QueryStageComplete:
		return "Complete"
	default:
		return "QueryStage(?)"
	}
}

// next returns the stage that follows s, or QueryStageComplete if s is
// already the last interrogation stage. QueryStageComplete maps to
// itself: advancing a completed node is a no-op, the cursor never
// regresses.
func (s QueryStage) next() QueryStage {
	if s >= QueryStageComplete {
		return QueryStageComplete
	}
	return s + 1
}

// advanceQueries is called by the driver loop when a QueryStageComplete
// marker for n.ID/stage reaches the front of
// the Query band. It advances the node's cursor to the next stage (a
// stale marker for an already-passed stage is ignored) and enqueues
// whatever work the new stage requires.
//
// enqueueStage is supplied by the driver, since what each stage actually
// sends (GetNodeProtocolInfo, RequestNodeInfo, or nothing at all for the
// other stages) depends on the command-class plugin registry
// the query-stage machinery itself has no business knowing about.
func advanceQueries(n *Node, completedStage QueryStage, queues *SendQueues, enqueueStage func(n *Node, stage QueryStage)) {
	n.mu.Lock()
	if n.QueryStage != completedStage {
		n.mu.Unlock()
		return
	}
	next := completedStage.next()
	n.QueryStage = next
	n.stats.QueryStage.Store(uint32(next))
	done := next == QueryStageComplete
	n.mu.Unlock()

	if done {
		return
	}
	enqueueStage(n, next)
}
