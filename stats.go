package zwave

import "sync/atomic"

// DriverStats collects the driver-global traffic and error counters,
// plus the reset counters (SoftResets, HardResets) surfaced by the
// controller-administration surface. Every field is an
// atomic.Uint64 so a host application can read a live snapshot without
// synchronizing with the driver thread.
type DriverStats struct {
	SOF         atomic.Uint64
	Ack         atomic.Uint64
	Nak         atomic.Uint64
	Can         atomic.Uint64
	OOF         atomic.Uint64
	BadChecksum atomic.Uint64

	Reads  atomic.Uint64
	Writes atomic.Uint64

	Dropped     atomic.Uint64
	Retries     atomic.Uint64
	Callbacks   atomic.Uint64
	AckWaiting  atomic.Uint64
	BadRoutes   atomic.Uint64
	NoAck       atomic.Uint64
	NetBusy     atomic.Uint64
	NonDelivery atomic.Uint64
	RoutedBusy  atomic.Uint64

	BroadcastReads  atomic.Uint64
	BroadcastWrites atomic.Uint64

	SoftResets atomic.Uint64
	HardResets atomic.Uint64
}

// Snapshot is a point-in-time copy of DriverStats suitable for returning
// from the driver's public Stats() accessor without exposing the atomics
// themselves.
type Snapshot struct {
	SOF, Ack, Nak, Can, OOF, BadChecksum     uint64
	Reads, Writes                            uint64
	Dropped, Retries, Callbacks, AckWaiting  uint64
	BadRoutes, NoAck, NetBusy, NonDelivery   uint64
	RoutedBusy, BroadcastReads, BroadcastWrites uint64
	SoftResets, HardResets                   uint64
}

// Snapshot copies the current counter values.
func (s *DriverStats) Snapshot() Snapshot {
	return Snapshot{
		SOF:             s.SOF.Load(),
		Ack:             s.Ack.Load(),
		Nak:             s.Nak.Load(),
		Can:             s.Can.Load(),
		OOF:             s.OOF.Load(),
		BadChecksum:     s.BadChecksum.Load(),
		Reads:           s.Reads.Load(),
		Writes:          s.Writes.Load(),
		Dropped:         s.Dropped.Load(),
		Retries:         s.Retries.Load(),
		Callbacks:       s.Callbacks.Load(),
		AckWaiting:      s.AckWaiting.Load(),
		BadRoutes:       s.BadRoutes.Load(),
		NoAck:           s.NoAck.Load(),
		NetBusy:         s.NetBusy.Load(),
		NonDelivery:     s.NonDelivery.Load(),
		RoutedBusy:      s.RoutedBusy.Load(),
		BroadcastReads:  s.BroadcastReads.Load(),
		BroadcastWrites: s.BroadcastWrites.Load(),
		SoftResets:      s.SoftResets.Load(),
		HardResets:      s.HardResets.Load(),
	}
}

// NodeStats collects the per-node counters kept separately from the
// driver-global set: traffic and error counts scoped to one node id.
type NodeStats struct {
	SentCount    atomic.Uint64
	SentFailed   atomic.Uint64
	ReceivedCount atomic.Uint64
	Retries      atomic.Uint64
	QueryStage   atomic.Uint32 // mirrors Node.QueryStage for lock-free reads
	LastResponseRTTMillis atomic.Uint64
}

// NodeSnapshot is a point-in-time copy of NodeStats.
type NodeSnapshot struct {
	SentCount, SentFailed, ReceivedCount, Retries uint64
	QueryStage                                    QueryStage
	LastResponseRTTMillis                         uint64
}

// Snapshot copies the current per-node counter values.
func (s *NodeStats) Snapshot() NodeSnapshot {
	return NodeSnapshot{
		SentCount:              s.SentCount.Load(),
		SentFailed:             s.SentFailed.Load(),
		ReceivedCount:          s.ReceivedCount.Load(),
		Retries:                s.Retries.Load(),
		QueryStage:             QueryStage(s.QueryStage.Load()),
		LastResponseRTTMillis:  s.LastResponseRTTMillis.Load(),
	}
}
