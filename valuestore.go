package zwave

import "fmt"

// ValueID identifies a single reported value within a node's command
// classes. The driver core never interprets a value's payload, only
// routes it by this key.
type ValueID struct {
	NodeID       byte
	CommandClass byte
	Instance     byte
	Index        byte
}

// String renders a ValueID the way log lines and cache keys want it.
func (v ValueID) String() string {
	return fmt.Sprintf("%d:%02x:%d:%d", v.NodeID, v.CommandClass, v.Instance, v.Index)
}

// Value pairs a ValueID with its last-known raw payload and the genre of
// poll dispatch it should receive.
type Value struct {
	ID        ValueID
	Payload   []byte
	Poll      PollIntensity
	Writeable bool
}

// ValueStore is the opaque per-node value table: the driver core writes
// reported values into it and reads them back out for poll/refresh
// scheduling, but never inspects a payload's meaning. Command-class
// plugins are the only callers that decode a Value's Payload.
type ValueStore interface {
	// Set records or overwrites the current value for id, returning true
	// if the payload actually changed from what was stored before (the
	// driver only posts NotifyValueChanged on a true change).
	Set(id ValueID, payload []byte) (changed bool)
	// Get returns the current value for id, or ok=false if nothing has
	// been reported yet.
	Get(id ValueID) (Value, bool)
	// Remove deletes id, e.g. when its owning node is removed.
	Remove(id ValueID)
	// RemoveNode deletes every value belonging to nodeID.
	RemoveNode(nodeID byte)
	// All returns every currently stored value, in unspecified order.
	All() []Value
}

// memValueStore is the default in-memory ValueStore: a driver that
// doesn't need cross-restart value persistence (that's what the
// config-cache backends are for) can use this as-is.
type memValueStore struct {
	values map[ValueID]Value
}

// NewMemValueStore returns an empty in-memory ValueStore.
func NewMemValueStore() ValueStore {
	return &memValueStore{values: make(map[ValueID]Value)}
}

func (s *memValueStore) Set(id ValueID, payload []byte) bool {
	existing, had := s.values[id]
	if had && bytesEqualSlice(existing.Payload, payload) {
		return false
	}
	v := existing
	v.ID = id
	v.Payload = payload
	s.values[id] = v
	return true
}

func (s *memValueStore) Get(id ValueID) (Value, bool) {
	v, ok := s.values[id]
	return v, ok
}

func (s *memValueStore) Remove(id ValueID) { delete(s.values, id) }

func (s *memValueStore) RemoveNode(nodeID byte) {
	for id := range s.values {
		if id.NodeID == nodeID {
			delete(s.values, id)
		}
	}
}

func (s *memValueStore) All() []Value {
	out := make([]Value, 0, len(s.values))
	for _, v := range s.values {
		out = append(out, v)
	}
	return out
}

func bytesEqualSlice(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
