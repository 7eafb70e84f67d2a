package zwave

import "sync"

// NotificationType tags the variant carried by a Notification.
type NotificationType int

const (
	NotifyNodeAdded NotificationType = iota
	NotifyNodeRemoved
	NotifyNodeProtocolInfo
	NotifyNodeNaming
	NotifyNodeEvent
	NotifyNodeQueriesComplete

	NotifyValueAdded
	NotifyValueRemoved
	NotifyValueChanged
	NotifyValueRefreshed

	NotifyGroup
	NotifyPollingEnabled
	NotifyPollingDisabled
	NotifyScene
	NotifyButtonOn
	NotifyButtonOff

	NotifyDriverReady
	NotifyDriverFailed
	NotifyDriverReset
	NotifyAwakeNodesQueried
	NotifyAllNodesQueried
)

func (t NotificationType) String() string {
	switch t {
	case NotifyNodeAdded:
		return "NodeAdded"
	case NotifyNodeRemoved:
		return "NodeRemoved"
	case NotifyNodeProtocolInfo:
		return "NodeProtocolInfo"
	case NotifyNodeNaming:
		return "NodeNaming"
	case NotifyNodeEvent:
		return "NodeEvent"
	case NotifyNodeQueriesComplete:
		return "NodeQueriesComplete"
	case NotifyValueAdded:
		return "ValueAdded"
	case NotifyValueRemoved:
		return "ValueRemoved"
	case NotifyValueChanged:
		return "ValueChanged"
	case NotifyValueRefreshed:
		return "ValueRefreshed"
	case NotifyGroup:
		return "Group"
	case NotifyPollingEnabled:
		return "PollingEnabled"
	case NotifyPollingDisabled:
		return "PollingDisabled"
	case NotifyScene:
		return "Scene"
	case NotifyButtonOn:
		return "ButtonOn"
	case NotifyButtonOff:
		return "ButtonOff"
	case NotifyDriverReady:
		return "DriverReady"
	case NotifyDriverFailed:
		return "DriverFailed"
	case NotifyDriverReset:
		return "DriverReset"
	case NotifyAwakeNodesQueried:
		return "AwakeNodesQueried"
	case NotifyAllNodesQueried:
		return "AllNodesQueried"
	default:
		return "NotificationType(?)"
	}
}

// Notification is the single event envelope fanned out to every
// registered watcher. Only the fields relevant to Type are
// populated; the rest sit at their zero value.
type Notification struct {
	Type NotificationType

	NodeID byte

	ValueID      ValueID
	SceneID      byte
	ButtonID     byte
	GroupIndex   byte
}

// Watcher receives Notifications. It must not block for long and must
// not call back into the driver synchronously: the bus invokes watchers
// on the driver thread, at the one safe point in the main loop where no
// node-table lock is held.
type Watcher func(Notification)

// NotificationBus is a single-consumer fan-out queue: producers
// append pending notifications as events happen, and the driver thread
// drains the queue to every registered watcher only at its loop's top,
// never mid-frame. The mutex covers only the pending list and watcher
// registry; it is never held while a watcher runs, so a watcher may call
// the bus's own Watch or Post without deadlocking it. Watchers still run
// on the driver thread, so the limits in Watcher's doc apply.
type NotificationBus struct {
	mu       sync.Mutex
	watchers []Watcher
	pending  []Notification
}

// NewNotificationBus returns an empty bus.
func NewNotificationBus() *NotificationBus { return &NotificationBus{} }

// Watch registers w to receive every future drained notification.
func (b *NotificationBus) Watch(w Watcher) {
	b.mu.Lock()
	b.watchers = append(b.watchers, w)
	b.mu.Unlock()
}

// Post appends n to the pending queue. Delivery waits for the driver
// thread's next Drain.
func (b *NotificationBus) Post(n Notification) {
	b.mu.Lock()
	b.pending = append(b.pending, n)
	b.mu.Unlock()
}

// Drain delivers every pending notification, in post order, to every
// registered watcher, then clears the pending queue. The caller is
// responsible for calling Drain only when no node-table lock is held.
func (b *NotificationBus) Drain() {
	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	watchers := b.watchers
	b.mu.Unlock()

	for _, n := range pending {
		for _, w := range watchers {
			w(n)
		}
	}
}
