package zwave

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNotificationBusDrainOrderAndFanOut(t *testing.T) {
	bus := NewNotificationBus()
	var watcherA, watcherB []NotificationType
	bus.Watch(func(n Notification) { watcherA = append(watcherA, n.Type) })
	bus.Watch(func(n Notification) { watcherB = append(watcherB, n.Type) })

	bus.Post(Notification{Type: NotifyNodeAdded, NodeID: 1})
	bus.Post(Notification{Type: NotifyValueChanged, NodeID: 1})
	bus.Drain()

	want := []NotificationType{NotifyNodeAdded, NotifyValueChanged}
	require.Equal(t, want, watcherA)
	require.Equal(t, want, watcherB)
}

func TestNotificationBusDrainClearsPending(t *testing.T) {
	bus := NewNotificationBus()
	var count int
	bus.Watch(func(Notification) { count++ })

	bus.Post(Notification{Type: NotifyDriverReady})
	bus.Drain()
	bus.Drain()
	require.Equal(t, 1, count, "a second Drain with nothing pending must not redeliver")
}

func TestNotificationBusDrainWithNoWatchers(t *testing.T) {
	bus := NewNotificationBus()
	bus.Post(Notification{Type: NotifyDriverReady})
	require.NotPanics(t, bus.Drain)
}
