package agent

import (
	"testing"

	"github.com/coordmesh/coordmesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notification(content string) core.AgentMessage {
	return core.NewAgentMessage("worker", core.MessageTypeNotification, content)
}

func collect(ch <-chan core.AgentMessage) []string {
	var out []string
	for msg := range ch {
		out = append(out, msg.Content)
	}
	return out
}

func TestBus_FanoutPreservesOrder(t *testing.T) {
	bus := NewBus()
	first, _ := bus.Subscribe()
	second, _ := bus.Subscribe()

	bus.Publish(notification("one"))
	bus.Publish(notification("two"))
	bus.Publish(notification("three"))
	bus.Close()

	want := []string{"one", "two", "three"}
	assert.Equal(t, want, collect(first))
	assert.Equal(t, want, collect(second))
}

func TestBus_NoReplayForLateSubscribers(t *testing.T) {
	bus := NewBus()
	bus.Publish(notification("missed"))

	ch, _ := bus.Subscribe()
	bus.Publish(notification("seen"))
	bus.Close()

	assert.Equal(t, []string{"seen"}, collect(ch))
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()
	ch, unsubscribe := bus.Subscribe()

	bus.Publish(notification("before"))
	unsubscribe()

	// The channel closes once queued messages are delivered.
	got := collect(ch)
	require.LessOrEqual(t, len(got), 1)

	// Publishing after unsubscribe never reaches the detached reader.
	bus.Publish(notification("after"))
	bus.Close()
	assert.NotContains(t, got, "after")
}

func TestBus_CloseIsIdempotent(t *testing.T) {
	bus := NewBus()
	ch, _ := bus.Subscribe()

	bus.Close()
	bus.Close()

	// Publishing on a closed bus is a no-op.
	bus.Publish(notification("late"))
	assert.Empty(t, collect(ch))
}

func TestBus_SubscribeAfterClose(t *testing.T) {
	bus := NewBus()
	bus.Close()

	ch, unsubscribe := bus.Subscribe()
	unsubscribe()

	_, open := <-ch
	assert.False(t, open)
}
