package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveOne(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case event := <-sub:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

// TestPublishSubscribe tests basic fan-out
func TestPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.Publish(New(EventWorkspaceAssigned, "a1b2c3d4", "assigned to bucket team-artifacts").
		WithMeta("bucket", "team-artifacts"))

	for _, sub := range []Subscriber{sub1, sub2} {
		event := receiveOne(t, sub)
		assert.Equal(t, EventWorkspaceAssigned, event.Type)
		assert.Equal(t, "a1b2c3d4", event.WorkspaceID)
		assert.Equal(t, "team-artifacts", event.Metadata["bucket"])
		assert.False(t, event.Timestamp.IsZero())
	}
}

// TestUnsubscribe tests channel closure and idempotence
func TestUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open, "unsubscribed channel must be closed")

	// Double unsubscribe must not panic on a closed channel
	b.Unsubscribe(sub)
}

// TestSlowSubscriberDoesNotBlock tests that a full subscriber buffer drops
// events instead of stalling the broker
func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	slow := b.Subscribe()
	fast := b.Subscribe()

	// Overflow the slow subscriber's buffer without draining it
	for i := 0; i < 80; i++ {
		b.Publish(New(EventPoolSpawned, "a1b2c3d4", "spawned"))
	}

	// The fast subscriber still receives; drain a few to prove liveness
	for i := 0; i < 3; i++ {
		event := receiveOne(t, fast)
		require.Equal(t, EventPoolSpawned, event.Type)
	}
	_ = slow
}
