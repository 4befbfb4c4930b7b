package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSubscribeAndPublish tests event delivery to subscribers
func TestSubscribeAndPublish(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	defer b.Unsubscribe(sub)

	b.Publish(&Event{
		ID:      "ev-1",
		Type:    EventStreakMilestone,
		UserID:  "user-1",
		HabitID: "habit-1",
		Message: "reached a 7-day streak",
	})

	select {
	case ev := <-sub:
		assert.Equal(t, EventStreakMilestone, ev.Type)
		assert.Equal(t, "habit-1", ev.HabitID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

// TestMultipleSubscribers tests broadcast to all subscribers
func TestMultipleSubscribers(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	require.Equal(t, 2, b.SubscriberCount())

	b.Publish(&Event{ID: "ev-1", Type: EventLevelUp})

	for _, sub := range []Subscriber{sub1, sub2} {
		select {
		case ev := <-sub:
			assert.Equal(t, EventLevelUp, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

// TestUnsubscribe tests subscriber removal
func TestUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	// Channel is closed on unsubscribe.
	_, open := <-sub
	assert.False(t, open)
}

// TestPublishNeverBlocks tests that a slow subscriber does not stall the
// broker.
func TestPublishNeverBlocks(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe() // nobody reads from it
	defer b.Unsubscribe(sub)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			b.Publish(&Event{ID: "ev", Type: EventSyncAbandoned})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
