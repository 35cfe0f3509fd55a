package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, ch <-chan *Event) *Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event within 1s")
		return nil
	}
}

func assertNoEvent(t *testing.T, ch <-chan *Event) {
	t.Helper()
	select {
	case e := <-ch:
		t.Fatalf("unexpected event %+v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishSubscribe(t *testing.T) {
	ps := NewMemoryPubSub()
	ctx := context.Background()

	ch, err := ps.Subscribe(ctx, "rooms:chat:1:0")
	require.NoError(t, err)

	evt, err := NewEvent("room_broadcast", "chat:1:0", "instance-a", map[string]string{"k": "v"})
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, "rooms:chat:1:0", evt))

	got := recvEvent(t, ch)
	assert.Equal(t, "chat:1:0", got.Room)
	assert.Equal(t, "instance-a", got.Origin)

	var payload map[string]string
	require.NoError(t, got.UnmarshalPayload(&payload))
	assert.Equal(t, "v", payload["k"])
}

func TestPatternSubscription(t *testing.T) {
	ps := NewMemoryPubSub()
	ctx := context.Background()

	ch, err := ps.SubscribePattern(ctx, "rooms:*")
	require.NoError(t, err)

	evt, err := NewEvent("room_broadcast", "call:7", "x", nil)
	require.NoError(t, err)
	require.NoError(t, ps.Publish(ctx, "rooms:call:7", evt))
	recvEvent(t, ch)

	// Non-matching channels stay silent.
	require.NoError(t, ps.Publish(ctx, "clients:abc", evt))
	assertNoEvent(t, ch)
}

func TestPublishWithoutSubscribers(t *testing.T) {
	ps := NewMemoryPubSub()
	evt, err := NewEvent("room_broadcast", "chat:1:0", "x", nil)
	require.NoError(t, err)
	assert.NoError(t, ps.Publish(context.Background(), "rooms:chat:1:0", evt))
}

func TestCloseStopsDelivery(t *testing.T) {
	ps := NewMemoryPubSub()
	ctx := context.Background()

	ch, err := ps.Subscribe(ctx, "rooms:x")
	require.NoError(t, err)
	require.NoError(t, ps.Close())

	_, open := <-ch
	assert.False(t, open)

	evt, _ := NewEvent("room_broadcast", "x", "x", nil)
	assert.NoError(t, ps.Publish(ctx, "rooms:x", evt))
}
