package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devboard/devboard/internal/domain"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := New(Config{
		PingInterval:   30 * time.Second,
		PongWait:       60 * time.Second,
		WriteWait:      10 * time.Second,
		MaxMessageSize: 65536,
	})
	go h.Run()
	return h
}

func newTestClient(t *testing.T, h *Hub, id string) *Client {
	t.Helper()
	c := &Client{
		ID:      id,
		Hub:     h,
		Send:    make(chan []byte, 16),
		Session: domain.NewSession(id),
	}
	h.Register(c)
	return c
}

func recv(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case b := <-c.Send:
		return b
	case <-time.After(time.Second):
		t.Fatalf("client %s: no frame within 1s", c.ID)
		return nil
	}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case b := <-c.Send:
		t.Fatalf("client %s: unexpected frame %s", c.ID, b)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBroadcastToRoom(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(t, h, "a")
	b := newTestClient(t, h, "b")
	c := newTestClient(t, h, "c")

	h.JoinRoom(a, "chat:1:0")
	h.JoinRoom(b, "chat:1:0")
	// c never joins

	require.NoError(t, h.BroadcastToRoom("chat:1:0", map[string]string{"type": "hello"}, ""))

	var got map[string]string
	require.NoError(t, json.Unmarshal(recv(t, a), &got))
	assert.Equal(t, "hello", got["type"])
	require.NoError(t, json.Unmarshal(recv(t, b), &got))
	assert.Equal(t, "hello", got["type"])
	assertSilent(t, c)
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(t, h, "a")
	b := newTestClient(t, h, "b")

	h.JoinRoom(a, "call:1")
	h.JoinRoom(b, "call:1")

	require.NoError(t, h.BroadcastToRoom("call:1", map[string]string{"type": "ev"}, "a"))

	recv(t, b)
	assertSilent(t, a)
}

func TestSendToClient(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(t, h, "a")
	b := newTestClient(t, h, "b")

	require.NoError(t, h.SendToClient("a", map[string]string{"type": "direct"}))

	recv(t, a)
	assertSilent(t, b)

	// Unknown targets are dropped without error.
	require.NoError(t, h.SendToClient("nobody", map[string]string{"type": "direct"}))
}

func TestJoinRoomIdempotent(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(t, h, "a")

	h.JoinRoom(a, "chat:1:0")
	h.JoinRoom(a, "chat:1:0")

	assert.Equal(t, 1, h.RoomSize("chat:1:0"))

	require.NoError(t, h.BroadcastToRoom("chat:1:0", map[string]string{"type": "once"}, ""))
	recv(t, a)
	assertSilent(t, a)
}

func TestLeaveRoom(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(t, h, "a")

	h.JoinRoom(a, "chat:1:0")
	h.LeaveRoom(a, "chat:1:0")

	assert.Equal(t, 0, h.RoomSize("chat:1:0"))
	// Leaving a room never joined is a no-op.
	h.LeaveRoom(a, "chat:9:0")
}

func TestUnregisterRemovesFromAllRooms(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(t, h, "a")
	b := newTestClient(t, h, "b")

	h.JoinRoom(a, "chat:1:0")
	h.JoinRoom(a, "call:1")
	h.JoinRoom(b, "chat:1:0")

	h.Unregister(a)

	// Unregister is handled by the run loop; wait for it to take effect.
	require.Eventually(t, func() bool {
		return h.RoomSize("chat:1:0") == 1 && h.RoomSize("call:1") == 0
	}, time.Second, 5*time.Millisecond)
}

func TestOccupants(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(t, h, "a")
	b := newTestClient(t, h, "b")

	h.JoinRoom(a, "call:1")
	h.JoinRoom(b, "call:1")

	assert.ElementsMatch(t, []string{"a", "b"}, h.Occupants("call:1"))
	assert.Nil(t, h.Occupants("call:2"))
}

func TestRoomSizes(t *testing.T) {
	h := newTestHub(t)
	a := newTestClient(t, h, "a")
	b := newTestClient(t, h, "b")

	h.JoinRoom(a, "chat:1:0")
	h.JoinRoom(b, "chat:1:0")
	h.JoinRoom(b, "chat:1:2")
	h.JoinRoom(b, "chat:2:0")

	sizes := h.RoomSizes("chat:1:")
	assert.Equal(t, map[string]int{"chat:1:0": 2, "chat:1:2": 1}, sizes)
}
