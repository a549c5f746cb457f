package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The hub never touches the connection, so clients can be built without one.
func newTestClient(hub *Hub, topic string) *Client {
	return NewClient(hub, nil, topic)
}

func receive(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case data, ok := <-c.Send:
		require.True(t, ok, "send channel closed unexpectedly")
		var msg Message
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func assertNothingReceived(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.Send:
		t.Fatalf("unexpected message: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func TestHub_BroadcastAll(t *testing.T) {
	hub := startHub(t)
	a := newTestClient(hub, GlobalTopic)
	b := newTestClient(hub, "1")
	require.True(t, hub.Register(a))
	require.True(t, hub.Register(b))

	hub.BroadcastAll("post.created", map[string]int{"id": 1})

	for _, c := range []*Client{a, b} {
		msg := receive(t, c)
		assert.Equal(t, "post.created", msg.Action)
		assert.Empty(t, msg.Topic)
	}
}

func TestHub_BroadcastTopic(t *testing.T) {
	hub := startHub(t)
	global := newTestClient(hub, GlobalTopic)
	onPost := newTestClient(hub, "1")
	late := newTestClient(hub, GlobalTopic)
	require.True(t, hub.Register(global))
	require.True(t, hub.Register(onPost))
	require.True(t, hub.Register(late))
	hub.Subscribe(late, "1")

	hub.BroadcastTopic("1", "comment.created", map[string]int{"post_id": 1})

	assert.Equal(t, "comment.created", receive(t, onPost).Action)
	msg := receive(t, late)
	assert.Equal(t, "1", msg.Topic)
	assertNothingReceived(t, global)

	hub.Unsubscribe(late, "1")
	hub.BroadcastTopic("1", "comment.created", nil)
	receive(t, onPost)
	assertNothingReceived(t, late)
}

func TestHub_SendToAndUnregister(t *testing.T) {
	hub := startHub(t)
	c := newTestClient(hub, GlobalTopic)
	other := newTestClient(hub, GlobalTopic)
	require.True(t, hub.Register(c))
	require.True(t, hub.Register(other))

	hub.SendTo(c, NewErrorMessage("nope"))
	assert.Equal(t, "error", receive(t, c).Action)
	assertNothingReceived(t, other)

	hub.Unregister(c)
	select {
	case _, ok := <-c.Send:
		assert.False(t, ok, "send channel should be closed after unregister")
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	c := newTestClient(hub, GlobalTopic)
	require.True(t, hub.Register(c))

	hub.Stop()

	select {
	case _, ok := <-c.Send:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed on stop")
	}
	assert.False(t, hub.Register(newTestClient(hub, GlobalTopic)))
}
