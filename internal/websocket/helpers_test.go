package websocket

import (
	"encoding/json"
	"testing"
	"time"

	"solarchat/internal/models"

	"github.com/stretchr/testify/require"
)

func newTestEnv() (*Hub, *Router, *memSessionStore, *memMessageStore) {
	hub := NewHub()
	sessions := newMemSessionStore()
	messages := newMemMessageStore()
	router := NewRouter(hub, messages, sessions)
	return hub, router, sessions, messages
}

func newTestClient(hub *Hub, router *Router, sessions *memSessionStore, identity models.Identity) *Client {
	return NewClient(nil, hub, router, sessions, identity, time.Minute)
}

// joinClient runs the real join path for a client whose payload matches
// its claim.
func joinClient(t *testing.T, c *Client) {
	t.Helper()

	identity := c.Identity()
	c.handleEvent(&Event{
		Type: EventJoin,
		Payload: mustMarshal(t, JoinPayload{
			UserName: identity.Name,
			UserID:   identity.ID,
			UserType: identity.Role,
		}),
	})
	require.Equal(t, StateJoined, c.State(), "join should move client to joined state")
}

func mustMarshal(t *testing.T, v interface{}) json.RawMessage {
	t.Helper()

	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// recvEvent pops the next queued outbound event, failing if none arrives.
func recvEvent(t *testing.T, c *Client) *Event {
	t.Helper()

	select {
	case frame := <-c.send:
		ev, err := DecodeEvent(frame)
		require.NoError(t, err)
		return ev
	case <-time.After(time.Second):
		t.Fatal("expected an outbound event, got none")
		return nil
	}
}

// tryRecv pops the next queued outbound event without waiting.
func tryRecv(c *Client) *Event {
	select {
	case frame := <-c.send:
		ev, _ := DecodeEvent(frame)
		return ev
	default:
		return nil
	}
}

// drainEvents empties a client's outbound queue.
func drainEvents(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func decodePayload(t *testing.T, ev *Event, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(ev.Payload, dst))
}
