package ws

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func addClient(t *testing.T, hub *Hub) *Client {
	t.Helper()
	c := newClient(hub, nil, zerolog.Nop())
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		return env
	default:
		t.Fatalf("expected a queued message")
		return envelope{}
	}
}

func TestHubRoomBroadcast(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := addClient(t, hub)
	b := addClient(t, hub)
	outsider := addClient(t, hub)

	hub.JoinRoom(a.id, "live_GAME1")
	hub.JoinRoom(b.id, "live_GAME1")

	hub.ToRoom("live_GAME1", "game_started", nil)
	if env := receive(t, a); env.Type != "game_started" {
		t.Fatalf("unexpected event: %+v", env)
	}
	receive(t, b)
	select {
	case <-outsider.send:
		t.Fatalf("outsider must not receive room traffic")
	default:
	}
}

func TestHubMoveRoom(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := addClient(t, hub)
	hub.JoinRoom(a.id, "lobby_GAME1")

	hub.MoveRoom("lobby_GAME1", "live_GAME1")
	if hub.RoomSize("lobby_GAME1") != 0 || hub.RoomSize("live_GAME1") != 1 {
		t.Fatalf("expected member reseated, lobby=%d live=%d", hub.RoomSize("lobby_GAME1"), hub.RoomSize("live_GAME1"))
	}

	hub.ToRoom("live_GAME1", "game_question", nil)
	if env := receive(t, a); env.Type != "game_question" {
		t.Fatalf("unexpected event: %+v", env)
	}
}

func TestHubUnregisterLeavesRooms(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := addClient(t, hub)
	hub.JoinRoom(a.id, "live_GAME1")

	hub.Unregister(a)
	if hub.RoomSize("live_GAME1") != 0 {
		t.Fatalf("expected empty room after unregister")
	}
	if _, ok := <-a.send; ok {
		t.Fatalf("expected send channel closed")
	}

	// Sends to a gone connection are dropped, not a panic.
	hub.ToConn(a.id, "game_error", nil)
}
