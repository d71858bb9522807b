package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// envelope is the wire form of every outbound event.
type envelope struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub tracks connected clients and their room memberships and implements
// app.Emitter. Rooms follow the orchestrator's naming convention; the hub
// itself treats them as opaque strings.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client            // connID -> client
	rooms   map[string]map[string]*Client // room -> connID -> client
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		log:     log,
	}
}

// Register adds a connected client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	h.log.Debug().Str("connId", c.id).Msg("client registered")
}

// Unregister removes a client from the hub and every room it joined.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c.id]; ok {
		delete(h.clients, c.id)
		for room, members := range h.rooms {
			delete(members, c.id)
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
		close(c.send)
	}
	h.mu.Unlock()
	h.log.Debug().Str("connId", c.id).Msg("client unregistered")
}

func (h *Hub) JoinRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	h.rooms[room][connID] = c
}

func (h *Hub) LeaveRoom(connID, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// MoveRoom reseats every member of one room into another, e.g. the lobby
// into the live room when a game starts.
func (h *Hub) MoveRoom(from, to string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[from]
	if !ok {
		return
	}
	if h.rooms[to] == nil {
		h.rooms[to] = make(map[string]*Client)
	}
	for connID, c := range members {
		h.rooms[to][connID] = c
	}
	delete(h.rooms, from)
}

// ToRoom broadcasts an event to every connection in a room. Slow clients
// are skipped rather than allowed to block the broadcast.
func (h *Hub) ToRoom(room, event string, payload any) {
	data, err := json.Marshal(envelope{Type: event, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal event failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[room] {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Str("connId", c.id).Str("event", event).Msg("client buffer full, skipping")
		}
	}
}

// ToConn delivers an event to a single connection.
func (h *Hub) ToConn(connID, event string, payload any) {
	data, err := json.Marshal(envelope{Type: event, Payload: payload, Timestamp: time.Now()})
	if err != nil {
		h.log.Error().Err(err).Str("event", event).Msg("marshal event failed")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		h.log.Warn().Str("connId", c.id).Str("event", event).Msg("client buffer full, skipping")
	}
}

// RoomSize reports the current member count of a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
