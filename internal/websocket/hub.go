package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
)

// Message is a real-time change notification for one group.
type Message struct {
	Type   string         `json:"type"`
	Entity string         `json:"entity"`
	Action string         `json:"action"`
	ID     string         `json:"id,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

// NewMessage creates a Message with the Type field derived from entity and action.
func NewMessage(entity, action, id string, extra map[string]any) Message {
	return Message{
		Type:   fmt.Sprintf("%s_%s", entity, action),
		Entity: entity,
		Action: action,
		ID:     id,
		Extra:  extra,
	}
}

// Hub keeps one room of connected clients per group.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger.With("component", "websocket"),
	}
}

// Register adds a client to its group's room.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.groupID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.groupID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from its room and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if room, ok := h.rooms[c.groupID]; ok {
		if _, ok := room[c]; ok {
			delete(room, c)
			close(c.send)
		}
		if len(room) == 0 {
			delete(h.rooms, c.groupID)
		}
	}
	h.mu.Unlock()
}

// DisconnectMember drops every connection memberID holds on groupID's feed.
// Closing the send channel makes the client's write pump close the socket.
// It returns how many connections were dropped.
func (h *Hub) DisconnectMember(groupID, memberID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[groupID]
	n := 0
	for c := range room {
		if c.memberID != memberID {
			continue
		}
		delete(room, c)
		close(c.send)
		n++
	}
	if room != nil && len(room) == 0 {
		delete(h.rooms, groupID)
	}
	if n > 0 {
		h.logger.Info("member disconnected", "group_id", groupID, "member_id", memberID, "connections", n)
	}
	return n
}

// Broadcast sends a message to every client watching groupID.
func (h *Hub) Broadcast(groupID string, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[groupID] {
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of clients watching groupID.
func (h *Hub) ClientCount(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[groupID])
}
