package http

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"
	"trivia-room-service/internal/domain"
)

type outboundMessage[T any] struct {
	Type    domain.EventName `json:"type"`
	Payload T                `json:"payload,omitempty"`
}

// Client is one websocket connection registered with the hub.
type Client struct {
	ID   string
	send chan []byte
}

func NewClient(id string, buffer int) *Client {
	return &Client{ID: id, send: make(chan []byte, buffer)}
}

// Send exposes the outbound queue to the connection's writer.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Hub fans events out to connections grouped by room. It implements app.Broadcaster.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a connection from every room and closes its queue.
func (h *Hub) Unregister(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	delete(h.clients, connID)
	for roomID, members := range h.rooms {
		delete(members, connID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	close(c.send)
}

func (h *Hub) Subscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]struct{})
	}
	h.rooms[roomID][connID] = struct{}{}
}

func (h *Hub) Unsubscribe(roomID, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// ToRoom sends an event to every subscriber of roomID. Non-blocking: drops if a queue is full.
func (h *Hub) ToRoom(roomID string, event domain.Event) {
	data, ok := encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for connID := range h.rooms[roomID] {
		h.deliverLocked(connID, event.Name, data)
	}
}

// ToConn sends an event to a single connection.
func (h *Hub) ToConn(connID string, event domain.Event) {
	data, ok := encode(event)
	if !ok {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliverLocked(connID, event.Name, data)
}

// Count returns the number of registered connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) deliverLocked(connID string, name domain.EventName, data []byte) {
	c, ok := h.clients[connID]
	if !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().
			Str("conn_id", connID).
			Str("event", string(name)).
			Msg("send buffer full, dropping event")
	}
}

func encode(event domain.Event) ([]byte, bool) {
	data, err := json.Marshal(outboundMessage[any]{Type: event.Name, Payload: event.Payload})
	if err != nil {
		log.Error().Err(err).Str("event", string(event.Name)).Msg("failed to marshal event")
		return nil, false
	}
	return data, true
}
