package realtime

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Envelope is the wire shape of every push message.
type Envelope struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one live websocket session inside a room. Messages are dropped
// rather than blocking the hub when the session cannot keep up.
type Client struct {
	room string
	send chan []byte
}

// Outbox is the channel the connection's writer loop drains.
func (c *Client) Outbox() <-chan []byte {
	return c.send
}

// Hub is the process-wide room registry. Rooms are keyed by the external
// subject so sessions authenticated with the same identity share deliveries.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*Client]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Client]struct{}),
		logger: logger,
	}
}

func (h *Hub) Join(room string) *Client {
	c := &Client{
		room: room,
		send: make(chan []byte, 16),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[room]
	if !ok {
		clients = make(map[*Client]struct{})
		h.rooms[room] = clients
	}
	clients[c] = struct{}{}

	return c
}

func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients, ok := h.rooms[c.room]
	if !ok {
		return
	}
	if _, member := clients[c]; !member {
		return
	}

	delete(clients, c)
	close(c.send)
	if len(clients) == 0 {
		delete(h.rooms, c.room)
	}
}

// Emit pushes an event to every session in the room. Unknown rooms are a
// no-op; slow sessions lose the message, clients reconcile via updatedAt.
func (h *Hub) Emit(room, event string, data interface{}) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		h.logger.Error("realtime: failed to marshal envelope",
			zap.String("event", event),
			zap.Error(err),
		)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[room] {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("realtime: dropping message for slow session",
				zap.String("room", room),
				zap.String("event", event),
			)
		}
	}
}

// RoomSize reports the number of live sessions in a room.
func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Close disconnects every session. Used on shutdown.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room, clients := range h.rooms {
		for c := range clients {
			close(c.send)
		}
		delete(h.rooms, room)
	}
}
