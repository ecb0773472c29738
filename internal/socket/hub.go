// server/internal/socket/hub.go
package socket

import (
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Hub tracks the WebSocket connections, keyed by userID.
type Hub struct {
	clients map[string]*websocket.Conn
	mu      sync.RWMutex
	log     zerolog.Logger
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*websocket.Conn),
		log:     log,
	}
}

// Register adds a client connection to the Hub.
func (h *Hub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[userID] = conn
	h.log.Debug().Str("userID", userID).Msg("websocket client registered")
}

// Unregister removes a client from the Hub.
func (h *Hub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[userID]; ok {
		delete(h.clients, userID)
		h.log.Debug().Str("userID", userID).Msg("websocket client unregistered")
	}
}

// Send pushes a message to one client. An offline client is not an error.
func (h *Hub) Send(userID string, message []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.clients[userID]
	if !ok {
		return nil
	}
	return conn.WriteMessage(websocket.TextMessage, message)
}

// Broadcast pushes a message to every connected client.
func (h *Hub) Broadcast(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for userID, conn := range h.clients {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.log.Warn().Err(err).Str("userID", userID).Msg("failed to broadcast to client")
		}
	}
}
