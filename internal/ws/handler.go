package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	pingInterval  = 10 * time.Second
	idleTimeout   = 30 * time.Second
	writeDeadline = 10 * time.Second
)

// Client represents one connected WebSocket session.
type Client struct {
	conn      *websocket.Conn
	sessionID string
	roomCode  string
	send      chan []byte
}

// Hub maintains the set of active clients keyed by session id.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.sessionID] = c
}

// Unregister removes a client, but only if it is still the current one for
// its session id (a reconnect may have replaced it already).
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.clients[c.sessionID]; ok && cur == c {
		delete(h.clients, c.sessionID)
		select {
		case <-c.send:
		default:
			close(c.send)
		}
	}
}

// SendToSession sends a message to a specific session, dropping it if the
// session is gone or its buffer is full.
func (h *Hub) SendToSession(sessionID string, message interface{}) {
	data, err := json.Marshal(message)
	if err != nil {
		log.Printf("[WS] Error marshaling message: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	client, exists := h.clients[sessionID]
	if !exists {
		return
	}
	select {
	case client.send <- data:
	default:
		log.Printf("[WS] Send buffer full for session %s, dropping message", sessionID)
	}
}

// WSMessage is the client -> server frame.
type WSMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// writePump writes messages to the WebSocket connection and keeps the
// heartbeat going.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] Write error for session %s: %v", c.sessionID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("[WS] Ping error for session %s: %v", c.sessionID, err)
				return
			}
		}
	}
}

// sendInvalidPlay sends an invalid-play message to the client.
func (c *Client) sendInvalidPlay(message string) {
	data, _ := json.Marshal(map[string]interface{}{
		"type":    "invalid-play",
		"message": message,
	})
	select {
	case c.send <- data:
	default:
	}
}
