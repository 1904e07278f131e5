package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one connected WebSocket subscriber, pinned to a match room.
type Client struct {
	conn    *websocket.Conn
	userID  string
	matchID string
	send    chan []byte
}

// Hub maintains the set of active clients, grouped per match.
type Hub struct {
	clients    map[string][]*Client          // userID -> connections
	matchRooms map[string]map[*Client]string // matchID -> client -> userID
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string][]*Client),
		matchRooms: make(map[string]map[*Client]string),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.clients[c.userID] = append(h.clients[c.userID], c)
	room, ok := h.matchRooms[c.matchID]
	if !ok {
		room = make(map[*Client]string)
		h.matchRooms[c.matchID] = room
	}
	room[c] = c.userID
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[c.userID]
	for i, other := range conns {
		if other == c {
			h.clients[c.userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.clients[c.userID]) == 0 {
		delete(h.clients, c.userID)
	}
	if room, ok := h.matchRooms[c.matchID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.matchRooms, c.matchID)
		}
	}
	close(c.send)
}

// BroadcastToMatch sends a raw message to every client watching a match.
func (h *Hub) BroadcastToMatch(matchID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.matchRooms[matchID] {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] send buffer full for user %s on match %s, dropping message", client.userID, matchID)
		}
	}
}

// SendToUser sends a raw message to every connection a user holds.
func (h *Hub) SendToUser(userID string, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients[userID] {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] send buffer full for user %s, dropping message", userID)
		}
	}
}

// writePump drains the send channel onto the connection and keeps it alive
// with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] write error for user %s: %v", c.userID, err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; state changes only enter through the
// HTTP API. It exists to notice disconnects and answer pings.
func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(1024)
	c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) sendJSON(payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}
