// Package session adapts the teacher's dashboard WebSocket hub into a
// channel-subscribed session layer: each client names the channels it wants
// (trades:<symbol>, book:<symbol>, orders:<principal>) instead of receiving
// one global broadcast, routing messages through the injected pubsub.Bus the
// way the original WebSocketManager multiplexed Redis subscriptions per
// connected client.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"spotmatch/internal/pubsub"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// AuthResolver validates a principal identity is allowed to subscribe to
// `orders:<principal>`; it is the pluggable surface the real auth system
// sits behind. See spec.md §6.
type AuthResolver interface {
	Authorize(principalID, channel string) bool
}

// Hub tracks connected sessions and their channel subscriptions, fanning out
// frames read from the bus to every client subscribed to that channel.
type Hub struct {
	bus    pubsub.Bus
	auth   AuthResolver
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[*Client]bool
}

// NewHub creates a session hub bound to bus for upstream delivery.
func NewHub(bus pubsub.Bus, auth AuthResolver, logger *slog.Logger) *Hub {
	return &Hub{
		bus:      bus,
		auth:     auth,
		logger:   logger.With("component", "session-hub"),
		sessions: make(map[*Client]bool),
	}
}

// Client is a single authenticated WebSocket connection.
type Client struct {
	hub         *Hub
	conn        *websocket.Conn
	principalID string
	send        chan []byte

	mu            sync.Mutex
	unsubscribers map[string]func()
}

// Frame is the wire envelope delivered to clients.
type Frame struct {
	Channel string          `json:"channel"`
	Payload json.RawMessage `json:"payload"`
}

// Register accepts a new connection and starts its read/write pumps.
func (h *Hub) Register(conn *websocket.Conn, principalID string) *Client {
	c := &Client{
		hub:           h,
		conn:          conn,
		principalID:   principalID,
		send:          make(chan []byte, 256),
		unsubscribers: make(map[string]func()),
	}
	h.mu.Lock()
	h.sessions[c] = true
	h.mu.Unlock()
	h.logger.Info("session connected", "principal", principalID, "count", len(h.sessions))

	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.sessions[c]; ok {
		delete(h.sessions, c)
		close(c.send)
	}
	h.mu.Unlock()
	c.mu.Lock()
	for _, unsub := range c.unsubscribers {
		unsub()
	}
	c.mu.Unlock()
	h.logger.Info("session disconnected", "principal", c.principalID, "count", len(h.sessions))
}

// Subscribe attaches c to channel, starting an upstream pump that re-frames
// bus messages onto the client's send queue. Access to every channel is
// decided by the hub's AuthResolver; with a nil resolver every channel is
// allowed.
func (c *Client) Subscribe(ctx context.Context, channel string) error {
	if !c.hub.authorized(c.principalID, channel) {
		return ErrUnauthorizedChannel
	}

	c.mu.Lock()
	if _, ok := c.unsubscribers[channel]; ok {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	msgs, unsubscribe, err := c.hub.bus.Subscribe(ctx, channel)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.unsubscribers[channel] = unsubscribe
	c.mu.Unlock()

	go func() {
		for msg := range msgs {
			frame, err := json.Marshal(Frame{Channel: msg.Channel, Payload: msg.Payload})
			if err != nil {
				continue
			}
			select {
			case c.send <- frame:
			default:
				c.hub.logger.Warn("slow client, dropping frame", "channel", channel)
			}
		}
	}()
	return nil
}

// Unsubscribe detaches c from channel.
func (c *Client) Unsubscribe(channel string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if unsub, ok := c.unsubscribers[channel]; ok {
		unsub()
		delete(c.unsubscribers, channel)
	}
}

func (h *Hub) authorized(principalID, channel string) bool {
	if h.auth == nil {
		return true
	}
	return h.auth.Authorize(principalID, channel)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// subscribeRequest is the client-initiated control message for adding or
// dropping a channel subscription mid-connection.
type subscribeRequest struct {
	Action  string `json:"action"` // "subscribe" or "unsubscribe"
	Channel string `json:"channel"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("websocket error", "error", err)
			}
			return
		}

		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		switch req.Action {
		case "subscribe":
			if err := c.Subscribe(context.Background(), req.Channel); err != nil {
				c.hub.logger.Warn("subscribe rejected", "principal", c.principalID, "channel", req.Channel, "error", err)
			}
		case "unsubscribe":
			c.Unsubscribe(req.Channel)
		}
	}
}
