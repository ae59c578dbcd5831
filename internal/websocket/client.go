package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 512

	// Time allowed to check a mailbox subscription
	lookupTimeout = 5 * time.Second
)

// Client represents a WebSocket client connection of one tenant user
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	scope  models.Scope
	send   chan []byte
	logger *slog.Logger
}

// NewClient creates a new Client instance
func NewClient(hub *Hub, conn *websocket.Conn, scope models.Scope, l *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		scope:  scope,
		send:   make(chan []byte, 256),
		logger: logger.OrDefault(l),
	}
}

// ReadPump pumps messages from the WebSocket connection to the hub
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket read error", slog.Any("error", err))
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the hub to the WebSocket connection
func (c *Client) WritePump() {
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
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
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

// handleMessage processes incoming WebSocket messages
func (c *Client) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid message format")
		return
	}

	switch msg.Type {
	case MessageTypeSubscribe:
		if msg.MailboxID == 0 {
			c.sendError("mailbox_id is required")
			return
		}
		if !c.owns(msg.MailboxID) {
			c.sendError("mailbox not found")
			return
		}
		c.hub.Subscribe(c, msg.MailboxID)
		c.sendJSON(WSMessage{Type: MessageTypeSubscribed, MailboxID: msg.MailboxID})

	case MessageTypeUnsubscribe:
		if msg.MailboxID == 0 {
			c.sendError("mailbox_id is required")
			return
		}
		c.hub.Unsubscribe(c, msg.MailboxID)

	default:
		c.sendError("unknown message type")
	}
}

func (c *Client) owns(mailboxID uint) bool {
	if c.hub.mailboxes == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()
	if _, err := c.hub.mailboxes.GetMailbox(ctx, c.scope, mailboxID); err != nil {
		c.logger.Debug("subscription refused",
			slog.Uint64("mailbox_id", uint64(mailboxID)),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}

// sendError sends an error message to the client
func (c *Client) sendError(errMsg string) {
	c.sendJSON(WSMessage{Type: MessageTypeError, Error: errMsg})
}

func (c *Client) sendJSON(msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case c.send <- data:
	default:
		// Buffer full, skip
	}
}
