// Package websocket pushes mailbox events to connected browser clients.
package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/welldanyogia/webrana-mailcore/internal/events"
	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// MessageType represents the type of WebSocket message
type MessageType string

const (
	MessageTypeSubscribe   MessageType = "subscribe"
	MessageTypeUnsubscribe MessageType = "unsubscribe"
	MessageTypeSubscribed  MessageType = "subscribed"
	MessageTypeError       MessageType = "error"
)

// WSMessage represents a WebSocket message. Event carries the payload of
// pushed notifications, whose Type is the event kind.
type WSMessage struct {
	Type      MessageType   `json:"type"`
	MailboxID uint          `json:"mailbox_id,omitempty"`
	Event     *events.Event `json:"event,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// MailboxLookup checks that a mailbox belongs to a scope before a client may subscribe to it
type MailboxLookup interface {
	GetMailbox(ctx context.Context, scope models.Scope, id uint) (*models.Mailbox, error)
}

// Hub maintains the set of active clients and fans events out to them
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Mailbox subscriptions: mailboxID -> set of clients
	subscriptions map[uint]map[*Client]bool

	register           chan *Client
	unregister         chan *Client
	subscribe          chan *subscriptionRequest
	unsubscribeMailbox chan *subscriptionRequest
	broadcast          chan *broadcastMessage

	// closed once Run returns
	done chan struct{}

	mu sync.RWMutex

	mailboxes MailboxLookup
	logger    *slog.Logger
}

type subscriptionRequest struct {
	client    *Client
	mailboxID uint
}

type broadcastMessage struct {
	scope      models.Scope
	mailboxIDs []uint
	message    []byte
}

// NewHub creates a new Hub. A nil mailboxes lookup accepts every subscription.
func NewHub(mailboxes MailboxLookup, l *slog.Logger) *Hub {
	return &Hub{
		clients:            make(map[*Client]bool),
		subscriptions:      make(map[uint]map[*Client]bool),
		register:           make(chan *Client),
		unregister:         make(chan *Client),
		subscribe:          make(chan *subscriptionRequest),
		unsubscribeMailbox: make(chan *subscriptionRequest),
		broadcast:          make(chan *broadcastMessage, 256),
		done:               make(chan struct{}),
		mailboxes:          mailboxes,
		logger:             logger.OrDefault(l),
	}
}

// Run serves hub requests until ctx is done, then disconnects every client
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered",
				slog.Uint64("tenant_id", uint64(client.scope.TenantID)),
				slog.String("user_id", client.scope.UserID),
			)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Debug("client unregistered")

		case req := <-h.subscribe:
			h.mu.Lock()
			if h.clients[req.client] {
				if h.subscriptions[req.mailboxID] == nil {
					h.subscriptions[req.mailboxID] = make(map[*Client]bool)
				}
				h.subscriptions[req.mailboxID][req.client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client subscribed to mailbox", slog.Uint64("mailbox_id", uint64(req.mailboxID)))

		case req := <-h.unsubscribeMailbox:
			h.mu.Lock()
			if subscribers, ok := h.subscriptions[req.mailboxID]; ok {
				delete(subscribers, req.client)
				if len(subscribers) == 0 {
					delete(h.subscriptions, req.mailboxID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed from mailbox", slog.Uint64("mailbox_id", uint64(req.mailboxID)))

		case msg := <-h.broadcast:
			h.mu.RLock()
			for client := range h.recipients(msg) {
				select {
				case client.send <- msg.message:
				default:
					// Client buffer full, skip
				}
			}
			h.mu.RUnlock()
		}
	}
}

// remove drops client and its subscriptions. Callers hold mu.
func (h *Hub) remove(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	for mailboxID, subscribers := range h.subscriptions {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.subscriptions, mailboxID)
		}
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	for client := range h.clients {
		h.remove(client)
	}
	h.mu.Unlock()
	close(h.done)
}

// recipients picks the clients of msg's scope. Mailbox scoped messages go to
// the mailbox subscribers only; the rest go to every client of the scope.
// Callers hold mu.
func (h *Hub) recipients(msg *broadcastMessage) map[*Client]bool {
	out := make(map[*Client]bool)
	if len(msg.mailboxIDs) == 0 {
		for client := range h.clients {
			if client.scope == msg.scope {
				out[client] = true
			}
		}
		return out
	}
	for _, id := range msg.mailboxIDs {
		for client := range h.subscriptions[id] {
			if client.scope == msg.scope {
				out[client] = true
			}
		}
	}
	return out
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Subscribe subscribes a client to a mailbox
func (h *Hub) Subscribe(client *Client, mailboxID uint) {
	select {
	case h.subscribe <- &subscriptionRequest{client: client, mailboxID: mailboxID}:
	case <-h.done:
	}
}

// Unsubscribe unsubscribes a client from a mailbox
func (h *Hub) Unsubscribe(client *Client, mailboxID uint) {
	select {
	case h.unsubscribeMailbox <- &subscriptionRequest{client: client, mailboxID: mailboxID}:
	case <-h.done:
	}
}

// Handle implements events.Subscriber. Message removal is not pushed;
// clients learn about it through the counters.changed event that follows.
func (h *Hub) Handle(_ context.Context, e events.Event) {
	switch e.Kind {
	case events.MessageAdded, events.MessagesChanged, events.CountersChanged:
	default:
		return
	}

	msg := WSMessage{Type: MessageType(e.Kind), Event: &e}
	if len(e.MailboxIDs) == 1 {
		msg.MailboxID = e.MailboxIDs[0]
	}
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", slog.Any("error", err))
		return
	}

	select {
	case h.broadcast <- &broadcastMessage{scope: e.Scope, mailboxIDs: e.MailboxIDs, message: data}:
	case <-h.done:
	default:
		h.logger.Warn("websocket broadcast buffer full, dropping event",
			slog.String("event_id", e.ID),
			slog.String("type", string(e.Kind)),
		)
	}
}
