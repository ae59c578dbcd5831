// Package events carries post-commit notifications from the core to
// asynchronous consumers such as search indexing and websocket clients.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// Kind names an outbound event
type Kind string

const (
	MessageAdded    Kind = "message.added"
	MessagesChanged Kind = "messages.changed"
	MessagesRemoved Kind = "messages.removed"
	CountersChanged Kind = "counters.changed"
)

// Event is one notification. Message is set for MessageAdded; Fields holds
// the changed columns for MessagesChanged.
type Event struct {
	ID         string                 `json:"id"`
	Kind       Kind                   `json:"type"`
	Scope      models.Scope           `json:"-"`
	MailboxIDs []uint                 `json:"mailbox_ids,omitempty"`
	MessageIDs []uint                 `json:"message_ids,omitempty"`
	Message    *models.Message        `json:"message,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// New creates an event with a fresh id and timestamp
func New(kind Kind, scope models.Scope) Event {
	return Event{
		ID:         uuid.New().String(),
		Kind:       kind,
		Scope:      scope,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher accepts events without blocking the caller
type Publisher interface {
	Publish(e Event)
}

// Subscriber handles events delivered by a Queue
type Subscriber interface {
	Handle(ctx context.Context, e Event)
}

// SubscriberFunc adapts a function to Subscriber
type SubscriberFunc func(ctx context.Context, e Event)

// Handle calls f
func (f SubscriberFunc) Handle(ctx context.Context, e Event) {
	f(ctx, e)
}

// Discard is a Publisher that drops every event
type Discard struct{}

// Publish does nothing
func (Discard) Publish(Event) {}
