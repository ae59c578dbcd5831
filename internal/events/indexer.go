package events

import (
	"context"
	"log/slog"

	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/models"
)

// SearchIndexer is the best-effort full text index
type SearchIndexer interface {
	Index(ctx context.Context, msg *models.Message) error
	Update(ctx context.Context, ids []uint, fields map[string]interface{}) error
	Remove(ctx context.Context, ids []uint) error
}

// IndexSubscriber forwards message events to a SearchIndexer.
// Indexing failures are logged and never retried.
type IndexSubscriber struct {
	indexer SearchIndexer
	logger  *slog.Logger
}

// NewIndexSubscriber creates an IndexSubscriber
func NewIndexSubscriber(indexer SearchIndexer, l *slog.Logger) *IndexSubscriber {
	return &IndexSubscriber{indexer: indexer, logger: logger.OrDefault(l)}
}

// Handle implements Subscriber
func (s *IndexSubscriber) Handle(ctx context.Context, e Event) {
	var err error
	switch e.Kind {
	case MessageAdded:
		if e.Message == nil {
			return
		}
		err = s.indexer.Index(ctx, e.Message)
	case MessagesChanged:
		if len(e.MessageIDs) == 0 || len(e.Fields) == 0 {
			return
		}
		err = s.indexer.Update(ctx, e.MessageIDs, e.Fields)
	case MessagesRemoved:
		if len(e.MessageIDs) == 0 {
			return
		}
		err = s.indexer.Remove(ctx, e.MessageIDs)
	default:
		return
	}

	if err != nil {
		s.logger.Warn("search index notification failed",
			slog.String("event_id", e.ID),
			slog.String("type", string(e.Kind)),
			slog.Int("messages", len(e.MessageIDs)),
			slog.String("error", err.Error()),
		)
	}
}

// LogIndexer is the SearchIndexer used when no search backend is configured
type LogIndexer struct {
	logger *slog.Logger
}

// NewLogIndexer creates a LogIndexer
func NewLogIndexer(l *slog.Logger) *LogIndexer {
	return &LogIndexer{logger: logger.OrDefault(l)}
}

func (l *LogIndexer) Index(_ context.Context, msg *models.Message) error {
	l.logger.Debug("index message", slog.Uint64("message_id", uint64(msg.ID)))
	return nil
}

func (l *LogIndexer) Update(_ context.Context, ids []uint, fields map[string]interface{}) error {
	l.logger.Debug("update indexed messages", slog.Int("count", len(ids)), slog.Int("fields", len(fields)))
	return nil
}

func (l *LogIndexer) Remove(_ context.Context, ids []uint) error {
	l.logger.Debug("remove indexed messages", slog.Int("count", len(ids)))
	return nil
}
