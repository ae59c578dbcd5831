package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/welldanyogia/webrana-mailcore/internal/logger"
	"github.com/welldanyogia/webrana-mailcore/internal/metrics"
)

const DefaultQueueSize = 1024

// Queue is a bounded in-process event queue. Publish never blocks: when the
// buffer is full the event is dropped and counted.
type Queue struct {
	ch     chan Event
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []Subscriber
	closed bool
}

// NewQueue creates a queue buffering up to size events
func NewQueue(size int, l *slog.Logger) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		ch:     make(chan Event, size),
		logger: logger.OrDefault(l),
	}
}

// Subscribe registers s for every event consumed after the call
func (q *Queue) Subscribe(s Subscriber) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subs = append(q.subs, s)
}

// Publish enqueues e
func (q *Queue) Publish(e Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return
	}

	select {
	case q.ch <- e:
	default:
		metrics.EventsDropped.Inc()
		q.logger.Warn("event queue full, dropping event",
			slog.String("event_id", e.ID),
			slog.String("type", string(e.Kind)),
		)
	}
}

// Len returns the number of queued events
func (q *Queue) Len() int {
	return len(q.ch)
}

// Run delivers queued events to subscribers until ctx is done or the queue
// is closed and drained.
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			q.dispatch(ctx, e)
		}
	}
}

// Close stops accepting events. Run returns once the buffer is drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

func (q *Queue) dispatch(ctx context.Context, e Event) {
	q.mu.RLock()
	subs := make([]Subscriber, len(q.subs))
	copy(subs, q.subs)
	q.mu.RUnlock()

	for _, s := range subs {
		q.deliver(ctx, s, e)
	}
}

// deliver isolates subscribers from each other's panics
func (q *Queue) deliver(ctx context.Context, s Subscriber, e Event) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("event subscriber panicked",
				slog.String("event_id", e.ID),
				slog.String("type", string(e.Kind)),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	s.Handle(ctx, e)
}
