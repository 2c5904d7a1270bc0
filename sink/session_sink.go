// Package sink adapts the runtime's event fan-out to individual live
// connections.
package sink

import (
	"context"
	"log/slog"

	"course-chat/contract"
	"course-chat/domain/event"
)

var _ contract.EventSink = (*SessionSink)(nil)

// SessionSink is the delivery end of one websocket session: a buffered
// channel filled by the dispatch workers and drained by the connection's
// write loop. Consume never blocks the room worker past the dispatch
// context; if the client cannot keep up, events are dropped for that
// session only and counted by the caller.
type SessionSink struct {
	Events chan event.DomainEvent
	log    *slog.Logger
}

func NewSessionSink(bufferSize int, log *slog.Logger) *SessionSink {
	return &SessionSink{
		Events: make(chan event.DomainEvent, bufferSize),
		log:    log,
	}
}

// Consume is called by the dispatch fan-out. It hands the event to the
// session's write loop through the buffered channel.
func (s *SessionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case s.Events <- e:
		return nil
	default:
		s.log.Debug("Session sink full, dropping event", "course", e.CourseID())
		return nil
	}
}
