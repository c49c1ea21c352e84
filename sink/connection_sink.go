package sink

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"log/slog"
	"sync"
)

// ConnectionSink buffers the events addressed to one connection.
// The transport owning the connection drains Events and writes them to the wire.
type ConnectionSink struct {
	mu                 sync.RWMutex
	closed             bool
	log                *slog.Logger
	ConnectedUserEvent chan event.DomainEvent
}

func NewConnectionSink(log *slog.Logger, bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		log:                log,
		ConnectedUserEvent: make(chan event.DomainEvent, bufferSize),
	}
}

// Consume is called by fanout
// Redirect the event through the concerned owner of the channel
// It never blocks: when the buffer is full the event is dropped for this connection only.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.ErrSinkClosed
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	select {
	case s.ConnectedUserEvent <- e:
		return nil
	default:
		s.log.Debug("Connection buffer full, event dropped", "type", e.EventType())
		return errors.ErrSinkFull
	}
}

// Close stops accepting events. Already buffered events stay readable.
func (s *ConnectionSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ConnectedUserEvent)
}
