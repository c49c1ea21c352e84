package sink

import (
	"chat-relay/domain/event"
	"context"
	"sync"
)

// Timeline holds a simple local timeline of every event it consumed.
type Timeline struct {
	mu     sync.Mutex
	Owner  string
	events []event.DomainEvent
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{Owner: owner}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
	return nil
}

func (t *Timeline) Events() []event.DomainEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]event.DomainEvent(nil), t.events...)
}

// Messages keeps only chat lines and system notices.
func (t *Timeline) Messages() []event.MessagePosted {
	var res []event.MessagePosted
	for _, e := range t.Events() {
		if m, ok := e.(event.MessagePosted); ok {
			res = append(res, m)
		}
	}
	return res
}

func (t *Timeline) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.events)
}
