package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

var _ contract.Worker = (*EventFanout)(nil)

// EventFanout delivers each coordinator delivery to its recipients.
//
// It provides best-effort, at-most-once fan-out: a failed or timed out recipient is
// logged and skipped, never retried, and never holds back the other recipients.
// Deliveries are handled one at a time, so every recipient observes them in the
// order the coordinator produced them.
type EventFanout struct {
	log         *slog.Logger
	metrics     *observability.Metrics
	deliveries  <-chan contract.Delivery
	sinkTimeout time.Duration
}

func NewEventFanout(log *slog.Logger, metrics *observability.Metrics,
	deliveries <-chan contract.Delivery, sinkTimeout time.Duration) *EventFanout {
	return &EventFanout{
		log:         log,
		metrics:     metrics,
		deliveries:  deliveries,
		sinkTimeout: sinkTimeout,
	}
}

func (w *EventFanout) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping fanout")
			return nil
		case d, ok := <-w.deliveries:
			if !ok {
				w.log.Debug("Delivery channel is closed")
				return nil
			}
			w.Fanout(ctx, d)
		}
	}
}

// Fanout One sink for each recipient
func (w *EventFanout) Fanout(ctx context.Context, d contract.Delivery) {
	for _, recipient := range d.Recipients {
		w.deliver(ctx, recipient, d.Event)
	}
}

func (w *EventFanout) deliver(ctx context.Context, recipient contract.EventSink, evt event.DomainEvent) {
	sinkCtx, cancel := context.WithTimeout(ctx, w.sinkTimeout)
	defer cancel()
	if err := recipient.Consume(sinkCtx, evt); err != nil {
		w.metrics.DeliveryDropped()
		w.log.Debug("Delivery dropped", "type", evt.EventType(), "error", err)
	}
}
