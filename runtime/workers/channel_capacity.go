package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"reflect"
	"time"

	"github.com/jonboulle/clockwork"
)

var _ contract.Worker = (*ChannelCapacityWorker)(nil)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically reports the length and capacity of the pipeline queues.
// Reading len(channel) and cap(channel) is non-blocking, so this won't interfere
// with the goroutines producing and consuming them.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	clock          clockwork.Clock
	metrics        *observability.Metrics
	channels       []NamedChannel
	metricInterval time.Duration
	// warnPercent is the fill ratio above which a queue is reported as congested, 0 disables it.
	warnPercent int
}

func NewChannelCapacityWorker(log *slog.Logger, clock clockwork.Clock, metrics *observability.Metrics,
	channels []NamedChannel, metricInterval time.Duration, warnPercent int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:            log,
		clock:          clock,
		metrics:        metrics,
		channels:       channels,
		metricInterval: metricInterval,
		warnPercent:    warnPercent,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := w.clock.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel capacity sampling")
			return ctx.Err()
		case <-ticker.Chan():
			w.sample()
		}
	}
}

func (w *ChannelCapacityWorker) sample() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		// Verify if this is a channel
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		capacity, length := v.Cap(), v.Len()
		w.metrics.QueueSample(nc.Name, length, capacity)
		if w.congested(length, capacity) {
			w.log.Warn("Pipeline queue congested", "queue", nc.Name, "length", length, "capacity", capacity)
		}
	}
}

func (w *ChannelCapacityWorker) congested(length, capacity int) bool {
	return w.warnPercent > 0 && capacity > 0 && length*100 >= capacity*w.warnPercent
}
