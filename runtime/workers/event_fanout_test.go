package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/observability"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestEventFanout_Fanout_All_Recipients(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSink1 := mocks.NewMockEventSink(ctrl)
	mockSink2 := mocks.NewMockEventSink(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	fanout := NewEventFanout(log, metrics, nil, time.Second)
	evt := event.UserTyping{Name: "alice"}

	// Given two recipients accepting the event
	mockSink1.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)
	mockSink2.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	// When a delivery is handled by the worker
	fanout.Fanout(context.Background(), contract.Delivery{
		Event:      evt,
		Recipients: []contract.EventSink{mockSink1, mockSink2},
	})

	// Then nothing has been dropped
	req.Equal(uint64(0), metrics.GetLatest().DroppedDeliveries)
}

func TestEventFanout_Failing_Recipient_Does_Not_Abort_Others(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	failing := mocks.NewMockEventSink(ctrl)
	healthy := mocks.NewMockEventSink(ctrl)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	fanout := NewEventFanout(log, metrics, nil, time.Second)
	evt := event.MessagePosted{SenderName: "bob", Text: "hi"}

	// Given the first recipient fails
	gomock.InOrder(
		failing.EXPECT().Consume(gomock.Any(), evt).Return(errors.ErrSinkFull).Times(1),
		healthy.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1),
	)

	// When the delivery is handled
	fanout.Fanout(context.Background(), contract.Delivery{
		Event:      evt,
		Recipients: []contract.EventSink{failing, healthy},
	})

	// Then the second recipient still got it, and only one drop is counted
	req.Equal(uint64(1), metrics.GetLatest().DroppedDeliveries)
}

func TestEventFanout_SinkTimeout(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	slow := mocks.NewMockEventSink(ctrl)
	fast := mocks.NewMockEventSink(ctrl)
	fanout := NewEventFanout(log, nil, nil, 20*time.Millisecond)
	evt := event.UserTyping{Name: "alice"}

	// Given a recipient that only returns when its context expires
	slow.EXPECT().Consume(gomock.Any(), evt).
		DoAndReturn(func(ctx context.Context, _ event.DomainEvent) error {
			<-ctx.Done()
			return ctx.Err()
		}).Times(1)
	fast.EXPECT().Consume(gomock.Any(), evt).Return(nil).Times(1)

	// When the delivery is handled
	start := time.Now()
	fanout.Fanout(context.Background(), contract.Delivery{
		Event:      evt,
		Recipients: []contract.EventSink{slow, fast},
	})

	// Then the slow recipient is bounded by the sink timeout
	req.Less(time.Since(start), time.Second)
}

func TestEventFanout_Run_Preserves_Order(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	deliveries := make(chan contract.Delivery, 3)
	sink := mocks.NewMockEventSink(ctrl)
	fanout := NewEventFanout(log, nil, deliveries, time.Second)
	done := make(chan struct{})

	first := event.MessagePosted{SenderName: "alice", Text: "1"}
	second := event.MessagePosted{SenderName: "alice", Text: "2"}
	third := event.MessagePosted{SenderName: "alice", Text: "3"}
	gomock.InOrder(
		sink.EXPECT().Consume(gomock.Any(), first).Return(nil),
		sink.EXPECT().Consume(gomock.Any(), second).Return(nil),
		sink.EXPECT().Consume(gomock.Any(), third).Do(func(context.Context, event.DomainEvent) {
			close(done)
		}).Return(nil),
	)

	for _, evt := range []event.DomainEvent{first, second, third} {
		deliveries <- contract.Delivery{Event: evt, Recipients: []contract.EventSink{sink}}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = fanout.Run(ctx) }()

	select {
	case <-done:
	case <-time.After(time.Second):
		req.Fail("Fanout did not deliver all events in time")
	}
}
