// Package runtime handles event production, propagation and the session lifecycle.
// It orchestrates the relay without containing transport concerns.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime/workers"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

//go:embed censored/*
var censoredFolder embed.FS

var _ contract.IOrchestrator = (*Orchestrator)(nil)

type Options struct {
	BufferSize        int
	SinkTimeout       time.Duration
	HeartbeatInterval time.Duration
	MetricInterval    time.Duration
	// LowCapacityThreshold is the queue fill percentage logged as congestion.
	LowCapacityThreshold int
	Moderation           bool
	CharReplacement      rune
}

// Orchestrator wires the coordinator to the moderation and fanout stages and
// exposes the session lifecycle to transports.
type Orchestrator struct {
	mu            sync.Mutex
	log           *slog.Logger
	clock         clockwork.Clock
	supervisor    contract.ISupervisor
	coordinator   *Coordinator
	metrics       *observability.Metrics
	options       Options
	commands      chan chat.Command
	rawDeliveries chan contract.Delivery
	deliveries    chan contract.Delivery
	started       bool
	cancel        context.CancelFunc
	stopped       chan struct{}
}

func NewOrchestrator(log *slog.Logger, supervisor *workers.Supervisor, registry *Registry,
	clock clockwork.Clock, metrics *observability.Metrics, options Options) *Orchestrator {
	commands := make(chan chat.Command, options.BufferSize)
	rawDeliveries := make(chan contract.Delivery, options.BufferSize)
	return &Orchestrator{
		log:           log,
		clock:         clock,
		supervisor:    supervisor,
		coordinator:   NewCoordinator(log, clock, registry, metrics, commands, rawDeliveries),
		metrics:       metrics,
		options:       options,
		commands:      commands,
		rawDeliveries: rawDeliveries,
		deliveries:    make(chan contract.Delivery, options.BufferSize),
		stopped:       make(chan struct{}),
	}
}

// Connect registers a new unnamed session bound to sink.
func (o *Orchestrator) Connect(ctx context.Context, id chat.SessionID, sink contract.EventSink) error {
	return o.Dispatch(ctx, connectCommand{SessionID: id, Sink: sink})
}

// Dispatch queues cmd for the coordinator. It blocks until the command is queued,
// ctx is done, or the orchestrator has stopped.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd chat.Command) error {
	select {
	case o.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return errors.ErrCoordinatorStopped
	}
}

// Disconnect is called once the transport connection is gone, so it does not take
// the connection context: the leave must be processed even though that context is done.
func (o *Orchestrator) Disconnect(id chat.SessionID) error {
	return o.Dispatch(context.Background(), chat.DisconnectCommand{SessionID: id})
}

// Who returns the names currently held, sorted.
func (o *Orchestrator) Who(ctx context.Context) ([]string, error) {
	query := whoQuery{reply: make(chan []string, 1)}
	if err := o.Dispatch(ctx, query); err != nil {
		return nil, err
	}
	select {
	case names := <-query.reply:
		return names, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-o.stopped:
		return nil, errors.ErrCoordinatorStopped
	}
}

// Start prepares every worker then runs the supervisor in the background.
// It uses a preparation pattern to minimize mutex locking time.
func (o *Orchestrator) Start(ctx context.Context) error {
	// 1. Preparation phase (No Lock)
	moderationWorker, err := o.prepareModeration()
	if err != nil {
		return err
	}
	fanoutWorker := workers.NewEventFanout(o.log, o.metrics, o.deliveries, o.options.SinkTimeout)

	// 2. Critical Section (Short Lock)
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		return fmt.Errorf("orchestrator already started")
	}
	o.started = true
	runCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel
	o.supervisor.Add(o.coordinator, moderationWorker, fanoutWorker)
	if o.options.HeartbeatInterval > 0 {
		o.supervisor.Add(workers.NewHeartbeatWorker(o.log, o.metrics, o.options.HeartbeatInterval))
	}
	if o.options.MetricInterval > 0 {
		o.supervisor.Add(workers.NewChannelCapacityWorker(o.log, o.clock, o.metrics, []workers.NamedChannel{
			{Name: "commands", Channel: o.commands},
			{Name: "raw_deliveries", Channel: o.rawDeliveries},
			{Name: "deliveries", Channel: o.deliveries},
		}, o.options.MetricInterval, o.options.LowCapacityThreshold))
	}
	o.mu.Unlock()

	// 3. Execution phase (No Lock)
	o.log.Info("Starting orchestrator and all supervised workers")
	go func() {
		defer close(o.stopped)
		o.supervisor.Run(runCtx)
	}()
	return nil
}

// prepareModeration loads censored words and builds the Aho-Corasick automaton.
func (o *Orchestrator) prepareModeration() (contract.Worker, error) {
	if !o.options.Moderation {
		return workers.NewModerationWorker(nil, o.rawDeliveries, o.deliveries, o.log), nil
	}

	loader := NewCensoredLoader(censoredFolder)
	data, err := loader.LoadAll("censored")
	if err != nil {
		return nil, err
	}

	o.log.Info(fmt.Sprintf("%d censored files loaded [%s]",
		len(data.Languages), strings.Join(data.Languages, ",")))
	o.log.Info(fmt.Sprintf("%d unique censored words loaded", len(data.Words)))

	moderator, err := moderation.NewModerator(data.Words, o.options.CharReplacement, o.log)
	if err != nil {
		return nil, err
	}
	return workers.NewModerationWorker(moderator, o.rawDeliveries, o.deliveries, o.log), nil
}

// Stop initiates a graceful shutdown of the orchestrator and waits for every worker.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()

	o.mu.Lock()
	started, cancel := o.started, o.cancel
	o.mu.Unlock()
	if started {
		cancel()
		<-o.stopped
	}
	o.log.Debug("Orchestrator stopped")
}
