//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink is the per-connection delivery endpoint.
// Consume must not block beyond ctx: a slow connection must never stall the fanout.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IOrchestrator is what transports see of the relay.
type IOrchestrator interface {
	Connect(ctx context.Context, id chat.SessionID, sink EventSink) error
	Dispatch(ctx context.Context, cmd chat.Command) error
	Disconnect(id chat.SessionID) error
	Who(ctx context.Context) ([]string, error)
	Start(ctx context.Context) error
	Stop()
}

// Delivery is one event together with the recipients resolved by the coordinator
// at the time it processed the originating command.
type Delivery struct {
	Event      event.DomainEvent
	Recipients []EventSink
}
