package services

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"chat-relay/protocol"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeConnection feeds raw JSON frames and records what the relay sends back.
type fakeConnection struct {
	codec   *protocol.Codec
	inbound chan string
	sent    chan event.DomainEvent
	once    sync.Once
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{
		codec:   protocol.NewCodec(32, 100),
		inbound: make(chan string, 16),
		sent:    make(chan event.DomainEvent, 64),
	}
}

func (c *fakeConnection) Receive() (protocol.InboundFrame, error) {
	raw, ok := <-c.inbound
	if !ok {
		return protocol.InboundFrame{}, io.EOF
	}
	return c.codec.Decode([]byte(raw))
}

// hangUp simulates the transport going away.
func (c *fakeConnection) hangUp() {
	c.once.Do(func() { close(c.inbound) })
}

func (c *fakeConnection) Send(e event.DomainEvent) error {
	c.sent <- e
	return nil
}

func (c *fakeConnection) next(t *testing.T) event.DomainEvent {
	select {
	case e := <-c.sent:
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func newTestRelay(t *testing.T, options RelayOptions) *RelayService {
	log := logs.GetLoggerFromLevel(slog.LevelError)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 10*time.Millisecond),
		runtime.NewRegistry(), clockwork.NewRealClock(), nil, runtime.Options{
			BufferSize:  32,
			SinkTimeout: 100 * time.Millisecond,
		})
	require.NoError(t, orchestrator.Start(context.Background()))
	t.Cleanup(orchestrator.Stop)
	if options.ConnectionBufferSize == 0 {
		options.ConnectionBufferSize = 16
	}
	return NewRelayService(log, orchestrator, nil, options)
}

func serve(t *testing.T, relay *RelayService, conn *fakeConnection) <-chan error {
	done := make(chan error, 1)
	go func() { done <- relay.Serve(context.Background(), conn) }()
	t.Cleanup(conn.hangUp)
	return done
}

// join connects a client and names it, waiting for its own name and join notice so that
// sessions connected afterwards do not see this join.
func join(t *testing.T, relay *RelayService, name string) (*fakeConnection, <-chan error) {
	t.Helper()
	conn := newFakeConnection()
	done := serve(t, relay, conn)
	conn.inbound <- fmt.Sprintf(`{"type":"claim-name","requestedName":%q}`, name)
	require.Equal(t, event.NameAssigned{AssignedName: name, RequestedName: name}, conn.next(t))
	require.Equal(t, event.MessagePosted{SenderName: chat.SystemSender, Text: name + " has joined the chat", System: true},
		withoutTimestamp(conn.next(t)))
	return conn, done
}

func withoutTimestamp(e event.DomainEvent) event.DomainEvent {
	if m, ok := e.(event.MessagePosted); ok {
		m.At = time.Time{}
		return m
	}
	return e
}

func TestRelayService_Claim_And_Chat(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t, RelayOptions{})
	conn := newFakeConnection()
	done := serve(t, relay, conn)

	// Given a client claiming a name
	conn.inbound <- `{"type":"claim-name","requestedName":"alice"}`
	req.Equal(event.NameAssigned{AssignedName: "alice", RequestedName: "alice"}, conn.next(t))
	req.Equal("alice has joined the chat", conn.next(t).(event.MessagePosted).Text)

	// When it chats
	conn.inbound <- `{"type":"chat-message","text":"hello"}`

	// Then its own message comes back stamped with its name
	msg := conn.next(t).(event.MessagePosted)
	req.Equal("alice", msg.SenderName)
	req.Equal("hello", msg.Text)
	req.False(msg.System)

	// And closing the transport releases the name
	conn.hangUp()
	req.NoError(<-done)
	req.Eventually(func() bool {
		names, err := relay.Who(context.Background())
		return err == nil && len(names) == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRelayService_Malformed_Frame_Keeps_Connection(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t, RelayOptions{})
	conn := newFakeConnection()
	serve(t, relay, conn)

	// Given an unknown frame type
	conn.inbound <- `{"type":"dance"}`

	// Then the client is told
	protocolErr := conn.next(t).(event.ProtocolError)
	req.Equal("unknown-event", protocolErr.Code)

	// And the connection is still usable
	conn.inbound <- `{"type":"claim-name","requestedName":"bob"}`
	req.Equal("bob", conn.next(t).(event.NameAssigned).AssignedName)
}

func TestRelayService_Rate_Limited_Frames_Are_Dropped(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t, RelayOptions{InboundRatePerSecond: 0.001, InboundBurst: 1})
	conn := newFakeConnection()
	serve(t, relay, conn)

	// Given the only allowed frame claims a name
	conn.inbound <- `{"type":"claim-name","requestedName":"carol"}`
	req.Equal("carol", conn.next(t).(event.NameAssigned).AssignedName)
	conn.next(t)

	// When the client keeps sending
	conn.inbound <- `{"type":"chat-message","text":"spam"}`

	// Then the frame is rejected at the boundary
	req.Equal("rate-limited", conn.next(t).(event.ProtocolError).Code)
}

func TestRelayService_Leave_Announces_Once(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t, RelayOptions{})

	// Given bob then alice are named
	bob, _ := join(t, relay, "bob")
	alice, aliceDone := join(t, relay, "alice")
	req.Equal("alice has joined the chat", bob.next(t).(event.MessagePosted).Text)

	// When alice leaves explicitly
	alice.inbound <- `{"type":"leave"}`

	// Then her connection ends and bob sees a single leave notice
	req.NoError(<-aliceDone)
	req.Equal("alice has left the chat", bob.next(t).(event.MessagePosted).Text)
	select {
	case e := <-bob.sent:
		t.Fatalf("unexpected event %#v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelayService_Typing_Is_Not_Echoed(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t, RelayOptions{})

	// Given alice then bob are named
	alice, _ := join(t, relay, "alice")
	bob, _ := join(t, relay, "bob")
	req.Equal("bob has joined the chat", alice.next(t).(event.MessagePosted).Text)

	// When alice types then chats
	alice.inbound <- `{"type":"typing"}`
	alice.inbound <- `{"type":"chat-message","text":"done"}`

	// Then bob sees both, alice only her message
	req.Equal(event.UserTyping{Name: "alice"}, bob.next(t))
	req.Equal("done", bob.next(t).(event.MessagePosted).Text)
	req.Equal("done", alice.next(t).(event.MessagePosted).Text)
}

func TestRelayService_Peer_Connected_Before_Claim_Sees_The_Join(t *testing.T) {
	req := require.New(t)
	relay := newTestRelay(t, RelayOptions{})

	// Given an unnamed observer already connected
	observer := newFakeConnection()
	serve(t, relay, observer)
	observer.inbound <- `{"type":"typing"}`
	req.Equal("not-named", observer.next(t).(event.ProtocolError).Code)

	// When someone claims a name
	join(t, relay, "dave")

	// Then the observer, unnamed, still sees the join notice
	req.Equal("dave has joined the chat", observer.next(t).(event.MessagePosted).Text)
}

func TestRelayService_Connect_Refused(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	orchestrator := mocks.NewMockIOrchestrator(ctrl)
	relay := NewRelayService(logs.GetLoggerFromLevel(slog.LevelError), orchestrator, nil, RelayOptions{ConnectionBufferSize: 1})

	// Given a stopped coordinator
	orchestrator.EXPECT().Connect(gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.ErrCoordinatorStopped)

	// When a client connects
	err := relay.Serve(context.Background(), newFakeConnection())

	// Then the connection is refused without any disconnect
	req.ErrorIs(err, errors.ErrCoordinatorStopped)
}

func TestRelayService_Who(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	orchestrator := mocks.NewMockIOrchestrator(ctrl)
	relay := NewRelayService(logs.GetLoggerFromLevel(slog.LevelError), orchestrator, nil, RelayOptions{})

	orchestrator.EXPECT().Who(gomock.Any()).Return([]string{"alice", "bob"}, nil)

	names, err := relay.Who(context.Background())

	req.NoError(err)
	req.Equal([]string{"alice", "bob"}, names)
}
