package httpserver

import (
	"chat-relay/domain/event"
	"chat-relay/mocks"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestServer(t *testing.T, relay services.IRelayService) *httptest.Server {
	log := logs.GetLoggerFromLevel(slog.LevelError)
	ctx, cancel := context.WithCancel(context.Background())
	registry := observability.NewRegistry()
	srv := NewServer(ctx, log, relay, protocol.NewCodec(32, 100), observability.NewMetrics(registry),
		registry, clockwork.NewRealClock(), Options{WriteTimeout: time.Second, MaxFrameBytes: 4096})
	httpServer := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		httpServer.Close()
	})
	return httpServer
}

func newRelay(t *testing.T) services.IRelayService {
	log := logs.GetLoggerFromLevel(slog.LevelError)
	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 10*time.Millisecond),
		runtime.NewRegistry(), clockwork.NewRealClock(), nil, runtime.Options{
			BufferSize:  32,
			SinkTimeout: 100 * time.Millisecond,
		})
	require.NoError(t, orchestrator.Start(context.Background()))
	t.Cleanup(orchestrator.Stop)
	return services.NewRelayService(log, orchestrator, nil, services.RelayOptions{ConnectionBufferSize: 16})
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func receive(t *testing.T, conn *websocket.Conn) event.DomainEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	evt, err := protocol.DecodeOutbound(data)
	require.NoError(t, err)
	return evt
}

func TestWebSocket_Name_Collision_And_Chat(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, newRelay(t))
	// Given two clients asking for the same name, the second dialing once the first is named
	first := dial(t, server)
	send(t, first, `{"type":"claim-name","requestedName":"alice"}`)
	req.Equal(event.NameAssigned{AssignedName: "alice", RequestedName: "alice"}, receive(t, first))
	req.Equal("alice has joined the chat", receive(t, first).(event.MessagePosted).Text)
	second := dial(t, server)
	send(t, second, `{"type":"claim-name","requestedName":"alice"}`)
	req.Equal(event.NameAssigned{AssignedName: "alice1", RequestedName: "alice"}, receive(t, second))
	req.Equal("alice1 has joined the chat", receive(t, second).(event.MessagePosted).Text)
	req.Equal("alice1 has joined the chat", receive(t, first).(event.MessagePosted).Text)

	// When the first one chats
	send(t, first, `{"type":"chat-message","text":"hello"}`)

	// Then both receive it
	for _, conn := range []*websocket.Conn{first, second} {
		msg := receive(t, conn).(event.MessagePosted)
		req.Equal("alice", msg.SenderName)
		req.Equal("hello", msg.Text)
	}

	// And closing a socket releases its name
	req.NoError(second.Close())
	req.Equal("alice1 has left the chat", receive(t, first).(event.MessagePosted).Text)
}

func TestWebSocket_Invalid_Frame(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, newRelay(t))
	conn := dial(t, server)

	send(t, conn, `{"type":"chat-message","text":"`+strings.Repeat("x", 101)+`"}`)

	req.Equal("content-too-long", receive(t, conn).(event.ProtocolError).Code)
}

func TestWebSocket_Leave_Closes_Socket(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, newRelay(t))
	conn := dial(t, server)

	send(t, conn, `{"type":"claim-name","requestedName":"bob"}`)
	receive(t, conn)
	receive(t, conn)

	// When the client leaves
	send(t, conn, `{"type":"leave"}`)

	// Then the server closes the socket normally
	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "err=%v", err)
}

func TestWho(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	orchestrator := mocks.NewMockIOrchestrator(ctrl)
	relay := services.NewRelayService(logs.GetLoggerFromLevel(slog.LevelError), orchestrator, nil, services.RelayOptions{})
	server := newTestServer(t, relay)

	orchestrator.EXPECT().Who(gomock.Any()).Return([]string{"alice", "bob"}, nil)

	resp, err := http.Get(server.URL + "/who")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
	var body whoResponse
	req.NoError(json.NewDecoder(resp.Body).Decode(&body))
	req.Equal(whoResponse{Names: []string{"alice", "bob"}, Count: 2}, body)
}

func TestHealth(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	orchestrator := mocks.NewMockIOrchestrator(ctrl)
	relay := services.NewRelayService(logs.GetLoggerFromLevel(slog.LevelError), orchestrator, nil, services.RelayOptions{})
	server := newTestServer(t, relay)

	live, err := http.Get(server.URL + "/health/live")
	req.NoError(err)
	_ = live.Body.Close()
	req.Equal(http.StatusOK, live.StatusCode)

	// Given a coordinator that stopped answering
	orchestrator.EXPECT().Who(gomock.Any()).Return(nil, context.DeadlineExceeded)

	ready, err := http.Get(server.URL + "/health/ready")
	req.NoError(err)
	_ = ready.Body.Close()
	req.Equal(http.StatusServiceUnavailable, ready.StatusCode)
}

func TestMetrics_Endpoint(t *testing.T) {
	req := require.New(t)
	server := newTestServer(t, newRelay(t))

	resp, err := http.Get(server.URL + "/metrics")
	req.NoError(err)
	defer resp.Body.Close()

	req.Equal(http.StatusOK, resp.StatusCode)
}
