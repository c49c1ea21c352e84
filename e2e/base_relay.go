package e2e

import (
	"chat-relay/domain/event"
	"chat-relay/infrastructure/grpc/client"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/infrastructure/httpserver"
	"chat-relay/observability"
	pb "chat-relay/proto/relay"
	"chat-relay/protocol"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type BaseRelaySuite struct {
	suite.Suite
	Config  Config
	cleanup []func()
}

// SetupSuite loads the environment configuration and starts a local relay when no address is given.
func (s *BaseRelaySuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.GrpcAddr == "" || s.Config.WsURL == "" {
		s.startLocalRelay()
	}
}

func (s *BaseRelaySuite) TearDownSuite() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

func (s *BaseRelaySuite) startLocalRelay() {
	ctx, cancel := context.WithCancel(context.Background())
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	clock := clockwork.NewRealClock()
	promRegistry := observability.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)

	orchestrator := runtime.NewOrchestrator(log, workers.NewSupervisor(log, 50*time.Millisecond),
		runtime.NewRegistry(), clock, metrics, runtime.Options{
			BufferSize:      64,
			SinkTimeout:     200 * time.Millisecond,
			Moderation:      true,
			CharReplacement: '*',
		})
	s.Require().NoError(orchestrator.Start(context.Background()))
	relay := services.NewRelayService(log, orchestrator, metrics, services.RelayOptions{
		ConnectionBufferSize: 32,
		InboundRatePerSecond: 50,
		InboundBurst:         50,
	})
	codec := protocol.NewCodec(32, 500)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)
	grpcServer := grpc.NewServer()
	pb.RegisterRelayServiceServer(grpcServer, server.NewRelayServer(ctx, log, relay, codec))
	go func() { _ = grpcServer.Serve(listener) }()

	httpServer := httptest.NewServer(httpserver.NewServer(ctx, log, relay, codec, metrics, promRegistry, clock,
		httpserver.Options{WriteTimeout: time.Second, MaxFrameBytes: 8192}).Handler())

	s.Config.GrpcAddr = listener.Addr().String()
	s.Config.WsURL = "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
	s.cleanup = append(s.cleanup, orchestrator.Stop, grpcServer.Stop, httpServer.Close, cancel)
}

func (s *BaseRelaySuite) step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// participant is a chat client over either transport.
type participant interface {
	claimName(name string)
	say(text string)
	typing()
	leave()
	next() event.DomainEvent
}

type grpcParticipant struct {
	s      *BaseRelaySuite
	relay  *client.RelayClient
	events chan event.DomainEvent
}

func (s *BaseRelaySuite) GrpcParticipant(ctx context.Context) participant {
	conn, err := grpc.NewClient(s.Config.GrpcAddr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	s.Require().NoError(err, "Failed to connect to gRPC server at "+s.Config.GrpcAddr)
	s.T().Cleanup(func() { _ = conn.Close() })

	relay, err := client.Connect(ctx, conn)
	s.Require().NoError(err)
	p := &grpcParticipant{s: s, relay: relay, events: make(chan event.DomainEvent, 64)}
	go func() {
		defer close(p.events)
		for {
			evt, err := relay.Receive()
			if err != nil {
				return
			}
			p.events <- evt
		}
	}()
	return p
}

func (p *grpcParticipant) claimName(name string) { p.s.Require().NoError(p.relay.ClaimName(name)) }
func (p *grpcParticipant) say(text string)       { p.s.Require().NoError(p.relay.Say(text)) }
func (p *grpcParticipant) typing()               { p.s.Require().NoError(p.relay.Typing()) }
func (p *grpcParticipant) leave()                { p.s.Require().NoError(p.relay.Leave()) }
func (p *grpcParticipant) next() event.DomainEvent {
	return p.s.receive(p.events)
}

type wsParticipant struct {
	s      *BaseRelaySuite
	conn   *websocket.Conn
	events chan event.DomainEvent
}

func (s *BaseRelaySuite) WsParticipant() participant {
	conn, _, err := websocket.DefaultDialer.Dial(s.Config.WsURL, nil)
	s.Require().NoError(err, "Failed to connect to WebSocket at "+s.Config.WsURL)
	s.T().Cleanup(func() { _ = conn.Close() })

	p := &wsParticipant{s: s, conn: conn, events: make(chan event.DomainEvent, 64)}
	go func() {
		defer close(p.events)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			evt, err := protocol.DecodeOutbound(data)
			if err != nil {
				return
			}
			p.events <- evt
		}
	}()
	return p
}

func (p *wsParticipant) write(frame protocol.InboundFrame) {
	data, err := protocol.EncodeInbound(frame)
	p.s.Require().NoError(err)
	p.s.Require().NoError(p.conn.WriteMessage(websocket.TextMessage, data))
}

func (p *wsParticipant) claimName(name string) {
	p.write(protocol.InboundFrame{Type: protocol.ClaimNameType, RequestedName: name})
}
func (p *wsParticipant) say(text string) {
	p.write(protocol.InboundFrame{Type: protocol.ChatMessageType, Text: text})
}
func (p *wsParticipant) typing() { p.write(protocol.InboundFrame{Type: protocol.TypingType}) }
func (p *wsParticipant) leave()  { p.write(protocol.InboundFrame{Type: protocol.LeaveType}) }
func (p *wsParticipant) next() event.DomainEvent {
	return p.s.receive(p.events)
}

func (s *BaseRelaySuite) receive(events <-chan event.DomainEvent) event.DomainEvent {
	select {
	case evt, ok := <-events:
		s.Require().True(ok, "connection closed")
		return evt
	case <-time.After(5 * time.Second):
		s.FailNow("no event received")
		return nil
	}
}
