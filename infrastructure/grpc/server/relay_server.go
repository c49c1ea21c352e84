package server

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	pb "chat-relay/proto/relay"
	"chat-relay/protocol"
	"chat-relay/services"
	"context"
	"io"
	"log/slog"

	"github.com/samber/lo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

type RelayServer struct {
	// ctx ends every open stream on shutdown, GracefulStop alone would wait for clients to leave.
	ctx   context.Context
	log   *slog.Logger
	relay services.IRelayService
	codec *protocol.Codec
}

var _ pb.RelayServiceServer = (*RelayServer)(nil)

func NewRelayServer(ctx context.Context, log *slog.Logger, relay services.IRelayService, codec *protocol.Codec) *RelayServer {
	return &RelayServer{ctx: ctx, log: log, relay: relay, codec: codec}
}

// Connect holds one chat session for the lifetime of the stream.
// The session is disconnected, and its name released, when the stream ends for any reason.
func (s *RelayServer) Connect(stream pb.RelayService_ConnectServer) error {
	ctx, cancel := context.WithCancel(stream.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := s.relay.Serve(ctx, &streamConnection{stream: stream, codec: s.codec}); err != nil {
		s.log.Warn("Relay stream ended with error", "error", err)
		return errors.MapToGRPCError(err)
	}
	return nil
}

// Who answers with the names held by the coordinator.
func (s *RelayServer) Who(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	names, err := s.relay.Who(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	list, err := structpb.NewList(lo.ToAnySlice(names))
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return list, nil
}

type streamConnection struct {
	stream pb.RelayService_ConnectServer
	codec  *protocol.Codec
}

func (c *streamConnection) Receive() (protocol.InboundFrame, error) {
	msg, err := c.stream.Recv()
	if err != nil {
		if status.Code(err) == codes.Canceled {
			return protocol.InboundFrame{}, io.EOF
		}
		return protocol.InboundFrame{}, err
	}
	return c.codec.DecodeStruct(msg)
}

func (c *streamConnection) Send(e event.DomainEvent) error {
	msg, err := protocol.EncodeStruct(e)
	if err != nil {
		return err
	}
	return c.stream.Send(msg)
}
