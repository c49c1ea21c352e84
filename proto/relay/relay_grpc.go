// Package relay declares the RelayService gRPC contract.
//
// Hand-maintained: every message is a well-known type, so there is no relay.pb.go.
// Keep this file in sync with relay.proto when a method is added.
//
// Frames travel as google.protobuf.Struct values holding the JSON frame, so the
// gRPC and WebSocket transports share a single wire vocabulary.
package relay

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	RelayService_ServiceName            = "relay.v1.RelayService"
	RelayService_Connect_FullMethodName = "/relay.v1.RelayService/Connect"
	RelayService_Who_FullMethodName     = "/relay.v1.RelayService/Who"
)

type (
	RelayService_ConnectServer = grpc.BidiStreamingServer[structpb.Struct, structpb.Struct]
	RelayService_ConnectClient = grpc.BidiStreamingClient[structpb.Struct, structpb.Struct]
)

// RelayServiceServer is implemented by the relay.
type RelayServiceServer interface {
	// Connect opens a session: the client streams inbound frames, the server streams events.
	Connect(RelayService_ConnectServer) error
	// Who lists the names currently held, sorted.
	Who(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
}

type RelayServiceClient interface {
	Connect(ctx context.Context, opts ...grpc.CallOption) (RelayService_ConnectClient, error)
	Who(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
}

type relayServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewRelayServiceClient(cc grpc.ClientConnInterface) RelayServiceClient {
	return &relayServiceClient{cc: cc}
}

func (c *relayServiceClient) Connect(ctx context.Context, opts ...grpc.CallOption) (RelayService_ConnectClient, error) {
	stream, err := c.cc.NewStream(ctx, &RelayService_ServiceDesc.Streams[0], RelayService_Connect_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	return &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}, nil
}

func (c *relayServiceClient) Who(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, RelayService_Who_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterRelayServiceServer(s grpc.ServiceRegistrar, srv RelayServiceServer) {
	s.RegisterService(&RelayService_ServiceDesc, srv)
}

func _RelayService_Connect_Handler(srv any, stream grpc.ServerStream) error {
	return srv.(RelayServiceServer).Connect(&grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

func _RelayService_Who_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RelayServiceServer).Who(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: RelayService_Who_FullMethodName,
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RelayServiceServer).Who(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var RelayService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: RelayService_ServiceName,
	HandlerType: (*RelayServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Who",
			Handler:    _RelayService_Who_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       _RelayService_Connect_Handler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "proto/relay/relay.proto",
}
