package client

import (
	"chat-relay/domain/event"
	pb "chat-relay/proto/relay"
	"chat-relay/protocol"
	"context"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
)

// RelayClient is one chat session over a RelayService stream.
type RelayClient struct {
	mu     sync.Mutex
	stream pb.RelayService_ConnectClient
}

// Connect opens the session. It stays open until ctx is done, Leave or CloseSend.
func Connect(ctx context.Context, cc grpc.ClientConnInterface) (*RelayClient, error) {
	stream, err := pb.NewRelayServiceClient(cc).Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &RelayClient{stream: stream}, nil
}

// Who lists the names currently held on the relay behind cc.
func Who(ctx context.Context, cc grpc.ClientConnInterface) ([]string, error) {
	list, err := pb.NewRelayServiceClient(cc).Who(ctx, &emptypb.Empty{})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		names = append(names, v.GetStringValue())
	}
	return names, nil
}

func (c *RelayClient) ClaimName(name string) error {
	return c.send(protocol.InboundFrame{Type: protocol.ClaimNameType, RequestedName: name})
}

func (c *RelayClient) Say(text string) error {
	return c.send(protocol.InboundFrame{Type: protocol.ChatMessageType, Text: text})
}

func (c *RelayClient) Typing() error {
	return c.send(protocol.InboundFrame{Type: protocol.TypingType})
}

func (c *RelayClient) StopTyping() error {
	return c.send(protocol.InboundFrame{Type: protocol.StopTypingType})
}

// Leave announces the departure then half-closes the stream.
func (c *RelayClient) Leave() error {
	if err := c.send(protocol.InboundFrame{Type: protocol.LeaveType}); err != nil {
		return err
	}
	return c.CloseSend()
}

func (c *RelayClient) CloseSend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.CloseSend()
}

// Receive blocks until the next event. It returns io.EOF once the server ended the stream.
func (c *RelayClient) Receive() (event.DomainEvent, error) {
	msg, err := c.stream.Recv()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeOutboundStruct(msg)
}

func (c *RelayClient) send(frame protocol.InboundFrame) error {
	msg, err := protocol.EncodeInboundStruct(frame)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream.Send(msg)
}
