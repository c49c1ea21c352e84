package services

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/protocol"
	"chat-relay/sink"
	"context"
	goerrors "errors"
	"io"
	"log/slog"

	"golang.org/x/time/rate"
)

// Connection is one client link as seen by the relay, whatever the transport.
// Receive returns an error wrapping errors.ErrMalformedFrame for a bad frame that
// does not end the connection. Send is only ever called from a single goroutine.
type Connection interface {
	Receive() (protocol.InboundFrame, error)
	Send(e event.DomainEvent) error
}

type IRelayService interface {
	Serve(ctx context.Context, conn Connection) error
	Who(ctx context.Context) ([]string, error)
}

type RelayOptions struct {
	ConnectionBufferSize int
	InboundRatePerSecond float64
	InboundBurst         int
}

type RelayService struct {
	log          *slog.Logger
	orchestrator contract.IOrchestrator
	metrics      *observability.Metrics
	options      RelayOptions
}

var _ IRelayService = (*RelayService)(nil)

func NewRelayService(log *slog.Logger, orchestrator contract.IOrchestrator,
	metrics *observability.Metrics, options RelayOptions) *RelayService {
	return &RelayService{log: log, orchestrator: orchestrator, metrics: metrics, options: options}
}

func (s *RelayService) Who(ctx context.Context) ([]string, error) {
	return s.orchestrator.Who(ctx)
}

// Serve runs one connection until the client leaves, the transport fails or ctx is done.
// The session is always disconnected on return, which releases its name.
func (s *RelayService) Serve(ctx context.Context, conn Connection) error {
	id := chat.NewSessionID()
	connSink := sink.NewConnectionSink(s.log, s.options.ConnectionBufferSize)
	defer connSink.Close()

	if err := s.orchestrator.Connect(ctx, id, connSink); err != nil {
		return err
	}
	defer func() {
		if err := s.orchestrator.Disconnect(id); err != nil {
			s.log.Warn("Disconnect not delivered", "session_id", id, "error", err)
		}
	}()
	s.log.Debug("Connection opened", "session_id", id)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	readDone := make(chan error, 1)
	go func() {
		readDone <- s.read(ctx, id, conn, connSink)
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readDone:
			if err == nil || goerrors.Is(err, io.EOF) || goerrors.Is(err, context.Canceled) {
				s.log.Debug("Connection closed", "session_id", id)
				return nil
			}
			return err
		case evt, ok := <-connSink.ConnectedUserEvent:
			if !ok {
				return nil
			}
			if err := conn.Send(evt); err != nil {
				s.log.Error("Failed to push event to connection",
					"session_id", id,
					"type", evt.EventType(),
					"error", err)
				return err
			}
		}
	}
}

// read forwards client frames to the coordinator until the client leaves (nil) or fails.
func (s *RelayService) read(ctx context.Context, id chat.SessionID, conn Connection, connSink *sink.ConnectionSink) error {
	limiter := rate.NewLimiter(s.limit(), s.options.InboundBurst)
	for {
		frame, err := conn.Receive()
		if err != nil {
			if goerrors.Is(err, errors.ErrMalformedFrame) {
				s.diagnose(ctx, id, connSink, err)
				continue
			}
			return err
		}
		if !limiter.Allow() {
			s.metrics.FrameRateLimited()
			s.diagnose(ctx, id, connSink, errors.ErrRateLimited)
			continue
		}
		if err := s.orchestrator.Dispatch(ctx, frame.Command(id)); err != nil {
			return err
		}
		if frame.IsLeave() {
			return nil
		}
	}
}

// diagnose answers a rejected frame directly, the coordinator never sees it.
func (s *RelayService) diagnose(ctx context.Context, id chat.SessionID, connSink *sink.ConnectionSink, err error) {
	s.log.Debug("Frame rejected", "session_id", id, "error", err)
	s.metrics.ProtocolViolation(errors.Code(err))
	_ = connSink.Consume(ctx, event.ProtocolError{Code: errors.Code(err), Reason: err.Error()})
}

func (s *RelayService) limit() rate.Limit {
	if s.options.InboundRatePerSecond <= 0 {
		return rate.Inf
	}
	return rate.Limit(s.options.InboundRatePerSecond)
}
