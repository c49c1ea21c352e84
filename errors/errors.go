package errors

import (
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
	ErrCoordinatorStopped = fmt.Errorf("coordinator stopped")

	// Protocol violations: the event arrived while the session was in the wrong state.
	ErrProtocolViolation = fmt.Errorf("protocol violation")
	ErrSessionUnknown    = fmt.Errorf("%w: unknown session", ErrProtocolViolation)
	ErrSessionExists     = fmt.Errorf("%w: session already connected", ErrProtocolViolation)
	ErrAlreadyNamed      = fmt.Errorf("%w: session already has a name", ErrProtocolViolation)
	ErrNotNamed          = fmt.Errorf("%w: session has no name yet", ErrProtocolViolation)

	// Boundary errors, raised before a frame reaches the coordinator.
	ErrMalformedFrame = fmt.Errorf("malformed frame")
	ErrUnknownEvent   = fmt.Errorf("%w: unknown event type", ErrMalformedFrame)
	ErrInvalidPayload = fmt.Errorf("%w: invalid payload", ErrMalformedFrame)
	ErrContentTooLong = fmt.Errorf("%w: content too long", ErrMalformedFrame)
	ErrRateLimited    = fmt.Errorf("rate limited")

	// Delivery errors, isolated per recipient.
	ErrSinkFull   = fmt.Errorf("sink full, event dropped")
	ErrSinkClosed = fmt.Errorf("sink closed")
)

// Code is the short identifier sent to clients inside error frames.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAlreadyNamed):
		return "already-named"
	case errors.Is(err, ErrNotNamed):
		return "not-named"
	case errors.Is(err, ErrProtocolViolation):
		return "protocol-violation"
	case errors.Is(err, ErrContentTooLong):
		return "content-too-long"
	case errors.Is(err, ErrUnknownEvent):
		return "unknown-event"
	case errors.Is(err, ErrMalformedFrame):
		return "malformed-frame"
	case errors.Is(err, ErrRateLimited):
		return "rate-limited"
	default:
		return "internal"
	}
}

// MapToGRPCError translates domain errors into gRPC status errors.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrMalformedFrame):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ErrProtocolViolation):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ErrRateLimited):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, ErrCoordinatorStopped):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
