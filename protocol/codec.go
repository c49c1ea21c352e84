package protocol

import (
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Codec validates inbound frames against the configured limits.
type Codec struct {
	validate         *validator.Validate
	maxNameLength    int
	maxContentLength int
}

func NewCodec(maxNameLength, maxContentLength int) *Codec {
	return &Codec{
		validate:         validator.New(),
		maxNameLength:    maxNameLength,
		maxContentLength: maxContentLength,
	}
}

// Decode parses and validates a client frame. The requested name is trimmed.
// Every returned error wraps errors.ErrMalformedFrame.
func (c *Codec) Decode(data []byte) (InboundFrame, error) {
	var frame InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	frame.RequestedName = strings.TrimSpace(frame.RequestedName)
	if err := c.Validate(frame); err != nil {
		return InboundFrame{}, err
	}
	return frame, nil
}

// DecodeStruct is Decode for frames carried in a google.protobuf.Struct.
func (c *Codec) DecodeStruct(s *structpb.Struct) (InboundFrame, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return InboundFrame{}, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return c.Decode(data)
}

func (c *Codec) Validate(frame InboundFrame) error {
	if !lo.Contains(inboundTypes, frame.Type) {
		return fmt.Errorf("%w: %q", errors.ErrUnknownEvent, frame.Type)
	}
	if err := c.validate.Struct(frame); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	switch frame.Type {
	case ClaimNameType:
		if c.maxNameLength > 0 && utf8.RuneCountInString(frame.RequestedName) > c.maxNameLength {
			return fmt.Errorf("%w: name longer than %d characters", errors.ErrInvalidPayload, c.maxNameLength)
		}
	case ChatMessageType:
		if strings.TrimSpace(frame.Text) == "" {
			return fmt.Errorf("%w: blank message", errors.ErrInvalidPayload)
		}
		if c.maxContentLength > 0 && utf8.RuneCountInString(frame.Text) > c.maxContentLength {
			return fmt.Errorf("%w: more than %d characters", errors.ErrContentTooLong, c.maxContentLength)
		}
	}
	return nil
}

// Encode renders an event as a JSON frame.
func Encode(e event.DomainEvent) ([]byte, error) {
	frame, err := FromEvent(e)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame)
}

// EncodeStruct renders an event as a google.protobuf.Struct holding the JSON frame.
func EncodeStruct(e event.DomainEvent) (*structpb.Struct, error) {
	data, err := Encode(e)
	if err != nil {
		return nil, err
	}
	return toStruct(data)
}

// DecodeOutbound parses a server frame, on the client side.
func DecodeOutbound(data []byte) (event.DomainEvent, error) {
	var frame OutboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return frame.Event()
}

func DecodeOutboundStruct(s *structpb.Struct) (event.DomainEvent, error) {
	data, err := protojson.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return DecodeOutbound(data)
}

// EncodeInbound renders a client frame, on the client side.
func EncodeInbound(frame InboundFrame) ([]byte, error) {
	return json.Marshal(frame)
}

func EncodeInboundStruct(frame InboundFrame) (*structpb.Struct, error) {
	data, err := EncodeInbound(frame)
	if err != nil {
		return nil, err
	}
	return toStruct(data)
}

func toStruct(data []byte) (*structpb.Struct, error) {
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(data, s); err != nil {
		return nil, err
	}
	return s, nil
}
