// Package protocol converts the JSON frames exchanged with clients to and from
// coordinator commands and domain events.
package protocol

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"fmt"
	"time"
)

// Inbound frame types.
const (
	ClaimNameType   = "claim-name"
	ChatMessageType = "chat-message"
	TypingType      = "typing"
	StopTypingType  = "stop-typing"
	LeaveType       = "leave"
)

var inboundTypes = []string{ClaimNameType, ChatMessageType, TypingType, StopTypingType, LeaveType}

// InboundFrame is a client to server frame.
type InboundFrame struct {
	Type          string `json:"type" validate:"required"`
	RequestedName string `json:"requestedName,omitempty" validate:"required_if=Type claim-name"`
	Text          string `json:"text,omitempty" validate:"required_if=Type chat-message"`
}

func (f InboundFrame) IsLeave() bool {
	return f.Type == LeaveType
}

// Command binds the frame to the session it was read from.
// A leave frame becomes a disconnect.
func (f InboundFrame) Command(id chat.SessionID) chat.Command {
	switch f.Type {
	case ClaimNameType:
		return chat.ClaimNameCommand{SessionID: id, RequestedName: f.RequestedName}
	case ChatMessageType:
		return chat.PostMessageCommand{SessionID: id, Text: f.Text}
	case TypingType:
		return chat.TypingCommand{SessionID: id}
	case StopTypingType:
		return chat.StopTypingCommand{SessionID: id}
	default:
		return chat.DisconnectCommand{SessionID: id}
	}
}

// OutboundFrame is a server to client frame. Only the fields of its type are set.
type OutboundFrame struct {
	Type          string `json:"type"`
	AssignedName  string `json:"assignedName,omitempty"`
	RequestedName string `json:"requestedName,omitempty"`
	SenderName    string `json:"senderName,omitempty"`
	Text          string `json:"text,omitempty"`
	Timestamp     string `json:"timestamp,omitempty"`
	System        bool   `json:"system,omitempty"`
	Name          string `json:"name,omitempty"`
	Code          string `json:"code,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// FromEvent renders a domain event as the frame sent to clients.
func FromEvent(e event.DomainEvent) (OutboundFrame, error) {
	switch e := e.(type) {
	case event.NameAssigned:
		return OutboundFrame{
			Type:          string(e.EventType()),
			AssignedName:  e.AssignedName,
			RequestedName: e.RequestedName,
		}, nil
	case event.MessagePosted:
		return OutboundFrame{
			Type:       string(e.EventType()),
			SenderName: e.SenderName,
			Text:       e.Text,
			Timestamp:  e.At.UTC().Format(time.RFC3339),
			System:     e.System,
		}, nil
	case event.UserTyping:
		return OutboundFrame{Type: string(e.EventType()), Name: e.Name}, nil
	case event.UserStoppedTyping:
		return OutboundFrame{Type: string(e.EventType()), Name: e.Name}, nil
	case event.ProtocolError:
		return OutboundFrame{Type: string(e.EventType()), Code: e.Code, Reason: e.Reason}, nil
	default:
		return OutboundFrame{}, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, e)
	}
}

// Event is the inverse of FromEvent, used on the client side.
func (f OutboundFrame) Event() (event.DomainEvent, error) {
	switch event.Type(f.Type) {
	case event.NameAssignedType:
		return event.NameAssigned{AssignedName: f.AssignedName, RequestedName: f.RequestedName}, nil
	case event.MessagePostedType:
		at, err := time.Parse(time.RFC3339, f.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
		}
		return event.MessagePosted{SenderName: f.SenderName, Text: f.Text, At: at, System: f.System}, nil
	case event.UserTypingType:
		return event.UserTyping{Name: f.Name}, nil
	case event.UserStoppedTypingType:
		return event.UserStoppedTyping{Name: f.Name}, nil
	case event.ProtocolErrorType:
		return event.ProtocolError{Code: f.Code, Reason: f.Reason}, nil
	default:
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, f.Type)
	}
}
