// Package event defines the outbound events produced by the coordinator.
package event

import (
	"chat-relay/domain/chat"
	"time"
)

type Type string

const (
	NameAssignedType      Type = "name-assigned"
	MessagePostedType     Type = "chat-message"
	UserTypingType        Type = "typing"
	UserStoppedTypingType Type = "stop-typing"
	ProtocolErrorType     Type = "error"
)

type DomainEvent interface {
	EventType() Type
}

// NameAssigned is unicast to the claimant only.
type NameAssigned struct {
	AssignedName  string
	RequestedName string
}

// MessagePosted carries both user messages and system notices.
type MessagePosted struct {
	SenderName string
	Text       string
	At         time.Time
	System     bool
}

type UserTyping struct {
	Name string
}

type UserStoppedTyping struct {
	Name string
}

// ProtocolError is a diagnostic unicast to a misbehaving connection.
type ProtocolError struct {
	Code   string
	Reason string
}

func (NameAssigned) EventType() Type      { return NameAssignedType }
func (MessagePosted) EventType() Type     { return MessagePostedType }
func (UserTyping) EventType() Type        { return UserTypingType }
func (UserStoppedTyping) EventType() Type { return UserStoppedTypingType }
func (ProtocolError) EventType() Type     { return ProtocolErrorType }

func FromMessage(m chat.Message) MessagePosted {
	return MessagePosted{
		SenderName: m.SenderName,
		Text:       m.Text,
		At:         m.CreatedAt,
		System:     m.System,
	}
}
