package chat

import (
	"fmt"
	"time"
)

// SystemSender is the reserved sender name of join/leave notices.
const SystemSender = "System"

// Message is an immutable chat line as relayed to every session.
// It has no identifier: order is the coordinator's processing order.
type Message struct {
	SenderName string
	Text       string
	CreatedAt  time.Time
	System     bool
}

func JoinNotice(name string, at time.Time) Message {
	return Message{
		SenderName: SystemSender,
		Text:       fmt.Sprintf("%s has joined the chat", name),
		CreatedAt:  at,
		System:     true,
	}
}

func LeaveNotice(name string, at time.Time) Message {
	return Message{
		SenderName: SystemSender,
		Text:       fmt.Sprintf("%s has left the chat", name),
		CreatedAt:  at,
		System:     true,
	}
}
