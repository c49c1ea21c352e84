// Package chat contains core concepts of the relay: sessions, messages and commands.
// No runtime, network, or UI logic should be added here.
package chat

import "github.com/google/uuid"

// SessionID identifies one live transport connection.
type SessionID uuid.UUID

func NewSessionID() SessionID { return SessionID(uuid.New()) }

func (id SessionID) String() string { return uuid.UUID(id).String() }

type SessionState int

const (
	// Connected is the state of an accepted connection that has not claimed a name yet.
	Connected SessionState = iota
	Named
	Closed
)

func (s SessionState) String() string {
	switch s {
	case Connected:
		return "connected"
	case Named:
		return "named"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one live connection as seen by the coordinator.
// Name is empty until the session is Named.
type Session struct {
	ID    SessionID
	Name  string
	State SessionState
}

func (s *Session) IsNamed() bool { return s.State == Named }
